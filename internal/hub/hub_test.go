package hub

import (
	"context"
	"encoding/json"
	"testing"

	"parlor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, id string) *Client {
	c := NewClient(h, nil, id, "127.0.0.1")
	h.Register(c)
	return c
}

func drain(t *testing.T, c *Client) []models.Event {
	t.Helper()
	var events []models.Event
	for {
		select {
		case raw := <-c.Send:
			var ev models.Event
			require.NoError(t, json.Unmarshal(raw, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestHub_SendTargetsSingleConnection(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "a")
	b := newTestClient(h, "b")

	h.Send("a", models.Event{Type: models.EventRoomList})

	assert.Len(t, drain(t, a), 1)
	assert.Empty(t, drain(t, b))
}

func TestHub_SendRoomOnlyReachesGroupMembers(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "a")
	b := newTestClient(h, "b")
	c := newTestClient(h, "c")

	h.JoinGroup("room1", "a")
	h.JoinGroup("room1", "b")

	h.SendRoom("room1", models.Event{Type: models.EventNewMessage})

	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
	assert.Empty(t, drain(t, c))
}

func TestHub_LeaveGroupStopsDelivery(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "a")

	h.JoinGroup("room1", "a")
	h.LeaveGroup("room1", "a")

	h.SendRoom("room1", models.Event{Type: models.EventNewMessage})
	assert.Empty(t, drain(t, a))
}

func TestHub_SendAllReachesEveryone(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "a")
	b := newTestClient(h, "b")

	h.SendAll(models.Event{Type: models.EventRoomList})

	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
}

func TestHub_UnregisterRemovesFromAllGroups(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "a")
	newTestClient(h, "b")

	h.JoinGroup("room1", "a")
	h.JoinGroup("room2", "a")

	h.UnregisterClient(a)

	h.SendRoom("room1", models.Event{Type: models.EventNewMessage})
	h.SendRoom("room2", models.Event{Type: models.EventNewMessage})
	h.Send("a", models.Event{Type: models.EventRoomList})
	assert.Empty(t, drain(t, a))

	// Double unregister is a no-op
	h.UnregisterClient(a)
}

func TestHub_SendToUnknownConnIsNoOp(t *testing.T) {
	h := NewHub()
	h.Send("ghost", models.Event{Type: models.EventRoomList})
	h.Terminate("ghost")
	h.JoinGroup("room1", "ghost")
	h.SendRoom("room1", models.Event{Type: models.EventNewMessage})
}

func TestHub_ShutdownClearsState(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "a")
	h.JoinGroup("room1", "a")

	require.NoError(t, h.Shutdown(context.Background()))

	h.SendAll(models.Event{Type: models.EventRoomList})
	assert.Empty(t, drain(t, a))
}
