package server

import (
	"context"
	"encoding/json"
	"log"

	"parlor/internal/hub"
	"parlor/internal/models"
	"parlor/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebsocketUpgrade rejects non-websocket requests and captures the remote
// address before the connection is hijacked.
func (s *Server) WebsocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals("origin", c.IP())
		c.Locals("connID", uuid.NewString())
		return c.Next()
	}
}

// WebsocketHandler handles the chat websocket connection lifecycle.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		connID, _ := conn.Locals("connID").(string)
		if connID == "" {
			connID = uuid.NewString()
		}
		origin, _ := conn.Locals("origin").(string)

		client := hub.NewClient(s.hub, conn, connID, origin)
		s.hub.Register(client)

		client.IncomingHandler = func(c *hub.Client, message []byte) {
			s.dispatchEvent(ctx, c, message)
		}

		go client.WritePump()

		// Connect after the write pump is live so the initial roomList,
		// or the banned event, can actually be delivered.
		s.coordinator.Connect(ctx, connID, origin)

		client.ReadPump()

		s.coordinator.Disconnect(ctx, connID)
	})
}

// dispatchEvent decodes the inbound envelope and routes it to the coordinator.
func (s *Server) dispatchEvent(ctx context.Context, c *hub.Client, message []byte) {
	var ev models.InboundEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		log.Printf("WebSocket: Invalid message format from conn %s", c.ID)
		rejectMalformed(c)
		return
	}
	if ev.Type == "" {
		rejectMalformed(c)
		return
	}

	observability.RecordWebSocketEvent(ev.Type)
	ctx, span := observability.TraceWebSocketEvent(ctx, ev.Type, c.ID)
	defer span.End()

	switch ev.Type {
	case models.EventAdminLogin:
		var req models.AdminLoginRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.AdminLogin(ctx, c.ID, req)
		}

	case models.EventCreateRoom:
		var req models.CreateRoomRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.CreateRoom(ctx, c.ID, req)
		}

	case models.EventSearchRooms:
		var req models.SearchRoomsRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.SearchRooms(ctx, c.ID, req)
		}

	case models.EventJoinRoom:
		var req models.JoinRoomRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.JoinRoom(ctx, c.ID, req)
		}

	case models.EventLeaveRoom:
		var req models.LeaveRoomRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.LeaveRoom(ctx, c.ID, req)
		}

	case models.EventSendMessage:
		var req models.SendMessageRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.SendMessage(ctx, c.ID, req)
		}

	case models.EventDeleteRoom:
		var req models.DeleteRoomRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.DeleteRoom(ctx, c.ID, req)
		}

	case models.EventBanUser:
		var req models.TargetUserRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.BanUser(ctx, c.ID, req)
		}

	case models.EventUnbanUser:
		var req models.TargetUserRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.UnbanUser(ctx, c.ID, req)
		}

	case models.EventWarnUser:
		var req models.TargetUserRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.WarnUser(ctx, c.ID, req)
		}

	case models.EventListBans:
		s.coordinator.ListBans(ctx, c.ID)

	case models.EventListUsers:
		var req models.ListUsersRequest
		if decodePayload(c, ev, &req) {
			s.coordinator.ListUsers(ctx, c.ID, req)
		}

	default:
		log.Printf("WebSocket: Unknown event %q from conn %s", ev.Type, c.ID)
	}
}

// decodePayload unmarshals the raw payload into the typed request. Malformed
// payloads are dropped rather than treated as zero-valued requests.
func decodePayload(c *hub.Client, ev models.InboundEvent, out any) bool {
	if len(ev.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		log.Printf("WebSocket: Invalid %q payload from conn %s: %v", ev.Type, c.ID, err)
		rejectMalformed(c)
		return false
	}
	return true
}

// rejectMalformed tells the client its last frame could not be understood.
func rejectMalformed(c *hub.Client) {
	raw, err := json.Marshal(models.Event{
		Type:    models.EventSystemMessage,
		Payload: models.SystemMessagePayload{Text: "malformed request"},
	})
	if err != nil {
		return
	}
	c.TrySend(raw)
}
