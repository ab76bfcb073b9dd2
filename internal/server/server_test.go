package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"parlor/internal/config"
	"parlor/internal/featureflags"
	"parlor/internal/hub"
	"parlor/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := &config.Config{
		Port:            "8375",
		Env:             "test",
		AdminName:       "크로바츠입니다",
		AdminPassword:   "test-admin-password",
		HistoryCapacity: 500,
		UploadDir:       t.TempDir(),
		MaxUploadSize:   1 << 20,
		FeatureFlags:    "uploads=on",
	}

	s, err := NewServerWithDeps(cfg, nil)
	require.NoError(t, err)

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app
}

func TestLivenessCheck(t *testing.T) {
	_, app := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadinessCheck_NoRedis(t *testing.T) {
	_, app := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestGetRooms(t *testing.T) {
	s, app := newTestServer(t)

	_, err := s.Coordinator().Rooms().Create("general talk", false, "", "alice")
	require.NoError(t, err)
	_, err = s.Coordinator().Rooms().Create("games", false, "", "bob")
	require.NoError(t, err)

	t.Run("lists all rooms", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Rooms []models.RoomSummary `json:"rooms"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body.Rooms, 2)
	})

	t.Run("filters by keyword", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/rooms?keyword=games", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		var body struct {
			Rooms []models.RoomSummary `json:"rooms"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Rooms, 1)
		assert.Equal(t, "games", body.Rooms[0].Name)
	})

	t.Run("raw keyword matches escaped stored names", func(t *testing.T) {
		_, err := s.Coordinator().Rooms().Create("food & drink", false, "", "carol")
		require.NoError(t, err)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/rooms?keyword=food+%26+drink", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		var body struct {
			Rooms []models.RoomSummary `json:"rooms"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Rooms, 1)
		assert.Equal(t, "food &amp; drink", body.Rooms[0].Name)
	})
}

func TestGetFeatureFlags(t *testing.T) {
	_, app := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/flags", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Flags map[string]bool `json:"flags"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Flags["uploads"])
}

func TestDispatchEvent(t *testing.T) {
	t.Run("rejects malformed frames with a system message", func(t *testing.T) {
		s, _ := newTestServer(t)
		client := hub.NewClient(s.hub, nil, "c1", "1.2.3.4")

		s.dispatchEvent(context.Background(), client, []byte("{not json"))

		select {
		case raw := <-client.Send:
			var ev models.Event
			require.NoError(t, json.Unmarshal(raw, &ev))
			assert.Equal(t, models.EventSystemMessage, ev.Type)
		default:
			t.Fatal("expected a systemMessage on the client channel")
		}
	})

	t.Run("routes well-formed events to the coordinator", func(t *testing.T) {
		s, _ := newTestServer(t)
		client := hub.NewClient(s.hub, nil, "c1", "1.2.3.4")
		s.hub.Register(client)
		s.coordinator.Connect(context.Background(), client.ID, client.Origin)

		frame := []byte(`{"type":"createRoom","payload":{"roomName":"lounge","nickname":"alice"}}`)
		s.dispatchEvent(context.Background(), client, frame)

		rooms := s.Coordinator().Rooms().Search("lounge")
		require.Len(t, rooms, 1)
		assert.Equal(t, "lounge", rooms[0].Name)
	})
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadFile(t *testing.T) {
	t.Run("stores file and returns url", func(t *testing.T) {
		_, app := newTestServer(t)
		body, contentType := multipartBody(t, "file", "photo.png", []byte("not-really-a-png"))

		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var out FileUploadResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Contains(t, out.URL, "/files/")
		assert.Contains(t, out.URL, ".png")
		assert.Equal(t, "image/png", out.MimeType)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		_, app := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(nil))

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects upload when the flag is off", func(t *testing.T) {
		s, app := newTestServer(t)
		s.featureFlags = featureflags.NewManager("uploads=off")

		body, contentType := multipartBody(t, "file", "photo.png", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		s, app := newTestServer(t)
		s.config.MaxUploadSize = 8

		body, contentType := multipartBody(t, "file", "big.bin", []byte("way more than eight bytes"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

		raw, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(raw), "limit")
	})
}
