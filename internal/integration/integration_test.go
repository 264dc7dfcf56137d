// Package integration exercises the full stack end to end: REST
// registration and course creation through the API server, then
// real-time messaging in the course room through the WebSocket gateway.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/api"
	"coursehub/internal/auth"
	"coursehub/internal/database"
	"coursehub/internal/hub"
	"coursehub/internal/registry"
	"coursehub/internal/room"
	"coursehub/internal/router"
	ws "coursehub/internal/websocket"
	dbconfig "coursehub/pkg/database"
	"coursehub/pkg/types"
)

type stack struct {
	srv    *httptest.Server
	client *http.Client
}

func newStack(t *testing.T) *stack {
	t.Helper()

	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "integration.db")

	store, err := database.NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, dbconfig.NewMigrationManager(store.GetDB()).ApplyMigrations())

	reg := registry.NewRegistry()
	h := hub.NewHub(router.NewRouter(reg, room.NewDirectory()))
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Stop() })

	tokens := auth.NewTokenManager("integration-secret", time.Hour)
	apiServer := api.NewServer(store, tokens, auth.NewPasswordHasher(), reg)

	wsCfg := ws.DefaultHandlerConfig()
	wsHandler := ws.NewHandler(h, wsCfg)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &stack{srv: srv, client: srv.Client()}
}

func (s *stack) postJSON(t *testing.T, path, token string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *stack) register(t *testing.T, email, role string) (string, *types.User) {
	t.Helper()

	var resp api.AuthResponse
	code := s.postJSON(t, "/api/auth/register", "", api.RegisterRequest{
		Email:     email,
		Password:  "supersecret",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	}, &resp)
	require.Equal(t, http.StatusCreated, code)
	return resp.Token, resp.User
}

func (s *stack) dialWS(t *testing.T, user *types.User) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") +
		"/ws?user_id=" + user.ID + "&user_name=" + user.FirstName
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// Consume the connection ack.
	frame := readFrame(t, conn)
	require.Equal(t, types.EventConnectionAck, frame.Event)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *types.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame types.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	return &frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(types.Frame{Event: event, Payload: data}))
}

func TestCourseRoomEndToEnd(t *testing.T) {
	s := newStack(t)

	teacherToken, _ := s.register(t, "teacher@example.com", types.RoleTeacher)
	_, alice := s.register(t, "alice@example.com", types.RoleStudent)
	_, bob := s.register(t, "bob@example.com", types.RoleStudent)

	// The teacher creates a course; its ID doubles as the room key.
	var created api.CourseResponse
	code := s.postJSON(t, "/api/courses", teacherToken, api.CreateCourseRequest{
		Title: "Distributed Systems", Category: "cs",
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	roomKey := created.Course.ID

	aliceConn := s.dialWS(t, alice)
	bobConn := s.dialWS(t, bob)

	writeFrame(t, aliceConn, types.EventJoinRoom, types.RoomPayload{RoomKey: roomKey})
	require.Equal(t, types.EventRoomJoined, readFrame(t, aliceConn).Event)

	writeFrame(t, bobConn, types.EventJoinRoom, types.RoomPayload{RoomKey: roomKey})
	require.Equal(t, types.EventRoomJoined, readFrame(t, bobConn).Event)

	// Alice sees Bob arrive.
	frame := readFrame(t, aliceConn)
	require.Equal(t, types.EventMemberJoined, frame.Event)

	// Bob sends a message; both get the identical broadcast.
	writeFrame(t, bobConn, types.EventSendMessage, types.MessagePayload{
		RoomKey: roomKey, Body: "hello class",
	})

	var fromAlice, fromBob types.NewMessage
	frame = readFrame(t, aliceConn)
	require.Equal(t, types.EventNewMessage, frame.Event)
	require.NoError(t, json.Unmarshal(frame.Payload, &fromAlice))

	frame = readFrame(t, bobConn)
	require.Equal(t, types.EventNewMessage, frame.Event)
	require.NoError(t, json.Unmarshal(frame.Payload, &fromBob))

	assert.Equal(t, "hello class", fromAlice.Body)
	assert.Equal(t, fromAlice.MessageID, fromBob.MessageID)
	assert.Equal(t, bob.ID, fromAlice.SenderID)
	assert.Equal(t, bob.FirstName, fromAlice.SenderName)

	// Typing indicators reach peers only.
	writeFrame(t, bobConn, types.EventTypingStart, types.TypingPayload{RoomKey: roomKey})
	frame = readFrame(t, aliceConn)
	require.Equal(t, types.EventTypingState, frame.Event)

	var typing types.TypingState
	require.NoError(t, json.Unmarshal(frame.Payload, &typing))
	assert.True(t, typing.IsTyping)

	// Bob drops; Alice is told.
	require.NoError(t, bobConn.Close())
	frame = readFrame(t, aliceConn)
	assert.Equal(t, types.EventMemberLeft, frame.Event)
}

func TestRESTAndRealtimeShareIdentity(t *testing.T) {
	s := newStack(t)

	token, user := s.register(t, "carol@example.com", types.RoleStudent)

	// REST profile round trip.
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile types.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
	assert.Equal(t, user.ID, profile.ID)

	// The same identity flows through the socket.
	conn := s.dialWS(t, user)
	writeFrame(t, conn, types.EventJoinRoom, types.RoomPayload{RoomKey: "course-1"})
	require.Equal(t, types.EventRoomJoined, readFrame(t, conn).Event)

	writeFrame(t, conn, types.EventSendMessage, types.MessagePayload{
		RoomKey: "course-1", Body: "present",
	})
	frame := readFrame(t, conn)
	require.Equal(t, types.EventNewMessage, frame.Event)

	var msg types.NewMessage
	require.NoError(t, json.Unmarshal(frame.Payload, &msg))
	assert.Equal(t, user.ID, msg.SenderID)
}

func TestHealthReportsLiveConnections(t *testing.T) {
	s := newStack(t)
	_, user := s.register(t, "dan@example.com", types.RoleStudent)
	s.dialWS(t, user)

	// The registry count is updated by the hub goroutine; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := s.client.Get(s.srv.URL + "/health")
		require.NoError(t, err)

		var health api.HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		_ = resp.Body.Close()

		if health.Connections == 1 {
			assert.Equal(t, "healthy", health.Status)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("health endpoint never reported the live connection")
}
