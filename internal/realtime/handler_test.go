package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/realtime"
	"github.com/immxrtalbeast/missionops/internal/repository"
	"github.com/immxrtalbeast/missionops/internal/service"
	"github.com/immxrtalbeast/missionops/lib/clock"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	server  *httptest.Server
	manager *realtime.Manager
	handler *realtime.Handler
	auth    *service.AuthService
	store   *repository.Store
	admin   *domain.User
	alice   *domain.User
	bob     *domain.User
	carol   *domain.User
	mission *domain.Mission
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	log := sl.Discard()

	store := repository.NewMemoryStore()
	bus := hub.New()
	clk := clock.NewFake(time.Time{})

	s := &stack{store: store}
	for _, u := range []struct {
		dst  **domain.User
		name string
		role domain.Role
	}{
		{&s.admin, "admin", domain.RoleAdmin},
		{&s.alice, "alice", domain.RoleMember},
		{&s.bob, "bob", domain.RoleMember},
		{&s.carol, "carol", domain.RoleMember},
	} {
		user := domain.NewUser(u.name, u.name+"@example.com", u.role)
		require.NoError(t, store.Users.Create(ctx, user))
		*u.dst = user
	}

	missions := service.NewMissionService(store.Users, store.Missions, store.Chat, log)
	mission, _, err := missions.CreateMission(ctx, s.admin, "Recon", []uuid.UUID{s.alice.ID, s.bob.ID})
	require.NoError(t, err)
	s.mission = mission

	s.auth = service.NewAuthService(store.Users, "secret", time.Hour, 0, clk, log)
	attendance := service.NewAttendanceService(store.Users, store.Attendance, service.NewSessionRegistry(), bus, clk,
		service.AttendanceOptions{Codes: func(int) (string, error) { return "4821", nil }, SweepRate: 1000}, log)
	chat := service.NewChatService(store.Users, store.Chat, bus, clk, log)

	s.manager = realtime.NewManager(bus, log)
	s.manager.Start()
	dispatcher := realtime.NewDispatcher(attendance, chat, s.manager, log)
	s.handler = realtime.NewHandler(ctx, s.auth, s.manager, dispatcher, realtime.Options{CookieName: "token"}, log)

	s.server = httptest.NewServer(s.handler)
	t.Cleanup(func() {
		s.server.Close()
		s.manager.Close()
		attendance.Close()
		bus.Close()
	})
	return s
}

func (s *stack) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *stack) dial(t *testing.T, user *domain.User) *websocket.Conn {
	t.Helper()
	token, err := s.auth.IssueToken(user)
	require.NoError(t, err)

	before := s.manager.Count()
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(s.url(), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.manager.Count() > before }, time.Second, 5*time.Millisecond)
	return conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func write(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame %s", raw)
	}
}

func TestRejectsUnauthenticatedConnections(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name   string
		header http.Header
		query  string
	}{
		{name: "no credential"},
		{name: "garbage bearer", header: http.Header{"Authorization": []string{"Bearer nope"}}},
		{name: "garbage query token", query: "?token=nope"},
		{name: "garbage cookie", header: http.Header{"Cookie": []string{"token=nope"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(s.url()+tt.query, tt.header)
			require.NoError(t, err)
			defer conn.Close()

			f := read(t, conn)
			assert.Equal(t, domain.EventUnauthorized, f.Event)

			_, _, err = conn.ReadMessage()
			assert.Error(t, err, "connection must be closed after unauthorized")
			assert.Zero(t, s.manager.Count())
		})
	}
}

func TestAcceptsQueryTokenAndCookie(t *testing.T) {
	s := newStack(t)
	token, err := s.auth.IssueToken(s.alice)
	require.NoError(t, err)

	viaQuery, _, err := websocket.DefaultDialer.Dial(s.url()+"?token="+token, nil)
	require.NoError(t, err)
	defer viaQuery.Close()

	viaCookie, _, err := websocket.DefaultDialer.Dial(s.url(), http.Header{"Cookie": []string{"token=" + token}})
	require.NoError(t, err)
	defer viaCookie.Close()

	require.Eventually(t, func() bool { return s.manager.Count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRoomMessageReachesOnlyRoomMembers(t *testing.T) {
	s := newStack(t)
	roomKey := service.RoomKey(s.mission.ID)

	a := s.dial(t, s.alice)
	b := s.dial(t, s.bob)
	admin := s.dial(t, s.admin)

	// admin stays out of the room
	write(t, a, domain.EventJoinMissionRoom, map[string]string{"roomId": s.mission.ID.String()})
	write(t, b, domain.EventJoinMissionRoom, map[string]string{"roomId": s.mission.ID.String()})
	require.Eventually(t, func() bool { return s.manager.RoomSize(roomKey) == 2 }, time.Second, 5*time.Millisecond)

	write(t, a, domain.EventSendMessage, map[string]string{
		"roomId":   s.mission.ID.String(),
		"senderId": s.alice.ID.String(),
		"body":     "hello",
	})

	var got []domain.ReceiveMessage
	for _, conn := range []*websocket.Conn{a, b} {
		f := read(t, conn)
		require.Equal(t, domain.EventReceiveMessage, f.Event)
		var msg domain.ReceiveMessage
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		got = append(got, msg)
	}

	assert.Equal(t, "hello", got[0].Body)
	assert.Equal(t, got[0].ID, got[1].ID)
	assert.Equal(t, got[0].Body, got[1].Body)
	assert.Equal(t, domain.UserSummary{ID: s.alice.ID.String(), Name: "alice"}, got[1].Sender)
	assert.Equal(t, s.mission.ID.String(), got[1].RoomID)

	expectSilence(t, admin)
	expectSilence(t, a)
}

func TestMalformedSendIsDropped(t *testing.T) {
	s := newStack(t)
	a := s.dial(t, s.alice)

	write(t, a, domain.EventJoinMissionRoom, map[string]string{"roomId": s.mission.ID.String()})
	write(t, a, domain.EventSendMessage, map[string]string{"roomId": s.mission.ID.String(), "body": "no sender"})
	write(t, a, domain.EventSendMessage, map[string]string{
		"roomId":   s.mission.ID.String(),
		"senderId": s.alice.ID.String(),
		"body":     "   ",
	})
	expectSilence(t, a)
}

func TestAttendanceOverSocket(t *testing.T) {
	s := newStack(t)
	admin := s.dial(t, s.admin)
	alice := s.dial(t, s.alice)

	write(t, admin, domain.EventStartAttendance, map[string]string{"initiatorId": s.admin.ID.String()})

	adminFrames := map[string]json.RawMessage{}
	for i := 0; i < 2; i++ {
		f := read(t, admin)
		adminFrames[f.Event] = f.Data
	}
	require.Contains(t, adminFrames, domain.EventOTPGenerated)
	require.Contains(t, adminFrames, domain.EventAttendanceStarted)

	var otp domain.OTPGenerated
	require.NoError(t, json.Unmarshal(adminFrames[domain.EventOTPGenerated], &otp))
	assert.Equal(t, "4821", otp.Code)
	assert.Equal(t, 60, otp.WindowSeconds)

	f := read(t, alice)
	require.Equal(t, domain.EventAttendanceStarted, f.Event)
	var started domain.AttendanceStarted
	require.NoError(t, json.Unmarshal(f.Data, &started))
	assert.Equal(t, otp.SessionID, started.SessionID)
	assert.Empty(t, started.Code, "members do not see the code")

	submit := map[string]string{"userId": s.alice.ID.String(), "sessionId": otp.SessionID}

	submit["code"] = "1111"
	write(t, alice, domain.EventSubmitOTP, submit)
	f = read(t, alice)
	assert.Equal(t, domain.EventAttendanceFailed, f.Event)
	assert.JSONEq(t, `{"message":"incorrect code, try again"}`, string(f.Data))

	submit["code"] = "4821"
	write(t, alice, domain.EventSubmitOTP, submit)
	f = read(t, alice)
	assert.Equal(t, domain.EventAttendanceSuccess, f.Event)

	write(t, alice, domain.EventSubmitOTP, submit)
	f = read(t, alice)
	assert.Equal(t, domain.EventAttendanceFailed, f.Event)
	assert.JSONEq(t, `{"message":"already marked today"}`, string(f.Data))

	expectSilence(t, admin)

	write(t, alice, domain.EventGetActiveSession, nil)
	f = read(t, alice)
	require.Equal(t, domain.EventActiveSessionData, f.Event)
	var active domain.ActiveSessionData
	require.NoError(t, json.Unmarshal(f.Data, &active))
	assert.Equal(t, otp.SessionID, active.SessionID)
	assert.Empty(t, active.Code)
}

func TestMemberCannotStartAttendance(t *testing.T) {
	s := newStack(t)
	alice := s.dial(t, s.alice)

	write(t, alice, domain.EventStartAttendance, map[string]string{"initiatorId": s.admin.ID.String()})
	f := read(t, alice)
	assert.Equal(t, domain.EventError, f.Event)
	assert.JSONEq(t, `{"message":"forbidden"}`, string(f.Data))

	write(t, alice, domain.EventGetActiveSession, nil)
	expectSilence(t, alice)
}

func TestUnknownAndMalformedFrames(t *testing.T) {
	s := newStack(t)
	alice := s.dial(t, s.alice)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, domain.EventError, read(t, alice).Event)

	write(t, alice, "offer", map[string]string{"sdp": "x"})
	assert.Equal(t, domain.EventError, read(t, alice).Event)

	write(t, alice, domain.EventJoinMissionRoom, map[string]string{"roomId": "nope"})
	assert.Equal(t, domain.EventError, read(t, alice).Event)

	write(t, alice, domain.EventJoinMissionRoom, map[string]string{"roomId": uuid.NewString()})
	f := read(t, alice)
	assert.Equal(t, domain.EventError, f.Event)
	assert.JSONEq(t, `{"message":"room not found"}`, string(f.Data))
}

func TestMalformedCodeChecksSessionFirst(t *testing.T) {
	s := newStack(t)
	admin := s.dial(t, s.admin)
	alice := s.dial(t, s.alice)

	unknown := uuid.NewString()
	for _, code := range []string{"abcd", "", "1234567890"} {
		write(t, alice, domain.EventSubmitOTP, map[string]string{"sessionId": unknown, "code": code})
		f := read(t, alice)
		assert.Equal(t, domain.EventAttendanceFailed, f.Event, code)
		assert.JSONEq(t, `{"message":"expired or not found"}`, string(f.Data), code)
	}

	write(t, admin, domain.EventStartAttendance, nil)
	var otp domain.OTPGenerated
	for otp.SessionID == "" {
		f := read(t, admin)
		if f.Event == domain.EventOTPGenerated {
			require.NoError(t, json.Unmarshal(f.Data, &otp))
		}
	}
	require.Equal(t, domain.EventAttendanceStarted, read(t, alice).Event)

	write(t, alice, domain.EventSubmitOTP, map[string]string{"sessionId": otp.SessionID, "code": "abcd"})
	f := read(t, alice)
	assert.Equal(t, domain.EventAttendanceFailed, f.Event)
	assert.JSONEq(t, `{"message":"incorrect code, try again"}`, string(f.Data))
}

func TestShutdownDisconnectsAndRefuses(t *testing.T) {
	s := newStack(t)
	alice := s.dial(t, s.alice)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.handler.Shutdown(ctx))

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := alice.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Zero(t, s.manager.Count())

	token, err := s.auth.IssueToken(s.bob)
	require.NoError(t, err)
	_, resp, err := websocket.DefaultDialer.Dial(s.url(), http.Header{"Authorization": []string{"Bearer " + token}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
