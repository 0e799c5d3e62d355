package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/models"
	redisclient "github.com/victorivanov/huddle/internal/redis"
	"github.com/victorivanov/huddle/internal/scheduler"
	"github.com/victorivanov/huddle/internal/service"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestContext(method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func setAuthUser(c echo.Context, userID int64) {
	c.Set("user_id", userID)
}

func newTestRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := redisclient.NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("creating test redis client: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

// ---------------------------------------------------------------------------
// Mock gateway dispatcher
// ---------------------------------------------------------------------------

type dispatchedEvent struct {
	UserID int64
	Event  string
	Data   any
}

type mockGateway struct {
	mu     sync.Mutex
	events []dispatchedEvent
}

func (m *mockGateway) DispatchToUser(userID int64, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, dispatchedEvent{UserID: userID, Event: event, Data: data})
}

// ---------------------------------------------------------------------------
// Test server: real services over in-memory stores behind the router.
// ---------------------------------------------------------------------------

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) Next() int64 { return 7000 + s.n.Add(1) }

const (
	testOwnerID  int64 = 10
	testMemberID int64 = 11
	testOtherID  int64 = 12
)

var (
	testChannel = models.ChannelRef(500)
	testDM      = models.DirectRef(600)
	testNow     = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
)

type testServer struct {
	e      *echo.Echo
	tokens *auth.TokenService
	clock  *scheduler.ManualClock
	dir    *database.MemoryDirectory
	gw     *mockGateway
}

func newTestServer(t *testing.T, rdb *redisclient.Client, limit int) *testServer {
	t.Helper()
	dir := database.NewMemoryDirectory()
	dir.AddUser(models.User{ID: testOwnerID, Handle: "owner"})
	dir.AddUser(models.User{ID: testMemberID, Handle: "member"})
	dir.AddUser(models.User{ID: testOtherID, Handle: "other"})
	dir.AddConversation(models.Conversation{Ref: testChannel, Name: "team"})
	dir.AddMember(testChannel, testOwnerID, true)
	dir.AddMember(testChannel, testMemberID, false)
	dir.AddConversation(models.Conversation{Ref: testDM, Name: "owner, member"})
	dir.AddMember(testDM, testOwnerID, true)
	dir.AddMember(testDM, testMemberID, false)

	clock := scheduler.NewManualClock(testNow)
	sched := scheduler.New(clock, nil)
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	gw := &mockGateway{}
	notes := service.NewNotificationService(database.NewNotificationStore(), dir, gw, nil)
	msgs := service.NewMessageService(database.NewMessageStore(), dir, notes, &seqIDs{}, sched, gw, nil)
	standups := service.NewStandupService(dir, msgs, sched, gw, nil)

	tokens := auth.NewTokenService("api-test-secret")
	e := echo.New()
	SetupRouter(e, &Dependencies{
		Messages:           NewMessageHandler(msgs),
		Standups:           NewStandupHandler(standups),
		Reactions:          NewReactionHandler(service.NewReactionService(msgs, notes), service.NewPinService(msgs)),
		Notifications:      NewNotificationHandler(notes),
		TokenService:       tokens,
		Redis:              rdb,
		RateLimitPerMinute: limit,
	})

	return &testServer{e: e, tokens: tokens, clock: clock, dir: dir, gw: gw}
}

// do performs an authenticated request as userID and returns the recorder.
func (s *testServer) do(t *testing.T, userID int64, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != 0 {
		token, err := s.tokens.GenerateAccessToken(userID)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	errResp := decode[ErrorResponse](t, rec)
	if errResp.Error.Code != code {
		t.Errorf("expected error code %q, got %q", code, errResp.Error.Code)
	}
}
