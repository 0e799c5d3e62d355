package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/models"
	"github.com/victorivanov/huddle/internal/scheduler"
)

// ---------------------------------------------------------------------------
// Mock gateway
// ---------------------------------------------------------------------------

type dispatched struct {
	UserID int64
	Event  string
	Data   any
}

type mockGateway struct {
	mu     sync.Mutex
	events []dispatched
}

func (g *mockGateway) DispatchToUser(userID int64, event string, data any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, dispatched{UserID: userID, Event: event, Data: data})
}

func (g *mockGateway) count(event string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, e := range g.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) Next() int64 { return s.n.Add(1) }

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

const (
	alice    int64 = 1 // owner of general
	bob      int64 = 2
	carol    int64 = 3
	dave     int64 = 4 // elevated
	outsider int64 = 9
)

var (
	general = models.ChannelRef(100)
	direct  = models.DirectRef(200)
)

type fixture struct {
	dir      *database.MemoryDirectory
	clock    *scheduler.ManualClock
	sched    *scheduler.Scheduler
	gw       *mockGateway
	store    database.MessageRepository
	notes    *NotificationService
	msgs     *MessageService
	reacts   *ReactionService
	pins     *PinService
	standups *StandupService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := database.NewMemoryDirectory()
	dir.AddUser(models.User{ID: alice, Handle: "alice"})
	dir.AddUser(models.User{ID: bob, Handle: "bob"})
	dir.AddUser(models.User{ID: carol, Handle: "carol"})
	dir.AddUser(models.User{ID: dave, Handle: "dave", Elevated: true})
	dir.AddUser(models.User{ID: outsider, Handle: "outsider"})

	dir.AddConversation(models.Conversation{Ref: general, Name: "general"})
	dir.AddMember(general, alice, true)
	dir.AddMember(general, bob, false)
	dir.AddMember(general, carol, false)
	dir.AddMember(general, dave, false)

	dir.AddConversation(models.Conversation{Ref: direct, Name: "alice, bob"})
	dir.AddMember(direct, alice, true)
	dir.AddMember(direct, bob, false)

	clock := scheduler.NewManualClock(t0)
	sched := scheduler.New(clock, nil)
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	gw := &mockGateway{}
	store := database.NewMessageStore()
	notes := NewNotificationService(database.NewNotificationStore(), dir, gw, nil)
	msgs := NewMessageService(store, dir, notes, &seqIDs{}, sched, gw, nil)

	return &fixture{
		dir:      dir,
		clock:    clock,
		sched:    sched,
		gw:       gw,
		store:    store,
		notes:    notes,
		msgs:     msgs,
		reacts:   NewReactionService(msgs, notes),
		pins:     NewPinService(msgs),
		standups: NewStandupService(dir, msgs, sched, gw, nil),
	}
}

func (f *fixture) send(t *testing.T, ref models.ConversationRef, author int64, body string) int64 {
	t.Helper()
	id, err := f.msgs.Send(context.Background(), ref, author, body)
	if err != nil {
		t.Fatalf("Send(%q) error: %v", body, err)
	}
	return id
}

func (f *fixture) feed(t *testing.T, userID int64) []models.Notification {
	t.Helper()
	feed, err := f.notes.Feed(context.Background(), userID)
	if err != nil {
		t.Fatalf("Feed(%d) error: %v", userID, err)
	}
	return feed
}

// ---------------------------------------------------------------------------
// Assertions
// ---------------------------------------------------------------------------

func assertCode(t *testing.T, err error, sentinel error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v/%s, got nil", sentinel, code)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want %v", err, sentinel)
	}
	if code != "" && CodeOf(err) != code {
		t.Fatalf("error code = %q (%v), want %s", CodeOf(err), err, code)
	}
}

func runes(n int) string { return strings.Repeat("é", n) }
