package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/gateway"
	"github.com/victorivanov/huddle/internal/keylock"
	"github.com/victorivanov/huddle/internal/metrics"
	"github.com/victorivanov/huddle/internal/models"
	"github.com/victorivanov/huddle/internal/scheduler"
)

const jobStandup = "standup"

type standupEvent struct {
	Conversation models.ConversationRef `json:"conversation"`
	StarterID    int64                  `json:"u_id,string"`
	TimeFinish   int64                  `json:"time_finish"`
	MessageID    *int64                 `json:"message_id,string,omitempty"`
}

// StandupService runs time-boxed standups. Lines sent during a standup are
// buffered and posted as one message under the starter at the deadline.
//
// Lock order: a conversation's standup lock is always taken before its
// message lock.
type StandupService struct {
	directory database.DirectoryRepository
	messages  *MessageService
	scheduler *scheduler.Scheduler
	gateway   gateway.Dispatcher
	metrics   *metrics.Metrics
	locks     *keylock.Map

	mu     sync.Mutex
	states map[string]*models.StandupState
}

func NewStandupService(
	directory database.DirectoryRepository,
	messages *MessageService,
	sched *scheduler.Scheduler,
	gw gateway.Dispatcher,
	m *metrics.Metrics,
) *StandupService {
	return &StandupService{
		directory: directory,
		messages:  messages,
		scheduler: sched,
		gateway:   gw,
		metrics:   m,
		locks:     keylock.New(),
		states:    make(map[string]*models.StandupState),
	}
}

// state returns the standup state for key, creating an inert one. Callers
// hold the key's standup lock.
func (s *StandupService) state(key string) *models.StandupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		st = &models.StandupState{}
		s.states[key] = st
	}
	return st
}

// running returns the state of the standup in progress for key, or nil.
// Callers hold the key's standup lock.
func (s *StandupService) running(key string) *models.StandupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.states[key]; st != nil && st.Active {
		return st
	}
	return nil
}

// forget drops the entry for key once its standup is over.
func (s *StandupService) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
}

// Start opens a standup in ref lasting length and returns its deadline.
func (s *StandupService) Start(ctx context.Context, ref models.ConversationRef, starterID int64, length time.Duration) (time.Time, error) {
	if _, err := requireMember(ctx, s.directory, ref, starterID); err != nil {
		return time.Time{}, err
	}
	if length < 0 {
		return time.Time{}, BadRequest("INVALID_DURATION", "length must not be negative")
	}

	unlock := s.locks.Lock(ref.Key())
	defer unlock()

	st := s.state(ref.Key())
	if st.Active {
		return time.Time{}, Conflict("ALREADY_ACTIVE", "a standup is already running in this conversation")
	}

	deadline := s.scheduler.Now().Add(length)
	err := s.scheduler.At(jobStandup, deadline, func(ctx context.Context) {
		s.flush(ctx, ref)
	})
	if err != nil {
		slog.Error("arming standup", "conversation", ref, "error", err)
		s.forget(ref.Key())
		return time.Time{}, internalError()
	}

	*st = models.StandupState{Active: true, StarterID: starterID, Deadline: deadline}
	s.metrics.StandupStarted()
	s.dispatch(ctx, ref, gateway.EventStandupStart, standupEvent{Conversation: ref, StarterID: starterID, TimeFinish: deadline.Unix()})
	return deadline, nil
}

// Send buffers a line from userID in the running standup.
func (s *StandupService) Send(ctx context.Context, ref models.ConversationRef, userID int64, text string) error {
	if _, err := requireMember(ctx, s.directory, ref, userID); err != nil {
		return err
	}
	handle, err := s.directory.HandleOf(ctx, userID)
	if err != nil {
		slog.Error("loading handle", "userID", userID, "error", err)
		return internalError()
	}

	unlock := s.locks.Lock(ref.Key())
	defer unlock()

	st := s.running(ref.Key())
	if st == nil {
		return Conflict("NOT_ACTIVE", "no standup is running in this conversation")
	}
	if tooLong(text) {
		return BadRequest("CONTENT_TOO_LONG", "message must be at most 1000 characters")
	}
	st.Buffer = append(st.Buffer, models.StandupLine{Handle: handle, Text: text})
	return nil
}

// Active reports whether a standup is running in ref and when it ends.
func (s *StandupService) Active(ctx context.Context, ref models.ConversationRef, userID int64) (models.StandupStatus, error) {
	if _, err := requireMember(ctx, s.directory, ref, userID); err != nil {
		return models.StandupStatus{}, err
	}

	unlock := s.locks.RLock(ref.Key())
	defer unlock()

	st := s.running(ref.Key())
	if st == nil {
		return models.StandupStatus{}, nil
	}
	finish := st.Deadline.Unix()
	return models.StandupStatus{IsActive: true, TimeFinish: &finish}, nil
}

// flush posts the buffered lines, if any, and resets the standup. The
// message is skipped when the starter has left the conversation.
func (s *StandupService) flush(ctx context.Context, ref models.ConversationRef) {
	unlock := s.locks.Lock(ref.Key())
	defer unlock()

	st := s.running(ref.Key())
	if st == nil {
		return
	}
	done := *st
	*st = models.StandupState{}
	s.forget(ref.Key())
	s.metrics.StandupEnded()

	end := standupEvent{Conversation: ref, StarterID: done.StarterID, TimeFinish: done.Deadline.Unix()}
	defer func() { s.dispatch(ctx, ref, gateway.EventStandupEnd, end) }()

	if len(done.Buffer) == 0 {
		slog.Info("standup ended with no messages", "conversation", ref)
		return
	}
	member, err := s.directory.IsMember(ctx, ref, done.StarterID)
	if err != nil {
		slog.Error("standup starter membership check", "conversation", ref, "error", err)
		return
	}
	if !member {
		slog.Info("standup summary dropped, starter left conversation", "conversation", ref, "starterID", done.StarterID)
		return
	}

	body := standupBody(done.Buffer)
	msg := &models.Message{
		ID:           s.messages.ids.Next(),
		Conversation: ref,
		AuthorID:     done.StarterID,
		Body:         body,
		SentAt:       done.Deadline,
	}
	if err := s.messages.deliver(ctx, msg, body, originStandup); err != nil {
		slog.Warn("standup summary delivery failed", "conversation", ref, "code", CodeOf(err), "error", err)
		return
	}
	end.MessageID = &msg.ID
}

func standupBody(lines []models.StandupLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Handle + ": " + l.Text
	}
	return strings.Join(parts, "\n")
}

func (s *StandupService) dispatch(ctx context.Context, ref models.ConversationRef, event string, payload standupEvent) {
	members, err := s.directory.MemberIDs(ctx, ref)
	if err != nil {
		slog.Error("listing members for dispatch", "conversation", ref, "error", err)
		return
	}
	for _, uid := range members {
		s.gateway.DispatchToUser(uid, event, payload)
	}
}
