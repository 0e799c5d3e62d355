package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/gateway"
	"github.com/victorivanov/huddle/internal/keylock"
	"github.com/victorivanov/huddle/internal/metrics"
	"github.com/victorivanov/huddle/internal/models"
	"github.com/victorivanov/huddle/internal/permissions"
	"github.com/victorivanov/huddle/internal/scheduler"
)

// IDGenerator hands out unique message ids.
type IDGenerator interface {
	Next() int64
}

// Delivery origins, used as the metrics label for created messages.
const (
	originSend      = "send"
	originSendLater = "send_later"
	originStandup   = "standup"
	originShare     = "share"
)

// messageEvent is the gateway payload for created and updated messages.
type messageEvent struct {
	Conversation models.ConversationRef `json:"conversation"`
	models.MessageView
}

type messageDeleteEvent struct {
	Conversation models.ConversationRef `json:"conversation"`
	MessageID    int64                  `json:"message_id,string"`
}

// MessageService owns message creation, edits and removal for channels and
// direct conversations alike. Every mutation of a conversation's history
// happens under that conversation's lock.
type MessageService struct {
	messages  database.MessageRepository
	directory database.DirectoryRepository
	notifier  *NotificationService
	tags      *TagScanner
	ids       IDGenerator
	scheduler *scheduler.Scheduler
	gateway   gateway.Dispatcher
	metrics   *metrics.Metrics
	locks     *keylock.Map
	archiver  Archiver
}

// Archiver keeps a copy of a conversation's history before it is purged.
type Archiver interface {
	Archive(ctx context.Context, ref models.ConversationRef, msgs []*models.Message) error
}

// NewMessageService creates a MessageService.
func NewMessageService(
	messages database.MessageRepository,
	directory database.DirectoryRepository,
	notifier *NotificationService,
	ids IDGenerator,
	sched *scheduler.Scheduler,
	gw gateway.Dispatcher,
	m *metrics.Metrics,
) *MessageService {
	return &MessageService{
		messages:  messages,
		directory: directory,
		notifier:  notifier,
		tags:      NewTagScanner(directory),
		ids:       ids,
		scheduler: sched,
		gateway:   gw,
		metrics:   m,
		locks:     keylock.New(),
	}
}

// SetArchiver makes PurgeConversation archive history before dropping it.
func (s *MessageService) SetArchiver(a Archiver) {
	s.archiver = a
}

// Send appends a message to a conversation and returns its id. Tagged
// members are notified before Send returns.
func (s *MessageService) Send(ctx context.Context, ref models.ConversationRef, authorID int64, body string) (int64, error) {
	if _, err := requireMember(ctx, s.directory, ref, authorID); err != nil {
		return 0, err
	}
	if err := validateBody(body); err != nil {
		return 0, err
	}

	msg := &models.Message{
		ID:           s.ids.Next(),
		Conversation: ref,
		AuthorID:     authorID,
		Body:         body,
		SentAt:       s.scheduler.Now(),
	}
	if err := s.deliver(ctx, msg, body, originSend); err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// deliver stores msg and notifies the members tagged in tagSource. It is
// the only path that creates messages: direct sends, shares, send-later
// and standup flushes all come through here.
func (s *MessageService) deliver(ctx context.Context, msg *models.Message, tagSource, origin string) error {
	tagged, err := s.tags.Scan(ctx, tagSource, msg.Conversation)
	if err != nil {
		slog.Error("scanning tags", "conversation", msg.Conversation, "error", err)
		return internalError()
	}

	unlock := s.locks.Lock(msg.Conversation.Key())
	defer unlock()

	msg.TaggedUsers = tagged
	msg.State = models.DeliveryDelivered
	if err := s.messages.Create(ctx, msg); err != nil {
		slog.Error("storing message", "messageID", msg.ID, "error", err)
		return internalError()
	}
	s.metrics.MessageSent(string(msg.Conversation.Kind), origin)

	s.notifyTagged(ctx, msg, msg.AuthorID, tagged)
	s.broadcast(ctx, msg, gateway.EventMessageCreate)
	return nil
}

// notifyTagged credits the tags in msg to senderID, the user who wrote
// them: the author on delivery, the editor on edit.
func (s *MessageService) notifyTagged(ctx context.Context, msg *models.Message, senderID int64, receivers []int64) {
	for _, uid := range receivers {
		if err := s.notifier.Notify(ctx, senderID, uid, msg.Conversation, models.EventTagged, msg.Body); err != nil {
			slog.Error("dispatching tag notification", "messageID", msg.ID, "userID", uid, "error", err)
		}
	}
}

// broadcast pushes a message event to every member, each with their own
// view of the reactions.
func (s *MessageService) broadcast(ctx context.Context, msg *models.Message, event string) {
	members, err := s.directory.MemberIDs(ctx, msg.Conversation)
	if err != nil {
		slog.Error("listing members for dispatch", "conversation", msg.Conversation, "error", err)
		return
	}
	for _, uid := range members {
		if event == gateway.EventMessageDelete {
			s.gateway.DispatchToUser(uid, event, messageDeleteEvent{Conversation: msg.Conversation, MessageID: msg.ID})
			continue
		}
		s.gateway.DispatchToUser(uid, event, messageEvent{Conversation: msg.Conversation, MessageView: msg.View(uid)})
	}
}

// visible loads a delivered message that userID may see. Unknown ids,
// messages not yet delivered and messages in conversations the user does
// not belong to all read as NotFound.
func (s *MessageService) visible(ctx context.Context, id, userID int64) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		slog.Error("loading message", "messageID", id, "error", err)
		return nil, internalError()
	}
	if msg == nil || msg.State != models.DeliveryDelivered {
		return nil, messageNotFound()
	}
	member, err := s.directory.IsMember(ctx, msg.Conversation, userID)
	if err != nil {
		slog.Error("checking membership", "conversation", msg.Conversation, "userID", userID, "error", err)
		return nil, internalError()
	}
	if !member {
		return nil, messageNotFound()
	}
	return msg, nil
}

// Get returns the message as seen by viewerID.
func (s *MessageService) Get(ctx context.Context, id, viewerID int64) (models.MessageView, error) {
	msg, err := s.visible(ctx, id, viewerID)
	if err != nil {
		return models.MessageView{}, err
	}
	return msg.View(viewerID), nil
}

// authorize allows the author, a conversation owner or a user with the
// elevated role.
func (s *MessageService) authorize(ctx context.Context, msg *models.Message, userID int64) error {
	if msg.AuthorID == userID {
		return nil
	}
	perms, err := permissionsOf(ctx, s.directory, msg.Conversation, userID, true)
	if err != nil {
		return err
	}
	if !perms.Has(permissions.PermManageMessages) {
		return Forbidden("NOT_AUTHORIZED", "only the author or a conversation owner can change this message")
	}
	return nil
}

// mutate re-reads the message under its conversation lock and applies fn.
// The update is written back only when fn succeeds.
func (s *MessageService) mutate(ctx context.Context, msg *models.Message, fn func(cur *models.Message) error) (*models.Message, error) {
	unlock := s.locks.Lock(msg.Conversation.Key())
	defer unlock()

	cur, err := s.messages.GetByID(ctx, msg.ID)
	if err != nil {
		slog.Error("reloading message", "messageID", msg.ID, "error", err)
		return nil, internalError()
	}
	if cur == nil || cur.State != models.DeliveryDelivered {
		return nil, messageNotFound()
	}
	if err := fn(cur); err != nil {
		return nil, err
	}
	if err := s.messages.Update(ctx, cur); err != nil {
		if errors.Is(err, database.ErrMessageNotFound) {
			return nil, messageNotFound()
		}
		slog.Error("updating message", "messageID", msg.ID, "error", err)
		return nil, internalError()
	}
	return cur, nil
}

// Edit replaces a message body. An empty body removes the message. Only
// users tagged by the new body who were not tagged before are notified.
func (s *MessageService) Edit(ctx context.Context, id, userID int64, body string) error {
	if tooLong(body) {
		return BadRequest("CONTENT_TOO_LONG", "message must be at most 1000 characters")
	}
	if body == "" {
		return s.Remove(ctx, id, userID)
	}

	msg, err := s.visible(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, msg, userID); err != nil {
		return err
	}

	tagged, err := s.tags.Scan(ctx, body, msg.Conversation)
	if err != nil {
		slog.Error("scanning tags", "messageID", id, "error", err)
		return internalError()
	}

	var fresh []int64
	cur, err := s.mutate(ctx, msg, func(cur *models.Message) error {
		fresh = newlyTagged(cur.TaggedUsers, tagged)
		cur.Body = body
		cur.TaggedUsers = tagged
		return nil
	})
	if err != nil {
		return err
	}

	s.notifyTagged(ctx, cur, userID, fresh)
	s.broadcast(ctx, cur, gateway.EventMessageUpdate)
	return nil
}

// Remove deletes a message and strips it from its conversation's history.
func (s *MessageService) Remove(ctx context.Context, id, userID int64) error {
	msg, err := s.visible(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, msg, userID); err != nil {
		return err
	}

	unlock := s.locks.Lock(msg.Conversation.Key())
	defer unlock()

	removed, err := s.messages.Delete(ctx, id)
	if err != nil {
		slog.Error("deleting message", "messageID", id, "error", err)
		return internalError()
	}
	if removed == nil {
		return messageNotFound()
	}

	s.metrics.MessageRemoved(string(removed.Conversation.Kind))
	s.broadcast(ctx, removed, gateway.EventMessageDelete)
	return nil
}

// ScheduleSend reserves a message id and delivers the message at fireAt.
// Until then the id reads as NotFound everywhere.
func (s *MessageService) ScheduleSend(ctx context.Context, ref models.ConversationRef, authorID int64, body string, fireAt time.Time) (int64, error) {
	if _, err := requireMember(ctx, s.directory, ref, authorID); err != nil {
		return 0, err
	}
	if err := validateBody(body); err != nil {
		return 0, err
	}
	if !fireAt.After(s.scheduler.Now()) {
		return 0, BadRequest("SEND_IN_PAST", "time_sent must be in the future")
	}

	draft := models.Message{
		ID:           s.ids.Next(),
		Conversation: ref,
		AuthorID:     authorID,
		Body:         body,
		SentAt:       fireAt,
		State:        models.DeliveryPending,
	}
	err := s.scheduler.At(originSendLater, fireAt, func(ctx context.Context) {
		s.fireScheduled(ctx, draft)
	})
	if err != nil {
		slog.Error("arming send-later", "messageID", draft.ID, "error", err)
		return 0, internalError()
	}
	return draft.ID, nil
}

// fireScheduled materializes a send-later draft. Failures are logged and
// dropped since no caller is waiting.
func (s *MessageService) fireScheduled(ctx context.Context, draft models.Message) {
	member, err := s.directory.IsMember(ctx, draft.Conversation, draft.AuthorID)
	if err != nil {
		slog.Error("send-later membership check", "messageID", draft.ID, "error", err)
		return
	}
	if !member {
		slog.Info("send-later dropped, author left conversation", "messageID", draft.ID, "conversation", draft.Conversation)
		return
	}
	msg := draft.Clone()
	if err := s.deliver(ctx, msg, msg.Body, originSendLater); err != nil {
		slog.Warn("send-later delivery failed", "messageID", draft.ID, "code", CodeOf(err), "error", err)
	}
}

// Share posts an existing message into target, optionally prefixed with
// extra text. Only the extra text is scanned for tags.
func (s *MessageService) Share(ctx context.Context, id, userID int64, target models.ConversationRef, extra string) (int64, error) {
	if tooLong(extra) {
		return 0, BadRequest("CONTENT_TOO_LONG", "message must be at most 1000 characters")
	}
	original, err := s.visible(ctx, id, userID)
	if err != nil {
		return 0, err
	}
	if _, err := requireMember(ctx, s.directory, target, userID); err != nil {
		return 0, err
	}

	msg := &models.Message{
		ID:           s.ids.Next(),
		Conversation: target,
		AuthorID:     userID,
		Body:         shareBody(extra, original.Body),
		SentAt:       s.scheduler.Now(),
	}
	if err := s.deliver(ctx, msg, extra, originShare); err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func shareBody(extra, original string) string {
	lines := strings.Split(original, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	quoted := strings.Join(lines, "\n")
	if extra == "" {
		return quoted
	}
	return extra + "\n\n" + quoted
}

// Search returns messages containing query, case-insensitively, from every
// conversation userID belongs to, most recent first.
func (s *MessageService) Search(ctx context.Context, userID int64, query string) ([]models.MessageView, error) {
	n := utf8.RuneCountInString(query)
	if n == 0 || n > MaxBodyLength {
		return nil, BadRequest("INVALID_QUERY", "query must be 1-1000 characters")
	}
	needle := strings.ToLower(query)

	refs, err := s.messages.Conversations(ctx)
	if err != nil {
		slog.Error("listing conversations", "error", err)
		return nil, internalError()
	}

	var hits []*models.Message
	for _, ref := range refs {
		member, err := s.directory.IsMember(ctx, ref, userID)
		if err != nil {
			slog.Error("checking membership", "conversation", ref, "userID", userID, "error", err)
			return nil, internalError()
		}
		if !member {
			continue
		}
		msgs, err := s.history(ctx, ref)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if strings.Contains(strings.ToLower(m.Body), needle) {
				hits = append(hits, m)
			}
		}
	}

	slices.SortFunc(hits, func(a, b *models.Message) int {
		if c := b.SentAt.Compare(a.SentAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	views := make([]models.MessageView, len(hits))
	for i, m := range hits {
		views[i] = m.View(userID)
	}
	return views, nil
}

// history reads a conversation's full index under its read lock.
func (s *MessageService) history(ctx context.Context, ref models.ConversationRef) ([]*models.Message, error) {
	unlock := s.locks.RLock(ref.Key())
	defer unlock()

	msgs, err := s.readAll(ctx, ref)
	if err != nil {
		slog.Error("reading messages", "conversation", ref, "error", err)
		return nil, internalError()
	}
	return msgs, nil
}

// readAll returns the whole index, most recent first. Callers hold the
// conversation lock.
func (s *MessageService) readAll(ctx context.Context, ref models.ConversationRef) ([]*models.Message, error) {
	total, err := s.messages.Count(ctx, ref)
	if err != nil {
		return nil, err
	}
	msgs, _, err := s.messages.Window(ctx, ref, 0, total)
	return msgs, err
}

// PurgeConversation drops every message of a deleted conversation and
// returns how many were removed.
func (s *MessageService) PurgeConversation(ctx context.Context, ref models.ConversationRef) (int, error) {
	unlock := s.locks.Lock(ref.Key())
	defer unlock()

	if s.archiver != nil {
		msgs, err := s.readAll(ctx, ref)
		if err == nil && len(msgs) > 0 {
			err = s.archiver.Archive(ctx, ref, msgs)
		}
		if err != nil {
			slog.Error("archiving conversation", "conversation", ref, "error", err)
			return 0, internalError()
		}
	}

	n, err := s.messages.DeleteByConversation(ctx, ref)
	if err != nil {
		slog.Error("purging conversation", "conversation", ref, "error", err)
		return 0, internalError()
	}
	for range n {
		s.metrics.MessageRemoved(string(ref.Kind))
	}
	if n > 0 {
		slog.Info("conversation purged", "conversation", ref, "messages", n)
	}
	return n, nil
}

// Purge is PurgeConversation for a caller with the elevated role. The
// conversation itself is usually gone from the directory by now.
func (s *MessageService) Purge(ctx context.Context, ref models.ConversationRef, userID int64) (int, error) {
	perms, err := permissionsOf(ctx, s.directory, ref, userID, false)
	if err != nil {
		return 0, err
	}
	if !perms.Has(permissions.PermPurgeHistory) {
		return 0, Forbidden("NOT_AUTHORIZED", "purging a conversation requires an elevated role")
	}
	return s.PurgeConversation(ctx, ref)
}
