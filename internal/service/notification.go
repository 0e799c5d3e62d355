package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/gateway"
	"github.com/victorivanov/huddle/internal/metrics"
	"github.com/victorivanov/huddle/internal/models"
)

const (
	// FeedLimit caps how many notifications a feed read returns.
	FeedLimit = 20

	tagPreviewLength = 20
)

// NotificationService fans added/tagged/reacted events out to user feeds.
type NotificationService struct {
	feeds     database.NotificationRepository
	directory database.DirectoryRepository
	gateway   gateway.Dispatcher
	metrics   *metrics.Metrics
}

func NewNotificationService(
	feeds database.NotificationRepository,
	directory database.DirectoryRepository,
	gw gateway.Dispatcher,
	m *metrics.Metrics,
) *NotificationService {
	return &NotificationService{
		feeds:     feeds,
		directory: directory,
		gateway:   gw,
		metrics:   m,
	}
}

// Notify puts one notification at the head of receiverID's feed. It is a
// no-op when sender and receiver are the same user or when the receiver is
// not a member of ref at the time of the call. body is the message text the
// event refers to and is only used for tagged events.
func (s *NotificationService) Notify(ctx context.Context, senderID, receiverID int64, ref models.ConversationRef, event models.NotificationEvent, body string) error {
	if senderID == receiverID {
		s.metrics.NotificationDropped(string(event), "self")
		return nil
	}

	member, err := s.directory.IsMember(ctx, ref, receiverID)
	if err != nil {
		return fmt.Errorf("checking receiver membership: %w", err)
	}
	if !member {
		s.metrics.NotificationDropped(string(event), "not_member")
		return nil
	}

	conv, err := s.directory.GetConversation(ctx, ref)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		s.metrics.NotificationDropped(string(event), "no_conversation")
		return nil
	}

	handle, err := s.directory.HandleOf(ctx, senderID)
	if err != nil {
		return fmt.Errorf("loading sender handle: %w", err)
	}

	n := models.NewNotification(ref, notificationText(event, handle, conv.Name, body))
	if err := s.feeds.Prepend(ctx, receiverID, n); err != nil {
		return fmt.Errorf("storing notification: %w", err)
	}

	s.metrics.NotificationSent(string(event))
	s.gateway.DispatchToUser(receiverID, gateway.EventNotificationCreate, n)
	return nil
}

func notificationText(event models.NotificationEvent, handle, conversation, body string) string {
	switch event {
	case models.EventAdded:
		return fmt.Sprintf("%s added you to %s", handle, conversation)
	case models.EventTagged:
		return fmt.Sprintf("%s tagged you in %s: %s", handle, conversation, preview(body, tagPreviewLength))
	case models.EventReacted:
		return fmt.Sprintf("%s reacted to your message in %s", handle, conversation)
	default:
		return fmt.Sprintf("%s mentioned you in %s", handle, conversation)
	}
}

// preview returns the first n characters of s.
func preview(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Feed returns the receiver's most recent notifications, newest first.
func (s *NotificationService) Feed(ctx context.Context, userID int64) ([]models.Notification, error) {
	feed, err := s.feeds.Recent(ctx, userID, FeedLimit)
	if err != nil {
		slog.Error("reading notification feed", "userID", userID, "error", err)
		return nil, internalError()
	}
	if feed == nil {
		feed = []models.Notification{}
	}
	return feed, nil
}

// MemberAdded notifies userID that inviterID added them to ref. Membership
// bookkeeping happens elsewhere; callers invoke this once the user has
// been added.
func (s *NotificationService) MemberAdded(ctx context.Context, inviterID, userID int64, ref models.ConversationRef) error {
	if _, err := requireConversation(ctx, s.directory, ref); err != nil {
		return err
	}
	if err := s.Notify(ctx, inviterID, userID, ref, models.EventAdded, ""); err != nil {
		slog.Error("dispatching added notification", "conversation", ref, "userID", userID, "error", err)
		return internalError()
	}
	return nil
}

// AnnounceMember is MemberAdded on behalf of an inviter, who must belong to
// ref themselves.
func (s *NotificationService) AnnounceMember(ctx context.Context, ref models.ConversationRef, inviterID, userID int64) error {
	if _, err := requireMember(ctx, s.directory, ref, inviterID); err != nil {
		return err
	}
	return s.MemberAdded(ctx, inviterID, userID, ref)
}
