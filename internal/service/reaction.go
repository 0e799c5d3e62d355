package service

import (
	"context"
	"log/slog"
	"slices"
	"unicode/utf8"

	"github.com/victorivanov/huddle/internal/gateway"
	"github.com/victorivanov/huddle/internal/models"
)

const maxReactionKindLength = 32

type reactionEvent struct {
	Conversation models.ConversationRef `json:"conversation"`
	MessageID    int64                  `json:"message_id,string"`
	UserID       int64                  `json:"u_id,string"`
	Kind         string                 `json:"react_kind"`
}

// ReactionService toggles per-user reactions on messages.
type ReactionService struct {
	messages *MessageService
	notifier *NotificationService
}

func NewReactionService(messages *MessageService, notifier *NotificationService) *ReactionService {
	return &ReactionService{messages: messages, notifier: notifier}
}

func validateReactionKind(kind string) error {
	n := utf8.RuneCountInString(kind)
	if n == 0 || n > maxReactionKindLength {
		return BadRequest("INVALID_REACTION", "react_kind must be 1-32 characters")
	}
	return nil
}

// React adds userID to the kind reaction on a message and notifies the
// message author.
func (s *ReactionService) React(ctx context.Context, id, userID int64, kind string) error {
	if err := validateReactionKind(kind); err != nil {
		return err
	}
	msg, err := s.messages.visible(ctx, id, userID)
	if err != nil {
		return err
	}

	cur, err := s.messages.mutate(ctx, msg, func(cur *models.Message) error {
		i := slices.IndexFunc(cur.Reactions, func(r models.Reaction) bool { return r.Kind == kind })
		if i < 0 {
			cur.Reactions = append(cur.Reactions, models.Reaction{Kind: kind, UserIDs: []int64{userID}})
			return nil
		}
		if cur.Reactions[i].Has(userID) {
			return Conflict("ALREADY_REACTED", "you already reacted with this kind")
		}
		cur.Reactions[i].UserIDs = append(cur.Reactions[i].UserIDs, userID)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.notifier.Notify(ctx, userID, cur.AuthorID, cur.Conversation, models.EventReacted, cur.Body); err != nil {
		slog.Error("dispatching reacted notification", "messageID", id, "error", err)
	}
	s.dispatch(ctx, cur, gateway.EventMessageReactionAdd, userID, kind)
	return nil
}

// Unreact removes userID from the kind reaction. The kind disappears from
// the message once nobody is left in it.
func (s *ReactionService) Unreact(ctx context.Context, id, userID int64, kind string) error {
	if err := validateReactionKind(kind); err != nil {
		return err
	}
	msg, err := s.messages.visible(ctx, id, userID)
	if err != nil {
		return err
	}

	cur, err := s.messages.mutate(ctx, msg, func(cur *models.Message) error {
		i := slices.IndexFunc(cur.Reactions, func(r models.Reaction) bool { return r.Kind == kind })
		if i < 0 || !cur.Reactions[i].Has(userID) {
			return Conflict("NOT_REACTED", "you have not reacted with this kind")
		}
		users := slices.DeleteFunc(cur.Reactions[i].UserIDs, func(u int64) bool { return u == userID })
		if len(users) == 0 {
			cur.Reactions = slices.Delete(cur.Reactions, i, i+1)
		} else {
			cur.Reactions[i].UserIDs = users
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatch(ctx, cur, gateway.EventMessageReactionRemove, userID, kind)
	return nil
}

func (s *ReactionService) dispatch(ctx context.Context, msg *models.Message, event string, userID int64, kind string) {
	members, err := s.messages.directory.MemberIDs(ctx, msg.Conversation)
	if err != nil {
		slog.Error("listing members for dispatch", "conversation", msg.Conversation, "error", err)
		return
	}
	payload := reactionEvent{Conversation: msg.Conversation, MessageID: msg.ID, UserID: userID, Kind: kind}
	for _, uid := range members {
		s.messages.gateway.DispatchToUser(uid, event, payload)
	}
}
