package service

import (
	"context"
	"log/slog"

	"github.com/victorivanov/huddle/internal/gateway"
	"github.com/victorivanov/huddle/internal/models"
	"github.com/victorivanov/huddle/internal/permissions"
)

type pinEvent struct {
	Conversation models.ConversationRef `json:"conversation"`
	MessageID    int64                  `json:"message_id,string"`
	IsPinned     bool                   `json:"is_pinned"`
}

// PinService pins and unpins messages. Only conversation owners and users
// with the elevated role may do either.
type PinService struct {
	messages *MessageService
}

func NewPinService(messages *MessageService) *PinService {
	return &PinService{messages: messages}
}

func (s *PinService) Pin(ctx context.Context, id, userID int64) error {
	return s.set(ctx, id, userID, true)
}

func (s *PinService) Unpin(ctx context.Context, id, userID int64) error {
	return s.set(ctx, id, userID, false)
}

func (s *PinService) set(ctx context.Context, id, userID int64, pinned bool) error {
	msg, err := s.messages.visible(ctx, id, userID)
	if err != nil {
		return err
	}
	perms, err := permissionsOf(ctx, s.messages.directory, msg.Conversation, userID, true)
	if err != nil {
		return err
	}
	if !perms.Has(permissions.PermPinMessages) {
		return Forbidden("NOT_AUTHORIZED", "only conversation owners can pin messages")
	}

	cur, err := s.messages.mutate(ctx, msg, func(cur *models.Message) error {
		if cur.Pinned == pinned {
			if pinned {
				return Conflict("ALREADY_PINNED", "message is already pinned")
			}
			return Conflict("NOT_PINNED", "message is not pinned")
		}
		cur.Pinned = pinned
		return nil
	})
	if err != nil {
		return err
	}

	members, err := s.messages.directory.MemberIDs(ctx, cur.Conversation)
	if err != nil {
		slog.Error("listing members for dispatch", "conversation", cur.Conversation, "error", err)
		return nil
	}
	payload := pinEvent{Conversation: cur.Conversation, MessageID: cur.ID, IsPinned: cur.Pinned}
	for _, uid := range members {
		s.messages.gateway.DispatchToUser(uid, gateway.EventMessagePinUpdate, payload)
	}
	return nil
}
