package service

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/models"
	"github.com/victorivanov/huddle/internal/permissions"
)

// MaxBodyLength is the longest message or standup line accepted, counted in
// characters.
const MaxBodyLength = 1000

// validateBody checks 1 <= len(body) <= MaxBodyLength.
func validateBody(body string) error {
	n := utf8.RuneCountInString(body)
	if n == 0 {
		return BadRequest("INVALID_CONTENT", "message must not be empty")
	}
	if n > MaxBodyLength {
		return BadRequest("CONTENT_TOO_LONG", "message must be at most 1000 characters")
	}
	return nil
}

func tooLong(body string) bool {
	return utf8.RuneCountInString(body) > MaxBodyLength
}

// requireConversation loads a conversation, mapping absence to NotFound.
func requireConversation(ctx context.Context, dir database.DirectoryRepository, ref models.ConversationRef) (*models.Conversation, error) {
	if !ref.Kind.Valid() {
		return nil, conversationNotFound()
	}
	conv, err := dir.GetConversation(ctx, ref)
	if err != nil {
		slog.Error("loading conversation", "conversation", ref, "error", err)
		return nil, internalError()
	}
	if conv == nil {
		return nil, conversationNotFound()
	}
	return conv, nil
}

// requireMember verifies the conversation exists and userID belongs to it.
func requireMember(ctx context.Context, dir database.DirectoryRepository, ref models.ConversationRef, userID int64) (*models.Conversation, error) {
	conv, err := requireConversation(ctx, dir, ref)
	if err != nil {
		return nil, err
	}
	ok, err := dir.IsMember(ctx, ref, userID)
	if err != nil {
		slog.Error("checking membership", "conversation", ref, "userID", userID, "error", err)
		return nil, internalError()
	}
	if !ok {
		return nil, Forbidden("NOT_A_MEMBER", "you are not a member of this conversation")
	}
	return conv, nil
}

// permissionsOf resolves userID's permissions in ref. member is passed in
// because every caller has already established it.
func permissionsOf(ctx context.Context, dir database.DirectoryRepository, ref models.ConversationRef, userID int64, member bool) (permissions.Permission, error) {
	standing := permissions.Standing{Member: member}
	if member {
		owner, err := dir.IsOwner(ctx, ref, userID)
		if err != nil {
			slog.Error("checking ownership", "conversation", ref, "userID", userID, "error", err)
			return 0, internalError()
		}
		standing.Owner = owner
	}
	elevated, err := dir.HasElevatedRole(ctx, userID)
	if err != nil {
		slog.Error("checking elevated role", "userID", userID, "error", err)
		return 0, internalError()
	}
	standing.Elevated = elevated
	return permissions.Compute(standing), nil
}
