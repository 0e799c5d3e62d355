package database

import (
	"context"
	"errors"

	"github.com/victorivanov/huddle/internal/models"
)

var (
	ErrDuplicateID     = errors.New("database: duplicate message id")
	ErrMessageNotFound = errors.New("database: message not found")
)

// MessageRepository owns message records and each conversation's
// most-recent-first message index.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	Update(ctx context.Context, msg *models.Message) error
	Delete(ctx context.Context, id int64) (*models.Message, error)
	Count(ctx context.Context, ref models.ConversationRef) (int, error)
	Window(ctx context.Context, ref models.ConversationRef, start, limit int) ([]*models.Message, int, error)
	DeleteByConversation(ctx context.Context, ref models.ConversationRef) (int, error)
	Conversations(ctx context.Context) ([]models.ConversationRef, error)
}

// NotificationRepository stores each user's notification feed.
type NotificationRepository interface {
	Prepend(ctx context.Context, userID int64, n models.Notification) error
	Recent(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	Count(ctx context.Context, userID int64) (int, error)
}

// DirectoryRepository is the membership and identity collaborator. Lookups
// that find nothing return a zero value and a nil error.
type DirectoryRepository interface {
	GetConversation(ctx context.Context, ref models.ConversationRef) (*models.Conversation, error)
	IsMember(ctx context.Context, ref models.ConversationRef, userID int64) (bool, error)
	IsOwner(ctx context.Context, ref models.ConversationRef, userID int64) (bool, error)
	HasElevatedRole(ctx context.Context, userID int64) (bool, error)
	MemberIDs(ctx context.Context, ref models.ConversationRef) ([]int64, error)
	ResolveHandle(ctx context.Context, handle string) (int64, bool, error)
	HandleOf(ctx context.Context, userID int64) (string, error)
}
