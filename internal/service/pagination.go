package service

import (
	"context"
	"log/slog"

	"github.com/victorivanov/huddle/internal/models"
)

// PageSize is the number of messages in a full page.
const PageSize = 50

// Page returns up to PageSize messages of ref's history starting start
// positions back from the most recent message. End is start+PageSize while
// more messages remain and -1 otherwise.
func (s *MessageService) Page(ctx context.Context, ref models.ConversationRef, userID int64, start int) (*models.Page, error) {
	if _, err := requireMember(ctx, s.directory, ref, userID); err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, BadRequest("INVALID_START", "start must not be negative")
	}

	unlock := s.locks.RLock(ref.Key())
	msgs, total, err := s.messages.Window(ctx, ref, start, PageSize)
	unlock()
	if err != nil {
		slog.Error("reading message window", "conversation", ref, "start", start, "error", err)
		return nil, internalError()
	}

	if start > total {
		return nil, OutOfRange("START_OUT_OF_RANGE", "start is beyond the number of messages")
	}

	end := -1
	if total-start > PageSize {
		end = start + PageSize
	}

	views := make([]models.MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = m.View(userID)
	}
	return &models.Page{Messages: views, Start: start, End: end}, nil
}
