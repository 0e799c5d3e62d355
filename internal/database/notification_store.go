package database

import (
	"context"
	"sync"

	"github.com/victorivanov/huddle/internal/models"
)

// feed is stored oldest first; the newest entry is the head for readers.
type feed struct {
	mu      sync.Mutex
	entries []models.Notification
}

type notificationStore struct {
	mu    sync.RWMutex
	feeds map[int64]*feed
}

// NewNotificationStore returns an in-memory NotificationRepository with one
// lock per receiving user. Storage is unbounded; readers pick the window.
func NewNotificationStore() NotificationRepository {
	return &notificationStore{feeds: make(map[int64]*feed)}
}

func (s *notificationStore) feed(userID int64, create bool) *feed {
	s.mu.RLock()
	f, ok := s.feeds[userID]
	s.mu.RUnlock()
	if ok || !create {
		return f
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok = s.feeds[userID]; ok {
		return f
	}
	f = &feed{}
	s.feeds[userID] = f
	return f
}

func (s *notificationStore) Prepend(_ context.Context, userID int64, n models.Notification) error {
	f := s.feed(userID, true)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, n)
	return nil
}

// Recent returns up to limit notifications, most recent first.
func (s *notificationStore) Recent(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	f := s.feed(userID, false)
	if f == nil {
		return []models.Notification{}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	n := min(limit, len(f.entries))
	out := make([]models.Notification, 0, n)
	for i := len(f.entries) - 1; i >= len(f.entries)-n; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

func (s *notificationStore) Count(_ context.Context, userID int64) (int, error) {
	f := s.feed(userID, false)
	if f == nil {
		return 0, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}
