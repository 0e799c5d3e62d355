package database

import (
	"context"
	"slices"
	"sync"

	"github.com/victorivanov/huddle/internal/models"
)

// conversationLog holds one conversation's records. ids is kept oldest
// first so that appending the newest message is O(1); position p counted
// from the most recent message is ids[len(ids)-1-p].
type conversationLog struct {
	mu      sync.RWMutex
	ref     models.ConversationRef
	ids     []int64
	records map[int64]*models.Message
}

type messageStore struct {
	mu   sync.RWMutex
	logs map[string]*conversationLog

	// owner maps message id to its conversation key.
	owner sync.Map
}

// NewMessageStore returns an in-memory MessageRepository. Records are held
// per conversation, so traffic on one conversation only shares a read lock
// with traffic on another.
func NewMessageStore() MessageRepository {
	return &messageStore{logs: make(map[string]*conversationLog)}
}

func (s *messageStore) log(ref models.ConversationRef, create bool) *conversationLog {
	key := ref.Key()
	s.mu.RLock()
	l, ok := s.logs[key]
	s.mu.RUnlock()
	if ok || !create {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.logs[key]; ok {
		return l
	}
	l = &conversationLog{ref: ref, records: make(map[int64]*models.Message)}
	s.logs[key] = l
	return l
}

func (s *messageStore) logFor(id int64) *conversationLog {
	key, ok := s.owner.Load(id)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logs[key.(string)]
}

func (s *messageStore) Create(_ context.Context, msg *models.Message) error {
	key := msg.Conversation.Key()
	if _, loaded := s.owner.LoadOrStore(msg.ID, key); loaded {
		return ErrDuplicateID
	}

	l := s.log(msg.Conversation, true)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[msg.ID] = msg.Clone()
	l.ids = append(l.ids, msg.ID)
	return nil
}

func (s *messageStore) GetByID(_ context.Context, id int64) (*models.Message, error) {
	l := s.logFor(id)
	if l == nil {
		return nil, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.records[id].Clone(), nil
}

// Update replaces the mutable fields of a stored message.
func (s *messageStore) Update(_ context.Context, msg *models.Message) error {
	l := s.logFor(msg.ID)
	if l == nil {
		return ErrMessageNotFound
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.records[msg.ID]
	if !ok {
		return ErrMessageNotFound
	}
	next := msg.Clone()
	cur.Body = next.Body
	cur.Reactions = next.Reactions
	cur.Pinned = next.Pinned
	cur.TaggedUsers = next.TaggedUsers
	return nil
}

func (s *messageStore) Delete(_ context.Context, id int64) (*models.Message, error) {
	l := s.logFor(id)
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	msg, ok := l.records[id]
	if !ok {
		return nil, nil
	}
	delete(l.records, id)
	if i := slices.Index(l.ids, id); i >= 0 {
		l.ids = slices.Delete(l.ids, i, i+1)
	}
	s.owner.Delete(id)

	msg.State = models.DeliveryDeleted
	return msg, nil
}

func (s *messageStore) Count(_ context.Context, ref models.ConversationRef) (int, error) {
	l := s.log(ref, false)
	if l == nil {
		return 0, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids), nil
}

// Window returns copies of up to limit messages starting at position start
// from the most recent, together with the index length they were read
// against.
func (s *messageStore) Window(_ context.Context, ref models.ConversationRef, start, limit int) ([]*models.Message, int, error) {
	l := s.log(ref, false)
	if l == nil {
		return []*models.Message{}, 0, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.ids)
	end := min(start+limit, total)
	out := make([]*models.Message, 0, max(end-start, 0))
	for p := start; p < end; p++ {
		out = append(out, l.records[l.ids[total-1-p]].Clone())
	}
	return out, total, nil
}

func (s *messageStore) DeleteByConversation(_ context.Context, ref models.ConversationRef) (int, error) {
	s.mu.Lock()
	l, ok := s.logs[ref.Key()]
	delete(s.logs, ref.Key())
	s.mu.Unlock()
	if !ok {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range l.ids {
		s.owner.Delete(id)
	}
	n := len(l.ids)
	l.ids = nil
	l.records = map[int64]*models.Message{}
	return n, nil
}

func (s *messageStore) Conversations(_ context.Context) ([]models.ConversationRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]models.ConversationRef, 0, len(s.logs))
	for _, l := range s.logs {
		refs = append(refs, l.ref)
	}
	return refs, nil
}
