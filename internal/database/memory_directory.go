package database

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/victorivanov/huddle/internal/models"
)

type memoryMember struct {
	owner bool
}

type memoryConversation struct {
	conv    models.Conversation
	members map[int64]memoryMember
	order   []int64
}

// MemoryDirectory is an in-process DirectoryRepository. It backs tests and
// local development; production uses the Postgres directory.
type MemoryDirectory struct {
	mu            sync.RWMutex
	users         map[int64]models.User
	handles       map[string]int64
	conversations map[string]*memoryConversation
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:         make(map[int64]models.User),
		handles:       make(map[string]int64),
		conversations: make(map[string]*memoryConversation),
	}
}

// AddUser registers or replaces a user. Handles are stored lowercase.
func (d *MemoryDirectory) AddUser(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u.Handle = strings.ToLower(u.Handle)
	if old, ok := d.users[u.ID]; ok {
		delete(d.handles, old.Handle)
	}
	d.users[u.ID] = u
	d.handles[u.Handle] = u.ID
}

func (d *MemoryDirectory) AddConversation(c models.Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.conversations[c.Ref.Key()]; ok {
		return
	}
	d.conversations[c.Ref.Key()] = &memoryConversation{conv: c, members: make(map[int64]memoryMember)}
}

// AddMember adds userID to ref, creating the conversation entry if needed.
func (d *MemoryDirectory) AddMember(ref models.ConversationRef, userID int64, owner bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conversations[ref.Key()]
	if !ok {
		c = &memoryConversation{conv: models.Conversation{Ref: ref}, members: make(map[int64]memoryMember)}
		d.conversations[ref.Key()] = c
	}
	if _, exists := c.members[userID]; !exists {
		c.order = append(c.order, userID)
	}
	c.members[userID] = memoryMember{owner: owner}
}

func (d *MemoryDirectory) RemoveMember(ref models.ConversationRef, userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conversations[ref.Key()]
	if !ok {
		return
	}
	delete(c.members, userID)
	if i := slices.Index(c.order, userID); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}

func (d *MemoryDirectory) RemoveConversation(ref models.ConversationRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conversations, ref.Key())
}

func (d *MemoryDirectory) GetConversation(_ context.Context, ref models.ConversationRef) (*models.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conversations[ref.Key()]
	if !ok {
		return nil, nil
	}
	conv := c.conv
	return &conv, nil
}

func (d *MemoryDirectory) IsMember(_ context.Context, ref models.ConversationRef, userID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conversations[ref.Key()]
	if !ok {
		return false, nil
	}
	_, member := c.members[userID]
	return member, nil
}

func (d *MemoryDirectory) IsOwner(_ context.Context, ref models.ConversationRef, userID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conversations[ref.Key()]
	if !ok {
		return false, nil
	}
	return c.members[userID].owner, nil
}

func (d *MemoryDirectory) HasElevatedRole(_ context.Context, userID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[userID].Elevated, nil
}

func (d *MemoryDirectory) MemberIDs(_ context.Context, ref models.ConversationRef) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conversations[ref.Key()]
	if !ok {
		return []int64{}, nil
	}
	return append([]int64{}, c.order...), nil
}

func (d *MemoryDirectory) ResolveHandle(_ context.Context, handle string) (int64, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.handles[strings.ToLower(handle)]
	return id, ok, nil
}

func (d *MemoryDirectory) HandleOf(_ context.Context, userID int64) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[userID].Handle, nil
}
