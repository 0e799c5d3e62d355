package models

import (
	"fmt"
	"strconv"
)

// ConversationKind distinguishes channels from direct conversations. Both
// share the same message, pagination and notification mechanics.
type ConversationKind string

const (
	KindChannel ConversationKind = "channel"
	KindDirect  ConversationKind = "direct"
)

// Valid reports whether k is a known conversation kind.
func (k ConversationKind) Valid() bool {
	return k == KindChannel || k == KindDirect
}

// ConversationRef identifies a conversation. Channel and DM ids live in
// separate id spaces, so the kind is part of the key.
type ConversationRef struct {
	ID   int64            `json:"id,string"`
	Kind ConversationKind `json:"kind"`
}

func ChannelRef(id int64) ConversationRef { return ConversationRef{ID: id, Kind: KindChannel} }
func DirectRef(id int64) ConversationRef  { return ConversationRef{ID: id, Kind: KindDirect} }

// Key returns a stable string key, used for locking and metrics labels.
func (r ConversationRef) Key() string {
	return string(r.Kind) + ":" + strconv.FormatInt(r.ID, 10)
}

func (r ConversationRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Conversation is the directory's view of a channel or DM.
type Conversation struct {
	Ref  ConversationRef `json:"ref"`
	Name string          `json:"name"`
}
