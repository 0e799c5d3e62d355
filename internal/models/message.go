package models

import "time"

// DeliveryState tracks where a message is in its lifecycle.
type DeliveryState int

const (
	DeliveryPending DeliveryState = iota
	DeliveryDelivered
	DeliveryDeleted
)

func (s DeliveryState) String() string {
	switch s {
	case DeliveryPending:
		return "pending"
	case DeliveryDelivered:
		return "delivered"
	case DeliveryDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Message is the stored record. Only the message store holds the live
// record; everything handed out is a Clone.
type Message struct {
	ID           int64
	Conversation ConversationRef
	AuthorID     int64
	Body         string
	SentAt       time.Time
	Reactions    []Reaction
	Pinned       bool
	TaggedUsers  []int64
	State        DeliveryState
}

// Clone returns a deep copy so callers never alias stored state.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	if m.Reactions != nil {
		out.Reactions = make([]Reaction, len(m.Reactions))
		for i, r := range m.Reactions {
			out.Reactions[i] = Reaction{Kind: r.Kind, UserIDs: append([]int64(nil), r.UserIDs...)}
		}
	}
	if m.TaggedUsers != nil {
		out.TaggedUsers = append([]int64(nil), m.TaggedUsers...)
	}
	return &out
}

// View renders the message relative to the requesting user.
func (m *Message) View(viewerID int64) MessageView {
	reacts := make([]ReactionView, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		reacts = append(reacts, r.View(viewerID))
	}
	return MessageView{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		SentAt:    m.SentAt.Unix(),
		Reactions: reacts,
		IsPinned:  m.Pinned,
	}
}

// MessageView is the immutable snapshot returned by get, page and search.
type MessageView struct {
	ID        int64          `json:"message_id,string"`
	AuthorID  int64          `json:"u_id,string"`
	Body      string         `json:"message"`
	SentAt    int64          `json:"time_sent"`
	Reactions []ReactionView `json:"reacts"`
	IsPinned  bool           `json:"is_pinned"`
}

// Page is one window of a conversation's history. End is -1 when no
// further page exists.
type Page struct {
	Messages []MessageView `json:"messages"`
	Start    int           `json:"start"`
	End      int           `json:"end"`
}
