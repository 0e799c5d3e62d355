package models

// NoConversation marks the unused side of a notification's channel/dm pair.
const NoConversation int64 = -1

// NotificationEvent is the cause of a notification.
type NotificationEvent string

const (
	EventAdded   NotificationEvent = "added"
	EventTagged  NotificationEvent = "tagged"
	EventReacted NotificationEvent = "reacted"
)

// Notification is one feed entry. Exactly one of ChannelID and DMID is set;
// the other is NoConversation.
type Notification struct {
	ChannelID int64  `json:"channel_id"`
	DMID      int64  `json:"dm_id"`
	Text      string `json:"notification_message"`
}

// NewNotification builds a notification pointing at ref.
func NewNotification(ref ConversationRef, text string) Notification {
	n := Notification{ChannelID: NoConversation, DMID: NoConversation, Text: text}
	if ref.Kind == KindDirect {
		n.DMID = ref.ID
	} else {
		n.ChannelID = ref.ID
	}
	return n
}

// Ref returns the conversation the notification points at.
func (n Notification) Ref() ConversationRef {
	if n.DMID != NoConversation {
		return DirectRef(n.DMID)
	}
	return ChannelRef(n.ChannelID)
}
