package models

// Event type constants used on the wire, server to client.
const (
	EventConnected       = "connected"
	EventSubscribed      = "subscribed"
	EventMessageNew      = "message.new"
	EventMessageEdited   = "message.edited"
	EventMessageDeleted  = "message.deleted"
	EventTypingStart     = "typing.start"
	EventTypingStop      = "typing.stop"
	EventPresenceOnline  = "presence.online"
	EventPresenceOffline = "presence.offline"
)

// Event is a frame pushed to websocket clients. A non-zero ConversationID
// restricts delivery to connections subscribed to that conversation.
type Event struct {
	Type            string   `json:"type"`
	ConversationID  int64    `json:"conversation_id,omitempty"`
	ConversationIDs []int64  `json:"conversation_ids,omitempty"`
	Message         *Message `json:"message,omitempty"`
	MessageID       int64    `json:"message_id,omitempty"`
	UserID          int64    `json:"user_id,omitempty"`
	Username        string   `json:"username,omitempty"`
}
