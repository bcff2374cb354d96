package ws

// Client-to-server frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameTypingStart = "typing.start"
	FrameTypingStop  = "typing.stop"
	FrameMarkRead    = "mark_read"
)

// CloseInvalidToken is sent when the bearer token is missing or rejected.
// No re-authentication happens per frame.
const CloseInvalidToken = 4001

// ClientFrame is an inbound JSON frame. One type field per frame.
type ClientFrame struct {
	Type            string  `json:"type"`
	ConversationID  int64   `json:"conversation_id,omitempty"`
	ConversationIDs []int64 `json:"conversation_ids,omitempty"`
}
