package models

// Sender is a two-valued sender role relative to the current user.
type Sender string

const (
	SenderSelf        Sender = "self"
	SenderCounterpart Sender = "counterpart"
)

// MessageType classifies a message body.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeFile  MessageType = "file"
)

// MessageStatus is the delivery state of a self-authored message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is a single entry in a conversation thread, ordered oldest first.
// ID is server-assigned once persisted; optimistic local copies carry a
// client-assigned placeholder until the next reconciliation fetch.
type Message struct {
	ID             int64         `json:"id"`
	Sender         Sender        `json:"sender"`
	Text           string        `json:"text"`
	Type           MessageType   `json:"message_type"`
	AttachmentURL  string        `json:"attachment_url,omitempty"`
	AttachmentName string        `json:"attachment_name,omitempty"`
	Time           string        `json:"time"`
	Timestamp      string        `json:"timestamp,omitempty"`
	Status         MessageStatus `json:"status"`
}

// OutboundMessage is the wire payload submitted to the backend on send.
type OutboundMessage struct {
	ReceiverID     int         `json:"receiver_id"`
	Message        string      `json:"message"`
	MessageType    MessageType `json:"message_type"`
	AttachmentURL  string      `json:"attachment_url,omitempty"`
	AttachmentName string      `json:"attachment_name,omitempty"`
}

// SendResult is the backend acknowledgement of a stored message.
type SendResult struct {
	MessageID int64
}
