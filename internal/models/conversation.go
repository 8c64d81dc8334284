package models

// Counterpart is the display identity of the other participant in a
// two-party conversation.
type Counterpart struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Online bool   `json:"online"`
}

// Conversation is a directory entry for a per-counterparty thread. It is
// keyed by the counterparty's user id, not by a separate conversation id.
type Conversation struct {
	ID              int         `json:"id"`
	Counterpart     Counterpart `json:"counterpart"`
	LastMessage     string      `json:"last_message"`
	LastMessageTime string      `json:"last_message_time"`
	Unread          int         `json:"unread"`
}

// ReceiverID resolves the counterparty user id a message in this
// conversation should be addressed to.
func (c Conversation) ReceiverID() int {
	if c.Counterpart.ID != 0 {
		return c.Counterpart.ID
	}
	return c.ID
}
