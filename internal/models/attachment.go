package models

import "strings"

// Attachment is a file pending upload alongside an outbound message. At most
// one attachment accompanies a message; it is transient and never persisted
// by this layer.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsImage reports whether the attachment's MIME type puts it in the image
// category.
func (a *Attachment) IsImage() bool {
	return a != nil && strings.HasPrefix(a.ContentType, "image/")
}

// MessageType derives the message type the attachment implies.
func (a *Attachment) MessageType() MessageType {
	if a == nil {
		return TypeText
	}
	if a.IsImage() {
		return TypeImage
	}
	return TypeFile
}

// PlaceholderText is the synthesized body used when the user supplies an
// attachment without any text.
func (a *Attachment) PlaceholderText() string {
	if a.IsImage() {
		return "Sent image"
	}
	return "Sent file"
}
