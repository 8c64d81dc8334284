package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"messaging-sync/internal/models"
)

// The backend emits loosely shaped JSON. Everything is decoded into the DTOs
// below and normalized exactly once, here; nothing downstream re-sniffs
// payload shapes.

type counterpartDTO struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Online bool   `json:"online"`
}

type conversationDTO struct {
	ID              int            `json:"id"`
	Artisan         counterpartDTO `json:"artisan"`
	LastMessage     string         `json:"lastMessage"`
	LastMessageTime string         `json:"lastMessageTime"`
	Timestamp       string         `json:"timestamp"`
	Unread          int            `json:"unread"`
}

type messageDTO struct {
	ID             int64  `json:"id"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
	Time           string `json:"time"`
	Timestamp      string `json:"timestamp"`
	MessageType    string `json:"message_type"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentName string `json:"attachment_name"`
	Status         string `json:"status"`
}

type sendResponseDTO struct {
	Message     string `json:"message"`
	MessageData struct {
		ID int64 `json:"id"`
	} `json:"message_data"`
}

type initResponseDTO struct {
	Conversation conversationDTO `json:"conversation"`
}

// wireSenderSelf is how the backend tags messages authored by the
// requesting user, regardless of that user's actual role.
const wireSenderSelf = "buyer"

func normalizeConversation(dto conversationDTO) (models.Conversation, bool) {
	id := dto.ID
	if id == 0 {
		id = dto.Artisan.ID
	}
	if id <= 0 {
		return models.Conversation{}, false
	}
	counterpart := models.Counterpart{
		ID:     dto.Artisan.ID,
		Name:   dto.Artisan.Name,
		Avatar: dto.Artisan.Avatar,
		Online: dto.Artisan.Online,
	}
	if counterpart.ID == 0 {
		counterpart.ID = id
	}
	lastTime := dto.LastMessageTime
	if lastTime == "" {
		lastTime = dto.Timestamp
	}
	return models.Conversation{
		ID:              id,
		Counterpart:     counterpart,
		LastMessage:     dto.LastMessage,
		LastMessageTime: lastTime,
		Unread:          dto.Unread,
	}, true
}

func normalizeConversations(dtos []conversationDTO) []models.Conversation {
	out := make([]models.Conversation, 0, len(dtos))
	for _, dto := range dtos {
		if conv, ok := normalizeConversation(dto); ok {
			out = append(out, conv)
		}
	}
	return out
}

func normalizeMessage(dto messageDTO) models.Message {
	sender := models.SenderCounterpart
	if dto.Sender == wireSenderSelf {
		sender = models.SenderSelf
	}
	msgType := models.MessageType(dto.MessageType)
	switch msgType {
	case models.TypeText, models.TypeImage, models.TypeFile:
	default:
		msgType = models.TypeText
	}
	status := models.MessageStatus(dto.Status)
	switch status {
	case models.StatusSent, models.StatusDelivered, models.StatusRead:
	default:
		status = models.StatusSent
	}
	return models.Message{
		ID:             dto.ID,
		Sender:         sender,
		Text:           dto.Text,
		Type:           msgType,
		AttachmentURL:  dto.AttachmentURL,
		AttachmentName: dto.AttachmentName,
		Time:           dto.Time,
		Timestamp:      dto.Timestamp,
		Status:         status,
	}
}

func normalizeMessages(dtos []messageDTO) []models.Message {
	out := make([]models.Message, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, normalizeMessage(dto))
	}
	return out
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func newAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return apiErr
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			apiErr.Message = payload.Error
		} else if payload.Message != "" {
			apiErr.Message = payload.Message
		}
	}
	return apiErr
}
