package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-sync/internal/api"
	"messaging-sync/internal/models"
	"messaging-sync/internal/upload"
)

type MessagingAPIMock struct {
	mock.Mock
}

func (m *MessagingAPIMock) GetConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *MessagingAPIMock) GetMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessagingAPIMock) Send(ctx context.Context, receiverID int, out models.OutboundMessage) (models.SendResult, error) {
	args := m.Called(ctx, receiverID, out)
	var result models.SendResult
	if val := args.Get(0); val != nil {
		result = val.(models.SendResult)
	}
	return result, args.Error(1)
}

func (m *MessagingAPIMock) InitConversation(ctx context.Context, counterpartyID int) (models.Conversation, error) {
	args := m.Called(ctx, counterpartyID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, att *models.Attachment) (string, error) {
	args := m.Called(ctx, att)
	return args.String(0), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ api.MessagingAPI = (*MessagingAPIMock)(nil)
var _ upload.Uploader = (*UploaderMock)(nil)
