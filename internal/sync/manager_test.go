package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-sync/internal/mocks"
	"messaging-sync/internal/models"
)

func conversationWith(id int, name string) models.Conversation {
	return models.Conversation{
		ID:          id,
		Counterpart: models.Counterpart{ID: id, Name: name},
	}
}

func TestStartLoadsDirectoryAndSelectsFirst(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithReconcileDelay(time.Hour))
	defer manager.Close()

	apiMock.On("GetConversations", mock.Anything).
		Return([]models.Conversation{conversationWith(7, "Juma"), conversationWith(9, "Nia")}, nil).Once()
	apiMock.On("GetMessages", mock.Anything, 7).
		Return([]models.Message{{ID: 1, Sender: models.SenderCounterpart, Text: "karibu"}}, nil).Once()

	manager.Start(context.Background())

	snap := manager.Snapshot()
	require.Len(t, snap.Conversations, 2)
	require.Equal(t, 7, snap.SelectedID)
	require.Len(t, snap.Messages, 1)
	require.False(t, snap.Loading)
	apiMock.AssertExpectations(t)
}

func TestLoadConversationsFailSoftKeepsDirectory(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithReconcileDelay(time.Hour))
	defer manager.Close()

	apiMock.On("GetConversations", mock.Anything).
		Return([]models.Conversation{conversationWith(7, "Juma")}, nil).Once()
	apiMock.On("GetMessages", mock.Anything, 7).Return([]models.Message{}, nil).Once()
	manager.Start(context.Background())

	apiMock.On("GetConversations", mock.Anything).
		Return(([]models.Conversation)(nil), assert.AnError).Once()
	manager.LoadConversations(context.Background())

	snap := manager.Snapshot()
	require.Len(t, snap.Conversations, 1, "directory must survive a failed reload")
	require.Equal(t, "Failed to load conversations", snap.Err)
	apiMock.AssertExpectations(t)
}

func TestLoadMessagesFailureClearsThread(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil)
	defer manager.Close()

	apiMock.On("GetMessages", mock.Anything, 5).
		Return([]models.Message{{ID: 1, Text: "hi"}}, nil).Once()
	manager.SelectConversation(context.Background(), 5)
	require.Len(t, manager.Snapshot().Messages, 1)

	apiMock.On("GetMessages", mock.Anything, 5).
		Return(([]models.Message)(nil), assert.AnError).Once()
	manager.LoadMessages(context.Background(), 5)

	snap := manager.Snapshot()
	require.Empty(t, snap.Messages)
	require.Empty(t, snap.Err, "thread load failures are not surfaced")
	apiMock.AssertExpectations(t)
}

func TestDirectoryMergeDeduplicatesByID(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithTarget(42), WithReconcileDelay(time.Hour))
	defer manager.Close()

	apiMock.On("InitConversation", mock.Anything, 42).
		Return(conversationWith(42, "Nia"), nil).Once()
	apiMock.On("GetMessages", mock.Anything, 42).Return([]models.Message{}, nil).Once()
	manager.Start(context.Background())

	// Backend has indexed the new conversation plus one older one.
	fetched := []models.Conversation{conversationWith(42, "Nia"), conversationWith(7, "Juma")}
	apiMock.On("GetConversations", mock.Anything).Return(fetched, nil).Twice()
	manager.LoadConversations(context.Background())
	manager.LoadConversations(context.Background())

	snap := manager.Snapshot()
	require.Len(t, snap.Conversations, 2)
	seen := map[int]int{}
	for _, conv := range snap.Conversations {
		seen[conv.ID]++
	}
	require.Equal(t, 1, seen[42])
	require.Equal(t, 1, seen[7])
	// The locally synthesized entry stays first.
	require.Equal(t, 42, snap.Conversations[0].ID)
	apiMock.AssertExpectations(t)
}

func TestInitializeConversationIdempotent(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithTarget(42))
	defer manager.Close()

	apiMock.On("InitConversation", mock.Anything, 42).
		Return(conversationWith(42, "Nia"), nil).Once()
	apiMock.On("GetMessages", mock.Anything, 42).Return([]models.Message{}, nil).Once()

	manager.InitializeConversation(context.Background(), 42)
	manager.InitializeConversation(context.Background(), 42)

	snap := manager.Snapshot()
	require.Len(t, snap.Conversations, 1)
	require.Equal(t, 42, snap.Conversations[0].ID)
	require.Equal(t, 42, snap.SelectedID)
	apiMock.AssertExpectations(t)
	apiMock.AssertNumberOfCalls(t, "InitConversation", 1)
	apiMock.AssertNumberOfCalls(t, "GetMessages", 1)
}

func TestInitializeConversationFailureSetsError(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithTarget(42))
	defer manager.Close()

	apiMock.On("InitConversation", mock.Anything, 42).
		Return(models.Conversation{}, assert.AnError).Once()

	manager.InitializeConversation(context.Background(), 42)

	snap := manager.Snapshot()
	require.Equal(t, "Failed to start conversation", snap.Err)
	require.Empty(t, snap.Conversations)
	apiMock.AssertExpectations(t)
}

func TestSendMessageNoOpGuard(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	uploaderMock := new(mocks.UploaderMock)
	manager := NewManager(apiMock, uploaderMock)
	defer manager.Close()

	conv := conversationWith(7, "Juma")

	require.NoError(t, manager.SendMessage(context.Background(), "", nil, &conv))
	require.NoError(t, manager.SendMessage(context.Background(), "   \t", nil, &conv))
	require.NoError(t, manager.SendMessage(context.Background(), "hello", nil, nil))

	snap := manager.Snapshot()
	require.Empty(t, snap.Messages)
	apiMock.AssertExpectations(t)
	uploaderMock.AssertExpectations(t)
}

func TestSendTextMessageOptimisticAppend(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithReconcileDelay(time.Hour))
	defer manager.Close()

	apiMock.On("GetConversations", mock.Anything).
		Return([]models.Conversation{conversationWith(7, "Juma")}, nil).Once()
	apiMock.On("GetMessages", mock.Anything, 7).
		Return([]models.Message{{ID: 1, Sender: models.SenderCounterpart, Text: "karibu"}}, nil).Once()
	manager.Start(context.Background())

	expected := models.OutboundMessage{
		ReceiverID:  7,
		Message:     "Hello",
		MessageType: models.TypeText,
	}
	apiMock.On("Send", mock.Anything, 7, expected).
		Return(models.SendResult{MessageID: 99}, nil).Once()

	conv := manager.Snapshot().Conversations[0]
	require.NoError(t, manager.SendMessage(context.Background(), "Hello", nil, &conv))

	snap := manager.Snapshot()
	require.Len(t, snap.Messages, 2)
	last := snap.Messages[len(snap.Messages)-1]
	require.Equal(t, int64(99), last.ID)
	require.Equal(t, models.SenderSelf, last.Sender)
	require.Equal(t, "Hello", last.Text)
	require.Equal(t, models.StatusSent, last.Status)
	require.Equal(t, "Hello", snap.Conversations[0].LastMessage)
	require.NotEmpty(t, snap.Conversations[0].LastMessageTime)
	require.False(t, snap.Sending)
	apiMock.AssertExpectations(t)
}

func TestSendAttachmentDerivesTypeAndPlaceholder(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	uploaderMock := new(mocks.UploaderMock)
	manager := NewManager(apiMock, uploaderMock, WithReconcileDelay(time.Hour))
	defer manager.Close()

	att := &models.Attachment{
		Name:        "basket.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 0x50},
	}
	uploaderMock.On("Upload", mock.Anything, att).
		Return("https://cdn.example/basket.png", nil).Once()

	expected := models.OutboundMessage{
		ReceiverID:     7,
		Message:        "Sent image",
		MessageType:    models.TypeImage,
		AttachmentURL:  "https://cdn.example/basket.png",
		AttachmentName: "basket.png",
	}
	apiMock.On("Send", mock.Anything, 7, expected).
		Return(models.SendResult{MessageID: 12}, nil).Once()

	conv := conversationWith(7, "Juma")
	require.NoError(t, manager.SendMessage(context.Background(), "", att, &conv))

	snap := manager.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Equal(t, models.TypeImage, snap.Messages[0].Type)
	require.Equal(t, "Sent image", snap.Messages[0].Text)
	require.Equal(t, "https://cdn.example/basket.png", snap.Messages[0].AttachmentURL)
	apiMock.AssertExpectations(t)
	uploaderMock.AssertExpectations(t)
}

func TestSendMessageUploadFailurePropagates(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	uploaderMock := new(mocks.UploaderMock)
	manager := NewManager(apiMock, uploaderMock)
	defer manager.Close()

	att := &models.Attachment{Name: "receipt.pdf", ContentType: "application/pdf"}
	uploaderMock.On("Upload", mock.Anything, att).Return("", assert.AnError).Once()

	conv := conversationWith(7, "Juma")
	err := manager.SendMessage(context.Background(), "", att, &conv)
	require.Error(t, err)

	snap := manager.Snapshot()
	require.Empty(t, snap.Messages, "no optimistic append on a failed upload")
	require.False(t, snap.Sending, "sending flag cleared on failure")
	apiMock.AssertExpectations(t)
	uploaderMock.AssertExpectations(t)
}

func TestSendMessageSubmitFailurePropagates(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil)
	defer manager.Close()

	apiMock.On("Send", mock.Anything, 7, mock.Anything).
		Return(models.SendResult{}, assert.AnError).Once()

	conv := conversationWith(7, "Juma")
	err := manager.SendMessage(context.Background(), "hello", nil, &conv)
	require.Error(t, err)

	snap := manager.Snapshot()
	require.Empty(t, snap.Messages)
	require.False(t, snap.Sending)
	apiMock.AssertExpectations(t)
}

func TestSendSchedulesReconciliation(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithReconcileDelay(5*time.Millisecond))
	defer manager.Close()

	apiMock.On("GetMessages", mock.Anything, 5).Return([]models.Message{}, nil).Once()
	manager.SelectConversation(context.Background(), 5)

	apiMock.On("Send", mock.Anything, 5, mock.Anything).
		Return(models.SendResult{MessageID: 3}, nil).Once()

	reconciled := make(chan struct{})
	apiMock.On("GetMessages", mock.Anything, 5).
		Return([]models.Message{{ID: 3, Sender: models.SenderSelf, Text: "hello", Status: models.StatusSent}}, nil).Once()
	apiMock.On("GetConversations", mock.Anything).
		Return([]models.Conversation{conversationWith(5, "Nia")}, nil).
		Run(func(mock.Arguments) { close(reconciled) }).Once()

	conv := conversationWith(5, "Nia")
	require.NoError(t, manager.SendMessage(context.Background(), "hello", nil, &conv))

	// The optimistic copy is visible before reconciliation lands.
	require.Len(t, manager.Snapshot().Messages, 1)

	select {
	case <-reconciled:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciliation pass never ran")
	}
	require.Eventually(t, func() bool {
		snap := manager.Snapshot()
		return len(snap.Conversations) == 1 && len(snap.Messages) == 1 && snap.Messages[0].ID == 3
	}, 2*time.Second, 5*time.Millisecond)
	apiMock.AssertExpectations(t)
}

func TestReconciliationFailureIsSwallowed(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithReconcileDelay(5*time.Millisecond))
	defer manager.Close()

	apiMock.On("Send", mock.Anything, 5, mock.Anything).
		Return(models.SendResult{MessageID: 3}, nil).Once()

	reconciled := make(chan struct{})
	apiMock.On("GetMessages", mock.Anything, 5).
		Return(([]models.Message)(nil), assert.AnError).Once()
	apiMock.On("GetConversations", mock.Anything).
		Return(([]models.Conversation)(nil), assert.AnError).
		Run(func(mock.Arguments) { close(reconciled) }).Once()

	conv := conversationWith(5, "Nia")
	require.NoError(t, manager.SendMessage(context.Background(), "hello", nil, &conv))

	select {
	case <-reconciled:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciliation pass never ran")
	}
	apiMock.AssertExpectations(t)
}

func TestSelectConversationTriggersSingleLoad(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil)
	defer manager.Close()

	apiMock.On("GetMessages", mock.Anything, 9).Return([]models.Message{}, nil).Once()

	manager.SelectConversation(context.Background(), 9)
	manager.SelectConversation(context.Background(), 9)

	require.Equal(t, 9, manager.Snapshot().SelectedID)
	apiMock.AssertExpectations(t)
	apiMock.AssertNumberOfCalls(t, "GetMessages", 1)
}

// Buyer deep-links into a conversation with artisan id 42 that has no prior
// history.
func TestDeepLinkInitializationScenario(t *testing.T) {
	apiMock := new(mocks.MessagingAPIMock)
	manager := NewManager(apiMock, nil, WithTarget(42))
	defer manager.Close()

	apiMock.On("InitConversation", mock.Anything, 42).
		Return(conversationWith(42, "Nia"), nil).Once()
	apiMock.On("GetMessages", mock.Anything, 42).Return([]models.Message{}, nil).Once()

	manager.Start(context.Background())

	snap := manager.Snapshot()
	require.Len(t, snap.Conversations, 1)
	require.Equal(t, 42, snap.Conversations[0].ID)
	require.Equal(t, 42, snap.SelectedID)
	require.False(t, snap.Loading)
	apiMock.AssertExpectations(t)
	apiMock.AssertNumberOfCalls(t, "InitConversation", 1)
	apiMock.AssertNumberOfCalls(t, "GetMessages", 1)
}
