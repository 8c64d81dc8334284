package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-sync/internal/api"
	"messaging-sync/internal/logging"
	"messaging-sync/internal/models"
	"messaging-sync/internal/observability"
	"messaging-sync/internal/telemetry"
	"messaging-sync/internal/upload"
)

const (
	tracerName            = "messaging-sync/sync"
	defaultReconcileDelay = 500 * time.Millisecond

	errLoadConversations = "Failed to load conversations"
	errStartConversation = "Failed to start conversation"
)

// Manager coordinates the client-side messaging state for one authenticated
// session: the conversation directory, the active thread cache and the
// outbound message pipeline. All state lives on the struct and is guarded by
// a single mutex; network calls run outside the lock, so concurrent
// operations interleave last-write-wins (no cancellation of stale loads, no
// serialization of overlapping sends).
type Manager struct {
	api      api.MessagingAPI
	uploader upload.Uploader
	audit    *telemetry.AuditEmitter
	notifier *Notifier

	// targetID is the deep-linked counterparty this manager was constructed
	// for, or zero. It changes directory load/merge and loading-flag
	// behavior.
	targetID       int
	selfID         int
	reconcileDelay time.Duration

	mu            sync.Mutex
	conversations []models.Conversation
	messages      []models.Message
	selectedID    int
	loading       bool
	sending       bool
	lastError     string
	initialized   map[int]struct{}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTarget deep-links the manager to a specific counterparty: Start will
// initialize that conversation instead of loading the full directory.
func WithTarget(counterpartyID int) Option {
	return func(m *Manager) { m.targetID = counterpartyID }
}

// WithSelfUser records the authenticated user id, used only for audit
// events.
func WithSelfUser(id int) Option {
	return func(m *Manager) { m.selfID = id }
}

// WithReconcileDelay overrides the post-send reconciliation delay.
func WithReconcileDelay(d time.Duration) Option {
	return func(m *Manager) { m.reconcileDelay = d }
}

// WithAudit attaches an audit emitter.
func WithAudit(emitter *telemetry.AuditEmitter) Option {
	return func(m *Manager) { m.audit = emitter }
}

// NewManager builds a manager around the backend and object-storage
// collaborators. One manager per authenticated session; tear it down with
// Close on logout.
func NewManager(apiClient api.MessagingAPI, uploader upload.Uploader, opts ...Option) *Manager {
	m := &Manager{
		api:            apiClient,
		uploader:       uploader,
		notifier:       NewNotifier(),
		reconcileDelay: defaultReconcileDelay,
		initialized:    make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close releases the manager's subscriptions.
func (m *Manager) Close() {
	m.notifier.Close()
}

// Subscribe registers a state-change listener.
func (m *Manager) Subscribe() (string, <-chan Event) {
	return m.notifier.Subscribe()
}

// Unsubscribe removes a state-change listener.
func (m *Manager) Unsubscribe(id string) {
	m.notifier.Unsubscribe(id)
}

// Snapshot is a consistent copy of the observable manager state.
type Snapshot struct {
	Conversations []models.Conversation
	Messages      []models.Message
	SelectedID    int
	Loading       bool
	Sending       bool
	Err           string
}

// Snapshot returns the current observable state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Conversations: append([]models.Conversation(nil), m.conversations...),
		Messages:      append([]models.Message(nil), m.messages...),
		SelectedID:    m.selectedID,
		Loading:       m.loading,
		Sending:       m.sending,
		Err:           m.lastError,
	}
}

// Start brings the manager to its initial state: a deep-linked manager
// initializes its target conversation, everything else loads the directory.
func (m *Manager) Start(ctx context.Context) {
	if m.targetID != 0 {
		m.InitializeConversation(ctx, m.targetID)
		return
	}
	m.LoadConversations(ctx)
}

// LoadConversations refreshes the conversation directory. It fails soft: on
// any error the directory is left untouched and the error flag is set.
//
// When a target counterparty is active and the directory already holds
// entries, the fetch result is merged by id instead of replacing wholesale,
// so a locally synthesized entry survives until the backend has indexed it.
func (m *Manager) LoadConversations(ctx context.Context) {
	if m.targetID == 0 {
		m.setLoading(true)
		defer m.setLoading(false)
	}

	list, err := m.api.GetConversations(ctx)
	if err != nil {
		logging.L.Warn("conversation directory load failed", zap.Error(err))
		observability.IncLoad("conversations", "error")
		m.setError(errLoadConversations)
		return
	}
	observability.IncLoad("conversations", "ok")

	m.mu.Lock()
	if m.targetID != 0 && len(m.conversations) > 0 {
		seen := make(map[int]struct{}, len(m.conversations))
		for _, conv := range m.conversations {
			seen[conv.ID] = struct{}{}
		}
		for _, conv := range list {
			if _, ok := seen[conv.ID]; ok {
				continue
			}
			seen[conv.ID] = struct{}{}
			m.conversations = append(m.conversations, conv)
		}
	} else {
		m.conversations = list
	}

	autoSelect := 0
	if m.targetID == 0 && m.selectedID == 0 && len(list) > 0 {
		m.selectedID = list[0].ID
		autoSelect = list[0].ID
	}
	m.mu.Unlock()

	m.notifier.publish(Event{Type: EventConversations})
	if autoSelect != 0 {
		m.notifier.publish(Event{Type: EventSelection, ConversationID: autoSelect})
		m.LoadMessages(ctx, autoSelect)
	}
}

// LoadMessages replaces the active thread cache with the backend's copy of
// the given conversation. On error the cache is cleared; no error is
// surfaced to the caller.
func (m *Manager) LoadMessages(ctx context.Context, conversationID int) {
	if conversationID == 0 {
		return
	}

	msgs, err := m.api.GetMessages(ctx, conversationID)
	if err != nil {
		logging.L.Warn("thread load failed",
			zap.Int("conversation_id", conversationID),
			zap.Error(err),
		)
		observability.IncLoad("messages", "error")
		msgs = nil
	} else {
		observability.IncLoad("messages", "ok")
	}

	m.mu.Lock()
	m.messages = msgs
	m.mu.Unlock()
	m.notifier.publish(Event{Type: EventMessages, ConversationID: conversationID})
}

// SelectConversation makes the given conversation active and loads its
// thread.
func (m *Manager) SelectConversation(ctx context.Context, conversationID int) {
	m.mu.Lock()
	changed := m.selectedID != conversationID
	m.selectedID = conversationID
	m.mu.Unlock()

	if !changed {
		return
	}
	m.notifier.publish(Event{Type: EventSelection, ConversationID: conversationID})
	m.LoadMessages(ctx, conversationID)
}

// InitializeConversation creates or selects the conversation with the given
// counterparty. The backend init call is issued at most once per id per
// manager lifetime, however often the triggering condition re-fires.
func (m *Manager) InitializeConversation(ctx context.Context, counterpartyID int) {
	m.mu.Lock()
	if _, done := m.initialized[counterpartyID]; done {
		m.mu.Unlock()
		return
	}
	m.initialized[counterpartyID] = struct{}{}
	m.mu.Unlock()

	m.setLoading(true)
	defer m.setLoading(false)

	conv, err := m.api.InitConversation(ctx, counterpartyID)
	if err != nil {
		logging.L.Warn("conversation init failed",
			zap.Int("counterparty_id", counterpartyID),
			zap.Error(err),
		)
		observability.IncInit("error")
		m.setError(errStartConversation)
		return
	}
	observability.IncInit("ok")

	m.mu.Lock()
	exists := false
	for _, existing := range m.conversations {
		if existing.ID == counterpartyID {
			exists = true
			break
		}
	}
	if !exists {
		m.conversations = append([]models.Conversation{conv}, m.conversations...)
	}
	m.selectedID = counterpartyID
	m.mu.Unlock()

	m.audit.Emit(ctx, telemetry.EventConversationInitialized, m.selfID, map[string]any{
		"counterparty_id": counterpartyID,
	})
	m.notifier.publish(Event{Type: EventConversations})
	m.notifier.publish(Event{Type: EventSelection, ConversationID: counterpartyID})
	m.LoadMessages(ctx, counterpartyID)
}

// SendMessage runs the outbound pipeline: upload the attachment if any,
// submit the payload, append the message optimistically, patch the directory
// preview, and schedule a reconciliation pass after a fixed delay.
//
// There is nothing to send when both the trimmed text and the attachment are
// absent, and nowhere to send it without a conversation; both cases return
// nil without any backend call. Upload and submit failures propagate to the
// caller so the UI can keep the compose input populated for a retry.
func (m *Manager) SendMessage(ctx context.Context, text string, att *models.Attachment, current *models.Conversation) error {
	trimmed := strings.TrimSpace(text)
	if (trimmed == "" && att == nil) || current == nil {
		return nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "sync.send_message")
	defer span.End()

	m.setSending(true)
	defer m.setSending(false)
	start := time.Now()

	receiverID := current.ReceiverID()

	var attachmentURL string
	if att != nil {
		url, err := m.uploader.Upload(ctx, att)
		if err != nil {
			observability.IncSend("upload_error")
			return fmt.Errorf("upload attachment: %w", err)
		}
		attachmentURL = url
	}

	body := trimmed
	if body == "" {
		body = att.PlaceholderText()
	}
	out := models.OutboundMessage{
		ReceiverID:    receiverID,
		Message:       body,
		MessageType:   att.MessageType(),
		AttachmentURL: attachmentURL,
	}
	if att != nil {
		out.AttachmentName = att.Name
	}

	result, err := m.api.Send(ctx, receiverID, out)
	if err != nil {
		observability.IncSend("error")
		return err
	}
	observability.IncSend("ok")
	observability.ObserveSendDuration(time.Since(start))

	now := time.Now()
	id := result.MessageID
	if id == 0 {
		// Placeholder until reconciliation brings the server-assigned id.
		id = now.UnixMilli()
	}
	local := models.Message{
		ID:             id,
		Sender:         models.SenderSelf,
		Text:           out.Message,
		Type:           out.MessageType,
		AttachmentURL:  out.AttachmentURL,
		AttachmentName: out.AttachmentName,
		Time:           now.Format("15:04"),
		Status:         models.StatusSent,
	}

	m.mu.Lock()
	m.messages = append(m.messages, local)
	selected := m.selectedID
	for i := range m.conversations {
		if m.conversations[i].ID == selected {
			m.conversations[i].LastMessage = out.Message
			m.conversations[i].LastMessageTime = now.Format("15:04")
			break
		}
	}
	m.mu.Unlock()

	m.notifier.publish(Event{Type: EventMessages, ConversationID: selected})
	m.notifier.publish(Event{Type: EventConversations})
	m.audit.Emit(ctx, telemetry.EventMessageSent, m.selfID, map[string]any{
		"receiver_id":  receiverID,
		"message_type": string(out.MessageType),
	})

	m.scheduleReconcile(selected)
	return nil
}

// scheduleReconcile re-fetches the active thread and the directory after a
// fixed delay, giving the backend time to persist and index the send before
// the optimistic view is overwritten. Failures inside the pass are already
// swallowed by the load operations.
func (m *Manager) scheduleReconcile(conversationID int) {
	time.AfterFunc(m.reconcileDelay, func() {
		observability.IncReconciliation()
		ctx := context.Background()
		m.LoadMessages(ctx, conversationID)
		m.LoadConversations(ctx)
	})
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

func (m *Manager) setSending(v bool) {
	m.mu.Lock()
	m.sending = v
	m.mu.Unlock()
	m.notifier.publish(Event{Type: EventSending})
}

func (m *Manager) setError(msg string) {
	m.mu.Lock()
	m.lastError = msg
	m.mu.Unlock()
	m.notifier.publish(Event{Type: EventError})
	m.audit.Emit(context.Background(), telemetry.EventSyncError, m.selfID, map[string]any{
		"error": msg,
	})
}
