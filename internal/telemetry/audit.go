package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-sync/internal/logging"
)

// Publisher is the event-bus sink audit events are written to.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Event types emitted by the sync layer.
const (
	EventMessageSent             = "message_sent"
	EventConversationInitialized = "conversation_initialized"
	EventSyncError               = "sync_error"
)

// AuditEmitter publishes client-side sync events onto the bus. A nil emitter
// (or one without a publisher) is a safe no-op so call sites never branch.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

// AuditEnvelope is the versioned wire shape of an audit event.
type AuditEnvelope struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	OccurredAt    string         `json:"occurred_at"`
	Service       string         `json:"service"`
	Environment   string         `json:"environment"`
	RequestID     string         `json:"request_id"`
	UserID        int            `json:"user_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// NewAuditEmitter builds an emitter bound to a routing key and deployment
// environment.
func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one audit event. Failures are logged, never returned: audit
// is strictly best-effort.
func (e *AuditEmitter) Emit(ctx context.Context, eventType string, userID int, payload map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     uuid.NewString(),
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		logging.L.Warn("audit publish failed",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
