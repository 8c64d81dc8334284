package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"messaging-sync/internal/models"
)

const tracerName = "messaging-sync/api"

// MessagingAPI is the backend collaborator consumed by the sync manager.
type MessagingAPI interface {
	GetConversations(ctx context.Context) ([]models.Conversation, error)
	GetMessages(ctx context.Context, conversationID int) ([]models.Message, error)
	Send(ctx context.Context, receiverID int, out models.OutboundMessage) (models.SendResult, error)
	InitConversation(ctx context.Context, counterpartyID int) (models.Conversation, error)
}

// Client talks JSON over an authenticated session to the marketplace
// messaging REST API.
type Client struct {
	baseURL       string
	httpc         *http.Client
	sessionCookie string
	userID        int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithSessionCookie attaches the backend session cookie value to every
// request.
func WithSessionCookie(value string) Option {
	return func(c *Client) { c.sessionCookie = value }
}

// WithUserID sets the X-User-Id header used by the local stub backend in
// place of a session.
func WithUserID(id int) Option {
	return func(c *Client) { c.userID = id }
}

// NewClient builds a Client for the given base URL (e.g. "https://host/api").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetConversations fetches the caller's conversation directory.
func (c *Client) GetConversations(ctx context.Context) ([]models.Conversation, error) {
	var dtos []conversationDTO
	if err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, &dtos); err != nil {
		return nil, fmt.Errorf("get conversations: %w", err)
	}
	return normalizeConversations(dtos), nil
}

// GetMessages fetches the thread with the given counterparty, oldest first.
func (c *Client) GetMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	var dtos []messageDTO
	path := "/messages/conversation/" + strconv.Itoa(conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return normalizeMessages(dtos), nil
}

// Send submits an outbound message and returns the stored message id.
func (c *Client) Send(ctx context.Context, receiverID int, out models.OutboundMessage) (models.SendResult, error) {
	out.ReceiverID = receiverID
	var resp sendResponseDTO
	if err := c.do(ctx, http.MethodPost, "/messages/", out, &resp); err != nil {
		return models.SendResult{}, fmt.Errorf("send message: %w", err)
	}
	return models.SendResult{MessageID: resp.MessageData.ID}, nil
}

// InitConversation asks the backend to create (or return) a conversation
// with the given counterparty.
func (c *Client) InitConversation(ctx context.Context, counterpartyID int) (models.Conversation, error) {
	var resp initResponseDTO
	path := "/messages/init/" + strconv.Itoa(counterpartyID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return models.Conversation{}, fmt.Errorf("init conversation: %w", err)
	}
	conv, ok := normalizeConversation(resp.Conversation)
	if !ok {
		return models.Conversation{}, fmt.Errorf("init conversation: malformed payload for counterparty %d", counterpartyID)
	}
	return conv, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionCookie != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: c.sessionCookie})
	}
	if c.userID != 0 {
		req.Header.Set("X-User-Id", strconv.Itoa(c.userID))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ MessagingAPI = (*Client)(nil)
