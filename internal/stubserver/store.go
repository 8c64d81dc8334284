package stubserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrUserNotFound is returned for counterparty ids the store has never seen.
var ErrUserNotFound = errors.New("stubserver: user not found")

// User is a marketplace account the stub can converse with.
type User struct {
	ID     int    `db:"id"`
	Name   string `db:"name"`
	Avatar string `db:"avatar"`
}

// StoredMessage is one persisted direct message.
type StoredMessage struct {
	ID             int64     `db:"id"`
	SenderID       int       `db:"sender_id"`
	ReceiverID     int       `db:"receiver_id"`
	Text           string    `db:"text"`
	MessageType    string    `db:"message_type"`
	MediaURL       string    `db:"media_url"`
	AttachmentName string    `db:"attachment_name"`
	Status         string    `db:"status"`
	IsRead         bool      `db:"is_read"`
	CreatedAt      time.Time `db:"created_at"`
}

// ConversationSummary is the directory view of one counterparty thread.
type ConversationSummary struct {
	Partner User
	Last    StoredMessage
	Unread  int
}

// Store is the persistence boundary of the stub backend.
type Store interface {
	GetUser(ctx context.Context, id int) (User, error)
	ListConversations(ctx context.Context, userID int) ([]ConversationSummary, error)
	// ListThread returns both directions of the thread oldest first and
	// marks the counterparty's messages as read.
	ListThread(ctx context.Context, userID, partnerID int) ([]StoredMessage, error)
	CreateMessage(ctx context.Context, msg StoredMessage) (StoredMessage, error)
}

// MemoryStore keeps everything in process memory. It is the default store
// for tests and local demos.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int]User
	messages []StoredMessage
	nextID   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int]User),
		nextID: 1,
	}
}

// AddUser seeds an account.
func (s *MemoryStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) GetUser(ctx context.Context, id int) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID int) ([]ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[int]StoredMessage)
	unread := make(map[int]int)
	for _, msg := range s.messages {
		var partnerID int
		switch {
		case msg.SenderID == userID:
			partnerID = msg.ReceiverID
		case msg.ReceiverID == userID:
			partnerID = msg.SenderID
		default:
			continue
		}
		if prev, ok := latest[partnerID]; !ok || msg.CreatedAt.After(prev.CreatedAt) {
			latest[partnerID] = msg
		}
		if msg.ReceiverID == userID && !msg.IsRead {
			unread[partnerID]++
		}
	}

	summaries := make([]ConversationSummary, 0, len(latest))
	for partnerID, msg := range latest {
		partner, ok := s.users[partnerID]
		if !ok {
			continue
		}
		summaries = append(summaries, ConversationSummary{
			Partner: partner,
			Last:    msg,
			Unread:  unread[partnerID],
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Last.CreatedAt.After(summaries[j].Last.CreatedAt)
	})
	return summaries, nil
}

func (s *MemoryStore) ListThread(ctx context.Context, userID, partnerID int) ([]StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := make([]StoredMessage, 0)
	for i := range s.messages {
		msg := &s.messages[i]
		between := (msg.SenderID == userID && msg.ReceiverID == partnerID) ||
			(msg.SenderID == partnerID && msg.ReceiverID == userID)
		if !between {
			continue
		}
		if msg.SenderID == partnerID && !msg.IsRead {
			msg.IsRead = true
			msg.Status = "read"
		}
		thread = append(thread, *msg)
	}
	sort.Slice(thread, func(i, j int) bool {
		if thread[i].CreatedAt.Equal(thread[j].CreatedAt) {
			return thread[i].ID < thread[j].ID
		}
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})
	return thread, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg StoredMessage) (StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextID
	s.nextID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Status == "" {
		msg.Status = "sent"
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

var _ Store = (*MemoryStore)(nil)
