package stubserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore persists stub messages in Postgres via sqlx. It exists so a
// long-running stub backend survives restarts; tests use MemoryStore.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects and applies migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS stub_users (
            id INT PRIMARY KEY,
            name TEXT NOT NULL,
            avatar TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS stub_messages (
            id BIGSERIAL PRIMARY KEY,
            sender_id INT NOT NULL,
            receiver_id INT NOT NULL,
            text TEXT NOT NULL,
            message_type TEXT NOT NULL DEFAULT 'text',
            media_url TEXT NOT NULL DEFAULT '',
            attachment_name TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'sent',
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// AddUser upserts an account.
func (s *PostgresStore) AddUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stub_users (id, name, avatar) VALUES ($1, $2, $3)
         ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, avatar=EXCLUDED.avatar`,
		u.ID, u.Name, u.Avatar)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id int) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT id, name, avatar FROM stub_users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID int) ([]ConversationSummary, error) {
	query := `SELECT id, sender_id, receiver_id, text, message_type, media_url, attachment_name, status, is_read, created_at
        FROM stub_messages
        WHERE sender_id=$1 OR receiver_id=$1
        ORDER BY created_at DESC, id DESC`
	var msgs []StoredMessage
	if err := s.db.SelectContext(ctx, &msgs, query, userID); err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0)
	seen := make(map[int]int)
	for _, msg := range msgs {
		partnerID := msg.ReceiverID
		if msg.ReceiverID == userID {
			partnerID = msg.SenderID
		}
		idx, ok := seen[partnerID]
		if !ok {
			partner, err := s.GetUser(ctx, partnerID)
			if err != nil {
				if errors.Is(err, ErrUserNotFound) {
					continue
				}
				return nil, err
			}
			seen[partnerID] = len(summaries)
			idx = len(summaries)
			summaries = append(summaries, ConversationSummary{Partner: partner, Last: msg})
		}
		if msg.ReceiverID == userID && !msg.IsRead {
			summaries[idx].Unread++
		}
	}
	return summaries, nil
}

func (s *PostgresStore) ListThread(ctx context.Context, userID, partnerID int) ([]StoredMessage, error) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE stub_messages SET is_read=TRUE, status='read'
         WHERE sender_id=$1 AND receiver_id=$2 AND is_read=FALSE`,
		partnerID, userID); err != nil {
		return nil, err
	}

	query := `SELECT id, sender_id, receiver_id, text, message_type, media_url, attachment_name, status, is_read, created_at
        FROM stub_messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC`
	var msgs []StoredMessage
	err := s.db.SelectContext(ctx, &msgs, query, userID, partnerID)
	return msgs, err
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg StoredMessage) (StoredMessage, error) {
	status := msg.Status
	if status == "" {
		status = "sent"
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO stub_messages (sender_id, receiver_id, text, message_type, media_url, attachment_name, status)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id, created_at`,
		msg.SenderID, msg.ReceiverID, msg.Text, msg.MessageType, msg.MediaURL, msg.AttachmentName, status).
		Scan(&msg.ID, &msg.CreatedAt)
	msg.Status = status
	return msg, err
}

var _ Store = (*PostgresStore)(nil)
