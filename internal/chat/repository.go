package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"transcendence/infrastructure"
)

type Repository interface {
	// Chat operations
	CreateChat(ctx context.Context, chat *Chat, members []*Membership) error
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	RenameChat(ctx context.Context, chatID, name string) error
	UpdateAccess(ctx context.Context, chatID string, accessibility Accessibility, password string) error
	UpdatePassword(ctx context.Context, chatID, password string) error
	DirectChatBetween(ctx context.Context, a, b int64) (*Chat, error)
	ChatsForUser(ctx context.Context, userID int64) ([]*Chat, error)

	// Membership operations
	AddMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, chatID string, userID int64) (*Membership, error)
	ListMemberships(ctx context.Context, chatID string) ([]*Membership, error)
	RemoveMembership(ctx context.Context, chatID string, userID int64) error
	UpdateRole(ctx context.Context, chatID string, userID int64, role Role) error
	UpdateMutedUntil(ctx context.Context, chatID string, userID int64, until *time.Time) error
	UpdateBannedUntil(ctx context.Context, chatID string, userID int64, until *time.Time) error
	UpdateLastRead(ctx context.Context, chatID string, userID int64, messageID string) error

	// Message operations
	CreateMessage(ctx context.Context, message *Message) error
	GetMessage(ctx context.Context, messageID string) (*Message, error)
	GetChatMessages(ctx context.Context, chatID string, limit, offset int) ([]*Message, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateChat(ctx context.Context, chat *Chat, members []*Membership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (chat_id, kind, chat_name, accessibility, password, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, chat.ID, chat.Kind, chat.Name, chat.Accessibility, chat.Password, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}

	for _, m := range members {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_members (chat_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, m.ChatID, m.UserID, m.Role, m.JoinedAt)
		if err != nil {
			return fmt.Errorf("failed to insert membership: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	err := r.db.QueryRowContext(ctx, `
		SELECT chat_id, kind, chat_name, accessibility, password, created_at
		FROM chats WHERE chat_id = $1
	`, chatID).Scan(&chat.ID, &chat.Kind, &chat.Name, &chat.Accessibility, &chat.Password, &chat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, infrastructure.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *PostgresRepository) RenameChat(ctx context.Context, chatID, name string) error {
	return r.mustUpdate(ctx, `UPDATE chats SET chat_name = $1 WHERE chat_id = $2`, name, chatID)
}

func (r *PostgresRepository) UpdateAccess(ctx context.Context, chatID string, accessibility Accessibility, password string) error {
	return r.mustUpdate(ctx, `UPDATE chats SET accessibility = $1, password = $2 WHERE chat_id = $3`,
		accessibility, password, chatID)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, chatID, password string) error {
	return r.mustUpdate(ctx, `UPDATE chats SET password = $1 WHERE chat_id = $2`, password, chatID)
}

// DirectChatBetween returns the direct chat both users are members of, or
// ErrNotFound when they share none. The two sides must be distinct users; a
// single membership row never satisfies both joins.
func (r *PostgresRepository) DirectChatBetween(ctx context.Context, a, b int64) (*Chat, error) {
	var chat Chat
	err := r.db.QueryRowContext(ctx, `
		SELECT c.chat_id, c.kind, c.chat_name, c.accessibility, c.password, c.created_at
		FROM chats c
		JOIN chat_members ma ON ma.chat_id = c.chat_id AND ma.user_id = $1
		JOIN chat_members mb ON mb.chat_id = c.chat_id AND mb.user_id = $2
		WHERE c.kind = 'direct' AND ma.user_id <> mb.user_id
		LIMIT 1
	`, a, b).Scan(&chat.ID, &chat.Kind, &chat.Name, &chat.Accessibility, &chat.Password, &chat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, infrastructure.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *PostgresRepository) ChatsForUser(ctx context.Context, userID int64) ([]*Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.chat_id, c.kind, c.chat_name, c.accessibility, c.password, c.created_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.chat_id
		WHERE m.user_id = $1
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.Kind, &chat.Name, &chat.Accessibility, &chat.Password, &chat.CreatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, &chat)
	}
	return chats, rows.Err()
}

func (r *PostgresRepository) AddMembership(ctx context.Context, m *Membership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_members (chat_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, m.ChatID, m.UserID, m.Role, m.JoinedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return infrastructure.ErrConflict
	}
	return err
}

func (r *PostgresRepository) GetMembership(ctx context.Context, chatID string, userID int64) (*Membership, error) {
	var m Membership
	err := r.db.QueryRowContext(ctx, `
		SELECT chat_id, user_id, role, muted_until, banned_until, last_read_message_id, joined_at
		FROM chat_members WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID).Scan(&m.ChatID, &m.UserID, &m.Role, &m.MutedUntil, &m.BannedUntil, &m.LastReadMessageID, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, infrastructure.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresRepository) ListMemberships(ctx context.Context, chatID string) ([]*Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, user_id, role, muted_until, banned_until, last_read_message_id, joined_at
		FROM chat_members WHERE chat_id = $1
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ChatID, &m.UserID, &m.Role, &m.MutedUntil, &m.BannedUntil, &m.LastReadMessageID, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (r *PostgresRepository) RemoveMembership(ctx context.Context, chatID string, userID int64) error {
	return r.mustUpdate(ctx, `DELETE FROM chat_members WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, chatID string, userID int64, role Role) error {
	return r.mustUpdate(ctx, `UPDATE chat_members SET role = $1 WHERE chat_id = $2 AND user_id = $3`,
		role, chatID, userID)
}

func (r *PostgresRepository) UpdateMutedUntil(ctx context.Context, chatID string, userID int64, until *time.Time) error {
	return r.mustUpdate(ctx, `UPDATE chat_members SET muted_until = $1 WHERE chat_id = $2 AND user_id = $3`,
		until, chatID, userID)
}

func (r *PostgresRepository) UpdateBannedUntil(ctx context.Context, chatID string, userID int64, until *time.Time) error {
	return r.mustUpdate(ctx, `UPDATE chat_members SET banned_until = $1 WHERE chat_id = $2 AND user_id = $3`,
		until, chatID, userID)
}

func (r *PostgresRepository) UpdateLastRead(ctx context.Context, chatID string, userID int64, messageID string) error {
	return r.mustUpdate(ctx, `UPDATE chat_members SET last_read_message_id = $1 WHERE chat_id = $2 AND user_id = $3`,
		messageID, chatID, userID)
}

func (r *PostgresRepository) CreateMessage(ctx context.Context, message *Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, chat_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, message.ID, message.ChatID, message.SenderID, message.Content, message.CreatedAt)
	return err
}

func (r *PostgresRepository) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	var msg Message
	err := r.db.QueryRowContext(ctx, `
		SELECT message_id, chat_id, sender_id, content, created_at
		FROM messages WHERE message_id = $1
	`, messageID).Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, infrastructure.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *PostgresRepository) GetChatMessages(ctx context.Context, chatID string, limit, offset int) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, chat_id, sender_id, content, created_at
		FROM messages WHERE chat_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// mustUpdate runs a statement that addresses a single row and maps "zero rows
// touched" to ErrNotFound.
func (r *PostgresRepository) mustUpdate(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return infrastructure.ErrNotFound
	}
	return nil
}
