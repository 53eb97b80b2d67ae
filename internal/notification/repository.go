package notification

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository interface {
	// ReplacePending atomically deletes any pending notification with the
	// same (sender, recipient, type) triple and inserts the new one.
	ReplacePending(ctx context.Context, n *Notification) error
	// DeletePending removes all pending notifications matching the triple and
	// returns the sender ids of the deleted rows.
	DeletePending(ctx context.Context, recipientID, senderID int64, typ Type) ([]int64, error)
	// PendingFor returns every pending notification addressed to the user.
	PendingFor(ctx context.Context, recipientID int64) ([]*Notification, error)
	// PendingSenders returns the distinct senders of pending notifications of
	// the given type addressed to the user.
	PendingSenders(ctx context.Context, recipientID int64, typ Type) ([]int64, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ReplacePending(ctx context.Context, n *Notification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM notifications WHERE recipient_id = $1 AND sender_id = $2 AND type = $3
	`, n.RecipientID, n.SenderID, n.Type)
	if err != nil {
		return fmt.Errorf("failed to delete replaced notification: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (notification_id, recipient_id, sender_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.RecipientID, n.SenderID, n.Type, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeletePending(ctx context.Context, recipientID, senderID int64, typ Type) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM notifications
		WHERE recipient_id = $1 AND sender_id = $2 AND type = $3
		RETURNING sender_id
	`, recipientID, senderID, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var senders []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		senders = append(senders, id)
	}
	return senders, rows.Err()
}

func (r *PostgresRepository) PendingFor(ctx context.Context, recipientID int64) ([]*Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT notification_id, recipient_id, sender_id, type, created_at
		FROM notifications WHERE recipient_id = $1 ORDER BY created_at
	`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.CreatedAt); err != nil {
			return nil, err
		}
		pending = append(pending, &n)
	}
	return pending, rows.Err()
}

func (r *PostgresRepository) PendingSenders(ctx context.Context, recipientID int64, typ Type) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT sender_id FROM notifications
		WHERE recipient_id = $1 AND type = $2
	`, recipientID, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var senders []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		senders = append(senders, id)
	}
	return senders, rows.Err()
}
