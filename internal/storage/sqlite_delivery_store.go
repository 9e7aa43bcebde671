package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultListLimit = 50

// SQLiteDeliveryStore implements DeliveryStore backed by SQLite.
type SQLiteDeliveryStore struct {
	db *sql.DB
}

// NewSQLiteDeliveryStore returns a new SQLiteDeliveryStore.
func NewSQLiteDeliveryStore(db *sql.DB) *SQLiteDeliveryStore {
	return &SQLiteDeliveryStore{db: db}
}

// Record inserts a delivery log row.
func (s *SQLiteDeliveryStore) Record(ctx context.Context, rec DeliveryRecord) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_log (email_id, notification_id, event, status,
			external_message_id, error_message, retry_count, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EmailID, rec.NotificationID, rec.Event, rec.Status,
		rec.ExternalMessageID, rec.ErrorMessage, rec.RetryCount, rec.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}
	return nil
}

// List returns the most recent rows, newest first.
func (s *SQLiteDeliveryStore) List(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.query(ctx, `
		SELECT id, email_id, notification_id, event, status,
			external_message_id, error_message, retry_count, occurred_at
		FROM delivery_log
		ORDER BY id DESC
		LIMIT ?`, limit)
}

// ListByNotification returns the rows for one correlation id, oldest first.
// Rows written in the same instant keep their insert order.
func (s *SQLiteDeliveryStore) ListByNotification(ctx context.Context, notificationID string) ([]DeliveryRecord, error) {
	return s.query(ctx, `
		SELECT id, email_id, notification_id, event, status,
			external_message_id, error_message, retry_count, occurred_at
		FROM delivery_log
		WHERE notification_id = ?
		ORDER BY occurred_at ASC, id ASC`, notificationID)
}

// Prune deletes rows that occurred before cutoff.
func (s *SQLiteDeliveryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM delivery_log WHERE occurred_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning delivery log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}

func (s *SQLiteDeliveryStore) query(ctx context.Context, q string, args ...any) (_ []DeliveryRecord, err error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery log: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing rows: %w", cerr))
		}
	}()

	records := []DeliveryRecord{}
	for rows.Next() {
		var r DeliveryRecord
		if err := rows.Scan(&r.ID, &r.EmailID, &r.NotificationID, &r.Event, &r.Status,
			&r.ExternalMessageID, &r.ErrorMessage, &r.RetryCount, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning delivery log row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery log rows: %w", err)
	}
	return records, nil
}
