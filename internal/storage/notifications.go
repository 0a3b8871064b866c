package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// NotificationRecord is a notification kept in the inbox.
type NotificationRecord struct {
	ID        string
	Title     string
	Message   string
	CreatedAt time.Time
	ReadAt    *time.Time
}

// InsertNotification stores a notification. CreatedAt defaults to now.
func InsertNotification(ctx context.Context, db *sql.DB, n NotificationRecord) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO notifications (id, title, message, created_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.Title, n.Message, n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns notifications newest first. If unreadOnly is
// true, read ones are skipped. limit <= 0 means no limit.
func ListNotifications(ctx context.Context, db *sql.DB, unreadOnly bool, limit int) ([]NotificationRecord, error) {
	query := `SELECT id, title, message, created_at, read_at FROM notifications WHERE 1=1`
	var args []interface{}
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var result []NotificationRecord
	for rows.Next() {
		var n NotificationRecord
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.CreatedAt, &readAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return result, nil
}

// MarkNotificationsRead marks every unread notification as read and returns
// how many were updated.
func MarkNotificationsRead(ctx context.Context, db *sql.DB) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE notifications SET read_at = ? WHERE read_at IS NULL`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return res.RowsAffected()
}
