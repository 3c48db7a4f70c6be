package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

type notificationRepository struct {
	s *Store
}

const notificationColumns = `id, user_id, type, title, body, metadata, is_read, created_at,
		       delivered_at, delivery_attempts, last_error, delivered_channels`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	var (
		typ         string
		metadata    []byte
		deliveredAt sql.NullTime
		channels    string
	)
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&typ,
		&n.Title,
		&n.Body,
		&metadata,
		&n.IsRead,
		&n.CreatedAt,
		&deliveredAt,
		&n.DeliveryAttempts,
		&n.LastError,
		&channels,
	); err != nil {
		return nil, err
	}
	n.Type = models.NotificationType(typ)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode notification metadata: %w", err)
		}
	}
	if deliveredAt.Valid {
		n.DeliveredAt = &deliveredAt.Time
	}
	if channels != "" {
		n.DeliveredChannels = strings.Split(channels, ",")
	}
	return n, nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	row := r.s.db.QueryRowContext(ctx, r.s.q(`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`), id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification %d: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification by ID: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Notification, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(`
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	return collectNotifications(rows)
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.s.db.QueryRowContext(ctx, r.s.q(`
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`), userID, false).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id int64) error {
	result, err := r.s.db.ExecContext(ctx, r.s.q(`UPDATE notifications SET is_read = ? WHERE id = ?`), true, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireAffected(result, "notification", id)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`), true, userID, false)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListUndelivered(ctx context.Context, maxAttempts, limit int) ([]*models.Notification, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(`
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE delivered_at IS NULL AND delivery_attempts < ?
		ORDER BY id ASC
		LIMIT ?`), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query undelivered notifications: %w", err)
	}
	return collectNotifications(rows)
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	result, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE notifications SET delivered_at = ?, last_error = '' WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark notification delivered: %w", err)
	}
	return requireAffected(result, "notification", id)
}

func (r *notificationRepository) RecordDeliveryFailure(ctx context.Context, id int64, reason string, deliveredChannels []string) error {
	result, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE notifications
		SET delivery_attempts = delivery_attempts + 1, last_error = ?, delivered_channels = ?
		WHERE id = ?`), reason, strings.Join(deliveredChannels, ","), id)
	if err != nil {
		return fmt.Errorf("failed to record delivery failure: %w", err)
	}
	return requireAffected(result, "notification", id)
}

func collectNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
