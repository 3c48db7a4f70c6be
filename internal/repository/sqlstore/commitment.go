package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

type commitmentStore struct {
	s *Store
}

const snapshotQuery = `
		SELECT g.id, g.wishlist_id, g.title, g.price, g.url, g.created_at, g.updated_at,
		       w.id, w.owner_id, w.title, w.expensive_threshold, w.event_date, w.is_public,
		       w.created_at, w.updated_at
		FROM gifts g
		JOIN wishlists w ON w.id = g.wishlist_id
		WHERE g.id = ?`

// Locks the gift row for writing and the wishlist row against threshold
// edits for the rest of the transaction.
const postgresSnapshotLock = `
		FOR UPDATE OF g FOR SHARE OF w`

func (c *commitmentStore) WithGift(ctx context.Context, giftID int64, fn func(tx repository.CommitmentTx) error) error {
	return c.s.inTx(ctx, func(tx *sql.Tx) error {
		snap, err := c.s.loadSnapshot(ctx, tx, giftID, true)
		if err != nil {
			return err
		}
		return fn(&commitmentTx{s: c.s, tx: tx, snap: snap})
	})
}

func (c *commitmentStore) WithReservation(ctx context.Context, reservationID int64, fn func(tx repository.CommitmentTx) error) error {
	return c.s.inTx(ctx, func(tx *sql.Tx) error {
		var giftID int64
		err := tx.QueryRowContext(ctx, c.s.q(`SELECT gift_id FROM reservations WHERE id = ?`), reservationID).Scan(&giftID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("reservation %d: %w", reservationID, repository.ErrNotFound)
			}
			return fmt.Errorf("failed to resolve reservation gift: %w", err)
		}

		snap, err := c.s.loadSnapshot(ctx, tx, giftID, true)
		if err != nil {
			return err
		}
		// Cancelled between the lookup and the lock.
		if snap.Reservation == nil || snap.Reservation.ID != reservationID {
			return fmt.Errorf("reservation %d: %w", reservationID, repository.ErrNotFound)
		}
		return fn(&commitmentTx{s: c.s, tx: tx, snap: snap})
	})
}

func (c *commitmentStore) LoadSnapshot(ctx context.Context, giftID int64) (*models.GiftSnapshot, error) {
	return c.s.loadSnapshot(ctx, c.s.db, giftID, false)
}

func (s *Store) loadSnapshot(ctx context.Context, q queryer, giftID int64, lock bool) (*models.GiftSnapshot, error) {
	query := snapshotQuery
	if lock && s.dialect == Postgres {
		query += postgresSnapshotLock
	}

	snap := &models.GiftSnapshot{}
	var (
		price     sql.NullInt64
		eventDate sql.NullTime
	)
	err := q.QueryRowContext(ctx, s.q(query), giftID).Scan(
		&snap.Gift.ID,
		&snap.Gift.WishlistID,
		&snap.Gift.Title,
		&price,
		&snap.Gift.URL,
		&snap.Gift.CreatedAt,
		&snap.Gift.UpdatedAt,
		&snap.Wishlist.ID,
		&snap.Wishlist.OwnerID,
		&snap.Wishlist.Title,
		&snap.Wishlist.ExpensiveThreshold,
		&eventDate,
		&snap.Wishlist.IsPublic,
		&snap.Wishlist.CreatedAt,
		&snap.Wishlist.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("gift %d: %w", giftID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load gift snapshot: %w", err)
	}
	if price.Valid {
		snap.Gift.Price = &price.Int64
	}
	if eventDate.Valid {
		snap.Wishlist.EventDate = &eventDate.Time
	}

	res := &models.Reservation{}
	err = q.QueryRowContext(ctx, s.q(`
		SELECT id, gift_id, user_id, created_at
		FROM reservations
		WHERE gift_id = ?`), giftID).Scan(&res.ID, &res.GiftID, &res.UserID, &res.CreatedAt)
	switch {
	case err == nil:
		snap.Reservation = res
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("failed to load gift reservation: %w", err)
	}

	err = q.QueryRowContext(ctx, s.q(`
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM contributions
		WHERE gift_id = ?`), giftID).Scan(&snap.Collected, &snap.ContributionCount)
	if err != nil {
		return nil, fmt.Errorf("failed to sum gift contributions: %w", err)
	}

	return snap, nil
}

type commitmentTx struct {
	s    *Store
	tx   *sql.Tx
	snap *models.GiftSnapshot
}

func (t *commitmentTx) Snapshot() *models.GiftSnapshot { return t.snap }

func (t *commitmentTx) InsertReservation(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error) {
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = t.s.timestamp()
	}
	err := t.tx.QueryRowContext(ctx, t.s.q(`
		INSERT INTO reservations (gift_id, user_id, created_at)
		VALUES (?, ?, ?)
		RETURNING id`),
		reservation.GiftID,
		reservation.UserID,
		reservation.CreatedAt,
	).Scan(&reservation.ID)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to create reservation: %w", err))
	}
	return reservation, nil
}

func (t *commitmentTx) DeleteReservation(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, t.s.q(`DELETE FROM reservations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	return requireAffected(result, "reservation", id)
}

func (t *commitmentTx) InsertContribution(ctx context.Context, contribution *models.Contribution) (*models.Contribution, error) {
	if contribution.CreatedAt.IsZero() {
		contribution.CreatedAt = t.s.timestamp()
	}
	err := t.tx.QueryRowContext(ctx, t.s.q(`
		INSERT INTO contributions (gift_id, user_id, amount, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		contribution.GiftID,
		contribution.UserID,
		contribution.Amount,
		contribution.CreatedAt,
	).Scan(&contribution.ID)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to create contribution: %w", err))
	}
	return contribution, nil
}

func (t *commitmentTx) InsertNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	return t.s.insertNotification(ctx, t.tx, n)
}

func (s *Store) insertNotification(ctx context.Context, q queryer, n *models.Notification) (*models.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.timestamp()
	}
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification metadata: %w", err)
	}
	err = q.QueryRowContext(ctx, s.q(`
		INSERT INTO notifications (user_id, type, title, body, metadata, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		n.UserID,
		string(n.Type),
		n.Title,
		n.Body,
		string(metadata),
		n.IsRead,
		n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to create notification: %w", err))
	}
	return n, nil
}
