package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

type wishlistRepository struct {
	s *Store
}

func (r *wishlistRepository) CreateWishlist(ctx context.Context, wishlist *models.Wishlist) (*models.Wishlist, error) {
	if wishlist.ExpensiveThreshold < 0 {
		return nil, fmt.Errorf("expensive threshold must not be negative")
	}

	now := r.s.timestamp()
	wishlist.CreatedAt = now
	wishlist.UpdatedAt = now

	err := r.s.db.QueryRowContext(ctx, r.s.q(`
		INSERT INTO wishlists (owner_id, title, expensive_threshold, event_date, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		wishlist.OwnerID,
		wishlist.Title,
		wishlist.ExpensiveThreshold,
		nullTime(wishlist.EventDate),
		wishlist.IsPublic,
		wishlist.CreatedAt,
		wishlist.UpdatedAt,
	).Scan(&wishlist.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create wishlist: %w", err)
	}

	return wishlist, nil
}

func (r *wishlistRepository) GetWishlist(ctx context.Context, id int64) (*models.Wishlist, error) {
	wishlist := &models.Wishlist{}
	var eventDate sql.NullTime
	err := r.s.db.QueryRowContext(ctx, r.s.q(`
		SELECT id, owner_id, title, expensive_threshold, event_date, is_public, created_at, updated_at
		FROM wishlists
		WHERE id = ?`), id).Scan(
		&wishlist.ID,
		&wishlist.OwnerID,
		&wishlist.Title,
		&wishlist.ExpensiveThreshold,
		&eventDate,
		&wishlist.IsPublic,
		&wishlist.CreatedAt,
		&wishlist.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("wishlist %d: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wishlist by ID: %w", err)
	}
	if eventDate.Valid {
		wishlist.EventDate = &eventDate.Time
	}
	return wishlist, nil
}

// UpdateThreshold changes the expensive threshold. On PostgreSQL the update
// waits for in-flight commitment attempts on the wishlist's gifts, which hold
// a share lock on the wishlist row.
func (r *wishlistRepository) UpdateThreshold(ctx context.Context, id int64, threshold int64) error {
	if threshold < 0 {
		return fmt.Errorf("expensive threshold must not be negative")
	}
	result, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE wishlists
		SET expensive_threshold = ?, updated_at = ?
		WHERE id = ?`), threshold, r.s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to update wishlist threshold: %w", err)
	}
	return requireAffected(result, "wishlist", id)
}

func (r *wishlistRepository) CreateGift(ctx context.Context, gift *models.Gift) (*models.Gift, error) {
	now := r.s.timestamp()
	gift.CreatedAt = now
	gift.UpdatedAt = now

	err := r.s.db.QueryRowContext(ctx, r.s.q(`
		INSERT INTO gifts (wishlist_id, title, price, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		gift.WishlistID,
		gift.Title,
		nullInt64(gift.Price),
		gift.URL,
		gift.CreatedAt,
		gift.UpdatedAt,
	).Scan(&gift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create gift: %w", err)
	}

	return gift, nil
}

func (r *wishlistRepository) GetGift(ctx context.Context, id int64) (*models.Gift, error) {
	gift := &models.Gift{}
	var price sql.NullInt64
	err := r.s.db.QueryRowContext(ctx, r.s.q(`
		SELECT id, wishlist_id, title, price, url, created_at, updated_at
		FROM gifts
		WHERE id = ?`), id).Scan(
		&gift.ID,
		&gift.WishlistID,
		&gift.Title,
		&price,
		&gift.URL,
		&gift.CreatedAt,
		&gift.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("gift %d: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get gift by ID: %w", err)
	}
	if price.Valid {
		gift.Price = &price.Int64
	}
	return gift, nil
}

func (r *wishlistRepository) UpdateGiftPrice(ctx context.Context, id int64, price *int64) error {
	result, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE gifts
		SET price = ?, updated_at = ?
		WHERE id = ?`), nullInt64(price), r.s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to update gift price: %w", err)
	}
	return requireAffected(result, "gift", id)
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}
