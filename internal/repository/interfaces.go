package repository

import (
	"context"
	"time"

	"github.com/Kerhoff/wishpool/internal/models"
)

// CommitmentTx is the write surface available while a gift's commitment
// state is locked. All writes become visible together when the enclosing
// callback returns nil and are discarded otherwise.
type CommitmentTx interface {
	// Snapshot returns the gift state read after the lock was taken.
	Snapshot() *models.GiftSnapshot
	InsertReservation(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error)
	DeleteReservation(ctx context.Context, id int64) error
	InsertContribution(ctx context.Context, contribution *models.Contribution) (*models.Contribution, error)
	InsertNotification(ctx context.Context, notification *models.Notification) (*models.Notification, error)
}

// CommitmentStore serializes commitment attempts per gift. Attempts against
// different gifts never wait on each other.
type CommitmentStore interface {
	// WithGift locks giftID, loads its snapshot and runs fn in one atomic
	// unit. It returns ErrNotFound when the gift does not exist.
	WithGift(ctx context.Context, giftID int64, fn func(tx CommitmentTx) error) error
	// WithReservation resolves the gift of reservationID and behaves like
	// WithGift. The snapshot's Reservation is the requested one. It returns
	// ErrNotFound when the reservation does not exist.
	WithReservation(ctx context.Context, reservationID int64, fn func(tx CommitmentTx) error) error
	// LoadSnapshot reads a gift snapshot without locking it.
	LoadSnapshot(ctx context.Context, giftID int64) (*models.GiftSnapshot, error)
}

// WishlistRepository defines wishlist and gift persistence used by seeding
// and by owners editing prices and thresholds.
type WishlistRepository interface {
	CreateWishlist(ctx context.Context, wishlist *models.Wishlist) (*models.Wishlist, error)
	GetWishlist(ctx context.Context, id int64) (*models.Wishlist, error)
	UpdateThreshold(ctx context.Context, id int64, threshold int64) error
	CreateGift(ctx context.Context, gift *models.Gift) (*models.Gift, error)
	GetGift(ctx context.Context, id int64) (*models.Gift, error)
	UpdateGiftPrice(ctx context.Context, id int64, price *int64) error
}

// UserRepository defines user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	LinkTelegram(ctx context.Context, userID, telegramID, chatID int64) error
}

// NotificationRepository defines the owner inbox and the delivery outbox.
type NotificationRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Notification, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, userID int64) error
	ListUndelivered(ctx context.Context, maxAttempts, limit int) ([]*models.Notification, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
	// RecordDeliveryFailure counts a failed attempt and stores the channels
	// that did accept the notification so retries can skip them.
	RecordDeliveryFailure(ctx context.Context, id int64, reason string, deliveredChannels []string) error
}

// Store bundles every repository backed by one storage engine.
type Store interface {
	Commitments() CommitmentStore
	Wishlists() WishlistRepository
	Users() UserRepository
	Notifications() NotificationRepository
	Close() error
}
