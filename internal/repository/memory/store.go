// Package memory implements the repositories in process memory. It backs
// STORE_DRIVER=memory and the service tests.
//
// Commitment attempts take a per-gift mutex; their writes are buffered and
// applied together when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

// Store keeps every table in maps guarded by one RWMutex. Gift locks are
// held across a whole commitment attempt; the table mutex only around
// individual reads and the final apply.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]*models.User
	wishlists     map[int64]*models.Wishlist
	gifts         map[int64]*models.Gift
	reservations  map[int64]*models.Reservation
	contributions map[int64]*models.Contribution
	notifications map[int64]*models.Notification

	locksMu   sync.Mutex
	giftLocks map[int64]*sync.Mutex

	userSeq         *atomic.Int64
	wishlistSeq     *atomic.Int64
	giftSeq         *atomic.Int64
	reservationSeq  *atomic.Int64
	contributionSeq *atomic.Int64
	notificationSeq *atomic.Int64

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:           make(map[int64]*models.User),
		wishlists:       make(map[int64]*models.Wishlist),
		gifts:           make(map[int64]*models.Gift),
		reservations:    make(map[int64]*models.Reservation),
		contributions:   make(map[int64]*models.Contribution),
		notifications:   make(map[int64]*models.Notification),
		giftLocks:       make(map[int64]*sync.Mutex),
		userSeq:         atomic.NewInt64(0),
		wishlistSeq:     atomic.NewInt64(0),
		giftSeq:         atomic.NewInt64(0),
		reservationSeq:  atomic.NewInt64(0),
		contributionSeq: atomic.NewInt64(0),
		notificationSeq: atomic.NewInt64(0),
		now:             time.Now,
	}
}

func (s *Store) Commitments() repository.CommitmentStore { return (*commitmentStore)(s) }
func (s *Store) Wishlists() repository.WishlistRepository { return (*wishlistRepository)(s) }
func (s *Store) Users() repository.UserRepository { return (*userRepository)(s) }
func (s *Store) Notifications() repository.NotificationRepository { return (*notificationRepository)(s) }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Store) giftLock(giftID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.giftLocks[giftID]
	if !ok {
		l = &sync.Mutex{}
		s.giftLocks[giftID] = l
	}
	return l
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, repository.ErrNotFound)
}

type userRepository Store

func (r *userRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, fmt.Errorf("email %q: %w", user.Email, repository.ErrConflict)
		}
		if user.TelegramID != nil && u.TelegramID != nil && *u.TelegramID == *user.TelegramID {
			return nil, fmt.Errorf("telegram user %d: %w", *user.TelegramID, repository.ErrConflict)
		}
	}

	now := s.timestamp()
	user.ID = s.userSeq.Inc()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = copyUser(user)
	return user, nil
}

func (r *userRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return copyUser(u), nil
}

func (r *userRepository) GetByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return copyUser(u), nil
		}
	}
	return nil, notFound("telegram user", telegramID)
}

func (r *userRepository) LinkTelegram(_ context.Context, userID, telegramID, chatID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	for _, other := range s.users {
		if other.ID != userID && other.TelegramID != nil && *other.TelegramID == telegramID {
			return fmt.Errorf("telegram user %d: %w", telegramID, repository.ErrConflict)
		}
	}
	u.TelegramID = &telegramID
	u.TelegramChatID = &chatID
	u.UpdatedAt = s.timestamp()
	return nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.TelegramID != nil {
		v := *u.TelegramID
		c.TelegramID = &v
	}
	if u.TelegramChatID != nil {
		v := *u.TelegramChatID
		c.TelegramChatID = &v
	}
	return &c
}

type wishlistRepository Store

func (r *wishlistRepository) CreateWishlist(_ context.Context, wishlist *models.Wishlist) (*models.Wishlist, error) {
	if wishlist.ExpensiveThreshold < 0 {
		return nil, fmt.Errorf("expensive threshold must not be negative")
	}
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[wishlist.OwnerID]; !ok {
		return nil, notFound("user", wishlist.OwnerID)
	}
	now := s.timestamp()
	wishlist.ID = s.wishlistSeq.Inc()
	wishlist.CreatedAt = now
	wishlist.UpdatedAt = now
	s.wishlists[wishlist.ID] = copyWishlist(wishlist)
	return wishlist, nil
}

func (r *wishlistRepository) GetWishlist(_ context.Context, id int64) (*models.Wishlist, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wishlists[id]
	if !ok {
		return nil, notFound("wishlist", id)
	}
	return copyWishlist(w), nil
}

func (r *wishlistRepository) UpdateThreshold(_ context.Context, id int64, threshold int64) error {
	if threshold < 0 {
		return fmt.Errorf("expensive threshold must not be negative")
	}
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wishlists[id]
	if !ok {
		return notFound("wishlist", id)
	}
	w.ExpensiveThreshold = threshold
	w.UpdatedAt = s.timestamp()
	return nil
}

func (r *wishlistRepository) CreateGift(_ context.Context, gift *models.Gift) (*models.Gift, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wishlists[gift.WishlistID]; !ok {
		return nil, notFound("wishlist", gift.WishlistID)
	}
	now := s.timestamp()
	gift.ID = s.giftSeq.Inc()
	gift.CreatedAt = now
	gift.UpdatedAt = now
	s.gifts[gift.ID] = copyGift(gift)
	return gift, nil
}

func (r *wishlistRepository) GetGift(_ context.Context, id int64) (*models.Gift, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.gifts[id]
	if !ok {
		return nil, notFound("gift", id)
	}
	return copyGift(g), nil
}

func (r *wishlistRepository) UpdateGiftPrice(_ context.Context, id int64, price *int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gifts[id]
	if !ok {
		return notFound("gift", id)
	}
	g.Price = nil
	if price != nil {
		v := *price
		g.Price = &v
	}
	g.UpdatedAt = s.timestamp()
	return nil
}

func copyWishlist(w *models.Wishlist) *models.Wishlist {
	c := *w
	if w.EventDate != nil {
		v := *w.EventDate
		c.EventDate = &v
	}
	return &c
}

func copyGift(g *models.Gift) *models.Gift {
	c := *g
	if g.Price != nil {
		v := *g.Price
		c.Price = &v
	}
	return &c
}

type notificationRepository Store

func (r *notificationRepository) GetByID(_ context.Context, id int64) (*models.Notification, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, notFound("notification", id)
	}
	return copyNotification(n), nil
}

func (r *notificationRepository) ListByUser(_ context.Context, userID int64, limit int) ([]*models.Notification, error) {
	s := (*Store)(r)
	s.mu.RLock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, copyNotification(n))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepository) CountUnread(_ context.Context, userID int64) (int, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(_ context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return notFound("notification", id)
	}
	n.IsRead = true
	return nil
}

func (r *notificationRepository) MarkAllRead(_ context.Context, userID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (r *notificationRepository) ListUndelivered(_ context.Context, maxAttempts, limit int) ([]*models.Notification, error) {
	s := (*Store)(r)
	s.mu.RLock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.DeliveredAt == nil && n.DeliveryAttempts < maxAttempts {
			out = append(out, copyNotification(n))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepository) MarkDelivered(_ context.Context, id int64, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return notFound("notification", id)
	}
	delivered := at.UTC()
	n.DeliveredAt = &delivered
	n.LastError = ""
	return nil
}

func (r *notificationRepository) RecordDeliveryFailure(_ context.Context, id int64, reason string, deliveredChannels []string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return notFound("notification", id)
	}
	n.DeliveryAttempts++
	n.LastError = reason
	n.DeliveredChannels = append([]string(nil), deliveredChannels...)
	return nil
}

func copyNotification(n *models.Notification) *models.Notification {
	c := *n
	if n.DeliveredAt != nil {
		v := *n.DeliveredAt
		c.DeliveredAt = &v
	}
	c.DeliveredChannels = append([]string(nil), n.DeliveredChannels...)
	return &c
}
