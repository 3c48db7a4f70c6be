package memory

import (
	"context"
	"fmt"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

type commitmentStore Store

func (c *commitmentStore) WithGift(ctx context.Context, giftID int64, fn func(tx repository.CommitmentTx) error) error {
	s := (*Store)(c)
	lock := s.giftLock(giftID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.snapshot(giftID)
	if err != nil {
		return err
	}
	return s.run(ctx, snap, fn)
}

func (c *commitmentStore) WithReservation(ctx context.Context, reservationID int64, fn func(tx repository.CommitmentTx) error) error {
	s := (*Store)(c)
	s.mu.RLock()
	res, ok := s.reservations[reservationID]
	var giftID int64
	if ok {
		giftID = res.GiftID
	}
	s.mu.RUnlock()
	if !ok {
		return notFound("reservation", reservationID)
	}

	lock := s.giftLock(giftID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.snapshot(giftID)
	if err != nil {
		return err
	}
	// Cancelled between the lookup and the lock.
	if snap.Reservation == nil || snap.Reservation.ID != reservationID {
		return notFound("reservation", reservationID)
	}
	return s.run(ctx, snap, fn)
}

func (c *commitmentStore) LoadSnapshot(_ context.Context, giftID int64) (*models.GiftSnapshot, error) {
	return (*Store)(c).snapshot(giftID)
}

func (s *Store) snapshot(giftID int64) (*models.GiftSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.gifts[giftID]
	if !ok {
		return nil, notFound("gift", giftID)
	}
	w, ok := s.wishlists[g.WishlistID]
	if !ok {
		return nil, notFound("wishlist", g.WishlistID)
	}

	snap := &models.GiftSnapshot{
		Gift:     *copyGift(g),
		Wishlist: *copyWishlist(w),
	}
	for _, r := range s.reservations {
		if r.GiftID == giftID {
			c := *r
			snap.Reservation = &c
			break
		}
	}
	for _, ct := range s.contributions {
		if ct.GiftID == giftID {
			snap.Collected += ct.Amount
			snap.ContributionCount++
		}
	}
	return snap, nil
}

func (s *Store) run(ctx context.Context, snap *models.GiftSnapshot, fn func(tx repository.CommitmentTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &commitmentTx{
		s:        s,
		snap:     snap,
		reserved: snap.Reservation != nil,
		deleted:  make(map[int64]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.apply()
}

// commitmentTx buffers writes until the callback returns.
type commitmentTx struct {
	s    *Store
	snap *models.GiftSnapshot

	reserved      bool
	reservations  []*models.Reservation
	deleted       map[int64]bool
	contributions []*models.Contribution
	notifications []*models.Notification
}

func (t *commitmentTx) Snapshot() *models.GiftSnapshot { return t.snap }

func (t *commitmentTx) InsertReservation(_ context.Context, reservation *models.Reservation) (*models.Reservation, error) {
	if reservation.GiftID != t.snap.Gift.ID {
		return nil, fmt.Errorf("reservation for gift %d outside locked gift %d", reservation.GiftID, t.snap.Gift.ID)
	}
	if t.reserved {
		return nil, fmt.Errorf("gift %d already reserved: %w", reservation.GiftID, repository.ErrConflict)
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = t.s.timestamp()
	}
	reservation.ID = t.s.reservationSeq.Inc()
	c := *reservation
	t.reservations = append(t.reservations, &c)
	t.reserved = true
	return reservation, nil
}

func (t *commitmentTx) DeleteReservation(_ context.Context, id int64) error {
	for i, r := range t.reservations {
		if r.ID == id {
			t.reservations = append(t.reservations[:i], t.reservations[i+1:]...)
			t.reserved = false
			return nil
		}
	}
	if t.snap.Reservation == nil || t.snap.Reservation.ID != id || t.deleted[id] {
		return notFound("reservation", id)
	}
	t.deleted[id] = true
	t.reserved = false
	return nil
}

func (t *commitmentTx) InsertContribution(_ context.Context, contribution *models.Contribution) (*models.Contribution, error) {
	if contribution.GiftID != t.snap.Gift.ID {
		return nil, fmt.Errorf("contribution for gift %d outside locked gift %d", contribution.GiftID, t.snap.Gift.ID)
	}
	if contribution.Amount <= 0 {
		return nil, fmt.Errorf("contribution amount must be positive")
	}
	if contribution.CreatedAt.IsZero() {
		contribution.CreatedAt = t.s.timestamp()
	}
	contribution.ID = t.s.contributionSeq.Inc()
	c := *contribution
	t.contributions = append(t.contributions, &c)
	return contribution, nil
}

func (t *commitmentTx) InsertNotification(_ context.Context, n *models.Notification) (*models.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = t.s.timestamp()
	}
	n.ID = t.s.notificationSeq.Inc()
	t.notifications = append(t.notifications, copyNotification(n))
	return n, nil
}

func (t *commitmentTx) apply() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range t.notifications {
		if _, ok := s.users[n.UserID]; !ok {
			return notFound("user", n.UserID)
		}
	}
	for id := range t.deleted {
		delete(s.reservations, id)
	}
	for _, r := range t.reservations {
		s.reservations[r.ID] = r
	}
	for _, c := range t.contributions {
		s.contributions[c.ID] = c
	}
	for _, n := range t.notifications {
		s.notifications[n.ID] = n
	}
	return nil
}
