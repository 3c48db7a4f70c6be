package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

// Factory returns an empty store for one test.
type Factory func(t *testing.T) repository.Store

var errAbort = errors.New("abort")

// Run executes the repository contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("WithGiftMissing", func(t *testing.T) { testWithGiftMissing(t, newStore(t)) })
	t.Run("WithGiftSnapshot", func(t *testing.T) { testWithGiftSnapshot(t, newStore(t)) })
	t.Run("WithGiftCommits", func(t *testing.T) { testWithGiftCommits(t, newStore(t)) })
	t.Run("WithGiftRollsBack", func(t *testing.T) { testWithGiftRollsBack(t, newStore(t)) })
	t.Run("UniqueReservation", func(t *testing.T) { testUniqueReservation(t, newStore(t)) })
	t.Run("WithReservation", func(t *testing.T) { testWithReservation(t, newStore(t)) })
	t.Run("SerializedContributions", func(t *testing.T) { testSerializedContributions(t, newStore(t)) })
	t.Run("SnapshotSeesThresholdEdits", func(t *testing.T) { testSnapshotSeesThresholdEdits(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("NotificationInbox", func(t *testing.T) { testNotificationInbox(t, newStore(t)) })
	t.Run("NotificationOutbox", func(t *testing.T) { testNotificationOutbox(t, newStore(t)) })
}

func testWithGiftMissing(t *testing.T, store repository.Store) {
	called := false
	err := store.Commitments().WithGift(context.Background(), 987654, func(repository.CommitmentTx) error {
		called = true
		return nil
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if called {
		t.Fatal("callback must not run for a missing gift")
	}
}

func testWithGiftSnapshot(t *testing.T, store repository.Store) {
	f := Seed(t, store, nil)
	err := store.Commitments().WithGift(context.Background(), f.Expensive.ID, func(tx repository.CommitmentTx) error {
		s := tx.Snapshot()
		if s.Gift.ID != f.Expensive.ID || s.Gift.WishlistID != f.Wishlist.ID {
			t.Errorf("gift: %+v", s.Gift)
		}
		if s.OwnerID() != f.Owner.ID {
			t.Errorf("owner: want=%d got=%d", f.Owner.ID, s.OwnerID())
		}
		if s.Wishlist.ExpensiveThreshold != Threshold {
			t.Errorf("threshold: %d", s.Wishlist.ExpensiveThreshold)
		}
		if s.Gift.Price == nil || *s.Gift.Price != ExpensivePrice {
			t.Errorf("price: %v", s.Gift.Price)
		}
		if s.Reservation != nil || s.Collected != 0 || s.ContributionCount != 0 {
			t.Errorf("expected empty commitment state: %+v", s)
		}
		if s.Classification() != models.ClassificationExpensive {
			t.Errorf("classification: %s", s.Classification())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with gift: %v", err)
	}

	err = store.Commitments().WithGift(context.Background(), f.Unpriced.ID, func(tx repository.CommitmentTx) error {
		if tx.Snapshot().Gift.Price != nil {
			t.Errorf("expected nil price")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with unpriced gift: %v", err)
	}
}

func testWithGiftCommits(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)

	var created *models.Reservation
	err := store.Commitments().WithGift(ctx, f.Regular.ID, func(tx repository.CommitmentTx) error {
		var err error
		created, err = tx.InsertReservation(ctx, &models.Reservation{GiftID: f.Regular.ID, UserID: f.Friend.ID})
		if err != nil {
			return err
		}
		_, err = tx.InsertNotification(ctx, &models.Notification{
			UserID:   f.Owner.ID,
			Type:     models.NotificationReservationMade,
			Title:    "Gift reserved",
			Body:     "Someone reserved",
			Metadata: models.NotificationMetadata{GiftID: f.Regular.ID, WishlistID: f.Wishlist.ID},
		})
		return err
	})
	if err != nil {
		t.Fatalf("with gift: %v", err)
	}
	if created == nil || created.ID == 0 || created.CreatedAt.IsZero() {
		t.Fatalf("reservation not populated: %+v", created)
	}

	snap, err := store.Commitments().LoadSnapshot(ctx, f.Regular.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Reservation == nil || snap.Reservation.ID != created.ID || snap.Reservation.UserID != f.Friend.ID {
		t.Fatalf("reservation: %+v", snap.Reservation)
	}

	list, err := store.Notifications().ListByUser(ctx, f.Owner.ID, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(list) != 1 || list[0].Type != models.NotificationReservationMade {
		t.Fatalf("notifications: %+v", list)
	}
	if list[0].Metadata.GiftID != f.Regular.ID || list[0].Metadata.WishlistID != f.Wishlist.ID {
		t.Fatalf("metadata: %+v", list[0].Metadata)
	}
}

func testWithGiftRollsBack(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)

	err := store.Commitments().WithGift(ctx, f.Expensive.ID, func(tx repository.CommitmentTx) error {
		if _, err := tx.InsertContribution(ctx, &models.Contribution{GiftID: f.Expensive.ID, UserID: f.Friend.ID, Amount: 1000}); err != nil {
			return err
		}
		if _, err := tx.InsertNotification(ctx, &models.Notification{UserID: f.Owner.ID, Type: models.NotificationContributionMade}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected callback error, got %v", err)
	}

	snap, err := store.Commitments().LoadSnapshot(ctx, f.Expensive.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Collected != 0 || snap.ContributionCount != 0 {
		t.Fatalf("contribution leaked past rollback: %+v", snap)
	}
	count, err := store.Notifications().CountUnread(ctx, f.Owner.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 0 {
		t.Fatalf("notification leaked past rollback: %d", count)
	}
}

func testUniqueReservation(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)

	err := store.Commitments().WithGift(ctx, f.Regular.ID, func(tx repository.CommitmentTx) error {
		if _, err := tx.InsertReservation(ctx, &models.Reservation{GiftID: f.Regular.ID, UserID: f.Friend.ID}); err != nil {
			return err
		}
		_, err := tx.InsertReservation(ctx, &models.Reservation{GiftID: f.Regular.ID, UserID: f.Other.ID})
		return err
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	snap, err := store.Commitments().LoadSnapshot(ctx, f.Regular.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Reservation != nil {
		t.Fatalf("first reservation must roll back with the second: %+v", snap.Reservation)
	}
}

func testWithReservation(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)

	err := store.Commitments().WithReservation(ctx, 424242, func(repository.CommitmentTx) error { return nil })
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var res *models.Reservation
	err = store.Commitments().WithGift(ctx, f.Regular.ID, func(tx repository.CommitmentTx) error {
		var err error
		res, err = tx.InsertReservation(ctx, &models.Reservation{GiftID: f.Regular.ID, UserID: f.Friend.ID})
		return err
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err = store.Commitments().WithReservation(ctx, res.ID, func(tx repository.CommitmentTx) error {
		s := tx.Snapshot()
		if s.Reservation == nil || s.Reservation.ID != res.ID {
			t.Errorf("snapshot reservation: %+v", s.Reservation)
		}
		if s.Gift.ID != f.Regular.ID {
			t.Errorf("snapshot gift: %d", s.Gift.ID)
		}
		return tx.DeleteReservation(ctx, res.ID)
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	err = store.Commitments().WithReservation(ctx, res.ID, func(repository.CommitmentTx) error { return nil })
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected deleted reservation to be gone, got %v", err)
	}
}

// Every worker reads the collected total and only contributes when its
// amount still fits. Without per-gift serialization the total overshoots.
func testSerializedContributions(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)
	gift := MustGift(t, store, f.Wishlist.ID, "Bike", Price(1000000))

	const (
		workers = 12
		amount  = 300000
	)
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Commitments().WithGift(ctx, gift.ID, func(tx repository.CommitmentTx) error {
				s := tx.Snapshot()
				if s.Collected+amount > *s.Gift.Price {
					return nil
				}
				_, err := tx.InsertContribution(ctx, &models.Contribution{GiftID: gift.ID, UserID: f.Friend.ID, Amount: amount})
				return err
			})
			if err != nil && !errors.Is(err, repository.ErrRetryable) {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("worker: %v", err)
	}

	snap, err := store.Commitments().LoadSnapshot(ctx, gift.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Collected != 900000 || snap.ContributionCount != 3 {
		t.Fatalf("want 3 contributions totalling 900000, got %d totalling %d", snap.ContributionCount, snap.Collected)
	}
}

func testSnapshotSeesThresholdEdits(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)

	if err := store.Wishlists().UpdateThreshold(ctx, f.Wishlist.ID, 100000); err != nil {
		t.Fatalf("update threshold: %v", err)
	}
	snap, err := store.Commitments().LoadSnapshot(ctx, f.Regular.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Classification() != models.ClassificationExpensive {
		t.Fatalf("lowered threshold must reclassify: %s", snap.Classification())
	}

	if err := store.Wishlists().UpdateGiftPrice(ctx, f.Regular.ID, nil); err != nil {
		t.Fatalf("clear price: %v", err)
	}
	snap, err = store.Commitments().LoadSnapshot(ctx, f.Regular.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Classification() != models.ClassificationRegular {
		t.Fatalf("unpriced gift must be regular: %s", snap.Classification())
	}

	if err := store.Wishlists().UpdateThreshold(ctx, 999999, 1); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing wishlist, got %v", err)
	}
}

func testUsers(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)

	if _, err := store.Users().GetByID(ctx, 777777); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Users().LinkTelegram(ctx, f.Friend.ID, 5550001, 9990001); err != nil {
		t.Fatalf("link telegram: %v", err)
	}
	u, err := store.Users().GetByTelegramID(ctx, 5550001)
	if err != nil {
		t.Fatalf("get by telegram id: %v", err)
	}
	if u.ID != f.Friend.ID || !u.HasTelegram() || *u.TelegramChatID != 9990001 {
		t.Fatalf("linked user: %+v", u)
	}
	if err := store.Users().LinkTelegram(ctx, f.Other.ID, 5550001, 9990002); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict when relinking a telegram account, got %v", err)
	}
}

func testNotificationInbox(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, typ := range []models.NotificationType{
		models.NotificationReservationMade,
		models.NotificationContributionMade,
		models.NotificationCollectionComplete,
	} {
		err := store.Commitments().WithGift(ctx, f.Expensive.ID, func(tx repository.CommitmentTx) error {
			_, err := tx.InsertNotification(ctx, &models.Notification{
				UserID:    f.Owner.ID,
				Type:      typ,
				Title:     string(typ),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			})
			return err
		})
		if err != nil {
			t.Fatalf("insert notification: %v", err)
		}
	}

	list, err := store.Notifications().ListByUser(ctx, f.Owner.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Type != models.NotificationCollectionComplete || list[1].Type != models.NotificationContributionMade {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if err := store.Notifications().MarkRead(ctx, list[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	n, err := store.Notifications().GetByID(ctx, list[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !n.IsRead {
		t.Fatal("expected notification to be read")
	}
	if count, _ := store.Notifications().CountUnread(ctx, f.Owner.ID); count != 2 {
		t.Fatalf("unread: want=2 got=%d", count)
	}
	if err := store.Notifications().MarkAllRead(ctx, f.Owner.ID); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if count, _ := store.Notifications().CountUnread(ctx, f.Owner.ID); count != 0 {
		t.Fatalf("unread after mark all: %d", count)
	}
	if err := store.Notifications().MarkRead(ctx, 888888); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testNotificationOutbox(t *testing.T, store repository.Store) {
	ctx := context.Background()
	f := Seed(t, store, nil)

	var ids []int64
	for i := 0; i < 3; i++ {
		err := store.Commitments().WithGift(ctx, f.Regular.ID, func(tx repository.CommitmentTx) error {
			n, err := tx.InsertNotification(ctx, &models.Notification{UserID: f.Owner.ID, Type: models.NotificationReservationMade})
			if err == nil {
				ids = append(ids, n.ID)
			}
			return err
		})
		if err != nil {
			t.Fatalf("insert notification: %v", err)
		}
	}

	if err := store.Notifications().MarkDelivered(ctx, ids[0], time.Now()); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if err := store.Notifications().RecordDeliveryFailure(ctx, ids[1], "telegram: chat not found", []string{"redis"}); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	pending, err := store.Notifications().ListUndelivered(ctx, 5, 10)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != ids[1] || pending[1].ID != ids[2] {
		t.Fatalf("pending: %+v", pending)
	}
	if pending[0].DeliveryAttempts != 1 || pending[0].LastError != "telegram: chat not found" {
		t.Fatalf("failure bookkeeping: %+v", pending[0])
	}
	if len(pending[0].DeliveredChannels) != 1 || pending[0].DeliveredChannels[0] != "redis" {
		t.Fatalf("delivered channels: %v", pending[0].DeliveredChannels)
	}
	if len(pending[1].DeliveredChannels) != 0 {
		t.Fatalf("fresh notification has delivered channels: %v", pending[1].DeliveredChannels)
	}

	exhausted, err := store.Notifications().ListUndelivered(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(exhausted) != 1 || exhausted[0].ID != ids[2] {
		t.Fatalf("attempt cap not applied: %+v", exhausted)
	}
}
