package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
	"github.com/Kerhoff/wishpool/internal/repository/memory"
	"github.com/Kerhoff/wishpool/internal/repository/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) repository.Store { return memory.New() })
}

func TestGiftsDoNotBlockEachOther(t *testing.T) {
	t.Parallel()
	store := memory.New()
	f := storetest.Seed(t, store, nil)
	ctx := context.Background()

	inside := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.Commitments().WithGift(ctx, f.Regular.ID, func(repository.CommitmentTx) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	err := store.Commitments().WithGift(ctx, f.Expensive.ID, func(tx repository.CommitmentTx) error {
		_, err := tx.InsertContribution(ctx, &models.Contribution{GiftID: f.Expensive.ID, UserID: f.Friend.ID, Amount: 10})
		return err
	})
	close(release)
	wg.Wait()
	if err != nil {
		t.Fatalf("contribution on another gift: %v", err)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	t.Parallel()
	store := memory.New()
	f := storetest.Seed(t, store, nil)
	ctx := context.Background()

	g, err := store.Wishlists().GetGift(ctx, f.Expensive.ID)
	if err != nil {
		t.Fatalf("get gift: %v", err)
	}
	*g.Price = 1

	snap, err := store.Commitments().LoadSnapshot(ctx, f.Expensive.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if *snap.Gift.Price != storetest.ExpensivePrice {
		t.Fatalf("stored price mutated through returned gift: %d", *snap.Gift.Price)
	}
}

func TestCancelThenReclaimInOneAttempt(t *testing.T) {
	t.Parallel()
	store := memory.New()
	f := storetest.Seed(t, store, nil)
	ctx := context.Background()

	var first *models.Reservation
	err := store.Commitments().WithGift(ctx, f.Regular.ID, func(tx repository.CommitmentTx) error {
		var err error
		first, err = tx.InsertReservation(ctx, &models.Reservation{GiftID: f.Regular.ID, UserID: f.Friend.ID})
		return err
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err = store.Commitments().WithReservation(ctx, first.ID, func(tx repository.CommitmentTx) error {
		if err := tx.DeleteReservation(ctx, first.ID); err != nil {
			return err
		}
		_, err := tx.InsertReservation(ctx, &models.Reservation{GiftID: f.Regular.ID, UserID: f.Other.ID})
		return err
	})
	if err != nil {
		t.Fatalf("swap reservation: %v", err)
	}

	snap, err := store.Commitments().LoadSnapshot(ctx, f.Regular.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Reservation == nil || snap.Reservation.UserID != f.Other.ID {
		t.Fatalf("reservation: %+v", snap.Reservation)
	}
}
