package main

import (
	"context"
	"testing"
	"time"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository/memory"
	"github.com/Kerhoff/wishpool/internal/service"
	"github.com/Kerhoff/wishpool/pkg/logger"
)

func TestSeedProducesUsableWishlist(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	demo, err := seed(ctx, store, now)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if demo.owner.ID == demo.friend.ID {
		t.Fatal("owner and friend must be distinct users")
	}
	if !demo.wishlist.EventDate.After(now) {
		t.Errorf("event date %v should be after %v", demo.wishlist.EventDate, now)
	}

	threshold := demo.wishlist.ExpensiveThreshold
	if got := models.Classify(demo.regular.Price, threshold); got != models.ClassificationRegular {
		t.Errorf("regular gift classified %s", got)
	}
	if got := models.Classify(demo.expensive.Price, threshold); got != models.ClassificationExpensive {
		t.Errorf("expensive gift classified %s", got)
	}

	svc := service.New(store, logger.Discard(), nil, service.WithClock(func() time.Time { return now }))
	if _, err := svc.ClaimGift(ctx, demo.regular.ID, demo.friend.ID); err != nil {
		t.Fatalf("claim seeded gift: %v", err)
	}
	if _, err := svc.ContributeToGift(ctx, demo.expensive.ID, demo.friend.ID, 100000); err != nil {
		t.Fatalf("contribute to seeded gift: %v", err)
	}
}

func TestSeedTwiceDoesNotConflict(t *testing.T) {
	store := memory.New()
	for i := 0; i < 2; i++ {
		if _, err := seed(context.Background(), store, time.Now()); err != nil {
			t.Fatalf("seed #%d: %v", i+1, err)
		}
	}
}
