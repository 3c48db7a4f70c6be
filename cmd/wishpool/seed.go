package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/config"
	"github.com/Kerhoff/wishpool/internal/identity"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

// Demo amounts in minor units.
const (
	demoThreshold      int64 = 500000
	demoRegularPrice   int64 = 250000
	demoExpensivePrice int64 = 7500000
)

type demoData struct {
	owner     *models.User
	friend    *models.User
	wishlist  *models.Wishlist
	regular   *models.Gift
	expensive *models.Gift
}

func seedCommand(cfg *config.Config, l *logrus.Logger) error {
	if cfg.StoreDriver == config.DriverMemory {
		return fmt.Errorf("seed needs a persistent store, the memory driver seeds itself on serve")
	}
	store, err := openStore(cfg, l)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := identity.NewProvider(cfg.JWTSecret, cfg.JWTTTL, nil)
	if err != nil {
		return err
	}
	return printSeed(context.Background(), store, provider)
}

func printSeed(ctx context.Context, store repository.Store, provider *identity.Provider) error {
	demo, err := seed(ctx, store, time.Now())
	if err != nil {
		return err
	}
	ownerToken, err := provider.Issue(demo.owner.ID)
	if err != nil {
		return err
	}
	friendToken, err := provider.Issue(demo.friend.ID)
	if err != nil {
		return err
	}

	fmt.Printf("wishlist %d %q (threshold %d, event %s)\n",
		demo.wishlist.ID, demo.wishlist.Title, demo.wishlist.ExpensiveThreshold, demo.wishlist.EventDate.Format(time.DateOnly))
	fmt.Printf("  gift %d %q price %d (regular)\n", demo.regular.ID, demo.regular.Title, *demo.regular.Price)
	fmt.Printf("  gift %d %q price %d (expensive)\n", demo.expensive.ID, demo.expensive.Title, *demo.expensive.Price)
	fmt.Printf("owner  %d token %s\n", demo.owner.ID, ownerToken)
	fmt.Printf("friend %d token %s\n", demo.friend.ID, friendToken)
	return nil
}

func seed(ctx context.Context, store repository.Store, now time.Time) (*demoData, error) {
	// Suffix keeps emails unique when seeding the same database twice.
	suffix := uuid.NewString()[:8]

	owner, err := store.Users().Create(ctx, &models.User{
		DisplayName: "Alice",
		Email:       fmt.Sprintf("alice+%s@example.com", suffix),
	})
	if err != nil {
		return nil, fmt.Errorf("create owner: %w", err)
	}
	friend, err := store.Users().Create(ctx, &models.User{
		DisplayName: "Bob",
		Email:       fmt.Sprintf("bob+%s@example.com", suffix),
	})
	if err != nil {
		return nil, fmt.Errorf("create friend: %w", err)
	}

	eventDate := now.UTC().AddDate(0, 0, 30).Truncate(24 * time.Hour)
	wishlist, err := store.Wishlists().CreateWishlist(ctx, &models.Wishlist{
		OwnerID:            owner.ID,
		Title:              "Alice's birthday",
		ExpensiveThreshold: demoThreshold,
		EventDate:          &eventDate,
		IsPublic:           true,
	})
	if err != nil {
		return nil, fmt.Errorf("create wishlist: %w", err)
	}

	regularPrice, expensivePrice := demoRegularPrice, demoExpensivePrice
	regular, err := store.Wishlists().CreateGift(ctx, &models.Gift{
		WishlistID: wishlist.ID,
		Title:      "Board game",
		Price:      &regularPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("create gift: %w", err)
	}
	expensive, err := store.Wishlists().CreateGift(ctx, &models.Gift{
		WishlistID: wishlist.ID,
		Title:      "Espresso machine",
		Price:      &expensivePrice,
	})
	if err != nil {
		return nil, fmt.Errorf("create gift: %w", err)
	}

	return &demoData{
		owner:     owner,
		friend:    friend,
		wishlist:  wishlist,
		regular:   regular,
		expensive: expensive,
	}, nil
}
