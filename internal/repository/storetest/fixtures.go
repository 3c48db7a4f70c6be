// Package storetest holds fixtures and contract tests shared by every
// repository.Store implementation.
package storetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

// Default fixture amounts, in minor units.
const (
	Threshold      int64 = 500000
	RegularPrice   int64 = 120000
	ExpensivePrice int64 = 7000000
)

// Fixture is a small wishlist with one gift of each classification.
type Fixture struct {
	Owner     *models.User
	Friend    *models.User
	Other     *models.User
	Wishlist  *models.Wishlist
	Regular   *models.Gift
	Expensive *models.Gift
	Unpriced  *models.Gift
}

var seq atomic.Int64

// Seed creates a fresh fixture. eventDate may be nil.
func Seed(tb testing.TB, store repository.Store, eventDate *time.Time) Fixture {
	tb.Helper()
	ctx := context.Background()
	n := seq.Add(1)

	mkUser := func(name string) *models.User {
		u, err := store.Users().Create(ctx, &models.User{
			DisplayName: name,
			Email:       fmt.Sprintf("%s-%d@example.com", name, n),
		})
		if err != nil {
			tb.Fatalf("create user %s: %v", name, err)
		}
		return u
	}

	f := Fixture{
		Owner:  mkUser("owner"),
		Friend: mkUser("friend"),
		Other:  mkUser("other"),
	}

	wishlist, err := store.Wishlists().CreateWishlist(ctx, &models.Wishlist{
		OwnerID:            f.Owner.ID,
		Title:              "Birthday",
		ExpensiveThreshold: Threshold,
		EventDate:          eventDate,
		IsPublic:           true,
	})
	if err != nil {
		tb.Fatalf("create wishlist: %v", err)
	}
	f.Wishlist = wishlist

	f.Regular = MustGift(tb, store, wishlist.ID, "Book", Price(RegularPrice))
	f.Expensive = MustGift(tb, store, wishlist.ID, "Camera", Price(ExpensivePrice))
	f.Unpriced = MustGift(tb, store, wishlist.ID, "Surprise", nil)
	return f
}

// MustGift creates a gift or fails the test.
func MustGift(tb testing.TB, store repository.Store, wishlistID int64, title string, price *int64) *models.Gift {
	tb.Helper()
	gift, err := store.Wishlists().CreateGift(context.Background(), &models.Gift{
		WishlistID: wishlistID,
		Title:      title,
		Price:      price,
	})
	if err != nil {
		tb.Fatalf("create gift %s: %v", title, err)
	}
	return gift
}

// Price returns a pointer to v.
func Price(v int64) *int64 { return &v }

// PrivateGift creates a non-public wishlist for ownerID holding one gift.
func PrivateGift(tb testing.TB, store repository.Store, ownerID int64, price *int64) *models.Gift {
	tb.Helper()
	wishlist, err := store.Wishlists().CreateWishlist(context.Background(), &models.Wishlist{
		OwnerID:            ownerID,
		Title:              "Secret santa",
		ExpensiveThreshold: Threshold,
	})
	if err != nil {
		tb.Fatalf("create private wishlist: %v", err)
	}
	return MustGift(tb, store, wishlist.ID, "Scarf", price)
}
