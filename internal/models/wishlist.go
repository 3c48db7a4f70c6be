package models

import "time"

// Wishlist is a user's published list of gifts.
type Wishlist struct {
	ID                 int64      `json:"id" db:"id"`
	OwnerID            int64      `json:"ownerId" db:"owner_id"`
	Title              string     `json:"title" db:"title"`
	ExpensiveThreshold int64      `json:"expensiveThreshold" db:"expensive_threshold"`
	EventDate          *time.Time `json:"eventDate,omitempty" db:"event_date"`
	IsPublic           bool       `json:"isPublic" db:"is_public"`
	CreatedAt          time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time  `json:"updatedAt" db:"updated_at"`
}

// DeadlinePassed reports whether the wishlist event date lies before now.
// Wishlists without an event date never expire.
func (w *Wishlist) DeadlinePassed(now time.Time) bool {
	return w.EventDate != nil && now.After(*w.EventDate)
}

// Gift represents an item in a wishlist. Price is in minor units and may be
// unset.
type Gift struct {
	ID         int64     `json:"id" db:"id"`
	WishlistID int64     `json:"wishlistId" db:"wishlist_id"`
	Title      string    `json:"title" db:"title"`
	Price      *int64    `json:"price" db:"price"`
	URL        string    `json:"url" db:"url"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// Classification tells which commitment engine a gift belongs to.
type Classification string

const (
	ClassificationRegular   Classification = "regular"
	ClassificationExpensive Classification = "expensive"
)

// Classify derives the gift classification from its current price and the
// wishlist threshold. A gift without a price is always regular.
func Classify(price *int64, threshold int64) Classification {
	if price != nil && *price >= threshold {
		return ClassificationExpensive
	}
	return ClassificationRegular
}
