package models

import "time"

// Reservation is an exclusive claim on a regular gift.
type Reservation struct {
	ID        int64     `json:"id" db:"id"`
	GiftID    int64     `json:"giftId" db:"gift_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Contribution is an immutable pledge toward an expensive gift.
type Contribution struct {
	ID        int64     `json:"id" db:"id"`
	GiftID    int64     `json:"giftId" db:"gift_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Amount    int64     `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
