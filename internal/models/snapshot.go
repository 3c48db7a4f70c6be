package models

// GiftSnapshot is the commitment state of one gift as read inside a single
// storage transaction.
type GiftSnapshot struct {
	Gift     Gift
	Wishlist Wishlist

	// Reservation is the gift's current reservation, nil when free.
	Reservation *Reservation

	// Collected is the live sum of contribution amounts.
	Collected         int64
	ContributionCount int
}

// Classification derives the gift classification from the snapshot.
func (s *GiftSnapshot) Classification() Classification {
	return Classify(s.Gift.Price, s.Wishlist.ExpensiveThreshold)
}

// OwnerID returns the owner of the gift's wishlist.
func (s *GiftSnapshot) OwnerID() int64 {
	return s.Wishlist.OwnerID
}
