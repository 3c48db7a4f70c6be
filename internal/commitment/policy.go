// Package commitment holds the policy rules that decide whether a
// reservation or a contribution may proceed against a gift snapshot.
//
// Every check is a pure function of the snapshot, the actor and the clock so
// the storage layer can evaluate it inside the transaction that holds the
// gift lock.
package commitment

import (
	"fmt"
	"time"

	"github.com/Kerhoff/wishpool/internal/models"
)

// Operation names used in errors, logs and metrics.
const (
	OpClaim      = "claim"
	OpCancel     = "cancel"
	OpContribute = "contribute"
)

// ValidateAmount rejects non-positive contribution amounts. It runs before
// any storage access.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return New(KindInvalid, OpContribute, "amount must be a positive integer")
	}
	return nil
}

// CheckClaim evaluates the reservation preconditions in order: ownership,
// classification, then availability. A nil snapshot means the gift is absent.
func CheckClaim(s *models.GiftSnapshot, actorID int64) error {
	if s == nil {
		return New(KindNotFound, OpClaim, "gift not found")
	}
	if s.OwnerID() == actorID {
		return New(KindForbidden, OpClaim, "cannot reserve gifts in your own wishlist")
	}
	if s.Classification() == models.ClassificationExpensive {
		return New(KindInvalidKind, OpClaim, "this is an expensive gift, use group collection instead")
	}
	if s.Reservation != nil {
		return New(KindConflict, OpClaim, "this gift is already reserved")
	}
	return nil
}

// CheckCancel evaluates cancellation of reservationID held in the snapshot.
func CheckCancel(s *models.GiftSnapshot, reservationID, actorID int64, now time.Time) error {
	if s == nil || s.Reservation == nil || s.Reservation.ID != reservationID {
		return New(KindNotFound, OpCancel, "reservation not found")
	}
	if s.Reservation.UserID != actorID {
		return New(KindForbidden, OpCancel, "only the claimant can cancel a reservation")
	}
	if s.Wishlist.DeadlinePassed(now) {
		return New(KindPastDeadline, OpCancel, "cannot cancel reservation after the event date")
	}
	return nil
}

// CheckContribution evaluates the funding preconditions and returns the
// amount still missing before the contribution is applied.
func CheckContribution(s *models.GiftSnapshot, actorID, amount int64) (int64, error) {
	if s == nil {
		return 0, New(KindNotFound, OpContribute, "gift not found")
	}
	if s.OwnerID() == actorID {
		return 0, New(KindForbidden, OpContribute, "cannot contribute to gifts in your own wishlist")
	}
	if s.Gift.Price == nil {
		return 0, New(KindInvalid, OpContribute, "gift has no price, collection is not available")
	}
	if s.Classification() != models.ClassificationExpensive {
		return 0, New(KindInvalidKind, OpContribute, "this is a regular gift, use reservation instead")
	}

	price := *s.Gift.Price
	if s.Collected >= price {
		return 0, New(KindConflict, OpContribute, "collection goal already reached")
	}
	remaining := price - s.Collected
	if amount > remaining {
		return remaining, New(KindInvalid, OpContribute,
			fmt.Sprintf("amount exceeds remaining goal, maximum allowed: %d", remaining))
	}
	return remaining, nil
}

// GoalReached reports whether newTotal meets the gift's target.
func GoalReached(s *models.GiftSnapshot, newTotal int64) bool {
	return s.Gift.Price != nil && newTotal >= *s.Gift.Price
}
