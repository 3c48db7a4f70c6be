package service

import (
	"context"
	"errors"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

// Role is the viewer's relation to a gift.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleFriend Role = "friend"
	RoleGuest  Role = "guest"
)

// CommitmentStatus is the derived commitment state of a gift.
type CommitmentStatus string

const (
	StatusFree               CommitmentStatus = "free"
	StatusReserved           CommitmentStatus = "reserved"
	StatusCollectionOpen     CommitmentStatus = "collection_open"
	StatusCollectionComplete CommitmentStatus = "collection_complete"
)

const opStatus = "status"

// GiftStatus is the read-only commitment view of a gift for one viewer.
// The owner learns that a gift is reserved but never by whom.
type GiftStatus struct {
	GiftID            int64                 `json:"giftId"`
	WishlistID        int64                 `json:"wishlistId"`
	Classification    models.Classification `json:"classification"`
	Status            CommitmentStatus      `json:"status"`
	Price             *int64                `json:"price"`
	TotalCollected    int64                 `json:"totalCollected"`
	Target            *int64                `json:"target,omitempty"`
	ContributionCount int                   `json:"contributionCount"`
	Role              Role                  `json:"role"`
	CanReserve        bool                  `json:"canReserve"`
	CanContribute     bool                  `json:"canContribute"`
	ReservationID     *int64                `json:"reservationId,omitempty"`
}

// GiftStatus reads giftID without locking it. viewerID 0 is an anonymous
// guest. Gifts on private wishlists exist only for their owner.
func (s *Service) GiftStatus(ctx context.Context, giftID, viewerID int64) (*GiftStatus, error) {
	snap, err := s.store.Commitments().LoadSnapshot(ctx, giftID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, commitment.New(commitment.KindNotFound, opStatus, "gift not found")
		}
		return nil, commitment.Wrap(commitment.KindInternal, opStatus, err)
	}
	if !snap.Wishlist.IsPublic && viewerID != snap.OwnerID() {
		return nil, commitment.New(commitment.KindNotFound, opStatus, "gift not found")
	}
	return BuildGiftStatus(snap, viewerID), nil
}

// BuildGiftStatus derives the view from a snapshot.
func BuildGiftStatus(snap *models.GiftSnapshot, viewerID int64) *GiftStatus {
	st := &GiftStatus{
		GiftID:            snap.Gift.ID,
		WishlistID:        snap.Gift.WishlistID,
		Classification:    snap.Classification(),
		Price:             snap.Gift.Price,
		ContributionCount: snap.ContributionCount,
		Role:              RoleFriend,
	}
	switch {
	case viewerID == 0:
		st.Role = RoleGuest
	case viewerID == snap.OwnerID():
		st.Role = RoleOwner
	}

	if st.Classification == models.ClassificationExpensive {
		st.TotalCollected = snap.Collected
		st.Target = snap.Gift.Price
		st.Status = StatusCollectionOpen
		if commitment.GoalReached(snap, snap.Collected) {
			st.Status = StatusCollectionComplete
		}
		st.CanContribute = st.Role == RoleFriend && st.Status == StatusCollectionOpen
		return st
	}

	st.Status = StatusFree
	if snap.Reservation != nil {
		st.Status = StatusReserved
		if viewerID != 0 && snap.Reservation.UserID == viewerID {
			id := snap.Reservation.ID
			st.ReservationID = &id
		}
	}
	st.CanReserve = st.Role == RoleFriend && st.Status == StatusFree
	return st
}
