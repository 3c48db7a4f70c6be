package commitment

import (
	"fmt"
	"time"

	"github.com/Kerhoff/wishpool/internal/models"
)

func newNotification(s *models.GiftSnapshot, typ models.NotificationType, title, body string, now time.Time) *models.Notification {
	return &models.Notification{
		UserID: s.OwnerID(),
		Type:   typ,
		Title:  title,
		Body:   body,
		Metadata: models.NotificationMetadata{
			GiftID:     s.Gift.ID,
			WishlistID: s.Gift.WishlistID,
		},
		CreatedAt: now,
	}
}

// ReservationMade builds the owner notification for a new reservation.
func ReservationMade(s *models.GiftSnapshot, now time.Time) *models.Notification {
	return newNotification(s, models.NotificationReservationMade,
		"Gift reserved", fmt.Sprintf("Someone reserved %q", s.Gift.Title), now)
}

// ReservationCancelled builds the owner notification for a cancellation.
func ReservationCancelled(s *models.GiftSnapshot, now time.Time) *models.Notification {
	return newNotification(s, models.NotificationReservationCancelled,
		"Reservation cancelled", fmt.Sprintf("Reservation for %q was cancelled", s.Gift.Title), now)
}

// ContributionRecorded builds the owner notification after a contribution.
// Reaching the goal produces COLLECTION_COMPLETE instead of CONTRIBUTION_MADE.
func ContributionRecorded(s *models.GiftSnapshot, newTotal int64, now time.Time) *models.Notification {
	if GoalReached(s, newTotal) {
		return newNotification(s, models.NotificationCollectionComplete,
			"Collection complete", fmt.Sprintf("Collection for %q has reached its goal!", s.Gift.Title), now)
	}
	return newNotification(s, models.NotificationContributionMade,
		"New contribution", fmt.Sprintf("Someone contributed to %q", s.Gift.Title), now)
}
