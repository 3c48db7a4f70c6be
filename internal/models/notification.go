package models

import "time"

// NotificationType tags a notification for client-side rendering.
type NotificationType string

const (
	NotificationReservationMade      NotificationType = "RESERVATION_MADE"
	NotificationReservationCancelled NotificationType = "RESERVATION_CANCELLED"
	NotificationContributionMade     NotificationType = "CONTRIBUTION_MADE"
	NotificationCollectionComplete   NotificationType = "COLLECTION_COMPLETE"
)

// NotificationMetadata carries routing data for clients.
type NotificationMetadata struct {
	GiftID     int64 `json:"giftId"`
	WishlistID int64 `json:"wishlistId"`
}

// Notification is addressed to a wishlist owner. Only the read flag and the
// delivery bookkeeping change after creation.
type Notification struct {
	ID               int64                `json:"id" db:"id"`
	UserID           int64                `json:"userId" db:"user_id"`
	Type             NotificationType     `json:"type" db:"type"`
	Title            string               `json:"title" db:"title"`
	Body             string               `json:"body" db:"body"`
	Metadata         NotificationMetadata `json:"metadata" db:"metadata"`
	IsRead           bool                 `json:"isRead" db:"is_read"`
	CreatedAt        time.Time            `json:"createdAt" db:"created_at"`
	DeliveredAt      *time.Time           `json:"-" db:"delivered_at"`
	DeliveryAttempts int                  `json:"-" db:"delivery_attempts"`
	LastError        string               `json:"-" db:"last_error"`

	// Channels that accepted the notification while others were still
	// failing. Retries skip them.
	DeliveredChannels []string `json:"-" db:"delivered_channels"`
}

// DeliveredVia reports whether channel already accepted the notification.
func (n *Notification) DeliveredVia(channel string) bool {
	for _, c := range n.DeliveredChannels {
		if c == channel {
			return true
		}
	}
	return false
}

// MarkDeliveredVia records that channel accepted the notification.
func (n *Notification) MarkDeliveredVia(channel string) {
	if !n.DeliveredVia(channel) {
		n.DeliveredChannels = append(n.DeliveredChannels, channel)
	}
}
