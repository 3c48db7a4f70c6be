// Package notify delivers persisted notifications to external channels.
// Delivery runs after the commitment transaction has committed and never
// touches commitment state.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/wishpool/internal/models"
)

// Channel delivers one notification to its recipient. Channels that cannot
// reach the recipient (for example an unlinked Telegram account) return nil.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, recipient *models.User, n *models.Notification) error
}

// Event is the wire form of a delivered notification.
type Event struct {
	NotificationID int64                       `json:"notificationId"`
	UserID         int64                       `json:"userId"`
	Type           models.NotificationType     `json:"type"`
	Title          string                      `json:"title"`
	Body           string                      `json:"body"`
	Metadata       models.NotificationMetadata `json:"metadata"`
	CreatedAt      time.Time                   `json:"createdAt"`
}

// NewEvent converts a notification to its wire form.
func NewEvent(n *models.Notification) Event {
	return Event{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		Metadata:       n.Metadata,
		CreatedAt:      n.CreatedAt,
	}
}

// Fanout delivers to every channel and reports all failures together.
// A notification counts as delivered only when every channel accepts it.
// Channels that accept it are recorded on the notification and skipped on
// the next attempt.
type Fanout struct {
	channels []Channel
}

// NewFanout skips nil channels.
func NewFanout(channels ...Channel) *Fanout {
	f := &Fanout{}
	for _, ch := range channels {
		if ch != nil {
			f.channels = append(f.channels, ch)
		}
	}
	return f
}

func (f *Fanout) Name() string { return "fanout" }

// Len returns the number of configured channels.
func (f *Fanout) Len() int { return len(f.channels) }

func (f *Fanout) Deliver(ctx context.Context, recipient *models.User, n *models.Notification) error {
	var result *multierror.Error
	for _, ch := range f.channels {
		if n.DeliveredVia(ch.Name()) {
			continue
		}
		if err := ch.Deliver(ctx, recipient, n); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		n.MarkDeliveredVia(ch.Name())
	}
	return result.ErrorOrNil()
}
