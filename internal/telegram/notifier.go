package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/notify"
)

// Notifier delivers notifications to the recipient's linked Telegram chat.
type Notifier struct {
	sender Sender
	logger *logrus.Logger
}

var _ notify.Channel = (*Notifier)(nil)

// NewNotifier creates a Telegram delivery channel.
func NewNotifier(sender Sender, logger *logrus.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

func (n *Notifier) Name() string { return "telegram" }

// Deliver sends the notification. Recipients without a linked chat are
// skipped.
func (n *Notifier) Deliver(_ context.Context, recipient *models.User, notification *models.Notification) error {
	if recipient == nil || recipient.TelegramChatID == nil {
		return nil
	}

	msg := tgbotapi.NewMessage(*recipient.TelegramChatID, FormatNotification(notification))
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"notification_id": notification.ID,
		"chat_id":         *recipient.TelegramChatID,
	}).Debug("Sent telegram notification")
	return nil
}

var notificationIcons = map[models.NotificationType]string{
	models.NotificationReservationMade:      "🎁",
	models.NotificationReservationCancelled: "↩️",
	models.NotificationContributionMade:     "💰",
	models.NotificationCollectionComplete:   "🎉",
}

// FormatNotification renders a notification as a plain-text message.
func FormatNotification(n *models.Notification) string {
	icon, ok := notificationIcons[n.Type]
	if !ok {
		icon = "🔔"
	}
	return fmt.Sprintf("%s %s\n%s\n/gift %d", icon, n.Title, n.Body, n.Metadata.GiftID)
}
