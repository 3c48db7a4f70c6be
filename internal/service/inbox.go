package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

// InboxLimit is the number of notifications returned by ListNotifications.
const InboxLimit = 50

const (
	opListNotifications = "list_notifications"
	opMarkRead          = "mark_read"
	opMarkAllRead       = "mark_all_read"
)

// Inbox is the latest notifications of one user plus the unread count over
// all of them.
type Inbox struct {
	Notifications []*models.Notification `json:"notifications"`
	UnreadCount   int                    `json:"unreadCount"`
}

// ListNotifications returns the user's latest notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, userID int64) (*Inbox, error) {
	list, err := s.store.Notifications().ListByUser(ctx, userID, InboxLimit)
	if err != nil {
		return nil, commitment.Wrap(commitment.KindInternal, opListNotifications, err)
	}
	unread, err := s.store.Notifications().CountUnread(ctx, userID)
	if err != nil {
		return nil, commitment.Wrap(commitment.KindInternal, opListNotifications, err)
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return &Inbox{Notifications: list, UnreadCount: unread}, nil
}

// MarkNotificationRead sets the read flag on one of the user's notifications.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	n, err := s.store.Notifications().GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return commitment.New(commitment.KindNotFound, opMarkRead, "notification not found")
		}
		return commitment.Wrap(commitment.KindInternal, opMarkRead, err)
	}
	if n.UserID != userID {
		return commitment.New(commitment.KindForbidden, opMarkRead, "notification belongs to another user")
	}
	if n.IsRead {
		return nil
	}
	if err := s.store.Notifications().MarkRead(ctx, notificationID); err != nil {
		return commitment.Wrap(commitment.KindInternal, opMarkRead, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"notification_id": notificationID,
	}).Debug("Notification marked read")
	return nil
}

// MarkAllNotificationsRead clears the user's unread count.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	if err := s.store.Notifications().MarkAllRead(ctx, userID); err != nil {
		return commitment.Wrap(commitment.KindInternal, opMarkAllRead, err)
	}
	return nil
}
