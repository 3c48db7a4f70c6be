package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/notify"
)

// DispatchConfig controls the notification dispatcher loop.
type DispatchConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// StartNotificationDispatcher delivers undelivered notifications through
// channel every cfg.Interval. It blocks until the context is cancelled, so
// it should be launched in a separate goroutine.
func (s *Service) StartNotificationDispatcher(ctx context.Context, channel notify.Channel, cfg DispatchConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	s.logger.WithField("interval", cfg.Interval).Info("Notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Notification dispatcher stopped")
			return
		case <-ticker.C:
			s.DispatchPending(ctx, channel, cfg)
		}
	}
}

// DispatchPending delivers one batch of undelivered notifications and
// returns how many were delivered and how many failed. Failures are recorded
// on the notification and retried on later batches until MaxAttempts.
func (s *Service) DispatchPending(ctx context.Context, channel notify.Channel, cfg DispatchConfig) (delivered, failed int) {
	pending, err := s.store.Notifications().ListUndelivered(ctx, cfg.MaxAttempts, cfg.BatchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list undelivered notifications")
		return 0, 0
	}

	for _, n := range pending {
		log := s.logger.WithFields(logrus.Fields{
			"notification_id": n.ID,
			"user_id":         n.UserID,
			"type":            n.Type,
		})

		recipient, err := s.store.Users().GetByID(ctx, n.UserID)
		if err == nil {
			err = channel.Deliver(ctx, recipient, n)
		}
		if err != nil {
			failed++
			s.metrics.incDelivery("failed")
			log.WithError(err).WithField("attempt", n.DeliveryAttempts+1).Warn("Notification delivery failed")
			if recErr := s.store.Notifications().RecordDeliveryFailure(ctx, n.ID, err.Error(), n.DeliveredChannels); recErr != nil {
				log.WithError(recErr).Error("Failed to record delivery failure")
			}
			continue
		}

		if err := s.store.Notifications().MarkDelivered(ctx, n.ID, s.now()); err != nil {
			log.WithError(err).Error("Failed to mark notification delivered")
			continue
		}
		delivered++
		s.metrics.incDelivery("delivered")
		log.Debug("Notification delivered")
	}
	return delivered, failed
}
