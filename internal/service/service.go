// Package service is the business layer shared by the HTTP and Telegram
// adapters. Commitment writes go through the Coordinator; everything else
// here is read models and owner-controlled inbox state.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

// Service is the central business logic layer that holds the store and the
// commitment coordinator.
type Service struct {
	store       repository.Store
	logger      *logrus.Logger
	metrics     *Metrics
	coordinator *Coordinator
	maxAttempts int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for deadlines and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxAttempts bounds storage-level retries per commitment.
func WithMaxAttempts(n int) Option {
	return func(s *Service) { s.maxAttempts = n }
}

// New creates a Service over store. metrics may be nil.
func New(store repository.Store, logger *logrus.Logger, metrics *Metrics, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.coordinator = NewCoordinator(store.Commitments(), logger, metrics, s.maxAttempts, s.now)
	return s
}

// Coordinator returns the commitment coordinator.
func (s *Service) Coordinator() *Coordinator { return s.coordinator }

// Attempt runs a commitment request through the coordinator.
func (s *Service) Attempt(ctx context.Context, req Request) (*Result, error) {
	return s.coordinator.Attempt(ctx, req)
}

// ClaimGift reserves a regular gift.
func (s *Service) ClaimGift(ctx context.Context, giftID, actorID int64) (*models.Reservation, error) {
	return s.coordinator.ClaimGift(ctx, giftID, actorID)
}

// CancelReservation cancels the actor's reservation.
func (s *Service) CancelReservation(ctx context.Context, reservationID, actorID int64) error {
	return s.coordinator.CancelReservation(ctx, reservationID, actorID)
}

// ContributeToGift contributes toward an expensive gift.
func (s *Service) ContributeToGift(ctx context.Context, giftID, actorID, amount int64) (*ContributionResult, error) {
	return s.coordinator.ContributeToGift(ctx, giftID, actorID, amount)
}
