package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

// Kind selects the engine an attempt is routed to.
type Kind string

const (
	KindReservation  Kind = "reservation"
	KindContribution Kind = "contribution"
)

// Request is a single commitment attempt. Amount is ignored for
// reservations.
type Request struct {
	Kind    Kind
	GiftID  int64
	ActorID int64
	Amount  int64
}

// ContributionResult is returned by a successful contribution.
type ContributionResult struct {
	Contribution   *models.Contribution `json:"contribution"`
	TotalCollected int64                `json:"totalCollected"`
	Target         int64                `json:"target"`
}

// Result holds the outcome of Attempt. Exactly one field is set.
type Result struct {
	Reservation  *models.Reservation
	Contribution *ContributionResult
}

// DefaultMaxAttempts bounds storage-level retries per commitment.
const DefaultMaxAttempts = 3

const retryBackoff = 15 * time.Millisecond

// Coordinator runs every commitment as one atomic unit per gift: snapshot,
// policy check, mutation and owner notification either all persist or none
// do. Policy failures are never retried; retryable storage failures are, up
// to maxAttempts.
type Coordinator struct {
	store       repository.CommitmentStore
	logger      *logrus.Logger
	metrics     *Metrics
	maxAttempts int
	now         func() time.Time
}

// NewCoordinator creates a coordinator over store. maxAttempts below 1 is
// treated as 1; a nil now uses time.Now.
func NewCoordinator(store repository.CommitmentStore, logger *logrus.Logger, metrics *Metrics, maxAttempts int, now func() time.Time) *Coordinator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:       store,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		now:         now,
	}
}

// Attempt routes req to the reservation or funding engine.
func (c *Coordinator) Attempt(ctx context.Context, req Request) (*Result, error) {
	switch req.Kind {
	case KindReservation:
		res, err := c.ClaimGift(ctx, req.GiftID, req.ActorID)
		if err != nil {
			return nil, err
		}
		return &Result{Reservation: res}, nil
	case KindContribution:
		res, err := c.ContributeToGift(ctx, req.GiftID, req.ActorID, req.Amount)
		if err != nil {
			return nil, err
		}
		return &Result{Contribution: res}, nil
	}
	return nil, commitment.New(commitment.KindInvalid, "attempt", fmt.Sprintf("unknown commitment kind %q", req.Kind))
}

// ClaimGift reserves a regular gift for actorID.
func (c *Coordinator) ClaimGift(ctx context.Context, giftID, actorID int64) (*models.Reservation, error) {
	fields := logrus.Fields{"gift_id": giftID, "actor_id": actorID}

	var reservation *models.Reservation
	err := c.execute(ctx, commitment.OpClaim, fields, func() error {
		return c.store.WithGift(ctx, giftID, func(tx repository.CommitmentTx) error {
			s := tx.Snapshot()
			if err := commitment.CheckClaim(s, actorID); err != nil {
				return err
			}

			now := c.now().UTC()
			res, err := tx.InsertReservation(ctx, &models.Reservation{
				GiftID:    giftID,
				UserID:    actorID,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
			if _, err := tx.InsertNotification(ctx, commitment.ReservationMade(s, now)); err != nil {
				return err
			}
			reservation = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// CancelReservation deletes reservationID on behalf of its claimant.
func (c *Coordinator) CancelReservation(ctx context.Context, reservationID, actorID int64) error {
	fields := logrus.Fields{"reservation_id": reservationID, "actor_id": actorID}

	return c.execute(ctx, commitment.OpCancel, fields, func() error {
		return c.store.WithReservation(ctx, reservationID, func(tx repository.CommitmentTx) error {
			s := tx.Snapshot()
			now := c.now().UTC()
			if err := commitment.CheckCancel(s, reservationID, actorID, now); err != nil {
				return err
			}
			if err := tx.DeleteReservation(ctx, reservationID); err != nil {
				return err
			}
			_, err := tx.InsertNotification(ctx, commitment.ReservationCancelled(s, now))
			return err
		})
	})
}

// ContributeToGift records a contribution of amount toward an expensive
// gift. Non-positive amounts are rejected before the store is touched.
func (c *Coordinator) ContributeToGift(ctx context.Context, giftID, actorID, amount int64) (*ContributionResult, error) {
	fields := logrus.Fields{"gift_id": giftID, "actor_id": actorID, "amount": amount}

	if err := commitment.ValidateAmount(amount); err != nil {
		c.metrics.observeAttempt(commitment.OpContribute, string(commitment.KindOf(err)), 0)
		c.logger.WithFields(fields).WithField("kind", commitment.KindOf(err)).Info("Contribution rejected")
		return nil, err
	}

	var result *ContributionResult
	err := c.execute(ctx, commitment.OpContribute, fields, func() error {
		return c.store.WithGift(ctx, giftID, func(tx repository.CommitmentTx) error {
			s := tx.Snapshot()
			if _, err := commitment.CheckContribution(s, actorID, amount); err != nil {
				return err
			}

			now := c.now().UTC()
			contribution, err := tx.InsertContribution(ctx, &models.Contribution{
				GiftID:    giftID,
				UserID:    actorID,
				Amount:    amount,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
			newTotal := s.Collected + amount
			if _, err := tx.InsertNotification(ctx, commitment.ContributionRecorded(s, newTotal, now)); err != nil {
				return err
			}
			result = &ContributionResult{
				Contribution:   contribution,
				TotalCollected: newTotal,
				Target:         *s.Gift.Price,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// execute runs one atomic unit, retrying it while the store reports a
// retryable failure, and converts the final error into a *commitment.Error.
func (c *Coordinator) execute(ctx context.Context, op string, fields logrus.Fields, unit func() error) error {
	start := time.Now()
	log := c.logger.WithFields(fields).WithField("op", op)

	var err error
	for attempt := 1; ; attempt++ {
		err = unit()
		if err == nil || !errors.Is(err, repository.ErrRetryable) || attempt >= c.maxAttempts {
			break
		}
		c.metrics.incRetry(op)
		log.WithField("attempt", attempt).Debug("Retrying commitment after storage conflict")

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
			continue
		}
		break
	}

	if err == nil {
		c.metrics.observeAttempt(op, "OK", time.Since(start))
		log.Info("Commitment applied")
		return nil
	}

	cerr := c.classify(op, err)
	c.metrics.observeAttempt(op, string(cerr.Kind), time.Since(start))
	if cerr.Kind == commitment.KindInternal {
		log.WithError(err).Error("Commitment failed")
	} else {
		log.WithField("kind", cerr.Kind).Info("Commitment rejected")
	}
	return cerr
}

func (c *Coordinator) classify(op string, err error) *commitment.Error {
	var cerr *commitment.Error
	if errors.As(err, &cerr) {
		return cerr
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if op == commitment.OpCancel {
			return &commitment.Error{Kind: commitment.KindNotFound, Op: op, Message: "reservation not found", Cause: err}
		}
		return &commitment.Error{Kind: commitment.KindNotFound, Op: op, Message: "gift not found", Cause: err}
	case errors.Is(err, repository.ErrConflict):
		// Unique reservation backstop.
		return &commitment.Error{Kind: commitment.KindConflict, Op: op, Message: "this gift is already reserved", Cause: err}
	}
	return &commitment.Error{Kind: commitment.KindInternal, Op: op, Message: "commitment could not be completed", Cause: err}
}
