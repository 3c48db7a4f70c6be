package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
	"github.com/Kerhoff/wishpool/internal/repository/memory"
	"github.com/Kerhoff/wishpool/internal/repository/storetest"
	"github.com/Kerhoff/wishpool/pkg/logger"
)

func TestClaimGift(t *testing.T) {
	t.Parallel()
	h := newHarness(t, memory.New(), beforeEvent)
	ctx := context.Background()

	res, err := h.svc.ClaimGift(ctx, h.f.Regular.ID, h.f.Friend.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.ID == 0 || res.GiftID != h.f.Regular.ID || res.UserID != h.f.Friend.ID || !res.CreatedAt.Equal(beforeEvent) {
		t.Fatalf("reservation: %+v", res)
	}

	list := h.ownerNotifications(t)
	if len(list) != 1 || list[0].Type != models.NotificationReservationMade {
		t.Fatalf("expected one RESERVATION_MADE, got %+v", list)
	}
	if list[0].Metadata.GiftID != h.f.Regular.ID || list[0].Metadata.WishlistID != h.f.Wishlist.ID {
		t.Fatalf("metadata: %+v", list[0].Metadata)
	}
	if got := testutil.ToFloat64(h.metrics.attempts.WithLabelValues(commitment.OpClaim, "OK")); got != 1 {
		t.Fatalf("ok attempts metric: %v", got)
	}
}

func TestClaimGiftRejections(t *testing.T) {
	t.Parallel()
	h := newHarness(t, memory.New(), beforeEvent)
	ctx := context.Background()

	// price 1,200,000 against threshold 500,000
	pricey := storetest.MustGift(t, h.store, h.f.Wishlist.ID, "Headphones", storetest.Price(1200000))
	if _, err := h.svc.ClaimGift(ctx, h.f.Regular.ID, h.f.Other.ID); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	before := len(h.ownerNotifications(t))

	cases := []struct {
		name    string
		giftID  int64
		actorID int64
		want    commitment.Kind
	}{
		{name: "missing gift", giftID: 99999, actorID: h.f.Friend.ID, want: commitment.KindNotFound},
		{name: "own gift", giftID: h.f.Unpriced.ID, actorID: h.f.Owner.ID, want: commitment.KindForbidden},
		{name: "own reserved gift", giftID: h.f.Regular.ID, actorID: h.f.Owner.ID, want: commitment.KindForbidden},
		{name: "expensive gift", giftID: pricey.ID, actorID: h.f.Friend.ID, want: commitment.KindInvalidKind},
		{name: "already reserved", giftID: h.f.Regular.ID, actorID: h.f.Friend.ID, want: commitment.KindConflict},
		{name: "reserved by self", giftID: h.f.Regular.ID, actorID: h.f.Other.ID, want: commitment.KindConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.ClaimGift(ctx, tc.giftID, tc.actorID)
			requireKind(t, err, tc.want)
		})
	}

	if after := len(h.ownerNotifications(t)); after != before {
		t.Fatalf("rejected claims must not notify: before=%d after=%d", before, after)
	}
}

func TestThresholdEditReclassifiesImmediately(t *testing.T) {
	t.Parallel()
	h := newHarness(t, memory.New(), beforeEvent)
	ctx := context.Background()

	if err := h.store.Wishlists().UpdateThreshold(ctx, h.f.Wishlist.ID, storetest.RegularPrice); err != nil {
		t.Fatalf("update threshold: %v", err)
	}
	_, err := h.svc.ClaimGift(ctx, h.f.Regular.ID, h.f.Friend.ID)
	requireKind(t, err, commitment.KindInvalidKind)

	res, err := h.svc.ContributeToGift(ctx, h.f.Regular.ID, h.f.Friend.ID, 1000)
	if err != nil {
		t.Fatalf("contribute after reclassification: %v", err)
	}
	if res.Target != storetest.RegularPrice {
		t.Fatalf("target: %d", res.Target)
	}
}

func TestCancelReservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("before deadline", func(t *testing.T) {
		h := newHarness(t, memory.New(), beforeEvent)
		res, err := h.svc.ClaimGift(ctx, h.f.Regular.ID, h.f.Friend.ID)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := h.svc.CancelReservation(ctx, res.ID, h.f.Friend.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		list := h.ownerNotifications(t)
		if countType(list, models.NotificationReservationCancelled) != 1 {
			t.Fatalf("expected one RESERVATION_CANCELLED, got %+v", list)
		}
		snap, err := h.store.Commitments().LoadSnapshot(ctx, h.f.Regular.ID)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.Reservation != nil {
			t.Fatal("gift must be free again")
		}
		if _, err := h.svc.ClaimGift(ctx, h.f.Regular.ID, h.f.Other.ID); err != nil {
			t.Fatalf("reclaim after cancel: %v", err)
		}
	})

	t.Run("after deadline", func(t *testing.T) {
		store := memory.New()
		h := newHarness(t, store, beforeEvent)
		res, err := h.svc.ClaimGift(ctx, h.f.Regular.ID, h.f.Friend.ID)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}

		late := New(store, logger.Discard(), nil, WithClock(fixedClockAt(afterEvent)))
		requireKind(t, late.CancelReservation(ctx, res.ID, h.f.Friend.ID), commitment.KindPastDeadline)

		snap, err := store.Commitments().LoadSnapshot(ctx, h.f.Regular.ID)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.Reservation == nil || snap.Reservation.ID != res.ID {
			t.Fatal("reservation must survive a refused cancel")
		}
		if countType(h.ownerNotifications(t), models.NotificationReservationCancelled) != 0 {
			t.Fatal("refused cancel must not notify")
		}
	})

	t.Run("not the claimant", func(t *testing.T) {
		h := newHarness(t, memory.New(), beforeEvent)
		res, err := h.svc.ClaimGift(ctx, h.f.Regular.ID, h.f.Friend.ID)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		requireKind(t, h.svc.CancelReservation(ctx, res.ID, h.f.Other.ID), commitment.KindForbidden)
		requireKind(t, h.svc.CancelReservation(ctx, res.ID, h.f.Owner.ID), commitment.KindForbidden)
	})

	t.Run("missing reservation", func(t *testing.T) {
		h := newHarness(t, memory.New(), beforeEvent)
		requireKind(t, h.svc.CancelReservation(ctx, 4242, h.f.Friend.ID), commitment.KindNotFound)
	})
}

func TestContributeToGift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, memory.New(), beforeEvent)
	gift := h.f.Expensive // price 7,000,000 threshold 500,000

	res, err := h.svc.ContributeToGift(ctx, gift.ID, h.f.Friend.ID, 6900000)
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if res.TotalCollected != 6900000 || res.Target != storetest.ExpensivePrice || res.Contribution.Amount != 6900000 {
		t.Fatalf("result: %+v", res)
	}

	_, err = h.svc.ContributeToGift(ctx, gift.ID, h.f.Other.ID, 200000)
	requireKind(t, err, commitment.KindInvalid)
	if !strings.Contains(commitment.MessageOf(err), "100000") {
		t.Fatalf("message must name the remaining amount: %q", commitment.MessageOf(err))
	}

	res, err = h.svc.ContributeToGift(ctx, gift.ID, h.f.Other.ID, 100000)
	if err != nil {
		t.Fatalf("contribute remaining: %v", err)
	}
	if res.TotalCollected != storetest.ExpensivePrice {
		t.Fatalf("total: %d", res.TotalCollected)
	}

	for _, amount := range []int64{1, 100000} {
		_, err = h.svc.ContributeToGift(ctx, gift.ID, h.f.Friend.ID, amount)
		requireKind(t, err, commitment.KindConflict)
	}

	list := h.ownerNotifications(t)
	if countType(list, models.NotificationContributionMade) != 1 || countType(list, models.NotificationCollectionComplete) != 1 || len(list) != 2 {
		t.Fatalf("notifications: %+v", list)
	}
}

func TestContributeRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, memory.New(), beforeEvent)

	cases := []struct {
		name    string
		giftID  int64
		actorID int64
		amount  int64
		want    commitment.Kind
	}{
		{name: "zero amount", giftID: h.f.Expensive.ID, actorID: h.f.Friend.ID, amount: 0, want: commitment.KindInvalid},
		{name: "negative amount", giftID: h.f.Expensive.ID, actorID: h.f.Friend.ID, amount: -500, want: commitment.KindInvalid},
		{name: "zero amount on missing gift", giftID: 99999, actorID: h.f.Friend.ID, amount: 0, want: commitment.KindInvalid},
		{name: "missing gift", giftID: 99999, actorID: h.f.Friend.ID, amount: 10, want: commitment.KindNotFound},
		{name: "own gift", giftID: h.f.Expensive.ID, actorID: h.f.Owner.ID, amount: 10, want: commitment.KindForbidden},
		{name: "no price", giftID: h.f.Unpriced.ID, actorID: h.f.Friend.ID, amount: 10, want: commitment.KindInvalid},
		{name: "regular gift", giftID: h.f.Regular.ID, actorID: h.f.Friend.ID, amount: 10, want: commitment.KindInvalidKind},
		{name: "over target", giftID: h.f.Expensive.ID, actorID: h.f.Friend.ID, amount: storetest.ExpensivePrice + 1, want: commitment.KindInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.ContributeToGift(ctx, tc.giftID, tc.actorID, tc.amount)
			requireKind(t, err, tc.want)
		})
	}
	if n := len(h.ownerNotifications(t)); n != 0 {
		t.Fatalf("rejected contributions must not notify: %d", n)
	}
	if got := testutil.ToFloat64(h.metrics.attempts.WithLabelValues(commitment.OpContribute, string(commitment.KindInvalid))); got != 5 {
		t.Fatalf("INVALID attempts metric: %v", got)
	}
}

func TestAttemptRoutes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, memory.New(), beforeEvent)

	out, err := h.svc.Attempt(ctx, Request{Kind: KindReservation, GiftID: h.f.Regular.ID, ActorID: h.f.Friend.ID})
	if err != nil || out.Reservation == nil || out.Contribution != nil {
		t.Fatalf("reservation attempt: %+v %v", out, err)
	}
	out, err = h.svc.Attempt(ctx, Request{Kind: KindContribution, GiftID: h.f.Expensive.ID, ActorID: h.f.Friend.ID, Amount: 5})
	if err != nil || out.Contribution == nil || out.Reservation != nil {
		t.Fatalf("contribution attempt: %+v %v", out, err)
	}
	_, err = h.svc.Attempt(ctx, Request{Kind: "swap", GiftID: h.f.Regular.ID, ActorID: h.f.Friend.ID})
	requireKind(t, err, commitment.KindInvalid)
}

func TestConcurrentContributions(t *testing.T) {
	t.Parallel()
	for _, sf := range storeFactories() {
		sf := sf
		t.Run(sf.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			h := newHarness(t, sf.open(t), beforeEvent)

			const workers = 10
			amount := storetest.ExpensivePrice / 7

			var wg sync.WaitGroup
			errs := make([]error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = h.svc.ContributeToGift(ctx, h.f.Expensive.ID, h.f.Friend.ID, amount)
				}(i)
			}
			wg.Wait()

			ok, rejected := 0, 0
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case commitment.IsKind(err, commitment.KindConflict), commitment.IsKind(err, commitment.KindInvalid):
					rejected++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if ok != 7 || rejected != 3 {
				t.Fatalf("want 7 accepted and 3 rejected, got %d and %d", ok, rejected)
			}

			snap, err := h.store.Commitments().LoadSnapshot(ctx, h.f.Expensive.ID)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			if snap.Collected != storetest.ExpensivePrice || snap.ContributionCount != 7 {
				t.Fatalf("collected %d over %d contributions", snap.Collected, snap.ContributionCount)
			}

			list := h.ownerNotifications(t)
			if countType(list, models.NotificationCollectionComplete) != 1 || countType(list, models.NotificationContributionMade) != 6 {
				t.Fatalf("want 1 COLLECTION_COMPLETE and 6 CONTRIBUTION_MADE, got %d notifications", len(list))
			}
		})
	}
}

func TestConcurrentClaims(t *testing.T) {
	t.Parallel()
	for _, sf := range storeFactories() {
		sf := sf
		t.Run(sf.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			h := newHarness(t, sf.open(t), beforeEvent)

			actors := []int64{h.f.Friend.ID, h.f.Other.ID}
			errs := make([]error, len(actors))
			var wg sync.WaitGroup
			for i, actor := range actors {
				wg.Add(1)
				go func(i int, actor int64) {
					defer wg.Done()
					_, errs[i] = h.svc.ClaimGift(ctx, h.f.Regular.ID, actor)
				}(i, actor)
			}
			wg.Wait()

			ok := 0
			for _, err := range errs {
				if err == nil {
					ok++
					continue
				}
				requireKind(t, err, commitment.KindConflict)
			}
			if ok != 1 {
				t.Fatalf("exactly one claim must win, got %d", ok)
			}
			if n := countType(h.ownerNotifications(t), models.NotificationReservationMade); n != 1 {
				t.Fatalf("RESERVATION_MADE count: %d", n)
			}
		})
	}
}

// flakyStore fails the first n units with a retryable error.
type flakyStore struct {
	repository.CommitmentStore
	failures int
	calls    int
}

func (f *flakyStore) WithGift(ctx context.Context, giftID int64, fn func(repository.CommitmentTx) error) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.Join(repository.ErrRetryable, errors.New("could not serialize access"))
	}
	return f.CommitmentStore.WithGift(ctx, giftID, fn)
}

func TestCoordinatorRetriesRetryableFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.New()
	f := storetest.Seed(t, store, nil)

	flaky := &flakyStore{CommitmentStore: store.Commitments(), failures: 2}
	metrics := NewMetrics(nil)
	c := NewCoordinator(flaky, logger.Discard(), metrics, 3, nil)

	if _, err := c.ClaimGift(ctx, f.Regular.ID, f.Friend.ID); err != nil {
		t.Fatalf("claim after retries: %v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("calls: %d", flaky.calls)
	}
	if got := testutil.ToFloat64(metrics.retries.WithLabelValues(commitment.OpClaim)); got != 2 {
		t.Fatalf("retries metric: %v", got)
	}
}

func TestCoordinatorGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	store := memory.New()
	f := storetest.Seed(t, store, nil)

	flaky := &flakyStore{CommitmentStore: store.Commitments(), failures: 10}
	c := NewCoordinator(flaky, logger.Discard(), nil, 2, nil)

	_, err := c.ContributeToGift(context.Background(), f.Expensive.ID, f.Friend.ID, 100)
	requireKind(t, err, commitment.KindInternal)
	if !errors.Is(err, repository.ErrRetryable) {
		t.Fatalf("cause must be preserved: %v", err)
	}
	if flaky.calls != 2 {
		t.Fatalf("calls: %d", flaky.calls)
	}
}
