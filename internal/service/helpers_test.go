package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/config"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
	"github.com/Kerhoff/wishpool/internal/repository/memory"
	"github.com/Kerhoff/wishpool/internal/repository/sqlstore"
	"github.com/Kerhoff/wishpool/internal/repository/storetest"
	"github.com/Kerhoff/wishpool/pkg/logger"
)

var (
	eventDate    = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	beforeEvent  = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	afterEvent   = time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)
	fixedClockAt = func(t time.Time) func() time.Time { return func() time.Time { return t } }
)

type storeFactory struct {
	name string
	open func(t *testing.T) repository.Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{name: "memory", open: func(*testing.T) repository.Store { return memory.New() }},
		{name: "sqlite", open: openSQLite},
	}
}

func openSQLite(t *testing.T) repository.Store {
	t.Helper()
	db, err := config.NewDatabase(config.DriverSQLite, filepath.Join(t.TempDir(), "service.db"), logger.Discard())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	store := sqlstore.New(db.DB, sqlstore.SQLite)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type harness struct {
	store   repository.Store
	svc     *Service
	metrics *Metrics
	f       storetest.Fixture
}

func newHarness(t *testing.T, store repository.Store, now time.Time) *harness {
	t.Helper()
	metrics := NewMetrics(nil)
	ed := eventDate
	return &harness{
		store:   store,
		svc:     New(store, logger.Discard(), metrics, WithClock(fixedClockAt(now))),
		metrics: metrics,
		f:       storetest.Seed(t, store, &ed),
	}
}

func (h *harness) ownerNotifications(t *testing.T) []*models.Notification {
	t.Helper()
	list, err := h.store.Notifications().ListByUser(context.Background(), h.f.Owner.ID, 1000)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return list
}

func countType(list []*models.Notification, typ models.NotificationType) int {
	n := 0
	for _, item := range list {
		if item.Type == typ {
			n++
		}
	}
	return n
}

func requireKind(t *testing.T, err error, want commitment.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := commitment.KindOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}
