package service

import (
	"context"
	"testing"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository/memory"
)

func TestInbox(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, memory.New(), beforeEvent)

	empty, err := h.svc.ListNotifications(ctx, h.f.Owner.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if empty.Notifications == nil || len(empty.Notifications) != 0 || empty.UnreadCount != 0 {
		t.Fatalf("empty inbox: %+v", empty)
	}

	if _, err := h.svc.ClaimGift(ctx, h.f.Regular.ID, h.f.Friend.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := h.svc.ContributeToGift(ctx, h.f.Expensive.ID, h.f.Friend.ID, 1000); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	inbox, err := h.svc.ListNotifications(ctx, h.f.Owner.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inbox.Notifications) != 2 || inbox.UnreadCount != 2 {
		t.Fatalf("inbox: %+v", inbox)
	}
	if inbox.Notifications[0].Type != models.NotificationContributionMade {
		t.Fatalf("newest first: %s", inbox.Notifications[0].Type)
	}

	target := inbox.Notifications[0].ID
	requireKind(t, h.svc.MarkNotificationRead(ctx, h.f.Friend.ID, target), commitment.KindForbidden)
	requireKind(t, h.svc.MarkNotificationRead(ctx, h.f.Owner.ID, 987654), commitment.KindNotFound)

	if err := h.svc.MarkNotificationRead(ctx, h.f.Owner.ID, target); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := h.svc.MarkNotificationRead(ctx, h.f.Owner.ID, target); err != nil {
		t.Fatalf("mark read twice: %v", err)
	}
	inbox, _ = h.svc.ListNotifications(ctx, h.f.Owner.ID)
	if inbox.UnreadCount != 1 {
		t.Fatalf("unread after mark: %d", inbox.UnreadCount)
	}

	if err := h.svc.MarkAllNotificationsRead(ctx, h.f.Owner.ID); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	inbox, _ = h.svc.ListNotifications(ctx, h.f.Owner.ID)
	if inbox.UnreadCount != 0 {
		t.Fatalf("unread after mark all: %d", inbox.UnreadCount)
	}

	friendInbox, err := h.svc.ListNotifications(ctx, h.f.Friend.ID)
	if err != nil {
		t.Fatalf("friend list: %v", err)
	}
	if len(friendInbox.Notifications) != 0 {
		t.Fatal("notifications must be addressed to the owner only")
	}
}
