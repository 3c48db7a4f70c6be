package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Kerhoff/wishpool/internal/identity"
	"github.com/Kerhoff/wishpool/internal/repository/memory"
	"github.com/Kerhoff/wishpool/internal/repository/storetest"
	"github.com/Kerhoff/wishpool/internal/service"
	"github.com/Kerhoff/wishpool/internal/telegram"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type env struct {
	svc      *service.Service
	provider *identity.Provider
	f        storetest.Fixture
	sender   *fakeSender
	logs     *test.Hook
	handlers map[string]telegram.CommandHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	log, hook := test.NewNullLogger()
	svc := service.New(store, log, nil)
	provider, err := identity.NewProvider("handler-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	return &env{
		svc:      svc,
		provider: provider,
		f:        storetest.Seed(t, store, nil),
		sender:   &fakeSender{},
		logs:     hook,
		handlers: map[string]telegram.CommandHandler{
			"start":   NewStartHandler(log),
			"help":    NewHelpHandler(log),
			"link":    NewLinkHandler(svc, provider, log),
			"claim":   NewClaimHandler(svc, log),
			"unclaim": NewUnclaimHandler(svc, log),
			"chip":    NewChipHandler(svc, log),
			"gift":    NewGiftHandler(svc, log),
			"inbox":   NewInboxHandler(svc, log),
		},
	}
}

// run invokes a command as Telegram user tgID and returns the reply.
func (e *env) run(t *testing.T, tgID int64, cmd string, args ...string) string {
	t.Helper()
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: tgID},
		Chat: &tgbotapi.Chat{ID: tgID + 1000, Type: "private"},
	}
	if err := e.handlers[cmd].Handle(e.sender, msg, args); err != nil {
		t.Fatalf("/%s %v: %v", cmd, args, err)
	}
	return e.sender.last()
}

func (e *env) link(t *testing.T, tgID, userID int64) {
	t.Helper()
	token, err := e.provider.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if out := e.run(t, tgID, "link", token); !strings.HasPrefix(out, "✅ Linked") {
		t.Fatalf("link reply: %q", out)
	}
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Fatalf("reply %q does not contain %q", got, want)
	}
}

func TestUnlinkedUser(t *testing.T) {
	e := newEnv(t)
	requireContains(t, e.run(t, 1, "claim", "1"), "/link")
	requireContains(t, e.run(t, 1, "link", "bogus"), "🔑")
	requireContains(t, e.run(t, 1, "link"), "Usage")
}

func TestClaimAndUnclaim(t *testing.T) {
	e := newEnv(t)
	e.link(t, 11, e.f.Friend.ID)
	e.link(t, 12, e.f.Owner.ID)

	giftArg := formatAmount(e.f.Regular.ID)
	out := e.run(t, 11, "claim", giftArg)
	requireContains(t, out, "reserved for you")

	requireContains(t, e.run(t, 11, "claim", giftArg), "already reserved")
	requireContains(t, e.run(t, 12, "claim", giftArg), "⛔")
	requireContains(t, e.run(t, 11, "claim", formatAmount(e.f.Expensive.ID)), "🔀")
	requireContains(t, e.run(t, 11, "claim", "abc"), "positive number")

	requireContains(t, e.run(t, 11, "gift", giftArg), "Reserved by you. Cancel: /unclaim")
	requireContains(t, e.run(t, 12, "gift", giftArg), "This is your gift.")

	snap, err := e.svc.GiftStatus(context.Background(), e.f.Regular.ID, e.f.Friend.ID)
	if err != nil || snap.ReservationID == nil {
		t.Fatalf("status: %+v %v", snap, err)
	}
	resArg := formatAmount(*snap.ReservationID)
	requireContains(t, e.run(t, 12, "unclaim", resArg), "⛔")
	requireContains(t, e.run(t, 11, "unclaim", resArg), "cancelled")
	requireContains(t, e.run(t, 11, "unclaim", resArg), "🔍")

	inbox := e.run(t, 12, "inbox")
	requireContains(t, inbox, "2 unread")
	requireContains(t, inbox, "Reservation cancelled")
}

func TestChip(t *testing.T) {
	e := newEnv(t)
	e.link(t, 21, e.f.Friend.ID)

	giftArg := formatAmount(e.f.Expensive.ID)
	requireContains(t, e.run(t, 21, "gift", giftArg), "Chip in up to 7000000")
	requireContains(t, e.run(t, 21, "chip", giftArg, "0"), "positive")
	requireContains(t, e.run(t, 21, "chip", giftArg, "1.5"), "whole number")
	requireContains(t, e.run(t, 21, "chip", giftArg, "6900000"), "Collected 6900000 of 7000000")
	requireContains(t, e.run(t, 21, "chip", giftArg, "200000"), "maximum allowed: 100000")

	out := e.run(t, 21, "chip", giftArg, "100000")
	requireContains(t, out, "goal is reached")
	requireContains(t, e.run(t, 21, "chip", giftArg, "1"), "🙅")
	requireContains(t, e.run(t, 21, "gift", giftArg), "Collection complete")
}

func TestGuestGiftView(t *testing.T) {
	e := newEnv(t)
	out := e.run(t, 31, "gift", formatAmount(e.f.Regular.ID))
	requireContains(t, out, "Status: free")
	if strings.Contains(out, "/claim") {
		t.Fatalf("guests get no commands: %q", out)
	}
	requireContains(t, e.run(t, 31, "gift", "999999"), "🔍")
}

func TestStaticReplies(t *testing.T) {
	e := newEnv(t)
	requireContains(t, e.run(t, 41, "start"), "/link")
	requireContains(t, e.run(t, 41, "help"), "/chip <giftId> <amount>")
}

func TestCompletedCommandsAreLogged(t *testing.T) {
	e := newEnv(t)
	e.link(t, 11, e.f.Friend.ID)

	requireContains(t, e.run(t, 11, "claim", formatAmount(e.f.Regular.ID)), "reserved for you")
	var reservationID any
	for _, entry := range e.logs.AllEntries() {
		if entry.Message == "Claimed gift" {
			reservationID = entry.Data["reservation_id"]
		}
	}
	if reservationID == nil {
		t.Fatal("claim was not logged with its reservation id")
	}
	requireContains(t, e.run(t, 11, "unclaim", formatAmount(reservationID.(int64))), "cancelled")
	requireContains(t, e.run(t, 11, "chip", formatAmount(e.f.Expensive.ID), "1000"), "Collected 1000")

	logged := map[string]logrus.Fields{}
	for _, entry := range e.logs.AllEntries() {
		if entry.Level == logrus.InfoLevel {
			logged[entry.Message] = entry.Data
		}
	}
	for _, msg := range []string{"Linked telegram chat", "Claimed gift", "Cancelled reservation", "Contributed to gift"} {
		fields, ok := logged[msg]
		if !ok {
			t.Fatalf("missing log %q in %v", msg, logged)
		}
		if fields["user_id"] != e.f.Friend.ID {
			t.Fatalf("%q user_id: %v", msg, fields["user_id"])
		}
	}
	if logged["Contributed to gift"]["amount"] != int64(1000) {
		t.Fatalf("contribution fields: %v", logged["Contributed to gift"])
	}
}
