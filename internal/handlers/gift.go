package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/service"
	"github.com/Kerhoff/wishpool/internal/telegram"
)

// GiftHandler handles /gift <giftId>.
type GiftHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewGiftHandler(svc *service.Service, logger *logrus.Logger) *GiftHandler {
	return &GiftHandler{svc: svc, logger: logger}
}

func (h *GiftHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return reply(bot, message, "❌ Usage: /gift <giftId>")
	}
	giftID, ok := parseID(args[0])
	if !ok {
		return reply(bot, message, "❌ Gift ID must be a positive number.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// Unlinked users see the guest view.
	var viewerID int64
	if user, err := actor(ctx, h.svc, message); err == nil {
		viewerID = user.ID
	}

	st, err := h.svc.GiftStatus(ctx, giftID, viewerID)
	if err != nil {
		return replyError(bot, message, err)
	}
	h.logger.WithFields(logrus.Fields{"gift_id": giftID, "user_id": viewerID}).Debug("Showed gift status")
	return reply(bot, message, FormatGiftStatus(st))
}

// FormatGiftStatus renders the status view with the commands that apply.
func FormatGiftStatus(st *service.GiftStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎁 Gift %d (%s)\n", st.GiftID, st.Classification)

	switch st.Status {
	case service.StatusFree:
		b.WriteString("Status: free\n")
	case service.StatusReserved:
		b.WriteString("Status: reserved\n")
	case service.StatusCollectionOpen:
		fmt.Fprintf(&b, "Collection: %s of %s (%d contributions)\n",
			formatAmount(st.TotalCollected), formatAmount(*st.Target), st.ContributionCount)
	case service.StatusCollectionComplete:
		fmt.Fprintf(&b, "Collection complete: %s 🎉\n", formatAmount(st.TotalCollected))
	}

	switch {
	case st.CanReserve:
		fmt.Fprintf(&b, "Reserve it: /claim %d", st.GiftID)
	case st.CanContribute:
		fmt.Fprintf(&b, "Chip in up to %s: /chip %d <amount>", formatAmount(*st.Target-st.TotalCollected), st.GiftID)
	case st.ReservationID != nil:
		fmt.Fprintf(&b, "Reserved by you. Cancel: /unclaim %d", *st.ReservationID)
	case st.Role == service.RoleOwner:
		b.WriteString("This is your gift.")
	}
	return strings.TrimRight(b.String(), "\n")
}
