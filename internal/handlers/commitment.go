package handlers

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/service"
	"github.com/Kerhoff/wishpool/internal/telegram"
)

// ClaimHandler handles /claim <giftId>.
type ClaimHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewClaimHandler(svc *service.Service, logger *logrus.Logger) *ClaimHandler {
	return &ClaimHandler{svc: svc, logger: logger}
}

func (h *ClaimHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return reply(bot, message, "❌ Usage: /claim <giftId>")
	}
	giftID, ok := parseID(args[0])
	if !ok {
		return reply(bot, message, "❌ Gift ID must be a positive number.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user, err := actor(ctx, h.svc, message)
	if err != nil {
		return replyError(bot, message, err)
	}
	res, err := h.svc.Attempt(ctx, service.Request{
		Kind:    service.KindReservation,
		GiftID:  giftID,
		ActorID: user.ID,
	})
	if err != nil {
		return replyError(bot, message, err)
	}

	h.logger.WithFields(logrus.Fields{
		"gift_id":        giftID,
		"user_id":        user.ID,
		"reservation_id": res.Reservation.ID,
	}).Info("Claimed gift")

	return reply(bot, message, fmt.Sprintf(
		"✅ Gift %d is reserved for you.\nChanged your mind? /unclaim %d", giftID, res.Reservation.ID))
}

// UnclaimHandler handles /unclaim <reservationId>.
type UnclaimHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewUnclaimHandler(svc *service.Service, logger *logrus.Logger) *UnclaimHandler {
	return &UnclaimHandler{svc: svc, logger: logger}
}

func (h *UnclaimHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return reply(bot, message, "❌ Usage: /unclaim <reservationId>")
	}
	reservationID, ok := parseID(args[0])
	if !ok {
		return reply(bot, message, "❌ Reservation ID must be a positive number.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user, err := actor(ctx, h.svc, message)
	if err != nil {
		return replyError(bot, message, err)
	}
	if err := h.svc.CancelReservation(ctx, reservationID, user.ID); err != nil {
		return replyError(bot, message, err)
	}

	h.logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"user_id":        user.ID,
	}).Info("Cancelled reservation")

	return reply(bot, message, "↩️ Reservation cancelled.")
}

// ChipHandler handles /chip <giftId> <amount>.
type ChipHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewChipHandler(svc *service.Service, logger *logrus.Logger) *ChipHandler {
	return &ChipHandler{svc: svc, logger: logger}
}

func (h *ChipHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 2 {
		return reply(bot, message, "❌ Usage: /chip <giftId> <amount>")
	}
	giftID, ok := parseID(args[0])
	if !ok {
		return reply(bot, message, "❌ Gift ID must be a positive number.")
	}
	// Range is checked by the service so zero and negative amounts get
	// the same answer as over the API.
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return reply(bot, message, "❌ Amount must be a whole number of minor units.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user, err := actor(ctx, h.svc, message)
	if err != nil {
		return replyError(bot, message, err)
	}
	result, err := h.svc.Attempt(ctx, service.Request{
		Kind:    service.KindContribution,
		GiftID:  giftID,
		ActorID: user.ID,
		Amount:  amount,
	})
	if err != nil {
		return replyError(bot, message, err)
	}
	res := result.Contribution

	h.logger.WithFields(logrus.Fields{
		"gift_id": giftID,
		"user_id": user.ID,
		"amount":  amount,
		"total":   res.TotalCollected,
	}).Info("Contributed to gift")

	text := fmt.Sprintf("💰 Thanks! Collected %s of %s.",
		formatAmount(res.TotalCollected), formatAmount(res.Target))
	if res.TotalCollected >= res.Target {
		text += "\n🎉 The goal is reached!"
	}
	return reply(bot, message, text)
}
