package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/service"
	"github.com/Kerhoff/wishpool/internal/telegram"
)

// TokenVerifier resolves a login token to a user ID.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// LinkHandler handles /link <token>.
type LinkHandler struct {
	svc      *service.Service
	verifier TokenVerifier
	logger   *logrus.Logger
}

func NewLinkHandler(svc *service.Service, verifier TokenVerifier, logger *logrus.Logger) *LinkHandler {
	return &LinkHandler{svc: svc, verifier: verifier, logger: logger}
}

func (h *LinkHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return reply(bot, message, "❌ Usage: /link <token>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	userID, err := h.verifier.Verify(args[0])
	if err != nil {
		return replyError(bot, message, err)
	}
	user, err := h.svc.LinkTelegram(ctx, userID, message.From.ID, message.Chat.ID)
	if err != nil {
		return replyError(bot, message, err)
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"chat_id": message.Chat.ID,
	}).Info("Linked telegram chat")

	return reply(bot, message, "✅ Linked to "+user.DisplayName+". You will get notifications about your wishlists here.")
}
