package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/telegram"
)

const helpText = `📚 wishpool help

Account:
• /link <token> - Link this Telegram account

Gifts:
• /gift <giftId> - Show gift status
• /claim <giftId> - Reserve a gift
• /unclaim <reservationId> - Cancel your reservation
• /chip <giftId> <amount> - Contribute to a group collection

Notifications:
• /inbox - Latest notifications about your wishlists

Amounts are in minor units (cents).`

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Debug("Sent help message")

	return reply(bot, message, helpText)
}
