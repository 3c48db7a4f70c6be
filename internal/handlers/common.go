package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/service"
	"github.com/Kerhoff/wishpool/internal/telegram"
)

const commandTimeout = 10 * time.Second

var kindIcons = map[commitment.Kind]string{
	commitment.KindNotFound:     "🔍",
	commitment.KindForbidden:    "⛔",
	commitment.KindInvalidKind:  "🔀",
	commitment.KindInvalid:      "⚠️",
	commitment.KindConflict:     "🙅",
	commitment.KindPastDeadline: "⌛",
	commitment.KindAuthFailure:  "🔑",
}

// reply sends plain text. Gift titles are user input, so no parse mode.
func reply(bot telegram.Sender, message *tgbotapi.Message, text string) error {
	if _, err := bot.Send(tgbotapi.NewMessage(message.Chat.ID, text)); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// replyError renders commitment errors as a short message and returns
// everything else to the router.
func replyError(bot telegram.Sender, message *tgbotapi.Message, err error) error {
	kind := commitment.KindOf(err)
	icon, ok := kindIcons[kind]
	if !ok {
		return err
	}
	return reply(bot, message, icon+" "+commitment.MessageOf(err))
}

// actor resolves the linked wishpool user of the message sender.
func actor(ctx context.Context, svc *service.Service, message *tgbotapi.Message) (*models.User, error) {
	return svc.UserByTelegramID(ctx, message.From.ID)
}

func parseID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	return id, err == nil && id > 0
}

func formatAmount(v int64) string {
	return strconv.FormatInt(v, 10)
}
