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

const inboxPreview = 10

// InboxHandler handles /inbox. Listing does not mark anything read.
type InboxHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewInboxHandler(svc *service.Service, logger *logrus.Logger) *InboxHandler {
	return &InboxHandler{svc: svc, logger: logger}
}

func (h *InboxHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user, err := actor(ctx, h.svc, message)
	if err != nil {
		return replyError(bot, message, err)
	}
	inbox, err := h.svc.ListNotifications(ctx, user.ID)
	if err != nil {
		return replyError(bot, message, err)
	}
	h.logger.WithFields(logrus.Fields{"user_id": user.ID, "unread": inbox.UnreadCount}).Debug("Showed inbox")
	if len(inbox.Notifications) == 0 {
		return reply(bot, message, "📭 No notifications yet.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📬 %d unread\n", inbox.UnreadCount)
	for i, n := range inbox.Notifications {
		if i == inboxPreview {
			break
		}
		marker := "•"
		if !n.IsRead {
			marker = "🆕"
		}
		fmt.Fprintf(&b, "\n%s %s: %s", marker, n.Title, n.Body)
	}
	return reply(bot, message, b.String())
}
