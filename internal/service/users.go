package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

const (
	opUser = "user"
	opLink = "link_telegram"
)

// User returns a user by ID.
func (s *Service) User(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, commitment.New(commitment.KindNotFound, opUser, "user not found")
		}
		return nil, commitment.Wrap(commitment.KindInternal, opUser, err)
	}
	return user, nil
}

// UserByTelegramID resolves the user linked to a Telegram account.
func (s *Service) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.store.Users().GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, commitment.New(commitment.KindAuthFailure, opUser, "telegram account is not linked, use /link <token>")
		}
		return nil, commitment.Wrap(commitment.KindInternal, opUser, err)
	}
	return user, nil
}

// LinkTelegram attaches a Telegram account and its private chat to userID.
// Relinking the same account to the same user is allowed.
func (s *Service) LinkTelegram(ctx context.Context, userID, telegramID, chatID int64) (*models.User, error) {
	err := s.store.Users().LinkTelegram(ctx, userID, telegramID, chatID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, commitment.New(commitment.KindNotFound, opLink, "user not found")
	case errors.Is(err, repository.ErrConflict):
		return nil, commitment.New(commitment.KindConflict, opLink, "this telegram account is linked to another user")
	case err != nil:
		return nil, commitment.Wrap(commitment.KindInternal, opLink, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"telegram_id": telegramID,
	}).Info("Linked telegram account")
	return s.User(ctx, userID)
}
