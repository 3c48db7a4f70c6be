package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/repository"
)

type userRepository struct {
	s *Store
}

const userColumns = `id, display_name, email, telegram_id, telegram_chat_id, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := r.s.timestamp()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := r.s.db.QueryRowContext(ctx, r.s.q(`
		INSERT INTO users (display_name, email, telegram_id, telegram_chat_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		user.DisplayName,
		user.Email,
		nullInt64(user.TelegramID),
		nullInt64(user.TelegramChatID),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to create user: %w", err))
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.s.db.QueryRowContext(ctx, r.s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	row := r.s.db.QueryRowContext(ctx, r.s.q(`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`), telegramID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("telegram user %d: %w", telegramID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return user, nil
}

// LinkTelegram attaches a Telegram account to the user. A Telegram account
// can belong to one user only; linking it elsewhere returns ErrConflict.
func (r *userRepository) LinkTelegram(ctx context.Context, userID, telegramID, chatID int64) error {
	result, err := r.s.db.ExecContext(ctx, r.s.q(`
		UPDATE users
		SET telegram_id = ?, telegram_chat_id = ?, updated_at = ?
		WHERE id = ?`), telegramID, chatID, r.s.timestamp(), userID)
	if err != nil {
		return mapError(fmt.Errorf("failed to link telegram account: %w", err))
	}
	return requireAffected(result, "user", userID)
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var telegramID, chatID sql.NullInt64
	if err := row.Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&telegramID,
		&chatID,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if telegramID.Valid {
		user.TelegramID = &telegramID.Int64
	}
	if chatID.Valid {
		user.TelegramChatID = &chatID.Int64
	}
	return user, nil
}
