package models

import "time"

// User is a registered account. Telegram fields are set once the user links
// a Telegram account with the bot.
type User struct {
	ID             int64     `json:"id" db:"id"`
	DisplayName    string    `json:"displayName" db:"display_name"`
	Email          string    `json:"email" db:"email"`
	TelegramID     *int64    `json:"telegramId,omitempty" db:"telegram_id"`
	TelegramChatID *int64    `json:"-" db:"telegram_chat_id"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// HasTelegram reports whether the user linked a Telegram chat.
func (u *User) HasTelegram() bool {
	return u.TelegramChatID != nil
}
