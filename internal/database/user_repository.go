package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lingobot/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetByTelegramID returns a user by Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := DB.GetContext(ctx, &user, `
		SELECT telegram_id, username, first_name, last_name, is_admin,
		       notification_enabled, notification_hour, items_per_day,
		       created_at, updated_at
		FROM users WHERE telegram_id = $1
	`, telegramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateOrUpdate registers a user on first contact and refreshes profile
// fields on subsequent ones.
func (r *UserRepository) CreateOrUpdate(ctx context.Context, user *models.User) error {
	existing, err := r.GetByTelegramID(ctx, user.ID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return err
	}

	if existing != nil {
		_, err = DB.ExecContext(ctx, `
			UPDATE users SET
				username = $1,
				first_name = $2,
				last_name = $3,
				updated_at = CURRENT_TIMESTAMP
			WHERE telegram_id = $4
		`, user.Username, user.FirstName, user.LastName, user.ID)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		user.IsAdmin = existing.IsAdmin
		user.NotificationEnabled = existing.NotificationEnabled
		user.NotificationHour = existing.NotificationHour
		user.ItemsPerDay = existing.ItemsPerDay
		return nil
	}

	if user.ItemsPerDay == 0 {
		user.ItemsPerDay = 10
	}
	if user.NotificationHour == 0 {
		user.NotificationHour = 9
	}

	_, err = DB.ExecContext(ctx, `
		INSERT INTO users (
			telegram_id, username, first_name, last_name, is_admin,
			notification_enabled, notification_hour, items_per_day
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.IsAdmin,
		user.NotificationEnabled,
		user.NotificationHour,
		user.ItemsPerDay,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUsersForNotification returns users whose reminder hour matches the given
// hour and who have notifications enabled.
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error) {
	var users []models.User
	err := DB.SelectContext(ctx, &users, `
		SELECT telegram_id, username, first_name, last_name, is_admin,
		       notification_enabled, notification_hour, items_per_day,
		       created_at, updated_at
		FROM users
		WHERE notification_enabled = true AND notification_hour = $1
	`, hour)
	if err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %w", err)
	}
	return users, nil
}

// SetNotifications toggles reminder delivery for a user.
func (r *UserRepository) SetNotifications(ctx context.Context, telegramID int64, enabled bool) error {
	_, err := DB.ExecContext(ctx,
		"UPDATE users SET notification_enabled = $1, updated_at = CURRENT_TIMESTAMP WHERE telegram_id = $2",
		enabled, telegramID)
	if err != nil {
		return fmt.Errorf("failed to set notifications: %w", err)
	}
	return nil
}
