package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lingobot/pkg/models"
)

// ModuleProgressRepository handles database operations for per-user module progress
type ModuleProgressRepository struct{}

// NewModuleProgressRepository creates a new repository instance
func NewModuleProgressRepository() *ModuleProgressRepository {
	return &ModuleProgressRepository{}
}

// Get returns a user's module progress row.
func (r *ModuleProgressRepository) Get(ctx context.Context, userID int64) (*models.ModuleProgress, error) {
	var progress models.ModuleProgress
	err := DB.GetContext(ctx, &progress,
		"SELECT * FROM module_progress WHERE user_id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get module progress: %w", err)
	}
	return &progress, nil
}

// Create inserts a fresh progress row. The letter module starts unlocked,
// everything else locked.
func (r *ModuleProgressRepository) Create(ctx context.Context, progress *models.ModuleProgress) error {
	query := `
		INSERT INTO module_progress (
			user_id, letter_completed, letter_progress, word_progress,
			sentence_progress, word_unlocked, sentence_unlocked,
			article_unlocked, current_stage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := DB.ExecContext(ctx, query,
		progress.UserID,
		progress.LetterCompleted,
		progress.LetterProgress,
		progress.WordProgress,
		progress.SentenceProgress,
		progress.WordUnlocked,
		progress.SentenceUnlocked,
		progress.ArticleUnlocked,
		progress.CurrentStage,
	)
	if err != nil {
		return fmt.Errorf("failed to create module progress: %w", err)
	}
	return nil
}

// Update overwrites a user's progress row.
func (r *ModuleProgressRepository) Update(ctx context.Context, progress *models.ModuleProgress) error {
	query := `
		UPDATE module_progress SET
			letter_completed = $1,
			letter_progress = $2,
			word_progress = $3,
			sentence_progress = $4,
			word_unlocked = $5,
			sentence_unlocked = $6,
			article_unlocked = $7,
			current_stage = $8,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $9
	`
	result, err := DB.ExecContext(ctx, query,
		progress.LetterCompleted,
		progress.LetterProgress,
		progress.WordProgress,
		progress.SentenceProgress,
		progress.WordUnlocked,
		progress.SentenceUnlocked,
		progress.ArticleUnlocked,
		progress.CurrentStage,
		progress.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update module progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}

	return nil
}
