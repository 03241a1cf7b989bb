package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lingobot/pkg/models"
)

// RoundRepository handles database operations for lesson-level mastery rounds
type RoundRepository struct{}

// NewRoundRepository creates a new repository instance
func NewRoundRepository() *RoundRepository {
	return &RoundRepository{}
}

// GetState returns the user's current round position.
func (r *RoundRepository) GetState(ctx context.Context, userID int64) (*models.RoundState, error) {
	var state models.RoundState
	err := DB.GetContext(ctx, &state,
		"SELECT * FROM round_state WHERE user_id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get round state: %w", err)
	}
	return &state, nil
}

// SaveState creates or updates the user's round position.
func (r *RoundRepository) SaveState(ctx context.Context, state *models.RoundState) error {
	result, err := DB.ExecContext(ctx,
		"UPDATE round_state SET current_round = $1, updated_at = CURRENT_TIMESTAMP WHERE user_id = $2",
		state.CurrentRound, state.UserID)
	if err != nil {
		return fmt.Errorf("failed to update round state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	_, err = DB.ExecContext(ctx,
		"INSERT INTO round_state (user_id, current_round) VALUES ($1, $2)",
		state.UserID, state.CurrentRound)
	if err != nil {
		return fmt.Errorf("failed to insert round state: %w", err)
	}
	return nil
}

// UpsertResult stores one round attempt, replacing any prior attempt for the
// same (user, lesson, round) key so a resubmission never duplicates history.
func (r *RoundRepository) UpsertResult(ctx context.Context, result *models.RoundResult) error {
	res, err := DB.ExecContext(ctx, `
		UPDATE round_results SET
			total_questions = $1,
			correct_count = $2,
			accuracy = $3,
			passed = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $5 AND lesson_id = $6 AND round_number = $7
	`,
		result.TotalQuestions,
		result.CorrectCount,
		result.Accuracy,
		result.Passed,
		result.UserID,
		result.LessonID,
		result.RoundNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to update round result: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	_, err = DB.ExecContext(ctx, `
		INSERT INTO round_results (
			user_id, lesson_id, round_number, total_questions,
			correct_count, accuracy, passed
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		result.UserID,
		result.LessonID,
		result.RoundNumber,
		result.TotalQuestions,
		result.CorrectCount,
		result.Accuracy,
		result.Passed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert round result: %w", err)
	}
	return nil
}

// HistoryByLesson returns all recorded attempts for one lesson, in round order.
func (r *RoundRepository) HistoryByLesson(ctx context.Context, userID int64, lessonID string) ([]models.RoundResult, error) {
	var results []models.RoundResult
	err := DB.SelectContext(ctx, &results, `
		SELECT * FROM round_results
		WHERE user_id = $1 AND lesson_id = $2
		ORDER BY round_number ASC
	`, userID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round history: %w", err)
	}
	return results, nil
}
