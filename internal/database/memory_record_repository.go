package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/lingobot/pkg/models"
)

// ErrRecordNotFound is returned when a lookup matches no row.
var ErrRecordNotFound = errors.New("record not found")

// MemoryRecordRepository handles database operations for memory records
type MemoryRecordRepository struct{}

// NewMemoryRecordRepository creates a new repository instance
func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{}
}

// GetByKey returns the record for a specific (user, entity type, entity id).
func (r *MemoryRecordRepository) GetByKey(ctx context.Context, userID int64, entityType models.EntityType, entityID int64) (*models.MemoryRecord, error) {
	var rec models.MemoryRecord
	err := DB.GetContext(ctx, &rec,
		"SELECT * FROM memory_records WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3",
		userID, entityType, entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get memory record: %w", err)
	}
	return &rec, nil
}

// Insert creates a new record. A unique-constraint violation on the
// (user, entity type, entity id) key surfaces as an error; callers treat it
// as a lost creation race and re-read the winning row.
func (r *MemoryRecordRepository) Insert(ctx context.Context, rec *models.MemoryRecord) error {
	if DB.DriverName() == "postgres" {
		query := `
			INSERT INTO memory_records (
				user_id, entity_type, entity_id, mastery_level, review_stage,
				easiness_factor, interval_days, last_review_at, next_review_at,
				correct_count, wrong_count, streak_correct, is_locked
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id
		`
		err := DB.QueryRowContext(ctx, query,
			rec.UserID,
			rec.EntityType,
			rec.EntityID,
			rec.MasteryLevel,
			rec.ReviewStage,
			rec.EasinessFactor,
			rec.IntervalDays,
			rec.LastReviewAt,
			rec.NextReviewAt,
			rec.CorrectCount,
			rec.WrongCount,
			rec.StreakCorrect,
			rec.IsLocked,
		).Scan(&rec.ID)
		if err != nil {
			return fmt.Errorf("failed to insert memory record: %w", err)
		}

		return nil
	}

	// SQLite has no RETURNING support in the driver, read the rowid instead
	query := `
		INSERT INTO memory_records (
			user_id, entity_type, entity_id, mastery_level, review_stage,
			easiness_factor, interval_days, last_review_at, next_review_at,
			correct_count, wrong_count, streak_correct, is_locked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	result, err := DB.ExecContext(ctx, query,
		rec.UserID,
		rec.EntityType,
		rec.EntityID,
		rec.MasteryLevel,
		rec.ReviewStage,
		rec.EasinessFactor,
		rec.IntervalDays,
		rec.LastReviewAt,
		rec.NextReviewAt,
		rec.CorrectCount,
		rec.WrongCount,
		rec.StreakCorrect,
		rec.IsLocked,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory record: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		rec.ID = id
	}

	return nil
}

// Update overwrites the scheduling state of an existing record.
func (r *MemoryRecordRepository) Update(ctx context.Context, rec *models.MemoryRecord) error {
	query := `
		UPDATE memory_records SET
			mastery_level = $1,
			review_stage = $2,
			easiness_factor = $3,
			interval_days = $4,
			last_review_at = $5,
			next_review_at = $6,
			correct_count = $7,
			wrong_count = $8,
			streak_correct = $9,
			is_locked = $10,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $11 AND entity_type = $12 AND entity_id = $13
	`
	result, err := DB.ExecContext(ctx, query,
		rec.MasteryLevel,
		rec.ReviewStage,
		rec.EasinessFactor,
		rec.IntervalDays,
		rec.LastReviewAt,
		rec.NextReviewAt,
		rec.CorrectCount,
		rec.WrongCount,
		rec.StreakCorrect,
		rec.IsLocked,
		rec.UserID,
		rec.EntityType,
		rec.EntityID,
	)
	if err != nil {
		return fmt.Errorf("failed to update memory record: %w", err)
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

// DueToday returns unlocked records whose next review is at or before now,
// earliest first, up to limit.
func (r *MemoryRecordRepository) DueToday(ctx context.Context, userID int64, entityType models.EntityType, now time.Time, limit int) ([]models.MemoryRecord, error) {
	query := `
		SELECT * FROM memory_records
		WHERE user_id = $1 AND entity_type = $2
		AND is_locked = false
		AND next_review_at IS NOT NULL
		AND next_review_at <= $3
		ORDER BY next_review_at ASC
		LIMIT $4
	`
	var records []models.MemoryRecord
	err := DB.SelectContext(ctx, &records, query, userID, entityType, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due records: %w", err)
	}
	return records, nil
}

// CountDue returns how many records across all entity types are due for review.
func (r *MemoryRecordRepository) CountDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	err := DB.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM memory_records
		WHERE user_id = $1
		AND is_locked = false
		AND next_review_at IS NOT NULL
		AND next_review_at <= $2
	`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count due records: %w", err)
	}
	return count, nil
}

// MemoryStats summarizes a user's tracked entities.
type MemoryStats struct {
	TotalTracked int     `db:"total_tracked"`
	DueToday     int     `db:"due_today"`
	Mastered     int     `db:"mastered"`
	AvgEasiness  float64 `db:"avg_easiness"`
	AvgMastery   float64 `db:"avg_mastery"`
	TotalCorrect int     `db:"total_correct"`
	TotalWrong   int     `db:"total_wrong"`
}

// GetUserStats returns statistics about a user's tracked entities.
func (r *MemoryRecordRepository) GetUserStats(ctx context.Context, userID int64, now time.Time) (*MemoryStats, error) {
	var stats MemoryStats
	err := DB.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total_tracked,
			COALESCE(SUM(CASE WHEN is_locked = false AND next_review_at IS NOT NULL AND next_review_at <= $2 THEN 1 ELSE 0 END), 0) AS due_today,
			COALESCE(SUM(CASE WHEN review_stage >= 5 AND mastery_level >= 0.8 THEN 1 ELSE 0 END), 0) AS mastered,
			COALESCE(AVG(easiness_factor), 2.5) AS avg_easiness,
			COALESCE(AVG(mastery_level), 0) AS avg_mastery,
			COALESCE(SUM(correct_count), 0) AS total_correct,
			COALESCE(SUM(wrong_count), 0) AS total_wrong
		FROM memory_records
		WHERE user_id = $1
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &stats, nil
}

// ModuleMastery returns the share of entities of one type the user has
// mastered, relative to the entity count of that type in the curriculum.
func (r *MemoryRecordRepository) ModuleMastery(ctx context.Context, userID int64, entityType models.EntityType) (float64, error) {
	var total int
	err := DB.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM entities WHERE entity_type = $1", entityType)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	if total == 0 {
		return 0, nil
	}

	var mastered int
	err = DB.GetContext(ctx, &mastered, `
		SELECT COUNT(*) FROM memory_records
		WHERE user_id = $1 AND entity_type = $2
		AND review_stage >= 5 AND mastery_level >= 0.8
	`, userID, entityType)
	if err != nil {
		return 0, fmt.Errorf("failed to count mastered records: %w", err)
	}

	return float64(mastered) / float64(total), nil
}
