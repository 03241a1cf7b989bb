package database

import (
	"context"
	"fmt"

	"github.com/example/lingobot/pkg/models"
)

// SkipRepository records entities a user removed from a session.
// Skips travel outside the quality-score pipeline entirely.
type SkipRepository struct{}

// NewSkipRepository creates a new repository instance
func NewSkipRepository() *SkipRepository {
	return &SkipRepository{}
}

// Record stores one skip signal per entity id.
func (r *SkipRepository) Record(ctx context.Context, userID int64, entityType models.EntityType, entityIDs []int64) error {
	for _, id := range entityIDs {
		_, err := DB.ExecContext(ctx,
			"INSERT INTO review_skips (user_id, entity_type, entity_id) VALUES ($1, $2, $3)",
			userID, entityType, id)
		if err != nil {
			return fmt.Errorf("failed to record skip: %w", err)
		}
	}
	return nil
}

// CountForUser returns how many skips a user has logged.
func (r *SkipRepository) CountForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := DB.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM review_skips WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count skips: %w", err)
	}
	return count, nil
}
