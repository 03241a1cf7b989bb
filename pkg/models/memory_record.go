package models

import "time"

// MemoryRecord tracks a user's retention of a single entity using the SM-2 algorithm.
// One record exists per (user, entity type, entity id); it is created lazily on
// first access and overwritten on every scheduling update.
type MemoryRecord struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	EntityType     EntityType `json:"entity_type" db:"entity_type"`
	EntityID       int64      `json:"entity_id" db:"entity_id"`
	MasteryLevel   float64    `json:"mastery_level" db:"mastery_level"`     // 0..1 confidence score
	ReviewStage    int        `json:"review_stage" db:"review_stage"`       // Repetition count
	EasinessFactor float64    `json:"easiness_factor" db:"easiness_factor"` // SM-2 EF parameter, floor 1.3
	IntervalDays   int        `json:"interval_days" db:"interval_days"`     // Current interval in days
	LastReviewAt   *time.Time `json:"last_review_at" db:"last_review_at"`
	NextReviewAt   *time.Time `json:"next_review_at" db:"next_review_at"` // Nil while locked
	CorrectCount   int        `json:"correct_count" db:"correct_count"`
	WrongCount     int        `json:"wrong_count" db:"wrong_count"`
	StreakCorrect  int        `json:"streak_correct" db:"streak_correct"` // Consecutive correct recalls
	IsLocked       bool       `json:"is_locked" db:"is_locked"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Due reports whether the record is scheduled for review at the given time.
func (m *MemoryRecord) Due(now time.Time) bool {
	return !m.IsLocked && m.NextReviewAt != nil && !m.NextReviewAt.After(now)
}
