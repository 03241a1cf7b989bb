package models

import "time"

// RoundResult records one attempt at a lesson-level mastery check.
// At most one row exists per (user, lesson, round); a resubmission replaces it.
type RoundResult struct {
	ID             int64     `json:"id" db:"id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	LessonID       string    `json:"lesson_id" db:"lesson_id"`
	RoundNumber    int       `json:"round_number" db:"round_number"` // 1..3
	TotalQuestions int       `json:"total_questions" db:"total_questions"`
	CorrectCount   int       `json:"correct_count" db:"correct_count"`
	Accuracy       float64   `json:"accuracy" db:"accuracy"`
	Passed         bool      `json:"passed" db:"passed"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// RoundState holds a user's position in the three-round mastery sequence.
type RoundState struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	CurrentRound int       `json:"current_round" db:"current_round"` // 1..3
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
