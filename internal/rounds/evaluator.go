// Package rounds evaluates lesson-level mastery checks: up to three attempts
// per lesson, pass at 90% accuracy, with idempotent resubmission.
package rounds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/pkg/models"
)

// Repo is the storage surface the evaluator needs.
type Repo interface {
	GetState(ctx context.Context, userID int64) (*models.RoundState, error)
	SaveState(ctx context.Context, state *models.RoundState) error
	UpsertResult(ctx context.Context, result *models.RoundResult) error
	HistoryByLesson(ctx context.Context, userID int64, lessonID string) ([]models.RoundResult, error)
}

// CompletionMarker receives module completions when a final certification
// round passes. Implemented by the access gate.
type CompletionMarker interface {
	MarkCompleted(ctx context.Context, userID int64, module models.ModuleType) (*models.ModuleProgress, error)
}

// Outcome reports a submitted round and the user's position afterwards.
type Outcome struct {
	Result    *models.RoundResult
	NextRound int
}

// Evaluator tracks the three-round mastery sequence.
type Evaluator struct {
	repo          Repo
	gate          CompletionMarker
	passThreshold float64
	maxRounds     int
}

// New creates an evaluator. gate may be nil when no module completion wiring
// is wanted (tests).
func New(cfg *config.Config, repo Repo, gate CompletionMarker) *Evaluator {
	return &Evaluator{
		repo:          repo,
		gate:          gate,
		passThreshold: cfg.Rounds.PassThreshold,
		maxRounds:     cfg.Rounds.MaxRounds,
	}
}

// SubmitRound records one attempt at a lesson's mastery check. Resubmitting
// the same (lesson, round) replaces the prior entry. The current round
// advances only when this round passed and the sequence has rounds left; a
// failed round stays put and must be retried at the same number.
func (e *Evaluator) SubmitRound(ctx context.Context, userID int64, lessonID string, roundNumber, totalQuestions, correctCount int) (*Outcome, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("user id is required")
	}
	if lessonID == "" {
		return nil, fmt.Errorf("lesson id is required")
	}
	if roundNumber < 1 || roundNumber > e.maxRounds {
		return nil, fmt.Errorf("round number %d out of range 1-%d", roundNumber, e.maxRounds)
	}
	if totalQuestions < 0 || correctCount < 0 || correctCount > totalQuestions {
		return nil, fmt.Errorf("invalid question counts: %d/%d", correctCount, totalQuestions)
	}

	accuracy := 0.0
	if totalQuestions > 0 {
		accuracy = float64(correctCount) / float64(totalQuestions)
	}

	result := &models.RoundResult{
		UserID:         userID,
		LessonID:       lessonID,
		RoundNumber:    roundNumber,
		TotalQuestions: totalQuestions,
		CorrectCount:   correctCount,
		Accuracy:       accuracy,
		Passed:         accuracy >= e.passThreshold,
	}

	if err := e.repo.UpsertResult(ctx, result); err != nil {
		return nil, err
	}

	state, err := e.repo.GetState(ctx, userID)
	if err != nil {
		if !errors.Is(err, database.ErrRecordNotFound) {
			return nil, err
		}
		state = &models.RoundState{UserID: userID, CurrentRound: 1}
	}

	if result.Passed && roundNumber < e.maxRounds && roundNumber+1 > state.CurrentRound {
		state.CurrentRound = roundNumber + 1
	}
	if state.CurrentRound > e.maxRounds {
		state.CurrentRound = e.maxRounds
	}

	if err := e.repo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	// A passed final round certifies the lesson's module.
	if result.Passed && roundNumber == e.maxRounds && e.gate != nil {
		if module, ok := moduleFromLesson(lessonID); ok {
			if _, err := e.gate.MarkCompleted(ctx, userID, module); err != nil {
				return nil, err
			}
		}
	}

	return &Outcome{Result: result, NextRound: state.CurrentRound}, nil
}

// CurrentRound returns the user's position in the round sequence. A user with
// no recorded state starts at round one.
func (e *Evaluator) CurrentRound(ctx context.Context, userID int64) (int, error) {
	state, err := e.repo.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return state.CurrentRound, nil
}

// History returns all recorded attempts for one lesson, in round order.
func (e *Evaluator) History(ctx context.Context, userID int64, lessonID string) ([]models.RoundResult, error) {
	return e.repo.HistoryByLesson(ctx, userID, lessonID)
}

// moduleFromLesson maps a lesson id like "letter-basics-1" to the module it
// certifies.
func moduleFromLesson(lessonID string) (models.ModuleType, bool) {
	prefix, _, _ := strings.Cut(lessonID, "-")
	module := models.ModuleType(prefix)
	if models.ValidModuleType(module) {
		return module, true
	}
	return "", false
}
