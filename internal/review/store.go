// Package review owns the per-(user, entity) memory records: lazy creation,
// due-set queries and the single mutation path that feeds review outcomes
// through the spaced-repetition scheduler.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/internal/spaced_repetition"
	"github.com/example/lingobot/pkg/models"
)

// ErrInvalidInput is returned when an identifier or quality value is missing
// or out of range. Nothing is persisted in that case.
var ErrInvalidInput = errors.New("invalid input")

// MemoryRepo is the storage surface the store needs for memory records.
type MemoryRepo interface {
	GetByKey(ctx context.Context, userID int64, entityType models.EntityType, entityID int64) (*models.MemoryRecord, error)
	Insert(ctx context.Context, rec *models.MemoryRecord) error
	Update(ctx context.Context, rec *models.MemoryRecord) error
	DueToday(ctx context.Context, userID int64, entityType models.EntityType, now time.Time, limit int) ([]models.MemoryRecord, error)
}

// SkipRepo records skip signals, decoupled from the quality pipeline.
type SkipRepo interface {
	Record(ctx context.Context, userID int64, entityType models.EntityType, entityIDs []int64) error
}

// Store is the memory record store.
type Store struct {
	repo            MemoryRepo
	skips           SkipRepo
	sm2             *spaced_repetition.SM2
	initialEasiness float64

	now func() time.Time
}

// NewStore builds a store with the scheduler tuned from configuration.
func NewStore(cfg *config.Config, repo MemoryRepo, skips SkipRepo) *Store {
	sm2 := spaced_repetition.New()
	sm2.EasinessFloor = cfg.SRS.EasinessFloor
	sm2.MaxInterval = cfg.SRS.MaxIntervalDays
	sm2.FuzzyShrink = cfg.SRS.FuzzyShrink
	if len(cfg.SRS.EarlyIntervals) > 0 {
		sm2.EarlyIntervals = cfg.SRS.EarlyIntervals
	}

	return &Store{
		repo:            repo,
		skips:           skips,
		sm2:             sm2,
		initialEasiness: cfg.SRS.InitialEasiness,
		now:             time.Now,
	}
}

// GetOrCreate returns the record for the key, creating it lazily on first
// access. A locked record carries no next review date until it is unlocked.
//
// Creation is safe under concurrent duplicate attempts: when the insert loses
// a race to the unique key, the store falls back to reading the winning row
// instead of surfacing the constraint violation.
func (s *Store) GetOrCreate(ctx context.Context, userID int64, entityType models.EntityType, entityID int64, locked bool) (*models.MemoryRecord, error) {
	if userID <= 0 || entityID <= 0 {
		return nil, fmt.Errorf("%w: user and entity ids are required", ErrInvalidInput)
	}
	if !models.ValidEntityType(entityType) {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType)
	}

	rec, err := s.repo.GetByKey(ctx, userID, entityType, entityID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, database.ErrRecordNotFound) {
		return nil, err
	}

	now := s.now()
	fresh := &models.MemoryRecord{
		UserID:         userID,
		EntityType:     entityType,
		EntityID:       entityID,
		MasteryLevel:   0,
		ReviewStage:    0,
		EasinessFactor: s.initialEasiness,
		IntervalDays:   1,
		IsLocked:       locked,
	}
	if !locked {
		next := now.Add(24 * time.Hour)
		fresh.NextReviewAt = &next
	}

	if insertErr := s.repo.Insert(ctx, fresh); insertErr != nil {
		// Lost a creation race: the winner's row is the record.
		if rec, readErr := s.repo.GetByKey(ctx, userID, entityType, entityID); readErr == nil {
			return rec, nil
		}
		return nil, insertErr
	}

	return fresh, nil
}

// RecordOutcome is the sole mutation path for scheduling state and mastery.
// It routes the quality signal through the SM-2 scheduler, applies the
// quality-tiered mastery adjustment and persists the overwritten record.
func (s *Store) RecordOutcome(ctx context.Context, userID int64, entityType models.EntityType, entityID int64, quality spaced_repetition.Quality) (*models.MemoryRecord, error) {
	if !quality.Valid() {
		return nil, fmt.Errorf("%w: quality %d out of range 1-5", ErrInvalidInput, quality)
	}

	rec, err := s.GetOrCreate(ctx, userID, entityType, entityID, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res, err := s.sm2.ComputeNext(quality, rec.IntervalDays, rec.EasinessFactor, rec.ReviewStage, now)
	if err != nil {
		return nil, err
	}

	rec.IntervalDays = res.NextInterval
	rec.EasinessFactor = res.NextEasiness
	rec.ReviewStage = res.Repetitions
	rec.LastReviewAt = &now
	rec.NextReviewAt = &res.NextReviewAt
	rec.IsLocked = false
	rec.MasteryLevel = adjustMastery(rec.MasteryLevel, quality)

	if quality >= spaced_repetition.QualityFuzzy {
		rec.CorrectCount++
		rec.StreakCorrect++
	} else {
		rec.WrongCount++
		rec.StreakCorrect = 0
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DueToday returns the user's unlocked records due at or before now,
// earliest-due first, up to limit.
func (s *Store) DueToday(ctx context.Context, userID int64, entityType models.EntityType, limit int) ([]models.MemoryRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !models.ValidEntityType(entityType) {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType)
	}
	return s.repo.DueToday(ctx, userID, entityType, s.now(), limit)
}

// Outcome is one buffered scoring event to submit.
type Outcome struct {
	EntityID int64
	Quality  spaced_repetition.Quality
}

// SubmitOutcomes records a batch of outcomes. Entities are independent, so
// records are dispatched in parallel; the combined error of all failed
// submissions is returned.
func (s *Store) SubmitOutcomes(ctx context.Context, userID int64, entityType models.EntityType, outcomes []Outcome) error {
	var wg sync.WaitGroup
	errs := make([]error, len(outcomes))

	for i, o := range outcomes {
		wg.Add(1)
		go func(i int, o Outcome) {
			defer wg.Done()
			if _, err := s.RecordOutcome(ctx, userID, entityType, o.EntityID, o.Quality); err != nil {
				errs[i] = fmt.Errorf("entity %d: %w", o.EntityID, err)
			}
		}(i, o)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// SubmitSkipped records entities the user removed from a session. Skips never
// enter the quality-score pipeline.
func (s *Store) SubmitSkipped(ctx context.Context, userID int64, entityType models.EntityType, entityIDs []int64) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return s.skips.Record(ctx, userID, entityType, entityIDs)
}

// adjustMastery applies the quality-tiered mastery step, clamped to [0,1].
func adjustMastery(current float64, quality spaced_repetition.Quality) float64 {
	switch {
	case quality >= 4:
		current += 0.2
	case quality >= 2:
		current += 0.05
	default:
		current -= 0.15
	}

	if current > 1 {
		return 1
	}
	if current < 0 {
		return 0
	}
	return current
}
