package spaced_repetition

import (
	"fmt"
	"math"
	"time"
)

// SM2 implements a SuperMemo-2 variant for spaced repetition.
// It is a pure calculator: all interval math in the application routes
// through ComputeNext so every caller schedules identically.
type SM2 struct {
	// Минимальный фактор легкости
	EasinessFloor float64
	// Максимальный интервал повторения в днях
	MaxInterval int
	// Множитель интервала для нечеткого ответа (< 1)
	FuzzyShrink float64
	// Предустановленные интервалы для первых повторений
	EarlyIntervals []int
}

// New creates an SM2 instance with default settings.
func New() *SM2 {
	return &SM2{
		EasinessFloor:  1.3,
		MaxInterval:    180,
		FuzzyShrink:    0.5,
		EarlyIntervals: []int{1, 2, 4, 7, 14},
	}
}

// Quality is an ordinal 1-5 recall rating.
type Quality int

const (
	// Complete blackout, unable to recall
	QualityForgot Quality = 1
	// Recalled with difficulty or uncertainty
	QualityFuzzy Quality = 3
	// Recalled correctly without hesitation
	QualityRemembered Quality = 5
)

// Valid reports whether q is inside the accepted 1-5 range.
func (q Quality) Valid() bool {
	return q >= 1 && q <= 5
}

// Result is the outcome of one scheduling step.
type Result struct {
	NextInterval int       // days until the next review
	NextEasiness float64   // updated EF, never below the floor
	NextReviewAt time.Time // now + NextInterval days
	Repetitions  int       // updated repetition count
	ShouldReset  bool      // the item was forgotten and its ramp restarted
}

// ComputeNext applies the SM-2 variant to one review outcome.
//
// quality < 3 resets the interval to one day and restarts the repetition
// count; quality == 3 shrinks the current interval rather than growing it;
// quality > 3 walks a fixed accelerating table for the first repetitions
// (the classic algorithm ramps too slowly early on) and multiplies by the
// easiness factor afterwards. The interval is always an integer in
// [1, MaxInterval].
func (sm *SM2) ComputeNext(quality Quality, intervalDays int, easiness float64, reviewStage int, now time.Time) (Result, error) {
	if !quality.Valid() {
		return Result{}, fmt.Errorf("quality %d out of range 1-5", quality)
	}

	var res Result

	switch {
	case quality < QualityFuzzy:
		// Forgotten: restart the ramp.
		res.NextInterval = 1
		res.NextEasiness = sm.floorEF(easiness - 0.2)
		res.Repetitions = 0
		res.ShouldReset = true

	case quality == QualityFuzzy:
		// Fuzzy recall: shrink the interval instead of resetting it.
		res.NextInterval = int(math.Round(float64(intervalDays) * sm.FuzzyShrink))
		if res.NextInterval < 1 {
			res.NextInterval = 1
		}
		res.NextEasiness = sm.floorEF(easiness - 0.1)
		res.Repetitions = reviewStage + 1

	default:
		// Remembered.
		if reviewStage < len(sm.EarlyIntervals) {
			res.NextInterval = sm.EarlyIntervals[reviewStage]
		} else {
			res.NextInterval = int(math.Round(float64(intervalDays) * easiness))
		}
		q := float64(quality)
		res.NextEasiness = sm.floorEF(easiness + (0.1 - (5.0-q)*(0.08+(5.0-q)*0.02)))
		res.Repetitions = reviewStage + 1
	}

	if res.NextInterval > sm.MaxInterval {
		res.NextInterval = sm.MaxInterval
	}
	if res.NextInterval < 1 {
		res.NextInterval = 1
	}

	res.NextReviewAt = now.AddDate(0, 0, res.NextInterval)
	return res, nil
}

func (sm *SM2) floorEF(ef float64) float64 {
	if ef < sm.EasinessFloor {
		return sm.EasinessFloor
	}
	return ef
}
