// Package access gates progression through the curriculum modules
// (letters → words → sentences → articles). Unlocks are cumulative and
// monotonic; a locked module is a normal outcome, not an error.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/pkg/models"
)

var (
	// ErrInvalidModule is returned for an unknown module type.
	ErrInvalidModule = errors.New("unknown module type")

	// ErrProgressMissing signals an inconsistent state: a gated module was
	// requested for a user who has no progress record at all. The letter
	// module never produces this; it auto-initializes instead.
	ErrProgressMissing = errors.New("module progress record missing")
)

// ProgressRepo is the storage surface the gate needs.
type ProgressRepo interface {
	Get(ctx context.Context, userID int64) (*models.ModuleProgress, error)
	Create(ctx context.Context, progress *models.ModuleProgress) error
	Update(ctx context.Context, progress *models.ModuleProgress) error
}

// Decision is the outcome of an access check. A denied decision carries the
// completion percentage of the preceding module so the caller can render
// guidance.
type Decision struct {
	Allowed  bool
	Progress float64 // completion of the gating module, 0..1
	Reason   string  // set when denied
}

// Gate is the module access state machine.
type Gate struct {
	repo       ProgressRepo
	thresholds config.Gates
}

// New creates a gate with the configured unlock thresholds.
func New(cfg *config.Config, repo ProgressRepo) *Gate {
	return &Gate{repo: repo, thresholds: cfg.Gates}
}

// CheckAccess reports whether a user may enter a module. The letter module is
// always allowed and auto-initializes a missing progress record; for any
// other module a missing record is a hard failure requiring remediation.
func (g *Gate) CheckAccess(ctx context.Context, userID int64, module models.ModuleType) (Decision, error) {
	if userID <= 0 {
		return Decision{}, fmt.Errorf("user id is required")
	}
	if !models.ValidModuleType(module) {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidModule, module)
	}

	progress, err := g.repo.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, database.ErrRecordNotFound) {
			return Decision{}, err
		}
		if module != models.ModuleLetter {
			return Decision{}, fmt.Errorf("%w: user %d requested %s", ErrProgressMissing, userID, module)
		}
		progress = initialProgress(userID)
		if err := g.repo.Create(ctx, progress); err != nil {
			return Decision{}, err
		}
	}

	if module == models.ModuleLetter {
		return Decision{Allowed: true, Progress: progress.LetterProgress}, nil
	}

	// Threshold crossings observed here flip the flags so the unlock
	// persists even when progress was written by another path.
	if g.applyUnlocks(progress) {
		if err := g.repo.Update(ctx, progress); err != nil {
			return Decision{}, err
		}
	}

	if progress.Unlocked(module) {
		return Decision{Allowed: true, Progress: gatingProgress(progress, module)}, nil
	}

	return lockedDecision(progress, module, g.thresholds), nil
}

// RecordProgress updates the organic completion score of one module and flips
// any unlock thresholds it crosses. Progress never moves backwards.
func (g *Gate) RecordProgress(ctx context.Context, userID int64, module models.ModuleType, value float64) (*models.ModuleProgress, error) {
	if value < 0 || value > 1 {
		return nil, fmt.Errorf("progress %f out of range 0-1", value)
	}

	progress, err := g.getOrInit(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch module {
	case models.ModuleLetter:
		if value > progress.LetterProgress {
			progress.LetterProgress = value
		}
	case models.ModuleWord:
		if value > progress.WordProgress {
			progress.WordProgress = value
		}
	case models.ModuleSentence:
		if value > progress.SentenceProgress {
			progress.SentenceProgress = value
		}
	case models.ModuleArticle:
		// Articles are the last stage; nothing gates on them.
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidModule, module)
	}

	g.applyUnlocks(progress)
	if err := g.repo.Update(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// MarkCompleted records a certification-style completion of a module (for the
// letter module this is the explicit letterCompleted flag; later modules are
// treated as fully progressed) and flips the dependent unlocks.
func (g *Gate) MarkCompleted(ctx context.Context, userID int64, module models.ModuleType) (*models.ModuleProgress, error) {
	progress, err := g.getOrInit(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch module {
	case models.ModuleLetter:
		progress.LetterCompleted = true
		if progress.LetterProgress < 1 {
			progress.LetterProgress = 1
		}
	case models.ModuleWord:
		progress.WordProgress = 1
	case models.ModuleSentence:
		progress.SentenceProgress = 1
	case models.ModuleArticle:
		// Terminal stage, nothing to unlock.
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidModule, module)
	}

	g.applyUnlocks(progress)
	if err := g.repo.Update(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

func (g *Gate) getOrInit(ctx context.Context, userID int64) (*models.ModuleProgress, error) {
	progress, err := g.repo.Get(ctx, userID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, database.ErrRecordNotFound) {
		return nil, err
	}

	progress = initialProgress(userID)
	if err := g.repo.Create(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// applyUnlocks flips unlock flags whose thresholds are met. Flags only ever
// move from locked to unlocked. Reports whether anything changed.
func (g *Gate) applyUnlocks(p *models.ModuleProgress) bool {
	changed := false

	if !p.WordUnlocked && (p.LetterCompleted || p.LetterProgress >= g.thresholds.WordUnlockThreshold) {
		p.WordUnlocked = true
		changed = true
	}
	if !p.SentenceUnlocked && p.WordUnlocked && p.WordProgress >= g.thresholds.SentenceUnlockThreshold {
		p.SentenceUnlocked = true
		changed = true
	}
	if !p.ArticleUnlocked && p.SentenceUnlocked && p.SentenceProgress >= g.thresholds.ArticleUnlockThreshold {
		p.ArticleUnlocked = true
		changed = true
	}

	stage := currentStage(p)
	if p.CurrentStage != stage {
		p.CurrentStage = stage
		changed = true
	}

	return changed
}

func currentStage(p *models.ModuleProgress) models.ModuleType {
	switch {
	case p.ArticleUnlocked:
		return models.ModuleArticle
	case p.SentenceUnlocked:
		return models.ModuleSentence
	case p.WordUnlocked:
		return models.ModuleWord
	}
	return models.ModuleLetter
}

func initialProgress(userID int64) *models.ModuleProgress {
	return &models.ModuleProgress{
		UserID:       userID,
		CurrentStage: models.ModuleLetter,
	}
}

// gatingProgress returns the completion score of the module that gates entry
// to the given one.
func gatingProgress(p *models.ModuleProgress, module models.ModuleType) float64 {
	switch module {
	case models.ModuleWord:
		return p.LetterProgress
	case models.ModuleSentence:
		return p.WordProgress
	case models.ModuleArticle:
		return p.SentenceProgress
	}
	return p.LetterProgress
}

func lockedDecision(p *models.ModuleProgress, module models.ModuleType, th config.Gates) Decision {
	var (
		prev      models.ModuleType
		current   float64
		threshold float64
	)

	switch module {
	case models.ModuleWord:
		prev, current, threshold = models.ModuleLetter, p.LetterProgress, th.WordUnlockThreshold
	case models.ModuleSentence:
		prev, current, threshold = models.ModuleWord, p.WordProgress, th.SentenceUnlockThreshold
	case models.ModuleArticle:
		prev, current, threshold = models.ModuleSentence, p.SentenceProgress, th.ArticleUnlockThreshold
	}

	return Decision{
		Allowed:  false,
		Progress: current,
		Reason: fmt.Sprintf("%s module locked: %s progress %.0f%% of the %.0f%% required",
			module, prev, current*100, threshold*100),
	}
}
