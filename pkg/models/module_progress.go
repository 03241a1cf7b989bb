package models

import "time"

// ModuleType identifies a curriculum module in the unlock sequence.
type ModuleType string

const (
	ModuleLetter   ModuleType = "letter"
	ModuleWord     ModuleType = "word"
	ModuleSentence ModuleType = "sentence"
	ModuleArticle  ModuleType = "article"
)

// ValidModuleType reports whether m is one of the known modules.
func ValidModuleType(m ModuleType) bool {
	switch m {
	case ModuleLetter, ModuleWord, ModuleSentence, ModuleArticle:
		return true
	}
	return false
}

// ModuleProgress tracks a user's position in the curriculum and which modules
// are unlocked. Unlock flags are monotonic: once a module opens it never closes.
type ModuleProgress struct {
	UserID           int64      `json:"user_id" db:"user_id"`
	LetterCompleted  bool       `json:"letter_completed" db:"letter_completed"` // Certification test passed
	LetterProgress   float64    `json:"letter_progress" db:"letter_progress"`   // 0..1 organic progress
	WordProgress     float64    `json:"word_progress" db:"word_progress"`
	SentenceProgress float64    `json:"sentence_progress" db:"sentence_progress"`
	WordUnlocked     bool       `json:"word_unlocked" db:"word_unlocked"`
	SentenceUnlocked bool       `json:"sentence_unlocked" db:"sentence_unlocked"`
	ArticleUnlocked  bool       `json:"article_unlocked" db:"article_unlocked"`
	CurrentStage     ModuleType `json:"current_stage" db:"current_stage"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Unlocked reports whether the given module is open for this user.
// The letter module is always open.
func (p *ModuleProgress) Unlocked(module ModuleType) bool {
	switch module {
	case ModuleLetter:
		return true
	case ModuleWord:
		return p.WordUnlocked
	case ModuleSentence:
		return p.SentenceUnlocked
	case ModuleArticle:
		return p.ArticleUnlocked
	}
	return false
}
