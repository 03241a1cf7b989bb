package models

import "time"

// EntityType identifies which kind of curriculum entity a record refers to.
type EntityType string

const (
	EntityLetter   EntityType = "letter"
	EntityWord     EntityType = "word"
	EntitySentence EntityType = "sentence"
)

// ValidEntityType reports whether t is one of the known entity types.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityLetter, EntityWord, EntitySentence:
		return true
	}
	return false
}

// Entity represents one curriculum item to be learned (a letter, word or sentence)
type Entity struct {
	ID           int64      `json:"id" db:"id"`
	EntityType   EntityType `json:"entity_type" db:"entity_type"`
	Content      string     `json:"content" db:"content"`
	Translation  string     `json:"translation" db:"translation"`
	Romanization string     `json:"romanization" db:"romanization"` // Optional: latin transcription
	Example      string     `json:"example" db:"example"`           // Optional: usage example
	LessonID     string     `json:"lesson_id" db:"lesson_id"`
	Difficulty   int        `json:"difficulty" db:"difficulty"` // 1-5 scale of difficulty
	Position     int        `json:"position" db:"position"`     // Order within the lesson
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
