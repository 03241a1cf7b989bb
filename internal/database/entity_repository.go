package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lingobot/pkg/models"
)

// EntityRepository handles database operations for curriculum entities
type EntityRepository struct{}

// NewEntityRepository creates a new repository instance
func NewEntityRepository() *EntityRepository {
	return &EntityRepository{}
}

// GetByID returns an entity by ID
func (r *EntityRepository) GetByID(ctx context.Context, id int64) (*models.Entity, error) {
	var entity models.Entity
	err := DB.GetContext(ctx, &entity, "SELECT * FROM entities WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get entity by ID: %w", err)
	}
	return &entity, nil
}

// GetByIDs returns the entities with the given ids, keyed by id.
func (r *EntityRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Entity, error) {
	out := make(map[int64]models.Entity, len(ids))
	for _, id := range ids {
		entity, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = *entity
	}
	return out, nil
}

// GetByLesson returns the entities of one lesson in position order.
func (r *EntityRepository) GetByLesson(ctx context.Context, entityType models.EntityType, lessonID string) ([]models.Entity, error) {
	var entities []models.Entity
	err := DB.SelectContext(ctx, &entities,
		"SELECT * FROM entities WHERE entity_type = $1 AND lesson_id = $2 ORDER BY position",
		entityType, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson entities: %w", err)
	}
	return entities, nil
}

// NewForUser returns entities of one type the user has no memory record for
// yet, in curriculum order, up to limit. These are the candidates for today's
// fresh acquisition.
func (r *EntityRepository) NewForUser(ctx context.Context, userID int64, entityType models.EntityType, limit int) ([]models.Entity, error) {
	query := `
		SELECT e.* FROM entities e
		LEFT JOIN memory_records m
			ON m.entity_id = e.id AND m.entity_type = e.entity_type AND m.user_id = $1
		WHERE e.entity_type = $2 AND m.id IS NULL
		ORDER BY e.lesson_id, e.position
		LIMIT $3
	`
	var entities []models.Entity
	err := DB.SelectContext(ctx, &entities, query, userID, entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get new entities: %w", err)
	}
	return entities, nil
}

// DistractorTranslations returns up to count translations of other entities of
// the same type, used as wrong options in multiple-choice checks.
func (r *EntityRepository) DistractorTranslations(ctx context.Context, entityType models.EntityType, excludeID int64, count int) ([]string, error) {
	query := `
		SELECT translation FROM entities
		WHERE entity_type = $1 AND id != $2
		ORDER BY RANDOM()
		LIMIT $3
	`
	var translations []string
	err := DB.SelectContext(ctx, &translations, query, entityType, excludeID, count)
	if err != nil {
		return nil, fmt.Errorf("failed to get distractor translations: %w", err)
	}
	return translations, nil
}

// GetByContentAndLesson looks an entity up by its natural key, used by the importer.
func (r *EntityRepository) GetByContentAndLesson(ctx context.Context, entityType models.EntityType, content, lessonID string) (*models.Entity, error) {
	var entity models.Entity
	err := DB.GetContext(ctx, &entity,
		"SELECT * FROM entities WHERE entity_type = $1 AND content = $2 AND lesson_id = $3",
		entityType, content, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}

// Create inserts a new entity
func (r *EntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	if DB.DriverName() == "postgres" {
		query := `
			INSERT INTO entities (
				entity_type, content, translation, romanization,
				example, lesson_id, difficulty, position
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		err := DB.QueryRowContext(ctx, query,
			entity.EntityType,
			entity.Content,
			entity.Translation,
			entity.Romanization,
			entity.Example,
			entity.LessonID,
			entity.Difficulty,
			entity.Position,
		).Scan(&entity.ID)
		if err != nil {
			return fmt.Errorf("failed to create entity: %w", err)
		}
		return nil
	}

	// SQLite has no RETURNING support in the driver, read the rowid instead
	query := `
		INSERT INTO entities (
			entity_type, content, translation, romanization,
			example, lesson_id, difficulty, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	result, err := DB.ExecContext(ctx, query,
		entity.EntityType,
		entity.Content,
		entity.Translation,
		entity.Romanization,
		entity.Example,
		entity.LessonID,
		entity.Difficulty,
		entity.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entity.ID = id
	}
	return nil
}

// Update modifies an existing entity
func (r *EntityRepository) Update(ctx context.Context, entity *models.Entity) error {
	query := `
		UPDATE entities SET
			translation = $1,
			romanization = $2,
			example = $3,
			difficulty = $4,
			position = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
	`
	_, err := DB.ExecContext(ctx, query,
		entity.Translation,
		entity.Romanization,
		entity.Example,
		entity.Difficulty,
		entity.Position,
		entity.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	return nil
}
