package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/langsched/internal/priority"
	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/pkg/models"
)

const objectColumns = `id, kind, content, translation, frequency, relational_density,
	contextual_contribution, irt_difficulty, created_at, updated_at`

const upsertObject = `
	INSERT INTO language_objects (id, kind, content, translation, frequency, relational_density,
		contextual_contribution, irt_difficulty, created_at, updated_at)
	VALUES (:id, :kind, :content, :translation, :frequency, :relational_density,
		:contextual_contribution, :irt_difficulty, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		kind = excluded.kind,
		content = excluded.content,
		translation = excluded.translation,
		frequency = excluded.frequency,
		relational_density = excluded.relational_density,
		contextual_contribution = excluded.contextual_contribution,
		irt_difficulty = excluded.irt_difficulty,
		updated_at = excluded.updated_at
`

// ObjectRepository handles database operations for language objects
type ObjectRepository struct {
	db *sqlx.DB
}

// NewObjectRepository creates a new repository instance
func NewObjectRepository(db *sqlx.DB) *ObjectRepository {
	return &ObjectRepository{db: db}
}

// GetByID returns a language object by ID
func (r *ObjectRepository) GetByID(ctx context.Context, id string) (*models.LanguageObject, error) {
	var obj models.LanguageObject
	query := r.db.Rebind("SELECT " + objectColumns + " FROM language_objects WHERE id = ?")
	if err := r.db.GetContext(ctx, &obj, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("language object %q: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get language object: %v", err)
	}
	normalizeObject(&obj)
	return &obj, nil
}

// GetAll returns every language object ordered by ID
func (r *ObjectRepository) GetAll(ctx context.Context) ([]models.LanguageObject, error) {
	var objects []models.LanguageObject
	if err := r.db.SelectContext(ctx, &objects, "SELECT "+objectColumns+" FROM language_objects ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to get language objects: %v", err)
	}
	for i := range objects {
		normalizeObject(&objects[i])
	}
	return objects, nil
}

// Count returns the number of stored language objects
func (r *ObjectRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM language_objects"); err != nil {
		return 0, fmt.Errorf("failed to count language objects: %v", err)
	}
	return n, nil
}

// SaveBatch stores objects in one transaction. Any invalid object aborts the batch.
func (r *ObjectRepository) SaveBatch(ctx context.Context, objects []models.LanguageObject) error {
	for _, obj := range objects {
		if err := priority.ValidateSignal(obj); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range objects {
		stampObject(&objects[i], now)
		if _, err := tx.NamedExecContext(ctx, upsertObject, &objects[i]); err != nil {
			return fmt.Errorf("failed to save language object %q: %v", objects[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit language objects: %v", err)
	}
	return nil
}

func stampObject(obj *models.LanguageObject, now time.Time) {
	if obj.Kind == "" {
		obj.Kind = models.KindWord
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = now
	}
	obj.UpdatedAt = now
}

func normalizeObject(obj *models.LanguageObject) {
	obj.CreatedAt = obj.CreatedAt.UTC()
	obj.UpdatedAt = obj.UpdatedAt.UTC()
}
