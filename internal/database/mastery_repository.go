package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/pkg/models"
)

const masteryColumns = `user_id, object_id, stage, card_difficulty, card_stability, card_last_review,
	card_reps, card_lapses, card_state, cue_free_accuracy, cue_assisted_accuracy, exposure_count, updated_at`

// MasteryRepository stores per-user mastery states together with their FSRS cards
type MasteryRepository struct {
	db *sqlx.DB
}

// NewMasteryRepository creates a new repository instance
func NewMasteryRepository(db *sqlx.DB) *MasteryRepository {
	return &MasteryRepository{db: db}
}

// Get returns the mastery state of one (user, object) pair
func (r *MasteryRepository) Get(ctx context.Context, userID int64, objectID string) (models.MasteryState, error) {
	var row masteryRow
	query := r.db.Rebind("SELECT " + masteryColumns + " FROM mastery_states WHERE user_id = ? AND object_id = ?")
	if err := r.db.GetContext(ctx, &row, query, userID, objectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.MasteryState{}, fmt.Errorf("mastery %d/%s: %w", userID, objectID, shared.ErrNotFound)
		}
		return models.MasteryState{}, fmt.Errorf("failed to get mastery state: %v", err)
	}
	return row.toModel(), nil
}

// GetByUser returns every mastery state of a user keyed by object ID
func (r *MasteryRepository) GetByUser(ctx context.Context, userID int64) (map[string]models.MasteryState, error) {
	var rows []masteryRow
	query := r.db.Rebind("SELECT " + masteryColumns + " FROM mastery_states WHERE user_id = ?")
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get mastery states: %v", err)
	}
	states := make(map[string]models.MasteryState, len(rows))
	for _, row := range rows {
		states[row.ObjectID] = row.toModel()
	}
	return states, nil
}

const upsertMastery = `
	INSERT INTO mastery_states (user_id, object_id, stage, card_difficulty, card_stability, card_last_review,
		card_reps, card_lapses, card_state, cue_free_accuracy, cue_assisted_accuracy, exposure_count, updated_at)
	VALUES (:user_id, :object_id, :stage, :card_difficulty, :card_stability, :card_last_review,
		:card_reps, :card_lapses, :card_state, :cue_free_accuracy, :cue_assisted_accuracy, :exposure_count, :updated_at)
	ON CONFLICT (user_id, object_id) DO UPDATE SET
		stage = excluded.stage,
		card_difficulty = excluded.card_difficulty,
		card_stability = excluded.card_stability,
		card_last_review = excluded.card_last_review,
		card_reps = excluded.card_reps,
		card_lapses = excluded.card_lapses,
		card_state = excluded.card_state,
		cue_free_accuracy = excluded.cue_free_accuracy,
		cue_assisted_accuracy = excluded.cue_assisted_accuracy,
		exposure_count = excluded.exposure_count,
		updated_at = excluded.updated_at
`

// Save inserts or replaces a mastery state
func (r *MasteryRepository) Save(ctx context.Context, state models.MasteryState) error {
	if _, err := r.db.NamedExecContext(ctx, upsertMastery, newMasteryRow(state)); err != nil {
		return fmt.Errorf("failed to save mastery state: %v", err)
	}
	return nil
}

// SaveReview stores a mastery state and the review that produced it in one
// transaction. Either both are written or neither is.
func (r *MasteryRepository) SaveReview(ctx context.Context, state models.MasteryState, entry *models.ReviewLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, upsertMastery, newMasteryRow(state)); err != nil {
		return fmt.Errorf("failed to save mastery state: %v", err)
	}
	if err := createReviewLog(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %v", err)
	}
	return nil
}
