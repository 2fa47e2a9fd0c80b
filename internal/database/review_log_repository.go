package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/langsched/pkg/models"
)

const reviewLogColumns = `id, user_id, object_id, rating, correct, cue_level, response_time_ms,
	stage_before, stage_after, reviewed_at`

// ReviewLogRepository reads review history. Reviews are written with MasteryRepository.SaveReview.
type ReviewLogRepository struct {
	db *sqlx.DB
}

// NewReviewLogRepository creates a new repository instance
func NewReviewLogRepository(db *sqlx.DB) *ReviewLogRepository {
	return &ReviewLogRepository{db: db}
}

const insertReviewLog = `
	INSERT INTO review_logs (id, user_id, object_id, rating, correct, cue_level, response_time_ms,
		stage_before, stage_after, reviewed_at)
	VALUES (:id, :user_id, :object_id, :rating, :correct, :cue_level, :response_time_ms,
		:stage_before, :stage_after, :reviewed_at)
`

// createReviewLog inserts entry through db or an open transaction,
// assigning a UUID when the ID is empty
func createReviewLog(ctx context.Context, e sqlx.ExtContext, entry *models.ReviewLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ReviewedAt = entry.ReviewedAt.UTC()

	if _, err := sqlx.NamedExecContext(ctx, e, insertReviewLog, entry); err != nil {
		return fmt.Errorf("failed to create review log: %v", err)
	}
	return nil
}

// GetByUser returns the latest review logs of a user, newest first
func (r *ReviewLogRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]models.ReviewLog, error) {
	var logs []models.ReviewLog
	query := r.db.Rebind("SELECT " + reviewLogColumns + " FROM review_logs WHERE user_id = ? ORDER BY reviewed_at DESC, id LIMIT ?")
	if err := r.db.SelectContext(ctx, &logs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get review logs: %v", err)
	}
	for i := range logs {
		logs[i].ReviewedAt = logs[i].ReviewedAt.UTC()
	}
	return logs, nil
}

// History returns every review of a user in the order it happened
func (r *ReviewLogRepository) History(ctx context.Context, userID int64) ([]models.ReviewLog, error) {
	var logs []models.ReviewLog
	query := r.db.Rebind("SELECT " + reviewLogColumns + " FROM review_logs WHERE user_id = ? ORDER BY reviewed_at, id")
	if err := r.db.SelectContext(ctx, &logs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get review history: %v", err)
	}
	for i := range logs {
		logs[i].ReviewedAt = logs[i].ReviewedAt.UTC()
	}
	return logs, nil
}

// ReviewStats summarizes a user's reviews since a point in time
type ReviewStats struct {
	Total   int `db:"total"`
	Correct int `db:"correct"`
}

// StatsSince counts reviews and correct answers of a user since the given time
func (r *ReviewLogRepository) StatsSince(ctx context.Context, userID int64, since time.Time) (ReviewStats, error) {
	var stats ReviewStats
	query := r.db.Rebind(`SELECT COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0) AS correct
		FROM review_logs WHERE user_id = ? AND reviewed_at >= ?`)
	if err := r.db.GetContext(ctx, &stats, query, userID, since.UTC()); err != nil {
		return ReviewStats{}, fmt.Errorf("failed to get review stats: %v", err)
	}
	return stats, nil
}
