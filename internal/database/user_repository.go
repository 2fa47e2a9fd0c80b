package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/pkg/models"
)

const userColumns = `id, username, first_name, theta, weight_f, weight_r, weight_e, l1_language,
	session_size, notification_enabled, notification_hour, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns a user by Telegram ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by ID: %v", err)
	}
	user := row.toModel()
	return &user, nil
}

// GetAll returns all users
func (r *UserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC"); err != nil {
		return nil, fmt.Errorf("failed to get users: %v", err)
	}
	return toUsers(rows), nil
}

// GetUsersForNotification returns users with reminders enabled for the given hour
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error) {
	var rows []userRow
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE notification_enabled = ? AND notification_hour = ? ORDER BY id")
	if err := r.db.SelectContext(ctx, &rows, query, true, hour); err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %v", err)
	}
	return toUsers(rows), nil
}

// Save inserts or updates a user. Timestamps are filled in when zero.
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (id, username, first_name, theta, weight_f, weight_r, weight_e, l1_language,
			session_size, notification_enabled, notification_hour, created_at, updated_at)
		VALUES (:id, :username, :first_name, :theta, :weight_f, :weight_r, :weight_e, :l1_language,
			:session_size, :notification_enabled, :notification_hour, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			theta = excluded.theta,
			weight_f = excluded.weight_f,
			weight_r = excluded.weight_r,
			weight_e = excluded.weight_e,
			l1_language = excluded.l1_language,
			session_size = excluded.session_size,
			notification_enabled = excluded.notification_enabled,
			notification_hour = excluded.notification_hour,
			updated_at = excluded.updated_at
	`, newUserRow(user))
	if err != nil {
		return fmt.Errorf("failed to save user: %v", err)
	}
	return nil
}

// UpdateState stores theta, weights and L1 of a user
func (r *UserRepository) UpdateState(ctx context.Context, id int64, state models.UserState) error {
	query := r.db.Rebind(`UPDATE users SET theta = ?, weight_f = ?, weight_r = ?, weight_e = ?, l1_language = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		state.Theta, state.Weights.F, state.Weights.R, state.Weights.E, state.L1Language, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user state: %v", err)
	}
	return requireAffected(res, "user", id)
}

// UpdateNotificationSettings toggles reminders and sets their hour
func (r *UserRepository) UpdateNotificationSettings(ctx context.Context, id int64, enabled bool, hour int) error {
	if hour < 0 || hour > 23 {
		return shared.Invalid("database", "UpdateNotificationSettings", "hour %d out of range 0-23", hour)
	}
	query := r.db.Rebind(`UPDATE users SET notification_enabled = ?, notification_hour = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, enabled, hour, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update notification settings: %v", err)
	}
	return requireAffected(res, "user", id)
}

func toUsers(rows []userRow) []models.User {
	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users
}

func requireAffected(res sql.Result, entity string, id interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %v", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, shared.ErrNotFound)
	}
	return nil
}
