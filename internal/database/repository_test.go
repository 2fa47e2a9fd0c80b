package database

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/langsched/internal/config"
	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/pkg/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sqlx.DB, id int64) *models.User {
	t.Helper()
	u := &models.User{
		ID:        id,
		Username:  "learner",
		FirstName: "Ann",
		State: models.UserState{
			Theta:   0.5,
			Weights: models.PriorityWeights{F: 0.4, R: 0.3, E: 0.3},
		},
		SessionSize:         10,
		NotificationEnabled: true,
		NotificationHour:    9,
	}
	require.NoError(t, NewUserRepository(db).Save(context.Background(), u))
	return u
}

func sampleObject(id string) models.LanguageObject {
	return models.LanguageObject{
		ID:                     id,
		Kind:                   models.KindWord,
		Content:                "Haus",
		Translation:            "house",
		Frequency:              0.8,
		RelationalDensity:      0.5,
		ContextualContribution: 0.3,
		IRTDifficulty:          -0.5,
	}
}

func seedObjects(t *testing.T, db *sqlx.DB, ids ...string) {
	t.Helper()
	objects := make([]models.LanguageObject, 0, len(ids))
	for _, id := range ids {
		objects = append(objects, sampleObject(id))
	}
	require.NoError(t, NewObjectRepository(db).SaveBatch(context.Background(), objects))
}

func TestConnect_UnsupportedType(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Type: "mysql"})
	assert.Error(t, err)
}

func TestUserRepository_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	u := seedUser(t, db, 42)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "learner", got.Username)
	assert.Equal(t, u.State, got.State)
	assert.Equal(t, 10, got.SessionSize)
	assert.True(t, got.NotificationEnabled)
	assert.True(t, got.CreatedAt.Equal(u.CreatedAt))

	u.Username = "renamed"
	require.NoError(t, repo.Save(ctx, u))
	got, err = repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Username)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUserRepository_NotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	_, err := repo.GetByID(ctx, 7)
	assert.True(t, shared.IsNotFound(err))

	err = repo.UpdateState(ctx, 7, models.UserState{})
	assert.True(t, shared.IsNotFound(err))
}

func TestUserRepository_UpdateStateAndNotifications(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	seedUser(t, db, 1)
	seedUser(t, db, 2)

	state := models.UserState{Theta: 2, Weights: models.PriorityWeights{F: 0.3, R: 0.3, E: 0.4}, L1Language: "ru"}
	require.NoError(t, repo.UpdateState(ctx, 1, state))
	got, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, state, got.State)

	require.NoError(t, repo.UpdateNotificationSettings(ctx, 2, true, 18))
	assert.True(t, shared.IsInvalidArgument(repo.UpdateNotificationSettings(ctx, 2, true, 24)))

	at9, err := repo.GetUsersForNotification(ctx, 9)
	require.NoError(t, err)
	require.Len(t, at9, 1)
	assert.Equal(t, int64(1), at9[0].ID)

	require.NoError(t, repo.UpdateNotificationSettings(ctx, 1, false, 9))
	at9, err = repo.GetUsersForNotification(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, at9)
}

func TestObjectRepository_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewObjectRepository(db)

	obj := sampleObject("w-haus")
	require.NoError(t, repo.SaveBatch(ctx, []models.LanguageObject{obj}))

	got, err := repo.GetByID(ctx, "w-haus")
	require.NoError(t, err)
	assert.Equal(t, obj.Content, got.Content)
	assert.Equal(t, obj.Frequency, got.Frequency)
	assert.Equal(t, obj.IRTDifficulty, got.IRTDifficulty)
	assert.Equal(t, models.KindWord, got.Kind)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestObjectRepository_RejectsBadSignals(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewObjectRepository(db)

	bad := sampleObject("w-bad")
	bad.Frequency = 1.5
	assert.True(t, shared.IsDataError(repo.SaveBatch(ctx, []models.LanguageObject{bad})))

	batch := []models.LanguageObject{sampleObject("a"), bad}
	assert.True(t, shared.IsDataError(repo.SaveBatch(ctx, batch)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestObjectRepository_SaveBatchUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewObjectRepository(db)

	batch := []models.LanguageObject{sampleObject("b"), sampleObject("a")}
	require.NoError(t, repo.SaveBatch(ctx, batch))

	updated := sampleObject("a")
	updated.Translation = "home"
	require.NoError(t, repo.SaveBatch(ctx, []models.LanguageObject{updated}))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "home", all[0].Translation)
	assert.Equal(t, "b", all[1].ID)
}

func TestMasteryRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1)
	seedObjects(t, db, "a", "b")
	repo := NewMasteryRepository(db)

	reviewed := t0.Add(-48 * time.Hour)
	state := models.MasteryState{
		UserID:   1,
		ObjectID: "a",
		Stage:    models.StageRecall,
		Card: models.Card{
			Difficulty: 5.32,
			Stability:  3.173,
			LastReview: &reviewed,
			Reps:       2,
			Lapses:     1,
			State:      models.StateReview,
		},
		CueFreeAccuracy:     0.7692307692307693,
		CueAssistedAccuracy: 0.2,
		ExposureCount:       2,
		UpdatedAt:           t0,
	}
	require.NoError(t, repo.Save(ctx, state))
	require.NoError(t, repo.Save(ctx, models.MasteryState{UserID: 1, ObjectID: "b", UpdatedAt: t0}))

	got, err := repo.Get(ctx, 1, "a")
	require.NoError(t, err)
	require.NotNil(t, got.Card.LastReview)
	assert.True(t, got.Card.LastReview.Equal(reviewed))
	got.Card.LastReview = state.Card.LastReview
	assert.True(t, got.UpdatedAt.Equal(state.UpdatedAt))
	got.UpdatedAt = state.UpdatedAt
	assert.Equal(t, state, got)

	all, err := repo.GetByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Nil(t, all["b"].Card.LastReview)
	assert.True(t, all["b"].Card.IsNew())

	state.Stage = models.StageControlled
	require.NoError(t, repo.Save(ctx, state))
	got, err = repo.Get(ctx, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StageControlled, got.Stage)

	_, err = repo.Get(ctx, 1, "zzz")
	assert.True(t, shared.IsNotFound(err))
}

func TestReviewLogRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1)
	seedObjects(t, db, "a")
	repo := NewReviewLogRepository(db)

	for i, correct := range []bool{true, false, true} {
		entry := &models.ReviewLog{
			UserID:      1,
			ObjectID:    "a",
			Rating:      3,
			Correct:     correct,
			StageBefore: models.StageUnknown,
			StageAfter:  models.StageRecognition,
			ReviewedAt:  t0.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, createReviewLog(ctx, db, entry))
		assert.Len(t, entry.ID, 36)
	}

	logs, err := repo.GetByUser(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].ReviewedAt.Equal(t0.Add(2*time.Hour)))
	assert.Equal(t, models.StageRecognition, logs[0].StageAfter)

	stats, err := repo.StatsSince(ctx, 1, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ReviewStats{Total: 2, Correct: 1}, stats)
}

func TestMasteryRepository_SaveReviewIsAtomic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1)
	seedObjects(t, db, "a")
	repo := NewMasteryRepository(db)
	logs := NewReviewLogRepository(db)

	first := models.MasteryState{UserID: 1, ObjectID: "a", Stage: models.StageRecognition, ExposureCount: 1, UpdatedAt: t0}
	entry := &models.ReviewLog{ID: "r-1", UserID: 1, ObjectID: "a", Rating: 3, Correct: true, ReviewedAt: t0}
	require.NoError(t, repo.SaveReview(ctx, first, entry))

	// the log insert fails on the duplicate id, so the state must not move either
	second := first
	second.ExposureCount = 2
	second.Stage = models.StageRecall
	err := repo.SaveReview(ctx, second, &models.ReviewLog{ID: "r-1", UserID: 1, ObjectID: "a", Rating: 4, ReviewedAt: t0.Add(time.Hour)})
	require.Error(t, err)

	got, err := repo.Get(ctx, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ExposureCount)
	assert.Equal(t, models.StageRecognition, got.Stage)

	history, err := logs.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "r-1", history[0].ID)
}

func TestReviewLogRepository_HistoryIsChronological(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1)
	seedObjects(t, db, "a")
	repo := NewReviewLogRepository(db)

	for _, h := range []int{5, 1, 3} {
		require.NoError(t, createReviewLog(ctx, db, &models.ReviewLog{
			UserID: 1, ObjectID: "a", Rating: h % 4, ReviewedAt: t0.Add(time.Duration(h) * time.Hour),
		}))
	}

	history, err := repo.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].ReviewedAt.Equal(t0.Add(time.Hour)))
	assert.True(t, history[2].ReviewedAt.Equal(t0.Add(5*time.Hour)))

	empty, err := repo.History(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
