package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whenthen/internal/domain"
	"whenthen/internal/repository"
)

func openTestDB(t *testing.T) *PlayletRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := &PlayletRepository{db: db}
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestPlayletRepository_RoundTrip(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	playlet := domain.Playlet{
		ID:      "p1",
		Name:    "cast movies",
		Enabled: true,
		Trigger: domain.Trigger{Type: domain.TriggerSeedingRatio, SeedingRatio: 2.5},
		Conditions: []domain.TriggerCondition{
			{Field: domain.FieldName, Operator: domain.OperatorContains, Value: "1080p", Negate: true},
			{Field: domain.FieldTotalSize, SizeOperator: domain.SizeBetween, NumericValue: 1, NumericValueEnd: 100},
		},
		ConditionLogic: domain.LogicOr,
		Actions: []domain.Action{
			{ID: "a1", Type: domain.ActionMove, Config: map[string]string{"destination": "/media"}},
			{ID: "a2", Type: domain.ActionWebhook, Config: map[string]string{"url": "http://example/hook"}},
		},
		FileFilter: &domain.FileFilter{
			Category:         domain.FilterCustom,
			CustomExtensions: []string{"mkv", "mp4"},
			SelectLargest:    true,
			MinSize:          1 << 20,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Save(ctx, &playlet))

	playlets, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, playlets, 1)
	assert.Equal(t, playlet, playlets[0])

	// Save on an existing id updates in place.
	playlet.Enabled = false
	playlet.Name = "renamed"
	require.NoError(t, repo.Save(ctx, &playlet))
	playlets, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, playlets, 1)
	assert.False(t, playlets[0].Enabled)
	assert.Equal(t, "renamed", playlets[0].Name)

	require.NoError(t, repo.Delete(ctx, playlet.ID))
	playlets, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, playlets)
}

func TestTaskRepository_RoundTrip(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := &TaskRepository{db: db}
	ctx := context.Background()
	require.NoError(t, repo.Init(ctx))

	started := time.Now().UTC().Truncate(time.Second)
	done := started.Add(2 * time.Second)
	task := domain.Task{
		ID:          "t1",
		TorrentID:   "c1",
		TorrentName: "Movie.mkv",
		PlayletID:   "p1",
		PlayletName: "cast movies",
		Status:      domain.TaskStatusFailed,
		Actions: []domain.Action{
			{ID: "a1", Type: domain.ActionMove, Config: map[string]string{"destination": "/media"}},
			{ID: "a2", Type: domain.ActionNotify},
		},
		ActionResults: []domain.ActionResult{
			{ActionID: "a1", ActionType: domain.ActionMove, Status: domain.ActionFailed, StartedAt: &started, CompletedAt: &done, Error: "disk full"},
			{ActionID: "a2", ActionType: domain.ActionNotify, Status: domain.ActionSkipped},
		},
		AwaitingContent: false,
		CreatedAt:       started,
		CompletedAt:     &done,
	}
	require.NoError(t, repo.Save(ctx, &task))

	tasks, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task, tasks[0])

	task.Status = domain.TaskStatusWaiting
	task.CompletedAt = nil
	require.NoError(t, repo.Save(ctx, &task))
	tasks, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskStatusWaiting, tasks[0].Status)
	assert.Nil(t, tasks[0].CompletedAt)

	require.NoError(t, repo.Delete(ctx, task.ID))
	tasks, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUserRepository_SentinelErrors(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewUserRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Init(ctx))

	user := &domain.User{Username: "alice", PasswordHash: "hash"}
	id, err := repo.Create(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	_, err = repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "other"})
	assert.ErrorIs(t, err, repository.ErrUserExists)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = repo.GetByID(ctx, user.ID+1)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestTaskRepository_ListOrdersByCreation(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := &TaskRepository{db: db}
	ctx := context.Background()
	require.NoError(t, repo.Init(ctx))

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"b", "c", "a"} {
		task := domain.Task{
			ID:        id,
			TorrentID: id,
			Status:    domain.TaskStatusWaiting,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Save(ctx, &task))
	}

	tasks, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "b", tasks[0].ID)
	assert.Equal(t, "c", tasks[1].ID)
	assert.Equal(t, "a", tasks[2].ID)
}
