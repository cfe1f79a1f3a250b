package upload

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/roster/internal/db"
	"github.com/courtside/roster/internal/logging"
	"github.com/courtside/roster/internal/roster"
)

func setupJournal(t *testing.T) (*roster.SQLRepository, *roster.Athlete) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := roster.NewRepository(database)
	svc := roster.NewService(repo, nil)
	a, err := svc.Register(context.Background(), roster.RegisterInput{StudentID: "6501", Name: "Somchai"})
	require.NoError(t, err)
	return repo, a
}

func TestSweeper_RemovesOrphans(t *testing.T) {
	repo, athlete := setupJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, orphaned := range []bool{true, true, false} {
		require.NoError(t, repo.CreateUpload(ctx, &roster.Upload{
			ID:         roster.NewID(),
			AthleteID:  athlete.ID,
			StorageKey: ObjectKey("athlete-images", athlete.ID, roster.NewID(), now.Add(time.Duration(i)*time.Millisecond), "jpg"),
			Phase:      roster.UploadFailed,
			Orphaned:   orphaned,
			CreatedAt:  now,
			UpdatedAt:  now,
		}))
	}

	store := &fakeStore{}
	calls := 0
	store.deleteFn = func(ctx context.Context, key string) error {
		calls++
		if calls == 1 {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	sweeper := NewSweeper(store, repo, logging.Discard())
	assert.Equal(t, 1, sweeper.Sweep(ctx))

	left, err := repo.ListOrphanedUploads(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 1, "the failed delete stays flagged for the next pass")

	assert.Equal(t, 1, sweeper.Sweep(ctx))
	left, err = repo.ListOrphanedUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSweeper_StartStop(t *testing.T) {
	repo, _ := setupJournal(t)
	sweeper := NewSweeper(&fakeStore{}, repo, logging.Discard())
	sweeper.pollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	require.Eventually(t, sweeper.IsRunning, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.False(t, sweeper.IsRunning())
}

func TestControl_JournalsToDatabase(t *testing.T) {
	repo, athlete := setupJournal(t)
	store := &fakeStore{}
	control := NewControl(athlete.ID, store, repo, repo, testOptions(), nil)

	snaps := collect(t, control.Submit(context.Background(), photo("me.png", 2048)), 2*time.Second)
	last := snaps[len(snaps)-1]
	require.Equal(t, PhaseSucceeded, last.Phase)

	got, err := repo.GetAthlete(context.Background(), athlete.ID)
	require.NoError(t, err)
	assert.Equal(t, last.Locator, got.ImageURL)

	require.Eventually(t, func() bool {
		u, err := repo.GetUpload(context.Background(), last.AttemptID)
		return err == nil && u != nil && u.Phase == roster.UploadSucceeded
	}, 2*time.Second, 5*time.Millisecond)
}
