package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dicomlite/dicomlite/config"
	"github.com/dicomlite/dicomlite/entity"
	"github.com/dicomlite/dicomlite/testutil"
)

func newTestSweeper(env *testEnv, interval time.Duration) *Sweeper {
	cfg := &config.Config{EnvConfig: &config.EnvConfig{}}
	cfg.EnvConfig.Sweeper.IntervalMs = interval.Milliseconds()
	return NewSweeper(cfg, env.infra, env.repo, env.deleter)
}

func TestSweeperDeletesExpiredStudy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expired := [][]byte{
		testutil.DICOMBytes(t, "1.2.3", "4.5.6", "7.8.9"),
		testutil.DICOMBytes(t, "1.2.3", "4.5.6", "7.8.10"),
	}
	_, err := env.ingest.ProcessUpload(ctx, expired, ModeCreateOnly, nil)
	require.NoError(t, err)
	fresh := testutil.DICOMBytes(t, "9.9.9", "4.5.6", "7.8.9")
	_, err = env.ingest.ProcessUpload(ctx, [][]byte{fresh}, ModeCreateOnly, nil)
	require.NoError(t, err)

	require.NoError(t, env.repo.StudyRepo.SetExpiry("1.2.3", time.Now().UTC().Add(-time.Minute)))

	sweeper := newTestSweeper(env, time.Hour)
	deleted, skipped := sweeper.RunOnce(ctx)
	require.False(t, skipped)
	require.Equal(t, 1, deleted)

	_, err = env.repo.StudyRepo.FindByUID("1.2.3")
	require.Error(t, err)
	instances, err := env.repo.InstanceRepo.FindByStudyUID("1.2.3")
	require.NoError(t, err)
	require.Empty(t, instances)
	_, err = env.infra.Blob.Get(ctx, "1.2.3", "4.5.6", "7.8.9")
	require.Error(t, err)

	// The untouched study survives in full.
	_, err = env.repo.StudyRepo.FindByUID("9.9.9")
	require.NoError(t, err)
	_, err = env.infra.Blob.Get(ctx, "9.9.9", "4.5.6", "7.8.9")
	require.NoError(t, err)

	// One deleted feed entry per expired instance, after the three creates.
	entries := env.feedEntries(t)
	require.Len(t, entries, 5)
	var deletedEntries []entity.ChangeFeedEntry
	for _, entry := range entries {
		if entry.Action == entity.FeedActionDeleted {
			deletedEntries = append(deletedEntries, entry)
		}
	}
	require.Len(t, deletedEntries, 2)
	for _, entry := range deletedEntries {
		require.Equal(t, "1.2.3", entry.StudyInstanceUID)
		require.Equal(t, entity.FeedStateDeleted, entry.State)
	}
}

func TestSweeperLeavesUnexpiredStudies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	data := testutil.DICOMBytes(t, "1.2.3", "4.5.6", "7.8.9")
	_, err := env.ingest.ProcessUpload(ctx, [][]byte{data}, ModeCreateOnly,
		&ExpiryDirective{Duration: time.Hour})
	require.NoError(t, err)

	sweeper := newTestSweeper(env, time.Hour)
	deleted, skipped := sweeper.RunOnce(ctx)
	require.False(t, skipped)
	require.Zero(t, deleted)

	_, err = env.repo.StudyRepo.FindByUID("1.2.3")
	require.NoError(t, err)
}

func TestSweeperSkipsOverlappingTick(t *testing.T) {
	env := newTestEnv(t)
	sweeper := newTestSweeper(env, time.Hour)

	sweeper.mu.Lock()
	deleted, skipped := sweeper.RunOnce(context.Background())
	sweeper.mu.Unlock()

	require.True(t, skipped)
	require.Zero(t, deleted)
}
