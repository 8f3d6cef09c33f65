package repository

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dicomlite/dicomlite/entity"
	"github.com/dicomlite/dicomlite/testutil"
)

func appendEntry(t *testing.T, repo *Repository, sopUID string, ts time.Time) entity.ChangeFeedEntry {
	t.Helper()
	tx := repo.BeginTransaction()
	require.NoError(t, tx.Error)
	entry := entity.ChangeFeedEntry{
		StudyInstanceUID:  "1.2.3",
		SeriesInstanceUID: "4.5.6",
		SOPInstanceUID:    sopUID,
		Action:            entity.FeedActionCreated,
		State:             entity.FeedStateCurrent,
		Timestamp:         ts,
	}
	require.NoError(t, repo.WithTransaction(tx).ChangeFeedRepo.Append(&entry))
	require.NoError(t, tx.Commit().Error)
	return entry
}

func TestChangeFeedSequencesStrictlyIncrease(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	var last int64
	for i := 0; i < 5; i++ {
		entry := appendEntry(t, repo, "7.8."+string(rune('0'+i)), now)
		require.Greater(t, entry.Sequence, last, "sequence must be assigned by the store and strictly increase")
		last = entry.Sequence
	}
}

func TestChangeFeedRollbackNeverReordersCommits(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	first := appendEntry(t, repo, "7.8.1", now)

	// A rolled-back append must not disturb later committed sequences.
	tx := repo.BeginTransaction()
	require.NoError(t, tx.Error)
	aborted := entity.ChangeFeedEntry{
		StudyInstanceUID:  "1.2.3",
		SeriesInstanceUID: "4.5.6",
		SOPInstanceUID:    "7.8.aborted",
		Action:            entity.FeedActionCreated,
		State:             entity.FeedStateCurrent,
		Timestamp:         now,
	}
	require.NoError(t, repo.WithTransaction(tx).ChangeFeedRepo.Append(&aborted))
	tx.Rollback()

	second := appendEntry(t, repo, "7.8.2", now)
	require.Greater(t, second.Sequence, first.Sequence)

	entries, err := repo.ChangeFeedRepo.Query(ChangeFeedQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.NotEqual(t, "7.8.aborted", entry.SOPInstanceUID)
	}
}

func TestChangeFeedSequencesSurviveRestart(t *testing.T) {
	db, path := testutil.OpenTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	var before int64
	for i := 0; i < 3; i++ {
		before = appendEntry(t, repo, "7.8."+string(rune('0'+i)), now).Sequence
	}

	testutil.CloseDB(t, db)
	db = testutil.OpenTestDBAt(t, path)
	repo = NewRepository(db)

	after := appendEntry(t, repo, "7.8.9", now)
	require.Greater(t, after.Sequence, before, "sequences must keep increasing across restarts")

	seen := map[int64]bool{}
	entries, err := repo.ChangeFeedRepo.Query(ChangeFeedQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, entry := range entries {
		require.False(t, seen[entry.Sequence], "sequence %d occurred twice", entry.Sequence)
		seen[entry.Sequence] = true
	}
}

func TestChangeFeedConcurrentAppendsNeverShareSequence(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite allows one writer at a time; pin the pool to a single
	// connection so concurrent appends queue instead of erroring.
	sqlDB.SetMaxOpenConns(1)
	repo := NewRepository(db)

	const writers = 2
	const perWriter = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	sequences := make(chan int64, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				entry := entity.ChangeFeedEntry{
					StudyInstanceUID:  "1.2.3",
					SeriesInstanceUID: "4.5.6",
					SOPInstanceUID:    fmt.Sprintf("7.%d.%d", w, i),
					Action:            entity.FeedActionCreated,
					State:             entity.FeedStateCurrent,
					Timestamp:         time.Now().UTC(),
				}
				if err := repo.ChangeFeedRepo.Append(&entry); err != nil {
					errs <- err
					return
				}
				sequences <- entry.Sequence
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	close(sequences)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[int64]bool{}
	for seq := range sequences {
		require.False(t, seen[seq], "sequence %d assigned twice", seq)
		seen[seq] = true
	}
	require.Len(t, seen, writers*perWriter)
}

func TestChangeFeedQueryWindowAndPagination(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	early := appendEntry(t, repo, "7.8.1", base.Add(-time.Hour))
	middle := appendEntry(t, repo, "7.8.2", base)
	late := appendEntry(t, repo, "7.8.3", base.Add(time.Hour))

	start := base.Add(-time.Minute)
	end := base.Add(time.Minute)
	entries, err := repo.ChangeFeedRepo.Query(ChangeFeedQuery{StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, middle.Sequence, entries[0].Sequence)

	// Window bounds are inclusive.
	entries, err = repo.ChangeFeedRepo.Query(ChangeFeedQuery{StartTime: &middle.Timestamp, EndTime: &middle.Timestamp})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = repo.ChangeFeedRepo.Query(ChangeFeedQuery{Offset: early.Sequence})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, middle.Sequence, entries[0].Sequence)
	require.Equal(t, late.Sequence, entries[1].Sequence)

	entries, err = repo.ChangeFeedRepo.Query(ChangeFeedQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Less(t, entries[0].Sequence, entries[1].Sequence)
}

func TestChangeFeedMarkSuperseded(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	first := appendEntry(t, repo, "7.8.1", now)
	other := appendEntry(t, repo, "7.8.2", now)

	require.NoError(t, repo.ChangeFeedRepo.MarkSuperseded("1.2.3", "4.5.6", "7.8.1"))

	entries, err := repo.ChangeFeedRepo.Query(ChangeFeedQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Only the targeted instance's state moves; sequence and action are
	// untouched.
	require.Equal(t, first.Sequence, entries[0].Sequence)
	require.Equal(t, entity.FeedActionCreated, entries[0].Action)
	require.Equal(t, entity.FeedStateSuperseded, entries[0].State)
	require.Equal(t, other.Sequence, entries[1].Sequence)
	require.Equal(t, entity.FeedStateCurrent, entries[1].State)
}

func TestChangeFeedLatest(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	repo := NewRepository(db)

	entry, err := repo.ChangeFeedRepo.Latest()
	require.NoError(t, err)
	require.Nil(t, entry, "empty feed has no latest entry")

	appendEntry(t, repo, "7.8.1", time.Now().UTC())
	last := appendEntry(t, repo, "7.8.2", time.Now().UTC())

	entry, err = repo.ChangeFeedRepo.Latest()
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, last.Sequence, entry.Sequence)
}
