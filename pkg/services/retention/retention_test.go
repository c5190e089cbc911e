package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-snapshot/pkg/database"
	"stream-snapshot/pkg/jobs"
	"stream-snapshot/pkg/storage"
)

func createFiles(t *testing.T, dir, prefix string, n int) []string {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var names []string
	for i := 0; i < n; i++ {
		name := prefix + storage.Timestamp(base.Add(time.Duration(i)*time.Minute)) + ".jpg"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
		names = append(names, name)
	}
	return names
}

func listDir(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestCleanupKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	names := createFiles(t, dir, "snapshot-", 105)

	deleted := Cleanup(dir, "snapshot-", 100)
	assert.Len(t, deleted, 5)
	assert.ElementsMatch(t, names[:5], deleted)
	assert.Equal(t, names[5:], listDir(t, dir))
}

func TestCleanupUnderLimitIsNoop(t *testing.T) {
	dir := t.TempDir()
	names := createFiles(t, dir, "snapshot-", 10)

	assert.Empty(t, Cleanup(dir, "snapshot-", 100))
	assert.Equal(t, names, listDir(t, dir))

	// Exactly keep is still a no-op.
	assert.Empty(t, Cleanup(dir, "snapshot-", 10))
	assert.Len(t, listDir(t, dir), 10)
}

func TestCleanupOnlyTouchesPrefix(t *testing.T) {
	dir := t.TempDir()
	createFiles(t, dir, "snapshot-", 3)
	others := createFiles(t, dir, "other-", 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644))

	deleted := Cleanup(dir, "snapshot-", 1)
	assert.Len(t, deleted, 2)

	remaining := listDir(t, dir)
	for _, name := range others {
		assert.Contains(t, remaining, name)
	}
	assert.Contains(t, remaining, "notes.txt")
}

func TestCleanupDefaultKeep(t *testing.T) {
	dir := t.TempDir()
	createFiles(t, dir, "youtube-", DefaultKeep+2)

	assert.Len(t, Cleanup(dir, "youtube-", 0), 2)
	assert.Len(t, listDir(t, dir), DefaultKeep)
}

func TestCleanupUnreadableDirDoesNotFail(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Empty(t, Cleanup(filepath.Join(t.TempDir(), "missing"), "snapshot-", 1))
	})
}

func TestCleanupContinuesAfterFailedDeletion(t *testing.T) {
	dir := t.TempDir()
	names := createFiles(t, dir, "snapshot-", 4)

	// A non-empty directory with a matching name cannot be removed by os.Remove.
	blocker := filepath.Join(dir, "snapshot-0000-blocker")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "inner"), 0755))

	deleted := Cleanup(dir, "snapshot-", 1)
	assert.ElementsMatch(t, names[:3], deleted)
	assert.DirExists(t, blocker)
	assert.FileExists(t, filepath.Join(dir, names[3]))
}

func TestRunOnceMarksPruned(t *testing.T) {
	webcamDir := t.TempDir()
	youtubeDir := t.TempDir()
	createFiles(t, webcamDir, "snapshot-", 3)
	createFiles(t, youtubeDir, "youtube-", 1)

	var marked []string
	MarkPruned = func(names []string) error {
		marked = append(marked, names...)
		return nil
	}
	defer func() { MarkPruned = database.MarkCapturesPruned }()

	removed := RunOnce([]Target{
		{Dir: webcamDir, Prefix: "snapshot-", Keep: 1},
		{Dir: youtubeDir, Prefix: "youtube-", Keep: 1},
	})
	assert.Equal(t, map[string]int{"snapshot-": 2, "youtube-": 0}, removed)
	assert.Len(t, marked, 2)
}

func TestSchedulerEnqueuesUntilCancelled(t *testing.T) {
	conn, err := database.InitDB(filepath.Join(t.TempDir(), "sched.db"))
	require.NoError(t, err)
	defer conn.Close()
	jobs.InitJobs(conn)

	targets := []Target{
		{Dir: "snapshots", Prefix: "snapshot-", Keep: 100},
		{Dir: "youtube-snapshots", Prefix: "youtube-", Keep: 100},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		StartScheduler(ctx, time.Hour, targets)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		n, err := jobs.CountPending(context.Background())
		return err == nil && n == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	job, err := jobs.GetPendingJob(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobType, job.JobType)
	assert.JSONEq(t, fmt.Sprintf(`{"dir":"snapshots","prefix":"snapshot-","keep":%d}`, 100), job.Payload)
}

func TestCleanupOrdersByTimestampNotVideoID(t *testing.T) {
	dir := t.TempDir()
	older := "youtube-zzzzzzzzzzz-2024-01-01T00-00-00-000Z.jpg"
	newer := "youtube-aaaaaaaaaaa-2024-02-01T00-00-00-000Z.jpg"
	for _, name := range []string{older, newer} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	assert.Equal(t, []string{older}, Cleanup(dir, "youtube-", 1))
	assert.Equal(t, []string{newer}, listDir(t, dir))
}

func TestSweepStaleRemovesAbandonedFiles(t *testing.T) {
	dir := t.TempDir()
	tempArea := filepath.Join(dir, storage.TempSubdir)
	require.NoError(t, os.MkdirAll(tempArea, 0755))

	old := time.Now().Add(-2 * time.Hour)
	write := func(path string, stale bool) {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		if stale {
			require.NoError(t, os.Chtimes(path, old, old))
		}
	}
	write(filepath.Join(dir, ".partial-snapshot-2024-01-01T00-00-00-000Z.jpg"), true)
	write(filepath.Join(dir, ".partial-snapshot-2024-01-02T00-00-00-000Z.gif"), false)
	write(filepath.Join(dir, "snapshot-2024-01-01T00-00-00-000Z.jpg"), true)
	write(filepath.Join(tempArea, "yt-abc-old.mp4"), true)
	write(filepath.Join(tempArea, "yt-abc-new.mp4"), false)

	removed := SweepStale(dir, time.Hour)
	assert.ElementsMatch(t, []string{".partial-snapshot-2024-01-01T00-00-00-000Z.jpg", "yt-abc-old.mp4"}, removed)

	assert.Equal(t, []string{
		".partial-snapshot-2024-01-02T00-00-00-000Z.gif",
		storage.TempSubdir,
		"snapshot-2024-01-01T00-00-00-000Z.jpg",
	}, listDir(t, dir))
	assert.Equal(t, []string{"yt-abc-new.mp4"}, listDir(t, tempArea))
}

func TestApplySweepsWithoutMarkingPruned(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, ".partial-snapshot-2024-01-01T00-00-00-000Z.jpg")
	require.NoError(t, os.WriteFile(partial, []byte("x"), 0644))
	old := time.Now().Add(-2 * StaleAge)
	require.NoError(t, os.Chtimes(partial, old, old))

	called := false
	MarkPruned = func(names []string) error {
		called = true
		return nil
	}
	defer func() { MarkPruned = database.MarkCapturesPruned }()

	assert.Empty(t, Apply(Target{Dir: dir, Prefix: "snapshot-", Keep: 1}))
	assert.False(t, called)
	assert.NoFileExists(t, partial)
}

func TestSweepStaleMissingDir(t *testing.T) {
	assert.Empty(t, SweepStale(filepath.Join(t.TempDir(), "missing"), time.Hour))
}
