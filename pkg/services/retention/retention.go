package retention

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stream-snapshot/pkg/database"
	"stream-snapshot/pkg/jobs"
	"stream-snapshot/pkg/storage"
)

// DefaultKeep is used when a target asks to keep zero or fewer entries.
const DefaultKeep = 100

// JobType is the job queue type the worker dispatches to Cleanup.
const JobType = "cleanup_artifacts"

// Target is one directory/prefix pair under retention.
type Target struct {
	Dir    string `json:"dir"`
	Prefix string `json:"prefix"`
	Keep   int    `json:"keep"`
}

// StaleAge is how long an unfinished file may sit before it is treated as
// abandoned by a capture that never completed.
var StaleAge = time.Hour

// MarkPruned records deleted artifacts in the capture history. Replaceable in tests.
var MarkPruned = database.MarkCapturesPruned

// Cleanup deletes every entry in dir starting with prefix except the newest
// keep, newest meaning the latest embedded timestamp. It never fails; problems are logged and
// the remaining deletions are still attempted. Returns the names removed.
func Cleanup(dir, prefix string, keep int) []string {
	if keep <= 0 {
		keep = DefaultKeep
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Error reading %s for cleanup: %v", dir, err)
		return nil
	}

	var matching []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			matching = append(matching, entry.Name())
		}
	}

	if len(matching) <= keep {
		return nil
	}

	// YouTube names put the video id before the timestamp, so whole-name
	// order would group by video rather than by age.
	storage.SortNewestFirst(matching)

	var deleted []string
	for _, name := range matching[keep:] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			log.Printf("Error removing old artifact %s: %v", name, err)
			continue
		}
		deleted = append(deleted, name)
	}
	log.Printf("Finished cleanup for %s%s. Removed %d file(s).", dir+string(os.PathSeparator), prefix, len(deleted))
	return deleted
}

// SweepStale removes partial artifacts in dir and downloaded segments in its
// temp area that are older than age. Returns the names removed.
func SweepStale(dir string, age time.Duration) []string {
	cutoff := time.Now().Add(-age)
	var removed []string

	sweep := func(d string, match func(name string) bool) {
		entries, err := os.ReadDir(d)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("Error reading %s for stale files: %v", d, err)
			}
			return
		}
		for _, entry := range entries {
			if entry.IsDir() || !match(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(d, entry.Name())); err != nil {
				log.Printf("Error removing stale file %s: %v", entry.Name(), err)
				continue
			}
			removed = append(removed, entry.Name())
		}
	}

	sweep(dir, func(name string) bool { return strings.HasPrefix(name, storage.PartialPrefix) })
	sweep(filepath.Join(dir, storage.TempSubdir), func(string) bool { return true })

	if len(removed) > 0 {
		log.Printf("Removed %d stale unfinished file(s) from %s", len(removed), dir)
	}
	return removed
}

// Apply sweeps stale leftovers, runs Cleanup for one target and marks the
// removed artifacts as pruned.
func Apply(t Target) []string {
	SweepStale(t.Dir, StaleAge)
	deleted := Cleanup(t.Dir, t.Prefix, t.Keep)
	if len(deleted) > 0 {
		if err := MarkPruned(deleted); err != nil {
			log.Printf("Error marking pruned captures: %v", err)
		}
	}
	return deleted
}

// RunOnce applies every target immediately and reports how many files each
// one lost, keyed by prefix.
func RunOnce(targets []Target) map[string]int {
	removed := make(map[string]int, len(targets))
	for _, t := range targets {
		removed[t.Prefix] += len(Apply(t))
	}
	return removed
}

// Enqueue adds one cleanup job per target to the job queue.
func Enqueue(ctx context.Context, targets []Target) {
	for _, t := range targets {
		if _, err := jobs.CreateJob(ctx, JobType, t); err != nil {
			log.Printf("Error enqueuing cleanup job for %s: %v", t.Dir, err)
		}
	}
}

// StartScheduler enqueues the targets once, then again every interval, until
// ctx is cancelled.
func StartScheduler(ctx context.Context, interval time.Duration, targets []Target) {
	log.Printf("Starting retention scheduler (every %s, %d target(s))...", interval, len(targets))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	Enqueue(ctx, targets)
	for {
		select {
		case <-ctx.Done():
			log.Println("Retention scheduler stopped.")
			return
		case <-ticker.C:
			log.Println("Enqueuing retention cleanup...")
			Enqueue(ctx, targets)
		}
	}
}
