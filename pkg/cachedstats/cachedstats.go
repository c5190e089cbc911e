package cachedstats

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"stream-snapshot/pkg/config"
	"stream-snapshot/pkg/database"
	"stream-snapshot/pkg/jobs"
	"stream-snapshot/pkg/stats"
	"stream-snapshot/pkg/storage"
)

// CachedStats holds the last collected status snapshot so /api/status never
// walks the disk on the request path.
type CachedStats struct {
	sync.RWMutex
	Data          gin.H
	UpdatedAt     time.Time
	isInitialized bool
}

var Cache = &CachedStats{
	Data: make(gin.H),
}

// RunUpdater refreshes the cache immediately and then every interval until
// ctx is cancelled.
func (cs *CachedStats) RunUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cs.Update(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Update collects fresh figures. Collection runs without the lock held.
func (cs *CachedStats) Update(ctx context.Context) {
	data := gin.H{
		"webcam":      stats.GetDirStats(config.AppConfig.SnapshotsDir, storage.WebcamPrefix),
		"youtube":     stats.GetDirStats(config.AppConfig.YouTubeSnapshotsDir, storage.YouTubePrefix),
		"system_info": stats.GetSystemInfo(ctx),
		"disk":        stats.GetDiskUsage(ctx, config.AppConfig.DataDir),
	}

	if counts, err := database.CaptureCounts(ctx); err != nil {
		log.Printf("Error counting captures for stats: %v", err)
	} else {
		data["captures"] = counts
	}
	if pending, err := jobs.CountPending(ctx); err != nil {
		log.Printf("Error counting pending jobs for stats: %v", err)
	} else {
		data["pending_jobs"] = pending
	}

	cs.Lock()
	defer cs.Unlock()
	cs.Data = data
	cs.UpdatedAt = time.Now()
	cs.isInitialized = true
}

// GetData returns the cached figures, or a loading placeholder before the
// first update has finished.
func (cs *CachedStats) GetData() gin.H {
	cs.RLock()
	defer cs.RUnlock()
	if !cs.isInitialized {
		return gin.H{"is_loading": true}
	}

	out := make(gin.H, len(cs.Data)+1)
	for k, v := range cs.Data {
		out[k] = v
	}
	out["updated_at"] = cs.UpdatedAt.UTC().Format(time.RFC3339)
	return out
}
