package stats

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"stream-snapshot/pkg/storage"
)

// DirStats summarises one artifact directory.
type DirStats struct {
	Files     int    `json:"files"`
	Pairs     int    `json:"pairs"`
	Bytes     int64  `json:"bytes"`
	Size      string `json:"size"`
	LastStill string `json:"last_still,omitempty"`
}

// GetDirStats counts the artifacts in dir whose names start with prefix.
var GetDirStats = func(dir, prefix string) DirStats {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Error reading %s for stats: %v", dir, err)
		return DirStats{Size: FormatBytes(0)}
	}

	var st DirStats
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		st.Files++
		st.Bytes += info.Size()
	}
	st.Size = FormatBytes(st.Bytes)

	pairs := storage.ListPairs(dir, prefix, 0)
	st.Pairs = len(pairs)
	if len(pairs) > 0 {
		st.LastStill = pairs[0].Still
	}
	return st
}

// GetSystemInfo reports host, CPU and memory figures.
var GetSystemInfo = func(ctx context.Context) gin.H {
	info := gin.H{
		"os_type":    runtime.GOOS,
		"cpu_usage":  "N/A",
		"memory":     "N/A",
		"uptime":     "N/A",
		"goroutines": runtime.NumGoroutine(),
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info["os_type"] = fmt.Sprintf("%s %s", h.Platform, h.PlatformVersion)
		info["uptime"] = (time.Duration(h.Uptime) * time.Second).String()
	} else {
		log.Printf("Error reading host info: %v", err)
	}

	// A zero interval compares against the previous call, so this never blocks.
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		info["cpu_usage"] = fmt.Sprintf("%.1f%%", percents[0])
	} else if err != nil {
		log.Printf("Error reading CPU usage: %v", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info["memory"] = fmt.Sprintf("%s / %s (%.1f%%)", FormatBytes(int64(vm.Used)), FormatBytes(int64(vm.Total)), vm.UsedPercent)
	} else {
		log.Printf("Error reading memory usage: %v", err)
	}

	return info
}

// GetDiskUsage reports the filesystem holding path.
var GetDiskUsage = func(ctx context.Context, path string) gin.H {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		log.Printf("Error reading disk usage for %s: %v", path, err)
		return gin.H{"path": path, "total": "N/A", "used": "N/A", "used_percent": "N/A"}
	}
	return gin.H{
		"path":         path,
		"total":        FormatBytes(int64(usage.Total)),
		"used":         FormatBytes(int64(usage.Used)),
		"used_percent": fmt.Sprintf("%.2f%%", usage.UsedPercent),
	}
}

func FormatBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)

	switch {
	case n >= gb:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d Bytes", n)
	}
}
