package storage

import (
	"log"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"stream-snapshot/pkg/models"
)

// timestampLen is len(Timestamp(t)) for any t.
const timestampLen = len("2006-01-02T15-04-05-000Z")

const (
	WebcamPrefix  = "snapshot-"
	YouTubePrefix = "youtube-"

	StillExt = ".jpg"
	LoopExt  = ".gif"

	// PartialPrefix marks files still being produced. It never matches an
	// artifact prefix, so listings and retention skip them.
	PartialPrefix = ".partial-"

	// TempSubdir holds downloaded segments inside an artifact directory.
	TempSubdir = ".tmp"
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z$`)

// Timestamp renders t as an ISO-8601 UTC string with ':' and '.' replaced by
// '-', e.g. 2024-05-01T10-20-30-123Z. Fixed width, so names sort by time.
func Timestamp(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000")
	s = strings.NewReplacer(":", "-", ".", "-").Replace(s)
	return s + "Z"
}

// YouTubePrefixFor returns the filename prefix for artifacts of one video.
func YouTubePrefixFor(videoID string) string {
	return YouTubePrefix + videoID + "-"
}

// NewPair derives the still and loop filenames from a shared stem.
func NewPair(prefix, timestamp string) models.CapturePair {
	stem := prefix + timestamp
	return models.CapturePair{
		Still: stem + StillExt,
		Loop:  stem + LoopExt,
	}
}

// Stem strips a known artifact extension.
func Stem(name string) string {
	for _, ext := range []string{StillExt, LoopExt} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// IsSafeName rejects anything that could escape the artifact directory.
func IsSafeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// ListPairs rebuilds still/loop pairs from a directory listing by matching
// stems. Only stems with both files present are returned, newest first.
// limit <= 0 returns every pair.
func ListPairs(dir, prefix string, limit int) []models.CapturePair {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Error reading artifact directory %s: %v", dir, err)
		return []models.CapturePair{}
	}

	stills := make(map[string]bool)
	loops := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		switch {
		case strings.HasSuffix(name, StillExt):
			stills[Stem(name)] = true
		case strings.HasSuffix(name, LoopExt):
			loops[Stem(name)] = true
		}
	}

	var stems []string
	for stem := range stills {
		if loops[stem] {
			stems = append(stems, stem)
		}
	}
	// YouTube stems embed the video id before the timestamp, so order by the
	// timestamp suffix rather than the whole name.
	SortNewestFirst(stems)

	if limit > 0 && len(stems) > limit {
		stems = stems[:limit]
	}

	pairs := make([]models.CapturePair, 0, len(stems))
	for _, stem := range stems {
		pairs = append(pairs, models.CapturePair{Still: stem + StillExt, Loop: stem + LoopExt})
	}
	return pairs
}

// TimestampOf returns the capture timestamp embedded at the end of an
// artifact name or stem, or "" when there is none.
func TimestampOf(name string) string {
	stem := Stem(name)
	if len(stem) < timestampLen {
		return ""
	}
	ts := stem[len(stem)-timestampLen:]
	if !timestampPattern.MatchString(ts) {
		return ""
	}
	return ts
}

// SortNewestFirst orders names by their embedded timestamp, newest first, then
// by name. Names without a timestamp sort last.
func SortNewestFirst(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ti, tj := TimestampOf(names[i]), TimestampOf(names[j])
		if ti != tj {
			return ti > tj
		}
		return names[i] > names[j]
	})
}
