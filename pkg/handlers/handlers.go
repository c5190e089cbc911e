package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stream-snapshot/pkg/cachedstats"
	"stream-snapshot/pkg/config"
	"stream-snapshot/pkg/database"
	"stream-snapshot/pkg/models"
	"stream-snapshot/pkg/services/retention"
	"stream-snapshot/pkg/services/snapshot"
	"stream-snapshot/pkg/storage"
	"stream-snapshot/pkg/youtube"
)

// Capturer produces a still/loop pair from a source URL.
type Capturer interface {
	CaptureWebcam(ctx context.Context, streamURL string) (models.CapturePair, error)
	CaptureYouTube(ctx context.Context, videoURL string) (models.CapturePair, error)
}

// Handler serves the capture endpoints and the artifacts they produce.
type Handler struct {
	Capturer       Capturer
	PublicURL      string
	WebcamDir      string
	YouTubeDir     string
	CaptureTimeout time.Duration
	Keep           int
	Cleanup        time.Duration
	Targets        []retention.Target
	StartedAt      time.Time
}

func New(capturer Capturer, cfg *config.Config, targets []retention.Target) *Handler {
	return &Handler{
		Capturer:       capturer,
		PublicURL:      strings.TrimSuffix(cfg.PublicURL, "/"),
		WebcamDir:      cfg.SnapshotsDir,
		YouTubeDir:     cfg.YouTubeSnapshotsDir,
		CaptureTimeout: cfg.CaptureTimeout(),
		Keep:           cfg.SnapshotsToKeep,
		Cleanup:        cfg.CleanupInterval(),
		Targets:        targets,
		StartedAt:      time.Now(),
	}
}

// recordCapture is replaced in tests that run without a database.
var recordCapture = database.RecordCapture

type snapshotResponse struct {
	JpgURL string `json:"jpgUrl"`
	GifURL string `json:"gifUrl"`
}

// route describes one capture family: where its files are served from and how
// they are produced.
type route struct {
	kind       models.Kind
	imagesPath string
	failure    string
	capture    func(ctx context.Context, url string) (models.CapturePair, error)
}

func (h *Handler) webcamRoute() route {
	return route{
		kind:       models.KindWebcam,
		imagesPath: "/images/",
		failure:    "Failed to capture snapshot",
		capture:    h.Capturer.CaptureWebcam,
	}
}

func (h *Handler) youtubeRoute() route {
	return route{
		kind:       models.KindYouTube,
		imagesPath: "/youtube-snapshot/images/",
		failure:    "Failed to capture YouTube snapshot",
		capture:    h.Capturer.CaptureYouTube,
	}
}

// HandleSnapshot captures from a webcam stream and returns absolute image URLs.
func (h *Handler) HandleSnapshot(c *gin.Context) { h.snapshotJSON(c, h.webcamRoute()) }

// HandleRedirect captures from a webcam stream and redirects to one image.
func (h *Handler) HandleRedirect(c *gin.Context) { h.snapshotRedirect(c, h.webcamRoute()) }

// HandleImage serves a stored webcam artifact.
func (h *Handler) HandleImage(c *gin.Context) { serveArtifact(c, h.WebcamDir) }

func (h *Handler) HandleYouTubeSnapshot(c *gin.Context) { h.snapshotJSON(c, h.youtubeRoute()) }

func (h *Handler) HandleYouTubeRedirect(c *gin.Context) { h.snapshotRedirect(c, h.youtubeRoute()) }

func (h *Handler) HandleYouTubeImage(c *gin.Context) { serveArtifact(c, h.YouTubeDir) }

func (h *Handler) snapshotJSON(c *gin.Context, r route) {
	sourceURL := c.Query("url")
	if sourceURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	pair, ok := h.capture(c, r, sourceURL)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, snapshotResponse{
		JpgURL: h.PublicURL + r.imagesPath + pair.Still,
		GifURL: h.PublicURL + r.imagesPath + pair.Loop,
	})
}

func (h *Handler) snapshotRedirect(c *gin.Context, r route) {
	sourceURL := c.Query("url")
	if sourceURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}
	format := c.DefaultQuery("format", "jpg")
	if format != "jpg" && format != "gif" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format, use jpg or gif"})
		return
	}

	pair, ok := h.capture(c, r, sourceURL)
	if !ok {
		return
	}

	name := pair.Still
	if format == "gif" {
		name = pair.Loop
	}
	c.Redirect(http.StatusFound, r.imagesPath+name)
}

// capture runs one capture under the request deadline, records it, and writes
// the 500 response itself on failure.
func (h *Handler) capture(c *gin.Context, r route, sourceURL string) (models.CapturePair, bool) {
	ctx := c.Request.Context()
	if h.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.CaptureTimeout)
		defer cancel()
	}

	start := time.Now()
	pair, err := r.capture(ctx, sourceURL)
	h.record(r.kind, sourceURL, pair, err, time.Since(start))

	if err != nil {
		message := r.failure
		if errors.Is(err, snapshot.ErrInvalidYouTubeURL) {
			message = err.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
		return models.CapturePair{}, false
	}
	return pair, true
}

func (h *Handler) record(kind models.Kind, sourceURL string, pair models.CapturePair, captureErr error, elapsed time.Duration) {
	entry := &models.Capture{
		Kind:       kind,
		SourceURL:  sourceURL,
		Still:      pair.Still,
		Loop:       pair.Loop,
		Status:     "ok",
		DurationMs: elapsed.Milliseconds(),
	}
	if kind == models.KindYouTube {
		entry.VideoID, _ = youtube.ExtractVideoID(sourceURL)
	}
	if captureErr != nil {
		entry.Status = "failed"
		entry.Error = sql.NullString{String: captureErr.Error(), Valid: true}
	}

	// The request may already be gone; history is written regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := recordCapture(ctx, entry); err != nil {
		log.Printf("Error recording capture history: %v", err)
	}
}

// serveArtifact streams a finished artifact from dir. Anything that is not a
// plain file name of an existing artifact is a 404.
func serveArtifact(c *gin.Context, dir string) {
	filename := c.Param("filename")
	if !storage.IsSafeName(filename) || strings.HasPrefix(filename, ".") {
		c.String(http.StatusNotFound, "Not found")
		return
	}

	path := filepath.Join(dir, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.String(http.StatusNotFound, "Not found")
		return
	}

	contentType := "image/jpeg"
	if strings.HasSuffix(filename, storage.LoopExt) {
		contentType = "image/gif"
	}
	c.Header("Content-Type", contentType)
	c.File(path)
}

// HandleIndex renders the service description and the most recent pairs.
func (h *Handler) HandleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"PublicURL":       h.PublicURL,
		"Keep":            h.Keep,
		"CleanupInterval": h.Cleanup.String(),
		"CaptureTimeout":  h.CaptureTimeout.String(),
		"StartedAt":       h.StartedAt,
		"Webcam":          storage.ListPairs(h.WebcamDir, storage.WebcamPrefix, 12),
		"YouTube":         storage.ListPairs(h.YouTubeDir, storage.YouTubePrefix, 12),
	})
}

// --- ADMIN HANDLERS ---

// HandleListCaptures returns the capture history, newest first.
func (h *Handler) HandleListCaptures(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return
	}

	captures, err := database.ListCaptures(c.Request.Context(), limit)
	if err != nil {
		log.Printf("Error listing captures: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list captures"})
		return
	}

	out := make([]gin.H, 0, len(captures))
	for _, row := range captures {
		entry := gin.H{
			"id":          row.ID,
			"kind":        row.Kind,
			"source_url":  row.SourceURL,
			"status":      row.Status,
			"duration_ms": row.DurationMs,
			"pruned":      row.Pruned,
			"created_at":  row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if row.VideoID != "" {
			entry["video_id"] = row.VideoID
		}
		if row.Still != "" {
			entry["still"] = row.Still
			entry["loop"] = row.Loop
		}
		if row.Error.Valid {
			entry["error"] = row.Error.String
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"captures": out})
}

// HandleCleanup runs retention for every target right away.
func (h *Handler) HandleCleanup(c *gin.Context) {
	removed := retention.RunOnce(h.Targets)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// HandleStatus returns the cached system and storage figures.
func (h *Handler) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, cachedstats.Cache.GetData())
}
