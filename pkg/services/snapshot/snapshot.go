package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"stream-snapshot/pkg/capture"
	"stream-snapshot/pkg/models"
	"stream-snapshot/pkg/storage"
	"stream-snapshot/pkg/util"
	"stream-snapshot/pkg/youtube"
)

// DefaultMaxThumbnailBytes caps a single thumbnail download.
const DefaultMaxThumbnailBytes = 8 << 20

var errEmptyOutput = errors.New("tool exited successfully but produced no output")

// CaptureError reports which stage of a capture failed.
type CaptureError struct {
	Stage string
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s capture failed: %v", e.Stage, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Service runs the webcam and YouTube capture pipelines.
type Service struct {
	WebcamDir  string
	YouTubeDir string
	TempDir    string // downloaded segments, created on demand

	Invoker           *capture.Invoker
	HTTPClient        *http.Client
	MaxThumbnailBytes int64

	// YouTubeStrategies are attempted in order until one succeeds.
	YouTubeStrategies []Strategy

	ThumbnailURLs func(videoID string) []string
	WatchURL      func(videoID string) string
	Now           func() time.Time
}

func NewService(webcamDir, youtubeDir string, invoker *capture.Invoker) *Service {
	s := &Service{
		WebcamDir:  webcamDir,
		YouTubeDir: youtubeDir,
		TempDir:    filepath.Join(youtubeDir, storage.TempSubdir),
		Invoker:    invoker,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		MaxThumbnailBytes: DefaultMaxThumbnailBytes,
		ThumbnailURLs:     youtube.ThumbnailURLs,
		WatchURL:          youtube.WatchURL,
		Now:               time.Now,
	}
	s.YouTubeStrategies = []Strategy{
		{Name: "thumbnail", Run: s.captureFromThumbnail},
		{Name: "segment", Run: s.captureFromSegment},
	}
	return s
}

// CaptureWebcam reads the still and the loop directly from the live source,
// both at once, and returns the pair only if both succeed.
func (s *Service) CaptureWebcam(ctx context.Context, streamURL string) (models.CapturePair, error) {
	pair := storage.NewPair(storage.WebcamPrefix, storage.Timestamp(s.Now()))

	log.Printf("Capturing webcam snapshot %s from %s", storage.Stem(pair.Still), streamURL)
	if err := s.extractPair(ctx, capture.WebcamStill, capture.WebcamLoop, streamURL, s.WebcamDir, pair); err != nil {
		log.Printf("Webcam capture failed for %s: %s", streamURL, Diagnostic(err))
		return models.CapturePair{}, err
	}

	log.Printf("📸 Webcam snapshot saved: %s, %s", pair.Still, pair.Loop)
	return pair, nil
}

// extractPair runs the still and loop presets concurrently against input,
// then publishes both files under their final names. Nothing is left behind
// on failure.
func (s *Service) extractPair(ctx context.Context, still capture.StillPreset, loop capture.LoopPreset, input, dir string, pair models.CapturePair) error {
	tmpStill := filepath.Join(dir, storage.PartialPrefix+pair.Still)
	tmpLoop := filepath.Join(dir, storage.PartialPrefix+pair.Loop)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Invoker.Still(gctx, still, input, tmpStill); err != nil {
			return &CaptureError{Stage: "jpg", Err: err}
		}
		if util.IsFileEmpty(tmpStill) {
			return &CaptureError{Stage: "jpg", Err: errEmptyOutput}
		}
		return nil
	})
	g.Go(func() error {
		if err := s.Invoker.Loop(gctx, loop, input, tmpLoop); err != nil {
			return &CaptureError{Stage: "gif", Err: err}
		}
		if util.IsFileEmpty(tmpLoop) {
			return &CaptureError{Stage: "gif", Err: errEmptyOutput}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		discard(tmpStill, tmpLoop)
		return err
	}
	return publish(dir, pair, tmpStill, tmpLoop)
}

// publish renames finished files to their final names. Both names appear or
// neither does.
func publish(dir string, pair models.CapturePair, tmpStill, tmpLoop string) error {
	finalStill := filepath.Join(dir, pair.Still)
	finalLoop := filepath.Join(dir, pair.Loop)

	if err := os.Rename(tmpStill, finalStill); err != nil {
		discard(tmpStill, tmpLoop)
		return &CaptureError{Stage: "store", Err: err}
	}
	if err := os.Rename(tmpLoop, finalLoop); err != nil {
		discard(tmpLoop, finalStill)
		return &CaptureError{Stage: "store", Err: err}
	}
	return nil
}

func discard(paths ...string) {
	for _, path := range paths {
		if err := util.RemoveIfExists(path); err != nil {
			log.Printf("Warning: failed to remove %s: %v", path, err)
		}
	}
}

// Diagnostic returns the most useful detail of a capture failure for the
// operator log, the tool's stderr when there is one.
func Diagnostic(err error) string {
	var toolErr *capture.ToolError
	if errors.As(err, &toolErr) {
		return fmt.Sprintf("%v: %s", err, toolErr.Diagnostic())
	}
	return err.Error()
}
