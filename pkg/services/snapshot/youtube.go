package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"stream-snapshot/pkg/capture"
	"stream-snapshot/pkg/models"
	"stream-snapshot/pkg/storage"
	"stream-snapshot/pkg/util"
	"stream-snapshot/pkg/youtube"
)

var (
	// ErrInvalidYouTubeURL is returned before any I/O when no video id can be
	// extracted. The text is part of the HTTP contract.
	ErrInvalidYouTubeURL = errors.New("Invalid YouTube URL")

	ErrAllMethodsFailed = errors.New("all capture methods failed")

	errNoThumbnail = errors.New("no thumbnail candidate returned an image")
)

// YouTubeJob is the per-request state shared by the strategies.
type YouTubeJob struct {
	VideoID string
	Dir     string
	Pair    models.CapturePair
}

// Strategy is one way of producing a YouTube pair.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, job *YouTubeJob) error
}

// CaptureYouTube resolves the video id and walks the strategy list until one
// produces both artifacts.
func (s *Service) CaptureYouTube(ctx context.Context, videoURL string) (models.CapturePair, error) {
	videoID, ok := youtube.ExtractVideoID(videoURL)
	// The id becomes part of file names, so it must be a plain name.
	if !ok || !storage.IsSafeName(videoID) {
		return models.CapturePair{}, ErrInvalidYouTubeURL
	}

	job := &YouTubeJob{
		VideoID: videoID,
		Dir:     s.YouTubeDir,
		Pair:    storage.NewPair(storage.YouTubePrefixFor(videoID), storage.Timestamp(s.Now())),
	}

	for _, strategy := range s.YouTubeStrategies {
		err := strategy.Run(ctx, job)
		if err == nil {
			log.Printf("📸 YouTube snapshot saved via %s: %s, %s", strategy.Name, job.Pair.Still, job.Pair.Loop)
			return job.Pair, nil
		}
		log.Printf("YouTube %s method failed for %s: %s", strategy.Name, videoID, Diagnostic(err))
		if ctx.Err() != nil {
			break
		}
	}

	return models.CapturePair{}, &CaptureError{Stage: "youtube", Err: ErrAllMethodsFailed}
}

// captureFromThumbnail stores the best available thumbnail as the still and
// scales it into a single-frame GIF.
func (s *Service) captureFromThumbnail(ctx context.Context, job *YouTubeJob) error {
	image, err := s.fetchThumbnail(ctx, job.VideoID)
	if err != nil {
		return &CaptureError{Stage: "thumbnail", Err: err}
	}

	tmpStill := filepath.Join(job.Dir, storage.PartialPrefix+job.Pair.Still)
	tmpLoop := filepath.Join(job.Dir, storage.PartialPrefix+job.Pair.Loop)

	if err := os.WriteFile(tmpStill, image, 0644); err != nil {
		discard(tmpStill)
		return &CaptureError{Stage: "thumbnail", Err: err}
	}

	// A still without its loop is an orphan; drop it before the next strategy.
	if err := s.Invoker.StaticLoop(ctx, tmpStill, tmpLoop, capture.StaticLoopWidth); err != nil {
		discard(tmpStill, tmpLoop)
		return &CaptureError{Stage: "gif", Err: err}
	}
	if util.IsFileEmpty(tmpLoop) {
		discard(tmpStill, tmpLoop)
		return &CaptureError{Stage: "gif", Err: errEmptyOutput}
	}

	return publish(job.Dir, job.Pair, tmpStill, tmpLoop)
}

// fetchThumbnail tries the fixed candidates in preference order and finally
// the og:image advertised by the watch page.
func (s *Service) fetchThumbnail(ctx context.Context, videoID string) ([]byte, error) {
	for _, candidate := range s.ThumbnailURLs(videoID) {
		image, err := s.download(ctx, candidate)
		if err != nil {
			log.Printf("Thumbnail %s unavailable: %v", candidate, err)
			continue
		}
		return image, nil
	}

	ogImage, err := youtube.ScrapeOGImage(ctx, s.HTTPClient, s.WatchURL(videoID))
	if err != nil {
		log.Printf("Watch page thumbnail lookup failed for %s: %v", videoID, err)
		return nil, errNoThumbnail
	}
	image, err := s.download(ctx, ogImage)
	if err != nil {
		log.Printf("Thumbnail %s unavailable: %v", ogImage, err)
		return nil, errNoThumbnail
	}
	return image, nil
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status code %d", resp.StatusCode)
	}

	limit := s.MaxThumbnailBytes
	if limit <= 0 {
		limit = DefaultMaxThumbnailBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("image larger than %d bytes", limit)
	}
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return body, nil
}

// captureFromSegment downloads a few seconds of the video and extracts the
// still and the loop from the end of that segment.
func (s *Service) captureFromSegment(ctx context.Context, job *YouTubeJob) error {
	if err := os.MkdirAll(s.TempDir, 0755); err != nil {
		return &CaptureError{Stage: "download", Err: err}
	}
	segment := filepath.Join(s.TempDir, fmt.Sprintf("yt-%s-%s.mp4", job.VideoID, uuid.NewString()))
	defer discard(segment)

	if err := s.Invoker.Download(ctx, capture.SegmentDownload, s.WatchURL(job.VideoID), segment); err != nil {
		return &CaptureError{Stage: "download", Err: err}
	}
	// yt-dlp can exit 0 without writing anything.
	if util.IsFileEmpty(segment) {
		return &CaptureError{Stage: "download", Err: errEmptyOutput}
	}

	return s.extractPair(ctx, capture.SegmentStill, capture.SegmentLoop, segment, job.Dir, job.Pair)
}
