package youtube

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Tried in order, first match wins. Each pattern is anchored to a YouTube
// host, and the id is limited to the characters YouTube uses, ending at the
// next &, ?, #, / or line break.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:[\w-]+\.)*youtube\.com/watch\?(?:[^#\s]*?&)?v=([A-Za-z0-9_-]+)(?:[&#\n]|$)`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/([A-Za-z0-9_-]+)(?:[/?#&\n]|$)`),
	regexp.MustCompile(`^(?:https?://)?(?:[\w-]+\.)*youtube\.com/embed/([A-Za-z0-9_-]+)(?:[/?#&\n]|$)`),
}

// ExtractVideoID pulls the video identifier out of the common YouTube URL
// shapes. It never touches the network.
func ExtractVideoID(rawURL string) (string, bool) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ThumbnailURLs lists thumbnail candidates, most preferred first.
func ThumbnailURLs(videoID string) []string {
	return []string{
		fmt.Sprintf("https://i.ytimg.com/vi/%s/maxresdefault_live.jpg", videoID),
		fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", videoID),
		fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", videoID),
	}
}

// WatchURL is the canonical page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ScrapeOGImage fetches a watch page and returns its og:image thumbnail URL.
func ScrapeOGImage(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating watch page request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("watch page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watch page returned status code %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse watch page: %w", err)
	}

	imageURL, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	imageURL = strings.TrimSpace(imageURL)
	if !ok || imageURL == "" {
		return "", fmt.Errorf("no og:image on %s", pageURL)
	}
	return imageURL, nil
}
