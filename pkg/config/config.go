package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Port                int
	PublicURL           string
	DataDir             string
	SnapshotsDir        string
	YouTubeSnapshotsDir string
	DBPath              string
	SnapshotsToKeep     int
	CleanupIntervalSec  int
	CaptureTimeoutSec   int
	FFmpegPath          string
	YTDLPPath           string
	CORSRootDomain      string
	AppKey              string
	AdminPassword       string
}

// AppConfig is the global application configuration.
var AppConfig Config

// CleanupInterval returns the retention schedule period.
func (c *Config) CleanupInterval() time.Duration {
	if c.CleanupIntervalSec <= 0 {
		return time.Hour
	}
	return time.Duration(c.CleanupIntervalSec) * time.Second
}

// CaptureTimeout bounds a single capture request, external tools included.
func (c *Config) CaptureTimeout() time.Duration {
	if c.CaptureTimeoutSec <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.CaptureTimeoutSec) * time.Second
}

// AdminEnabled reports whether the JWT protected admin API should be mounted.
func (c *Config) AdminEnabled() bool {
	return c.AppKey != ""
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() {
	port := getEnvAsInt("PORT", 3000)

	AppConfig = Config{
		Port:                port,
		PublicURL:           getEnv("PUBLIC_URL", fmt.Sprintf("http://localhost:%d", port)),
		DataDir:             getEnv("DATA_DIR", "."),
		SnapshotsDir:        getEnv("SNAPSHOTS_DIR", "snapshots"),
		YouTubeSnapshotsDir: getEnv("YOUTUBE_SNAPSHOTS_DIR", "youtube-snapshots"),
		SnapshotsToKeep:     getEnvAsInt("SNAPSHOTS_TO_KEEP", 100),
		CleanupIntervalSec:  getEnvAsInt("CLEANUP_INTERVAL", 3600),
		CaptureTimeoutSec:   getEnvAsInt("CAPTURE_TIMEOUT", 120),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		YTDLPPath:           getEnv("YTDLP_PATH", "yt-dlp"),
		CORSRootDomain:      getEnv("CORS_ROOT_DOMAIN", "yayproject.com"),
		AppKey:              getEnv("APP_KEY", ""),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
	}

	// Absolute URLs are built as PublicURL + "/images/...".
	AppConfig.PublicURL = strings.TrimRight(AppConfig.PublicURL, "/")

	AppConfig.SnapshotsDir = filepath.Join(AppConfig.DataDir, AppConfig.SnapshotsDir)
	AppConfig.YouTubeSnapshotsDir = filepath.Join(AppConfig.DataDir, AppConfig.YouTubeSnapshotsDir)
	AppConfig.DBPath = getEnv("DB_PATH", filepath.Join(AppConfig.DataDir, "snapshots.db"))

	if !AppConfig.AdminEnabled() {
		log.Println("APP_KEY not set, admin API disabled.")
	}

	log.Printf("Public URL set to: %s", AppConfig.PublicURL)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
