package models

import (
	"database/sql"
	"time"
)

// Kind distinguishes the two capture sources.
type Kind string

const (
	KindWebcam  Kind = "webcam"
	KindYouTube Kind = "youtube"
)

// CapturePair is the result of one completed capture: a still JPEG and a GIF
// loop sharing the same prefix+timestamp stem.
type CapturePair struct {
	Still string `json:"still"`
	Loop  string `json:"loop"`
}

// Capture is one row of the capture history.
type Capture struct {
	ID         int64
	Kind       Kind
	SourceURL  string
	VideoID    string
	Still      string
	Loop       string
	Status     string // "ok", "failed"
	Error      sql.NullString
	DurationMs int64
	Pruned     bool
	CreatedAt  time.Time
}

// Job represents a job in the database job queue.
type Job struct {
	ID        int64
	JobType   string
	Payload   string
	Status    string
	Error     sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User represents a user account in the database.
type User struct {
	ID       int64
	Username string
	IsAdmin  bool
}
