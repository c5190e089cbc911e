package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner executes an external tool and reports success from its exit status
// alone. Implementations must return a *ToolError carrying stderr on failure.
type Runner func(ctx context.Context, name string, args ...string) error

// ToolError is a failed subprocess run. Stderr is for operator logs only.
type ToolError struct {
	Tool   string
	Args   []string
	Err    error
	Stderr string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Diagnostic returns the decoded stderr, or the exit error when stderr was empty.
func (e *ToolError) Diagnostic() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return e.Err.Error()
}

// ExecRunner runs the tool as a subprocess bound to ctx.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return &ToolError{
			Tool:   name,
			Args:   args,
			Err:    err,
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return nil
}

// StillPreset extracts exactly one frame into a still image.
type StillPreset struct {
	Seek    time.Duration
	FromEnd bool // seek relative to end of input (-sseof)
	Quality int  // mjpeg -q:v, 2 is near lossless
}

// LoopPreset extracts a short scaled sequence into an animated GIF.
type LoopPreset struct {
	Seek     time.Duration
	FromEnd  bool
	Duration time.Duration
	FPS      int
	Width    int
	Palette  bool // two-pass palettegen/paletteuse graph
}

// DownloadPreset bounds a yt-dlp segment download.
type DownloadPreset struct {
	Duration        time.Duration
	Format          string
	Retries         int
	FragmentRetries int
	SocketTimeout   time.Duration
}

var (
	WebcamStill = StillPreset{Quality: 2}
	WebcamLoop  = LoopPreset{Duration: 3 * time.Second, FPS: 10, Width: 480, Palette: true}

	SegmentStill = StillPreset{Seek: time.Second, FromEnd: true, Quality: 2}
	SegmentLoop  = LoopPreset{Seek: 3 * time.Second, FromEnd: true, Duration: 3 * time.Second, FPS: 10, Width: 320}

	SegmentDownload = DownloadPreset{
		Duration:        5 * time.Second,
		Format:          "best[ext=mp4]/best",
		Retries:         3,
		FragmentRetries: 3,
		SocketTimeout:   10 * time.Second,
	}

	StaticLoopWidth = 480
)

var quietArgs = []string{"-hide_banner", "-loglevel", "error", "-y"}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func seekArgs(seek time.Duration, fromEnd bool) []string {
	if fromEnd {
		return []string{"-sseof", "-" + seconds(seek)}
	}
	if seek > 0 {
		return []string{"-ss", seconds(seek)}
	}
	return nil
}

// Args translates the preset into an ffmpeg argument list.
func (p StillPreset) Args(input, output string) []string {
	args := append([]string{}, quietArgs...)
	args = append(args, seekArgs(p.Seek, p.FromEnd)...)
	args = append(args, "-i", input, "-frames:v", "1")
	if p.Quality > 0 {
		args = append(args, "-q:v", strconv.Itoa(p.Quality))
	}
	return append(args, output)
}

// Filter returns the -vf graph for the preset.
func (p LoopPreset) Filter() string {
	filter := fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos", p.FPS, p.Width)
	if p.Palette {
		filter += ",split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"
	}
	return filter
}

// Args translates the preset into an ffmpeg argument list. The duration is an
// input option so live sources are only read for as long as needed.
func (p LoopPreset) Args(input, output string) []string {
	args := append([]string{}, quietArgs...)
	args = append(args, seekArgs(p.Seek, p.FromEnd)...)
	args = append(args,
		"-t", seconds(p.Duration),
		"-i", input,
		"-vf", p.Filter(),
		"-loop", "0",
		output,
	)
	return args
}

// StaticLoopArgs scales a single still image into a one-frame GIF.
func StaticLoopArgs(stillPath, output string, width int) []string {
	args := append([]string{}, quietArgs...)
	return append(args,
		"-i", stillPath,
		"-vf", fmt.Sprintf("scale=%d:-1:flags=lanczos", width),
		"-loop", "0",
		output,
	)
}

// Args translates the preset into a yt-dlp argument list.
func (p DownloadPreset) Args(videoURL, output string) []string {
	return []string{
		"-f", p.Format,
		"--download-sections", "*0-" + seconds(p.Duration),
		"--retries", strconv.Itoa(p.Retries),
		"--fragment-retries", strconv.Itoa(p.FragmentRetries),
		"--socket-timeout", seconds(p.SocketTimeout),
		"--no-playlist",
		"--no-part",
		"--force-overwrites",
		"--quiet",
		"-o", output,
		videoURL,
	}
}

// Invoker binds a Runner to the configured tool paths.
type Invoker struct {
	Run        Runner
	FFmpegPath string
	YTDLPPath  string
}

func NewInvoker(ffmpegPath, ytdlpPath string) *Invoker {
	return &Invoker{
		Run:        ExecRunner,
		FFmpegPath: ffmpegPath,
		YTDLPPath:  ytdlpPath,
	}
}

func (i *Invoker) Still(ctx context.Context, p StillPreset, input, output string) error {
	return i.Run(ctx, i.FFmpegPath, p.Args(input, output)...)
}

func (i *Invoker) Loop(ctx context.Context, p LoopPreset, input, output string) error {
	return i.Run(ctx, i.FFmpegPath, p.Args(input, output)...)
}

func (i *Invoker) StaticLoop(ctx context.Context, stillPath, output string, width int) error {
	return i.Run(ctx, i.FFmpegPath, StaticLoopArgs(stillPath, output, width)...)
}

func (i *Invoker) Download(ctx context.Context, p DownloadPreset, videoURL, output string) error {
	return i.Run(ctx, i.YTDLPPath, p.Args(videoURL, output)...)
}
