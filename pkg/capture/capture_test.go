package capture

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStillPresetArgs(t *testing.T) {
	args := WebcamStill.Args("https://cam.example/live.m3u8", "/tmp/a.jpg")
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", "https://cam.example/live.m3u8",
		"-frames:v", "1", "-q:v", "2",
		"/tmp/a.jpg",
	}, args)

	args = SegmentStill.Args("/tmp/seg.mp4", "/tmp/a.jpg")
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-sseof", "-1",
		"-i", "/tmp/seg.mp4",
		"-frames:v", "1", "-q:v", "2",
		"/tmp/a.jpg",
	}, args)

	args = StillPreset{Seek: 1500 * time.Millisecond}.Args("in", "out.jpg")
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", "1.5", "-i", "in", "-frames:v", "1", "out.jpg",
	}, args)
}

func TestLoopPresetArgs(t *testing.T) {
	args := WebcamLoop.Args("https://cam.example/live.m3u8", "/tmp/a.gif")
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-t", "3",
		"-i", "https://cam.example/live.m3u8",
		"-vf", "fps=10,scale=480:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse",
		"-loop", "0",
		"/tmp/a.gif",
	}, args)

	args = SegmentLoop.Args("/tmp/seg.mp4", "/tmp/a.gif")
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-sseof", "-3",
		"-t", "3",
		"-i", "/tmp/seg.mp4",
		"-vf", "fps=10,scale=320:-1:flags=lanczos",
		"-loop", "0",
		"/tmp/a.gif",
	}, args)
}

func TestStaticLoopArgs(t *testing.T) {
	args := StaticLoopArgs("/tmp/a.jpg", "/tmp/a.gif", 480)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", "/tmp/a.jpg",
		"-vf", "scale=480:-1:flags=lanczos",
		"-loop", "0",
		"/tmp/a.gif",
	}, args)
}

func TestDownloadPresetArgs(t *testing.T) {
	args := SegmentDownload.Args("https://www.youtube.com/watch?v=abc", "/tmp/seg.mp4")
	assert.Equal(t, []string{
		"-f", "best[ext=mp4]/best",
		"--download-sections", "*0-5",
		"--retries", "3",
		"--fragment-retries", "3",
		"--socket-timeout", "10",
		"--no-playlist",
		"--no-part",
		"--force-overwrites",
		"--quiet",
		"-o", "/tmp/seg.mp4",
		"https://www.youtube.com/watch?v=abc",
	}, args)
}

func TestInvokerUsesConfiguredTools(t *testing.T) {
	var calls []string
	inv := NewInvoker("/opt/ffmpeg", "/opt/yt-dlp")
	inv.Run = func(ctx context.Context, name string, args ...string) error {
		calls = append(calls, name)
		return nil
	}

	ctx := context.Background()
	assert.NoError(t, inv.Still(ctx, WebcamStill, "in", "out.jpg"))
	assert.NoError(t, inv.Loop(ctx, WebcamLoop, "in", "out.gif"))
	assert.NoError(t, inv.StaticLoop(ctx, "in.jpg", "out.gif", 320))
	assert.NoError(t, inv.Download(ctx, SegmentDownload, "url", "out.mp4"))
	assert.Equal(t, []string{"/opt/ffmpeg", "/opt/ffmpeg", "/opt/ffmpeg", "/opt/yt-dlp"}, calls)
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ctx := context.Background()
	assert.NoError(t, ExecRunner(ctx, "sh", "-c", "exit 0"))

	err := ExecRunner(ctx, "sh", "-c", "echo 'Invalid data found' >&2; exit 3")
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "sh", toolErr.Tool)
	assert.Equal(t, "Invalid data found", toolErr.Diagnostic())
	assert.NotContains(t, toolErr.Error(), "Invalid data found")

	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestExecRunnerMissingTool(t *testing.T) {
	err := ExecRunner(context.Background(), "definitely-not-a-real-tool-binary")
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.NotEmpty(t, toolErr.Diagnostic())
}

func TestExecRunnerHonoursDeadline(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := ExecRunner(ctx, "sleep", "5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
