package assets

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// ErrProbeUnavailable indicates no probe binary is configured.
var ErrProbeUnavailable = errors.New("media probe unavailable")

// Prober reads media durations with ffprobe.
type Prober struct {
	Binary  string
	Run     CommandRunner
	Timeout time.Duration
}

// NewProber constructs a Prober that shells out to ffprobe.
func NewProber(binary string, timeout time.Duration) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{Binary: binary, Run: defaultCommandRunner, Timeout: timeout}
}

// Duration returns the length of the media file at path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	if p == nil {
		return 0, ErrProbeUnavailable
	}
	run := p.Run
	if run == nil {
		run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	out, err := run(execCtx, p.Binary, "-v", "error", "-show_entries", "format=duration", "-of", "json", path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var payload struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return 0, fmt.Errorf("parse ffprobe response: %w", err)
	}
	if payload.Format.Duration == "" {
		return 0, errors.New("ffprobe returned no duration")
	}
	d, err := strconv.ParseFloat(payload.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", payload.Format.Duration, err)
	}
	return d, nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}
