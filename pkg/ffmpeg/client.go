package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

type Config struct {
	FfmpegBin  string `yaml:"ffmpeg_bin"`
	FfprobeBin string `yaml:"ffprobe_bin"`
}

type Client struct {
	cfg    *Config
	logger *slog.Logger
}

func New(cfg *Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
	}
}

func (c *Client) ffmpegBin() string {
	if c.cfg == nil || c.cfg.FfmpegBin == "" {
		return "ffmpeg"
	}
	return c.cfg.FfmpegBin
}

func (c *Client) ffprobeBin() string {
	if c.cfg == nil || c.cfg.FfprobeBin == "" {
		return "ffprobe"
	}
	return c.cfg.FfprobeBin
}

// run executes ffmpeg with args; on failure the tail of stderr becomes part of the error.
func (c *Client) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, c.ffmpegBin(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("running ffmpeg", "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run ffmpeg: %w: %s", err, tail(stderr.String(), 512))
	}

	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
