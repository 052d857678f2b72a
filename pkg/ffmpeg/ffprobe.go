package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

type FfprobeResult struct {
	Duration time.Duration
	HasVideo bool
	HasAudio bool
}

type ffprobeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

func (c *Client) FfprobePath(ctx context.Context, path string) (*FfprobeResult, error) {
	cmd := exec.CommandContext(ctx, c.ffprobeBin(), "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path)

	res, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("exec ffprobe: %w", err)
	}

	return parseFfprobe(res)
}

func parseFfprobe(data []byte) (*FfprobeResult, error) {
	var result *ffprobeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal json: %w", err)
	}

	if result == nil {
		return nil, fmt.Errorf("empty ffprobe output")
	}

	dur, err := time.ParseDuration(result.Format.Duration + "s")
	if err != nil {
		return nil, fmt.Errorf("parse duration: %w", err)
	}

	out := &FfprobeResult{
		Duration: dur,
	}

	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			out.HasVideo = true
		case "audio":
			out.HasAudio = true
		}
	}

	return out, nil
}
