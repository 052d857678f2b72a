package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// SadTalkerSampleRate is the rate the audio-to-coefficient stage expects.
const SadTalkerSampleRate = 16000

// ToWav converts any audio ffmpeg understands into mono 16-bit PCM wav.
func (c *Client) ToWav(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = SadTalkerSampleRate
	}

	return c.run(ctx, []string{
		"-y", "-nostats", "-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outputPath,
	})
}

// Silence writes a silent mono wav of the given duration.
func (c *Client) Silence(ctx context.Context, outputPath string, d time.Duration, sampleRate int) error {
	if d <= 0 {
		return fmt.Errorf("silence duration must be positive, got %s", d)
	}

	if sampleRate <= 0 {
		sampleRate = SadTalkerSampleRate
	}

	return c.run(ctx, []string{
		"-y", "-nostats", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", sampleRate),
		"-t", strconv.FormatFloat(d.Seconds(), 'f', 3, 64),
		"-c:a", "pcm_s16le",
		outputPath,
	})
}
