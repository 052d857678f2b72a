package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultMusicVolume = 0.2
	DefaultWidth       = 1280
	DefaultHeight      = 720
)

var ErrNoClip = errors.New("clip path is required")

// ComposeRequest describes the final video: the talking-head clip over an optional
// background image with optional background music ducked under the voice.
type ComposeRequest struct {
	Clip       string
	Background string
	Music      string
	Output     string

	MusicVolume float64
	Width       int
	Height      int
}

func (r *ComposeRequest) withDefaults() ComposeRequest {
	out := *r

	if out.MusicVolume <= 0 {
		out.MusicVolume = DefaultMusicVolume
	}
	if out.Width <= 0 {
		out.Width = DefaultWidth
	}
	if out.Height <= 0 {
		out.Height = DefaultHeight
	}

	// libx264 needs even dimensions
	out.Width -= out.Width % 2
	out.Height -= out.Height % 2

	return out
}

// ComposeArgs builds the ffmpeg argument list for req. The output always ends with the clip.
func ComposeArgs(req *ComposeRequest) ([]string, error) {
	if req == nil || strings.TrimSpace(req.Clip) == "" {
		return nil, ErrNoClip
	}

	if strings.TrimSpace(req.Output) == "" {
		return nil, fmt.Errorf("output path is required")
	}

	r := req.withDefaults()

	args := []string{"-y", "-nostats", "-loglevel", "error", "-i", r.Clip}

	bgIdx, musicIdx := -1, -1
	next := 1

	if r.Background != "" {
		args = append(args, "-loop", "1", "-i", r.Background)
		bgIdx = next
		next++
	}

	if r.Music != "" {
		args = append(args, "-stream_loop", "-1", "-i", r.Music)
		musicIdx = next
	}

	if bgIdx < 0 && musicIdx < 0 {
		return append(args, "-map", "0", "-c", "copy", "-movflags", "+faststart", r.Output), nil
	}

	var filters []string
	videoMap, audioMap := "0:v", "0:a?"

	if bgIdx >= 0 {
		fgHeight := r.Height * 3 / 4
		fgHeight -= fgHeight % 2

		filters = append(filters,
			fmt.Sprintf("[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1[bg]", bgIdx, r.Width, r.Height, r.Width, r.Height),
			fmt.Sprintf("[0:v]scale=-2:%d[fg]", fgHeight),
			"[bg][fg]overlay=(W-w)/2:H-h:shortest=1,format=yuv420p[v]",
		)
		videoMap = "[v]"
	}

	if musicIdx >= 0 {
		filters = append(filters,
			fmt.Sprintf("[%d:a]volume=%s[m]", musicIdx, strconv.FormatFloat(r.MusicVolume, 'f', 2, 64)),
			"[0:a][m]amix=inputs=2:duration=first:dropout_transition=0[a]",
		)
		audioMap = "[a]"
	}

	args = append(args, "-filter_complex", strings.Join(filters, ";"), "-map", videoMap, "-map", audioMap)

	if bgIdx >= 0 {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "23")
	} else {
		args = append(args, "-c:v", "copy")
	}

	args = append(args, "-c:a", "aac", "-b:a", "192k", "-shortest", "-movflags", "+faststart", r.Output)

	return args, nil
}

// Compose renders the final video described by req.
func (c *Client) Compose(ctx context.Context, req *ComposeRequest) error {
	args, err := ComposeArgs(req)
	if err != nil {
		return err
	}

	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("compose %s: %w", req.Output, err)
	}

	return nil
}
