package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"avatarcast/db"
	"avatarcast/internal/app/scene"
	"avatarcast/internal/app/workspace"
	"avatarcast/pkg/ffmpeg"
	"avatarcast/pkg/sadtalker"
)

var preprocessModes = map[string]struct{}{
	"crop":    {},
	"extcrop": {},
	"resize":  {},
	"full":    {},
	"extfull": {},
}

// VideoRequest carries the generation knobs; zero values mean the defaults of the video endpoint.
type VideoRequest struct {
	RunID  string
	Avatar string

	Preprocess string
	Still      *bool
	Enhancer   bool
	Size       int
	PoseStyle  int
	BatchSize  int

	// IdleSeconds drives the avatar with silence when the run has no audio.
	IdleSeconds float64

	// Background and Music override the run's scene selection when set.
	Background string
	Music      string
}

func (r *VideoRequest) preprocess() string {
	if _, ok := preprocessModes[r.Preprocess]; ok {
		return r.Preprocess
	}
	return "full"
}

func (r *VideoRequest) still() bool {
	if r.Still == nil {
		return true
	}
	return *r.Still
}

func (s *Service) videoRun(ctx context.Context, req *VideoRequest) (*db.Run, error) {
	run, err := s.latestRun(ctx, req.RunID, req.IdleSeconds > 0)
	if errors.Is(err, ErrMissingInput) {
		return nil, fmt.Errorf("%w: no run with audio", ErrMissingInput)
	}

	return run, err
}

func (s *Service) idleDuration(seconds float64) time.Duration {
	d := time.Duration(seconds * float64(time.Second))

	limit := s.cfg.MaxIdle
	if limit <= 0 {
		limit = time.Minute
	}

	return min(d, limit)
}

// prepareAudio returns the driven audio for the run. Idle mode renders fresh silence
// unless the run carries real speech.
func (s *Service) prepareAudio(ctx context.Context, run *db.Run, req *VideoRequest) (string, error) {
	idle := req.IdleSeconds > 0 && (run.AudioFile == "" || run.AudioFile == IdleFile)

	if run.AudioFile != "" && !idle {
		path, err := s.ws.RunFile(run.ID, run.AudioFile)
		if err != nil {
			return "", err
		}

		if workspace.Exists(path) {
			return path, nil
		}
	}

	if req.IdleSeconds <= 0 {
		return "", fmt.Errorf("%w: run %s has no audio", ErrMissingInput, run.ID)
	}

	path, err := s.ws.RunFile(run.ID, IdleFile)
	if err != nil {
		return "", err
	}

	if err := s.media.Silence(ctx, path, s.idleDuration(req.IdleSeconds), ffmpeg.SadTalkerSampleRate); err != nil {
		return "", fmt.Errorf("render idle audio: %w", err)
	}

	run.AudioFile = IdleFile

	return path, nil
}

// GenerateVideo renders the talking head for the run and composites it into the final video.
func (s *Service) GenerateVideo(ctx context.Context, req *VideoRequest) (*db.Run, error) {
	if req.Avatar == "" {
		return nil, fmt.Errorf("%w: no avatar", ErrMissingInput)
	}

	avatarPath := s.ws.AvatarPath(req.Avatar)
	if !workspace.Exists(avatarPath) {
		return nil, fmt.Errorf("%w: avatar %s", ErrMissingInput, filepath.Base(avatarPath))
	}

	if err := s.checkAsset(scene.KindBackground, req.Background); err != nil {
		return nil, err
	}
	if err := s.checkAsset(scene.KindMusic, req.Music); err != nil {
		return nil, err
	}

	run, err := s.videoRun(ctx, req)
	if err != nil {
		return nil, err
	}

	audioPath, err := s.prepareAudio(ctx, run, req)
	if err != nil {
		if errors.Is(err, ErrMissingInput) {
			return nil, err
		}
		return nil, s.fail(ctx, run, "audio", err)
	}

	if req.Background != "" {
		run.Background = req.Background
	}
	if req.Music != "" {
		run.Music = req.Music
	}

	run.Avatar = filepath.Base(avatarPath)
	run.ClipFile, run.VideoFile, run.ShareURL, run.Error = "", "", "", ""
	run.Status = db.RunStatusVideoRunning

	if err := s.save(ctx, run, "video"); err != nil {
		return nil, err
	}

	dir, err := s.ws.RunDir(run.ID)
	if err != nil {
		return nil, s.fail(ctx, run, "video", err)
	}

	start := time.Now()
	clip, err := s.talker.Generate(ctx, &sadtalker.Request{
		SourceImage: avatarPath,
		DrivenAudio: audioPath,
		ResultDir:   filepath.Join(dir, "sadtalker"),
		Preprocess:  req.preprocess(),
		Still:       req.still(),
		Enhancer:    req.Enhancer,
		BatchSize:   req.BatchSize,
		Size:        req.Size,
		PoseStyle:   req.PoseStyle,
	})
	observe("sadtalker", start)
	if err != nil {
		if errors.Is(err, sadtalker.ErrNoVideo) {
			err = fmt.Errorf("%w: %s", ErrNoVideo, err)
		}
		return nil, s.fail(ctx, run, "sadtalker", err)
	}

	clipPath := filepath.Join(dir, ClipFile)
	if err := os.Rename(clip, clipPath); err != nil {
		return nil, s.fail(ctx, run, "sadtalker", fmt.Errorf("%w: %s", ErrNoVideo, err))
	}

	probe, err := s.media.FfprobePath(ctx, clipPath)
	if err != nil {
		return nil, s.fail(ctx, run, "sadtalker", fmt.Errorf("%w: %s", ErrNoVideo, err))
	}

	if !probe.HasVideo {
		return nil, s.fail(ctx, run, "sadtalker", fmt.Errorf("%w: clip has no video stream", ErrNoVideo))
	}

	run.ClipFile = ClipFile
	run.VideoFile = ClipFile

	if run.Background != "" || run.Music != "" {
		if err := s.compose(ctx, run, clipPath, filepath.Join(dir, FinalFile)); err != nil {
			return nil, s.fail(ctx, run, "compose", err)
		}

		run.VideoFile = FinalFile
	}

	if s.publisher != nil {
		videoPath := filepath.Join(dir, run.VideoFile)

		link, err := s.publisher.PublishVideo(ctx, run.ID+".mp4", videoPath)
		if err != nil {
			// local download still works without the share link
			s.logger.Warn("failed to publish video", "run_id", run.ID, "err", err)
		} else {
			run.ShareURL = link
		}
	}

	run.Status = db.RunStatusDone

	if err := s.save(ctx, run, "done"); err != nil {
		return nil, err
	}

	s.logger.Info("video generated", "run_id", run.ID, "video", run.VideoFile, "duration", probe.Duration, "shared", run.ShareURL != "")

	return run, nil
}

func (s *Service) compose(ctx context.Context, run *db.Run, clip, output string) error {
	req := &ffmpeg.ComposeRequest{
		Clip:        clip,
		Output:      output,
		MusicVolume: s.cfg.MusicVolume,
		Width:       s.cfg.VideoWidth,
		Height:      s.cfg.VideoHeight,
	}

	if run.Background != "" {
		path, err := s.scenes.Background(run.Background)
		if err != nil {
			return fmt.Errorf("resolve background: %w", err)
		}
		req.Background = path
	}

	if run.Music != "" {
		path, err := s.scenes.Track(run.Music)
		if err != nil {
			return fmt.Errorf("resolve music: %w", err)
		}
		req.Music = path
	}

	start := time.Now()
	defer observe("compose", start)

	if err := s.media.Compose(ctx, req); err != nil {
		return fmt.Errorf("compose video: %w", err)
	}

	if !workspace.Exists(output) {
		return fmt.Errorf("%w: compositor produced no output", ErrNoVideo)
	}

	return nil
}
