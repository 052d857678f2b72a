package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"avatarcast/db"
	"avatarcast/internal/app/workspace"
	"avatarcast/pkg/ffmpeg"
	"avatarcast/pkg/tools"
)

const (
	SpeechFile = "speech.wav"
	IdleFile   = "idle.wav"
	ClipFile   = "clip.mp4"
	FinalFile  = "final.mp4"
)

// resetOutputs drops everything derived from the previous audio.
func resetOutputs(run *db.Run) {
	run.ClipFile = ""
	run.VideoFile = ""
	run.ShareURL = ""
	run.Error = ""
}

// GenerateAudio synthesizes text into the run's speech file, creating a run when runID is empty.
func (s *Service) GenerateAudio(ctx context.Context, runID, text string) (*db.Run, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	run, err := s.ensureRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	audio, err := s.tts.TTS(ctx, text)
	observe("tts", start)
	if err != nil {
		return nil, s.fail(ctx, run, "tts", fmt.Errorf("text-to-speech: %w", err))
	}

	path, err := s.ws.RunFile(run.ID, SpeechFile)
	if err != nil {
		return nil, err
	}

	if err := tools.WriteFileAtomic(path, audio); err != nil {
		return nil, s.fail(ctx, run, "tts", fmt.Errorf("save speech: %w", err))
	}

	resetOutputs(run)
	run.Text = text
	run.AudioFile = SpeechFile
	run.Status = db.RunStatusAudioReady

	if err := s.save(ctx, run, "tts"); err != nil {
		return nil, err
	}

	s.logger.Info("speech generated", "run_id", run.ID, "bytes", len(audio))

	return run, nil
}

// UploadAudio stores a user supplied voice track for the run, normalized to the rate SadTalker expects.
func (s *Service) UploadAudio(ctx context.Context, runID, filename string, r io.Reader) (*db.Run, error) {
	name := workspace.SafeName(filename)
	if name == "" {
		return nil, ErrEmptyFilename
	}

	run, err := s.ensureRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	dir, err := s.ws.RunDir(run.ID)
	if err != nil {
		return nil, err
	}

	upload, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer os.Remove(upload.Name())

	if _, err := io.Copy(upload, r); err != nil {
		upload.Close()
		return nil, fmt.Errorf("save upload: %w", err)
	}

	if err := upload.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}

	out := filepath.Join(dir, SpeechFile)
	if err := s.media.ToWav(ctx, upload.Name(), out, ffmpeg.SadTalkerSampleRate); err != nil {
		return nil, s.fail(ctx, run, "upload_audio", fmt.Errorf("convert audio: %w", err))
	}

	resetOutputs(run)
	run.Text = ""
	run.AudioFile = SpeechFile
	run.Status = db.RunStatusAudioReady

	if err := s.save(ctx, run, "upload_audio"); err != nil {
		return nil, err
	}

	s.logger.Info("audio uploaded", "run_id", run.ID, "source", name)

	return run, nil
}
