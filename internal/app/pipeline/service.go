package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"avatarcast/db"
	appmetrics "avatarcast/internal/app/metrics"
	"avatarcast/internal/app/workspace"
	"avatarcast/pkg/pubsub"
	"avatarcast/pkg/slg"

	"github.com/google/uuid"
)

type Config struct {
	MaxAvatarSize int           `yaml:"max_avatar_size"`
	MusicVolume   float64       `yaml:"music_volume"`
	VideoWidth    int           `yaml:"video_width"`
	VideoHeight   int           `yaml:"video_height"`
	MaxIdle       time.Duration `yaml:"max_idle"`

	// Retention is how long finished runs are kept on disk; 0 keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// Event is published on the run's topic on every status change.
type Event struct {
	RunID  string       `json:"run_id"`
	Status db.RunStatus `json:"status"`
	Step   string       `json:"step"`
	Error  string       `json:"error,omitempty"`
	At     time.Time    `json:"at"`
}

type Deps struct {
	TTS       TTS
	Remover   BackgroundRemover
	Talker    Talker
	Media     Media
	Scenes    Scenes
	Store     Store
	Publisher Publisher // nil disables publishing
}

type Service struct {
	cfg    *Config
	logger *slog.Logger
	ws     *workspace.Workspace

	tts       TTS
	remover   BackgroundRemover
	talker    Talker
	media     Media
	scenes    Scenes
	store     Store
	publisher Publisher

	events *pubsub.PubSub[Event]
}

func NewService(cfg *Config, logger *slog.Logger, ws *workspace.Workspace, deps Deps) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
		ws:     ws,

		tts:       deps.TTS,
		remover:   deps.Remover,
		talker:    deps.Talker,
		media:     deps.Media,
		scenes:    deps.Scenes,
		store:     deps.Store,
		publisher: deps.Publisher,

		events: pubsub.New[Event](),
	}
}

func (s *Service) Workspace() *workspace.Workspace {
	return s.ws
}

// Subscribe delivers events for runID until unsub is called.
func (s *Service) Subscribe(runID string, fn func(Event)) (unsub func()) {
	return s.events.Subscribe(runID, fn)
}

func (s *Service) publish(run *db.Run, step string) {
	s.events.Publish(run.ID, Event{
		RunID:  run.ID,
		Status: run.Status,
		Step:   step,
		Error:  run.Error,
		At:     time.Now().UTC(),
	})
}

func (s *Service) GetRun(ctx context.Context, id string) (*db.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		if db.ErrCode(err) == db.ErrCodeNoRows {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	return run, nil
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]*db.Run, error) {
	return s.store.ListRuns(ctx, limit)
}

// ensureRun returns the run with id, or a fresh run when id is empty. The run directory exists on return.
func (s *Service) ensureRun(ctx context.Context, id string) (*db.Run, error) {
	var (
		run *db.Run
		err error
	)

	if id == "" {
		run = &db.Run{
			ID:     uuid.NewString(),
			Status: db.RunStatusCreated,
		}

		if err := s.store.CreateRun(ctx, run); err != nil {
			return nil, err
		}

		s.logger.Info("run created", "run_id", run.ID)
	} else if run, err = s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	dir, err := s.ws.RunDir(run.ID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	return run, nil
}

// latestRun resolves id, falling back to the most recent run when id is empty.
// A fresh run is created only when the store has none and create is set.
func (s *Service) latestRun(ctx context.Context, id string, create bool) (*db.Run, error) {
	if id != "" {
		return s.ensureRun(ctx, id)
	}

	run, err := s.store.LatestRun(ctx)
	if err == nil {
		return s.ensureRun(ctx, run.ID)
	}

	if db.ErrCode(err) != db.ErrCodeNoRows {
		return nil, err
	}

	if !create {
		return nil, fmt.Errorf("%w: no run", ErrMissingInput)
	}

	return s.ensureRun(ctx, "")
}

func (s *Service) save(ctx context.Context, run *db.Run, step string) error {
	if err := s.store.UpdateRun(ctx, run); err != nil {
		return err
	}

	s.publish(run, step)

	if run.Status == db.RunStatusDone || run.Status == db.RunStatusFailed {
		appmetrics.Pipeline.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	}

	return nil
}

func observe(step string, start time.Time) {
	appmetrics.Pipeline.StepSeconds.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// Prune deletes runs older than the retention period together with their directories.
func (s *Service) Prune(ctx context.Context) (int, error) {
	if s.cfg.Retention <= 0 {
		return 0, nil
	}

	ids, err := s.store.DeleteRunsBefore(ctx, time.Now().Add(-s.cfg.Retention))
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		dir, err := s.ws.RunDir(id)
		if err != nil {
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove run dir", "run_id", id, "err", err)
		}
	}

	appmetrics.Pipeline.RunsPruned.Add(float64(len(ids)))

	if len(ids) > 0 {
		s.logger.Info("pruned runs", "count", len(ids))
	}

	return len(ids), nil
}

// fail records cause on the run. The record is written even if the caller's context is gone.
func (s *Service) fail(ctx context.Context, run *db.Run, step string, cause error) error {
	logger := slg.GetSlog(ctx, s.logger).With("run_id", run.ID, "step", step)
	logger.Error("pipeline step failed", "err", cause)

	run.Status = db.RunStatusFailed
	run.Error = cause.Error()

	if err := s.save(context.WithoutCancel(ctx), run, step); err != nil {
		logger.Error("failed to record run failure", "err", err)
	}

	return cause
}
