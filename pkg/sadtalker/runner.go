package sadtalker

import (
	"avatarcast/pkg/tools"

	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoVideo            = errors.New("sadtalker did not produce output video")
	ErrCheckpointsMissing = errors.New("sadtalker checkpoints missing")
	ErrConfigDir          = errors.New("sadtalker config dir must be <root>/src/config")
)

// Config for the runner. ConfigDir must resolve to <root>/src/config, the only place inference.py reads.
type Config struct {
	Python        string        `yaml:"python"`
	Root          string        `yaml:"root"`
	Script        string        `yaml:"script"`
	CheckpointDir string        `yaml:"checkpoint_dir"`
	ConfigDir     string        `yaml:"config_dir"`
	OldVersion    bool          `yaml:"old_version"`
	Device        string        `yaml:"device"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Request mirrors the knobs of the upstream inference entry point.
type Request struct {
	SourceImage string
	DrivenAudio string
	ResultDir   string

	Preprocess string
	Still      bool
	Enhancer   bool
	BatchSize  int
	Size       int
	PoseStyle  int
	ExpScale   float64
}

// WithDefaults fills unset fields with what the video endpoint has always used.
func (r Request) WithDefaults() Request {
	if r.Preprocess == "" {
		r.Preprocess = "full"
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 2
	}
	if r.Size <= 0 {
		r.Size = 256
	}
	if r.ExpScale <= 0 {
		r.ExpScale = 1
	}

	return r
}

// Runner drives SadTalker as a subprocess. Model paths are resolved lazily on first use and only
// one generation runs at a time.
type Runner struct {
	cfg    *Config
	logger *slog.Logger

	lock  sync.Mutex
	ready map[string]*Paths
}

func New(cfg *Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		cfg:    cfg,
		logger: logger,
		ready:  make(map[string]*Paths),
	}
}

func (r *Runner) python() string {
	if r.cfg.Python == "" {
		return "python3"
	}
	return r.cfg.Python
}

func (r *Runner) script() string {
	if r.cfg.Script == "" {
		return "inference.py"
	}
	return r.cfg.Script
}

// paths returns validated paths for a preprocess mode and size, caching only successful resolutions.
func (r *Runner) paths(preprocess string, size int) (*Paths, error) {
	key := preprocess + "/" + strconv.Itoa(size)
	if p, ok := r.ready[key]; ok {
		return p, nil
	}

	r.logger.Debug("initializing sadtalker paths", "preprocess", preprocess, "size", size)

	p, err := ResolvePaths(r.cfg.Root, r.cfg.CheckpointDir, r.cfg.ConfigDir, size, r.cfg.OldVersion, preprocess)
	if err != nil {
		return nil, err
	}

	want, err := filepath.Abs(filepath.Join(r.cfg.Root, "src", "config"))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	if p.ConfigDir != want {
		return nil, fmt.Errorf("%w: got %s", ErrConfigDir, p.ConfigDir)
	}

	if missing := p.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointsMissing, strings.Join(missing, ", "))
	}

	if !p.UseSafetensor {
		r.logger.Warn("no safetensor found, falling back to pth checkpoints", "dir", p.CheckpointDir)
	}

	r.ready[key] = p

	return p, nil
}

// Args builds the inference command line for req.
func (r *Runner) Args(req *Request, p *Paths, image, audio string) []string {
	args := []string{
		r.script(),
		"--driven_audio", audio,
		"--source_image", image,
		"--result_dir", req.ResultDir,
		"--checkpoint_dir", p.CheckpointDir,
		"--preprocess", req.Preprocess,
		"--batch_size", strconv.Itoa(req.BatchSize),
		"--size", strconv.Itoa(req.Size),
		"--pose_style", strconv.Itoa(req.PoseStyle),
		"--expression_scale", strconv.FormatFloat(req.ExpScale, 'f', -1, 64),
	}

	if req.Still {
		args = append(args, "--still")
	}
	if req.Enhancer {
		args = append(args, "--enhancer", "gfpgan")
	}
	if r.cfg.OldVersion {
		args = append(args, "--old_version")
	}
	if r.cfg.Device == "cpu" {
		args = append(args, "--cpu")
	}

	return args
}

// Generate renders a talking-head clip and returns the path of the produced mp4.
func (r *Runner) Generate(ctx context.Context, request *Request) (string, error) {
	if request == nil {
		return "", fmt.Errorf("nil request provided")
	}

	req := request.WithDefaults()

	if req.SourceImage == "" || req.DrivenAudio == "" || req.ResultDir == "" {
		return "", fmt.Errorf("source image, driven audio and result dir are required")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	p, err := r.paths(req.Preprocess, req.Size)
	if err != nil {
		return "", err
	}

	inputDir := filepath.Join(req.ResultDir, "input")
	image := filepath.Join(inputDir, filepath.Base(req.SourceImage))
	audio := filepath.Join(inputDir, filepath.Base(req.DrivenAudio))

	if err := tools.CopyFile(req.SourceImage, image); err != nil {
		return "", fmt.Errorf("failed to stage source image: %w", err)
	}
	if err := tools.CopyFile(req.DrivenAudio, audio); err != nil {
		return "", fmt.Errorf("failed to stage driven audio: %w", err)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()

	cmd := exec.CommandContext(ctx, r.python(), r.Args(&req, p, image, audio)...)
	cmd.Dir = r.cfg.Root
	cmd.Env = append(os.Environ(), "TORCH_HOME="+p.CheckpointDir)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Info("running sadtalker", "result_dir", req.ResultDir, "preprocess", req.Preprocess, "size", req.Size)

	if err := cmd.Run(); err != nil {
		metrics.Errors.WithLabelValues("exit").Inc()
		r.logger.Debug("sadtalker output", "output", output.String())
		return "", fmt.Errorf("sadtalker failed: %w: %s", err, tail(output.String(), 1024))
	}

	video, err := newestVideo(req.ResultDir, inputDir, started)
	if err != nil {
		metrics.Errors.WithLabelValues("no_video").Inc()
		return "", err
	}

	metrics.QueryTime.Observe(time.Since(started).Seconds())

	r.logger.Info("sadtalker finished", "video", video, "took", time.Since(started))

	return video, nil
}

// newestVideo finds the most recent mp4 under dir written after since, ignoring the staged inputs.
func newestVideo(dir, skip string, since time.Time) (string, error) {
	var (
		newest     string
		newestTime time.Time
	)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == skip {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		// filesystem timestamps can be coarser than the wall clock
		if info.ModTime().Before(since.Add(-2*time.Second)) {
			return nil
		}

		if newest == "" || info.ModTime().After(newestTime) {
			newest, newestTime = path, info.ModTime()
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan result dir: %w", err)
	}

	if newest == "" {
		return "", ErrNoVideo
	}

	return newest, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
