package pipeline

import (
	"context"
	"time"

	"avatarcast/db"
	"avatarcast/pkg/ffmpeg"
	"avatarcast/pkg/sadtalker"
)

// TTS turns text into wav bytes.
type TTS interface {
	TTS(ctx context.Context, text string) ([]byte, error)
}

// BackgroundRemover returns a PNG cutout of the foreground.
type BackgroundRemover interface {
	Remove(ctx context.Context, image []byte, filename string) ([]byte, error)
}

// Talker renders a talking-head clip and returns its path.
type Talker interface {
	Generate(ctx context.Context, req *sadtalker.Request) (string, error)
}

type Media interface {
	ToWav(ctx context.Context, inputPath, outputPath string, sampleRate int) error
	Silence(ctx context.Context, outputPath string, d time.Duration, sampleRate int) error
	Compose(ctx context.Context, req *ffmpeg.ComposeRequest) error
	FfprobePath(ctx context.Context, path string) (*ffmpeg.FfprobeResult, error)
}

// Publisher uploads a final video and returns a share link.
type Publisher interface {
	PublishVideo(ctx context.Context, objectName, path string) (string, error)
}

type Scenes interface {
	Background(name string) (string, error)
	Track(name string) (string, error)
}

type Store interface {
	CreateRun(ctx context.Context, run *db.Run) error
	UpdateRun(ctx context.Context, run *db.Run) error
	GetRun(ctx context.Context, id string) (*db.Run, error)
	LatestRun(ctx context.Context) (*db.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*db.Run, error)
	DeleteRunsBefore(ctx context.Context, t time.Time) ([]string, error)
}

var (
	_ Store  = (*db.DB)(nil)
	_ Talker = (*sadtalker.Runner)(nil)
	_ Media  = (*ffmpeg.Client)(nil)
)
