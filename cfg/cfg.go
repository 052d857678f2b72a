package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"avatarcast/db"
	"avatarcast/internal/app/api"
	"avatarcast/internal/app/pipeline"
	"avatarcast/internal/app/scene"
	"avatarcast/internal/app/workspace"
	"avatarcast/pkg/coqui"
	"avatarcast/pkg/ffmpeg"
	"avatarcast/pkg/rembg"
	"avatarcast/pkg/s3client"
	"avatarcast/pkg/sadtalker"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Api api.Config `yaml:"api"`

	DB db.Config `yaml:"db"`

	Workspace workspace.Config `yaml:"workspace"`
	Scene     scene.Config     `yaml:"scene"`
	Pipeline  pipeline.Config  `yaml:"pipeline"`

	Coqui     coqui.Config     `yaml:"coqui"`
	Rembg     rembg.Config     `yaml:"rembg"`
	SadTalker sadtalker.Config `yaml:"sadtalker"`
	Ffmpeg    ffmpeg.Config    `yaml:"ffmpeg"`

	S3 s3client.Config `yaml:"s3"`
}

// Load reads the yaml config at path. Variables from a .env file next to the working directory
// are loaded first, and the environment overrides the yaml values listed in applyEnv.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't open %s file: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("can't unmarshal %s file: %w", path, err)
	}

	cfg.applyEnv()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"SADTALKER_ROOT", &c.SadTalker.Root},
		{"SADTALKER_CHECKPOINT_DIR", &c.SadTalker.CheckpointDir},
		{"SADTALKER_CONFIG_DIR", &c.SadTalker.ConfigDir},
		{"AVATARCAST_OUTPUT_DIR", &c.Workspace.OutputDir},
		{"COQUI_URL", &c.Coqui.URL},
		{"REMBG_URL", &c.Rembg.URL},
	}

	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.dst = v
		}
	}
}
