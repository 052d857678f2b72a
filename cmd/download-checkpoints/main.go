package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"avatarcast/pkg/sadtalker"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
)

func main() {
	_ = godotenv.Load()

	defaultDir := os.Getenv("SADTALKER_CHECKPOINT_DIR")
	if defaultDir == "" {
		defaultDir = filepath.Join("SadTalker", "checkpoints")
	}

	var dir, baseURL string
	flag.StringVar(&dir, "dir", defaultDir, "checkpoint directory")
	flag.StringVar(&baseURL, "url", sadtalker.DefaultCheckpointsURL, "base url of the checkpoint files")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	d := sadtalker.NewDownloader(http.DefaultClient, baseURL, dir)
	d.Progress = func(name string, size int64) io.Writer {
		return progressbar.DefaultBytes(size, name)
	}

	fetched, err := d.Download(ctx, sadtalker.CheckpointFiles)
	if err != nil {
		log.Fatal(err)
	}

	logger.Info("checkpoints ready", "dir", dir, "downloaded", len(fetched), "total", len(sadtalker.CheckpointFiles))
}
