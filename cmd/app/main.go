package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"avatarcast/cfg"
	"avatarcast/db"
	"avatarcast/internal/app/api"
	"avatarcast/internal/app/metrics"
	"avatarcast/internal/app/pipeline"
	"avatarcast/internal/app/scene"
	"avatarcast/internal/app/workspace"
	"avatarcast/pkg/coqui"
	"avatarcast/pkg/ffmpeg"
	immediateticker "avatarcast/pkg/immediate_ticker"
	"avatarcast/pkg/rembg"
	"avatarcast/pkg/s3client"
	"avatarcast/pkg/sadtalker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "cfg-path", "cfg/cfg.yaml", "path to config file")
	flag.Parse()

	cfg, err := cfg.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterMetrics(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	createDbCtx, cancelDb := context.WithTimeout(ctx, 10*time.Second)
	defer cancelDb()
	db, err := db.New(createDbCtx, &cfg.DB)
	if err != nil {
		log.Fatal("failed to init sqlite db: ", err)
	}
	defer db.Close()

	ws := workspace.New(&cfg.Workspace)
	if err := ws.Init(); err != nil {
		log.Fatal("failed to init workspace: ", err)
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Minute,
	}

	scenes := scene.New(&cfg.Scene)

	deps := pipeline.Deps{
		TTS:     coqui.New(httpClient, &cfg.Coqui),
		Remover: rembg.New(httpClient, &cfg.Rembg),
		Talker:  sadtalker.New(&cfg.SadTalker, logger.WithGroup("sadtalker")),
		Media:   ffmpeg.New(&cfg.Ffmpeg, logger.WithGroup("ffmpeg")),
		Scenes:  scenes,
		Store:   db,
	}

	if cfg.S3.Enabled() {
		s3, err := s3client.New(ctx, &cfg.S3)
		if err != nil {
			log.Fatal("failed to init s3 client: ", err)
		}

		deps.Publisher = s3
	} else {
		logger.Info("s3 endpoint not configured; videos are only served locally")
	}

	svc := pipeline.NewService(&cfg.Pipeline, logger.WithGroup("pipeline"), ws, deps)

	api := api.NewAPI(&cfg.Api, logger.WithGroup("api"), svc, scenes, reg)

	router := api.NewRouter()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	port := cfg.Api.Port
	if port == 0 {
		port = 5000
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		logger.Info("Starting server", "addr", srv.Addr, "output_dir", ws.Root())

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ListenAndServe finished", "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := immediateticker.New(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := svc.Prune(ctx); err != nil {
					logger.Error("failed to prune old runs", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-stop:
		logger.Info("Interrupt triggerred")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "err", err)
	}

	cancel()

	wg.Wait()
}
