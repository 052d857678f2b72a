package api

import (
	"log/slog"
	"net/http"
	"time"

	"avatarcast/internal/app/pipeline"
	"avatarcast/internal/app/scene"
	"avatarcast/pkg/slg"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogchi "github.com/samber/slog-chi"
)

type Config struct {
	Port          int           `yaml:"port"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxUploadSize int64         `yaml:"max_upload_size"`
}

type API struct {
	logger *slog.Logger

	svc    *pipeline.Service
	scenes *scene.Catalog

	gatherer prometheus.Gatherer

	cfg *Config
}

func NewAPI(cfg *Config, logger *slog.Logger, svc *pipeline.Service, scenes *scene.Catalog, gatherer prometheus.Gatherer) *API {
	return &API{
		cfg: cfg,

		logger: logger,

		svc:    svc,
		scenes: scenes,

		gatherer: gatherer,
	}
}

func (api *API) maxUploadSize() int64 {
	if api.cfg.MaxUploadSize <= 0 {
		return 50 << 20 // 50MB
	}
	return api.cfg.MaxUploadSize
}

func (api *API) timeout() time.Duration {
	if api.cfg.Timeout <= 0 {
		return 15 * time.Minute
	}
	return api.cfg.Timeout
}

func (api *API) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(slogchi.New(api.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.StripSlashes)

	router.Use(middleware.Recoverer)
	router.Use(api.requestLogger)

	router.Group(func(router chi.Router) {
		router.Use(middleware.Timeout(api.timeout()))

		router.Handle("/metrics", promhttp.HandlerFor(api.gatherer, promhttp.HandlerOpts{}))
		router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})

		router.Post("/upload-avatar", api.uploadAvatar)
		router.Get("/avatars/{filename}", api.avatarFile)
		router.Post("/remove-background", api.removeBackground)

		router.Post("/generate-audio", api.generateAudio)
		router.Post("/upload-audio", api.uploadAudio)
		router.Get("/audio/{run_id}/{filename}", api.runFile)

		router.Get("/scene-assets", api.sceneAssets)
		router.Get("/scene-assets/{kind}/{name}", api.sceneAssetFile)
		router.Post("/scene", api.selectScene)

		router.Post("/generate-video", api.generateVideo)
		router.Get("/video/{run_id}/{filename}", api.runFile)
		router.Get("/download/{run_id}", api.download)

		router.Get("/runs", api.listRuns)
		router.Get("/runs/{run_id}", api.getRun)
	})

	// event streams outlive any single request deadline
	router.Get("/ws/runs/{run_id}", api.runEventsWS)

	return router
}

// requestLogger scopes the service logs of a request to its request id.
func (api *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := api.logger.With("request_id", middleware.GetReqID(r.Context()))

		next.ServeHTTP(w, r.WithContext(slg.WithSlog(r.Context(), logger)))
	})
}
