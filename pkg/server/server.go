package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brilliant-almazov/railway-exporter/pkg/handlers/exporter"
	wshandler "github.com/brilliant-almazov/railway-exporter/pkg/handlers/ws"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/config"

	exportermiddleware "github.com/brilliant-almazov/railway-exporter/pkg/server/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
}

type Dependencies struct {
	Exporter *exporter.Handler
	Ws       *wshandler.Handler
}

type Config struct {
	Addr            string
	App             *config.Config
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func NewWebAPI(logger zerolog.Logger, cfg Config) *WebAPI {
	handler := cfg.Dependencies.Exporter

	router := chi.NewRouter()

	router.Use(exportermiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)
	if cfg.App.CORSEnabled {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	router.Group(func(r chi.Router) {
		if cfg.App.Gzip.Enabled {
			r.Use(exportermiddleware.Gzip(cfg.App.Gzip.MinSize, cfg.App.Gzip.Level))
		}
		r.Get("/metrics", handler.Metrics)
		r.Get("/status", handler.Status)
		r.Get("/health", handler.Health)
	})

	// Icons are already compact and websocket frames cannot be buffered, so
	// both stay outside the gzip group.
	router.Get("/static/icons/services/{service}", handler.ServiceIcon)
	if cfg.App.WebsocketEn {
		router.Get("/ws", cfg.Dependencies.Ws.Serve)
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:    cfg.Addr,
			Handler: router,
		},
	}
}

// Router exposes the mux for tests.
func (w *WebAPI) Router() http.Handler {
	return w.router
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
