// Package api serves the read and submit endpoints of the fleet service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/agvfleet/api/fleet"
	"github.com/kilianp07/agvfleet/api/plans"
	"github.com/kilianp07/agvfleet/core/dispatch/logging"
	"github.com/kilianp07/agvfleet/infra/logger"
)

// Config defines the HTTP API settings. An empty Addr disables the API.
type Config struct {
	Addr string `json:"addr"`
	// Token protects the plan log when set.
	Token string `json:"token"`
}

// NewRouter mounts every endpoint.
func NewRouter(store logging.LogStore, src fleet.Source, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/plans", plans.NewLogHandler(store, token))
		r.Method(http.MethodGet, "/robots", fleet.NewRobotsHandler(src))
		r.Handle("/tasks", fleet.NewTasksHandler(src))
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	})
	return r
}

// Serve runs the API on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	log := logger.New("api")
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api shutdown: %v", err)
		}
	}()
	log.Infof("serving api on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
