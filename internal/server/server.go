// Package server exposes the habit mutation hooks over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hray3182/HabitBell/internal/recurrence"
)

// HabitService is what the hooks drive.
type HabitService interface {
	HabitChanged(ctx context.Context, habitID int64) (*recurrence.ScheduledFire, error)
	HabitDeleted(ctx context.Context, habitID int64) error
	Preview(ctx context.Context, habitID int64) (*recurrence.ScheduledFire, error)
}

type Server struct {
	router *chi.Mux
}

// New builds the router. When hookToken is empty the hooks are unauthenticated.
func New(svc HabitService, hookToken string) *Server {
	h := &hookHandler{svc: svc}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Group(func(r chi.Router) {
		r.Use(requireBearer(hookToken))

		r.Post("/hooks/habits/{id}/changed", h.changed)
		r.Post("/hooks/habits/{id}/deleted", h.deleted)
		r.Get("/habits/{id}/next", h.next)
	})

	return &Server{router: router}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
