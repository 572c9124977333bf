// Package api serves the JSON API behind the browser dashboard.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"taskboard/internal/service"
)

// Deps are the services the API exposes.
type Deps struct {
	Auth          *service.AuthService
	Tasks         *service.TaskService
	Employees     *service.EmployeeService
	Groups        *service.GroupService
	LookAheadDays int
	Location      *time.Location
	Logger        *slog.Logger
	Now           func() time.Time
}

const shutdownTimeout = 10 * time.Second

// Server is the dashboard HTTP server.
type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{deps: deps}
}

// Handler builds the routed handler, CORS included.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login/admin", s.loginAdmin)
		r.Post("/login/employee", s.loginEmployee)
		r.Post("/login/kiosk", s.loginKiosk)
		r.Get("/roster", s.roster)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/logout", s.logout)
			r.Get("/me", s.me)
			r.Get("/dashboard", s.dashboard)
			r.Get("/recurrence/next", s.previewNextDate)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.listTasks)
				r.Post("/", s.createTask)
				r.Get("/{id}", s.getTask)
				r.Put("/{id}", s.updateTask)
				r.Delete("/{id}", s.deleteTask)
				r.Post("/{id}/status", s.changeStatus)
				r.Put("/{id}/response", s.respond)
			})

			r.Route("/employees", func(r chi.Router) {
				r.Get("/", s.listEmployees)
				r.Post("/", s.createEmployee)
				r.Get("/{id}", s.getEmployee)
				r.Put("/{id}", s.updateEmployee)
				r.Delete("/{id}", s.deleteEmployee)
			})

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", s.listGroups)
				r.Post("/", s.createGroup)
				r.Get("/{id}/members", s.groupMembers)
				r.Put("/{id}/members", s.setGroupMembers)
			})
		})
	})

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. Requests keep ctx values but not its cancellation.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

type principalKey struct{}

func principalFrom(ctx context.Context) service.Principal {
	p, _ := ctx.Value(principalKey{}).(service.Principal)
	return p
}

func sessionToken(r *http.Request) string {
	if token := r.Header.Get("X-Session-Token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.deps.Auth.Authenticate(sessionToken(r), s.deps.Now())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "login required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.deps.Logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
