// Package server wires the application together: router, middleware, route
// definitions, and graceful shutdown.
//
// This is the composition root. main.go reads config and hands it here; New
// builds the full dependency chain (database → blob store → services →
// handlers) in one place, so no other package constructs its own
// dependencies.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/tahmid/notestack/internal/auth"
	"github.com/tahmid/notestack/internal/blob"
	"github.com/tahmid/notestack/internal/handler"
	"github.com/tahmid/notestack/internal/middleware"
	sqliteRepo "github.com/tahmid/notestack/internal/repository/sqlite"
	"github.com/tahmid/notestack/internal/service"
)

// Config holds everything the server needs to start. main.go populates it
// from the environment; tests can fill it directly.
type Config struct {
	Port        int
	DBPath      string
	JWTSecret   string
	FrontendURL string

	// AllowedOrigins feeds the CORS layer. Empty means the frontend URL only.
	AllowedOrigins []string

	Blob blob.MinioConfig

	GoogleClientID        string
	GoogleClientSecret    string
	GoogleCallbackURL     string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftCallbackURL  string
}

// Server owns the router and the long-lived resources behind it. The
// database connection is closed on shutdown; the blob store holds no local
// state that needs closing.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency chain and registers every route. The blob
// store is probed during construction, so a misconfigured bucket fails the
// boot instead of the first upload.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	blobs, err := blob.NewMinioStore(ctx, cfg.Blob)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to blob storage: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(blobs); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes(blobs blob.Store) error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}

	providers := []*auth.Provider{}
	if s.config.GoogleClientID != "" {
		providers = append(providers, auth.NewGoogleProvider(
			s.config.GoogleClientID,
			s.config.GoogleClientSecret,
			s.config.GoogleCallbackURL,
		))
	}
	if s.config.MicrosoftClientID != "" {
		providers = append(providers, auth.NewMicrosoftProvider(
			s.config.MicrosoftClientID,
			s.config.MicrosoftClientSecret,
			s.config.MicrosoftCallbackURL,
		))
	}
	if len(providers) == 0 {
		s.logger.Warn("no OAuth providers configured — only email/password sign-in is available")
	}

	noteService := service.NewNoteService(s.db.Notes(), blobs, s.logger)
	authService := service.NewAuthService(s.db.Users(), s.db.Notes(), blobs, tokens, auth.NewPasswordService(), s.logger)

	noteHandler := handler.NewNoteHandler(noteService, s.logger)
	authHandler := handler.NewAuthHandler(providers, authService, s.config.FrontendURL, s.logger)
	userHandler := handler.NewUserHandler(authService, s.logger)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 && s.config.FrontendURL != "" {
		origins = []string{s.config.FrontendURL}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// Middleware order: request ID and real IP first so the logger sees
	// them, recoverer before anything that might panic, CORS before routing.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(corsHandler.Handler)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Get("/{provider}/login", authHandler.HandleOAuthLogin)
			r.Get("/{provider}/callback", authHandler.HandleOAuthCallback)
		})

		r.Route("/notes", func(r chi.Router) {
			// Public browsing.
			r.Get("/", noteHandler.HandleListApproved)

			// Member routes.
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/upload", noteHandler.HandleUpload)
				r.Get("/my-notes", noteHandler.HandleMyNotes)
				r.Delete("/{noteID}", noteHandler.HandleDelete)
			})

			// Admin moderation queue.
			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAuth)
				r.Use(auth.RequireAdmin)
				r.Get("/pending", noteHandler.HandleListPending)
				r.Post("/{noteID}/approve", noteHandler.HandleApprove)
				r.Post("/{noteID}/reject", noteHandler.HandleReject)
			})

			// Literal segments (upload, my-notes, admin) win over the
			// {noteID} parameter in chi's routing, so this stays last.
			r.Get("/{noteID}", noteHandler.HandleGet)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", userHandler.HandleMe)
			r.Delete("/me", userHandler.HandleDeleteMe)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("bucket", s.config.Blob.Bucket),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
