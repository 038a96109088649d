package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/citizone/authserver/config"
	"github.com/citizone/authserver/internal/db"
	"github.com/citizone/authserver/internal/handlers"
	"github.com/citizone/authserver/internal/mq"
	"github.com/citizone/authserver/internal/otp"
	"github.com/citizone/authserver/internal/services"
	"github.com/citizone/authserver/internal/sms"
	"github.com/citizone/authserver/internal/storage"
	"github.com/citizone/authserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router, and owned connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New wires the credential store, OTP delivery, and handlers into a Server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	avatars, err := openAvatarStorage(ctx, cfg)
	if err != nil {
		log.Printf("WARN: avatar storage unavailable: %v", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	otpManager := otp.NewManager(time.Duration(cfg.Auth.OTPTTLSeconds) * time.Second)
	sender := sms.NewPublisher(queue, cfg.MQ.SMSChannel)

	authService := services.NewAuthService(userRepo, otpManager, sender)
	userService := services.NewUserService(userRepo)

	authHandler := handlers.NewAuthHandler(
		authService,
		jwtSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshWindowHours)*time.Hour,
	)
	userHandler := handlers.NewUserHandler(userService, avatars)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/user", func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		handlers.UserRouter(r, userHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return s.httpServer.Close()
}

func openAvatarStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var (
		backend storage.ObjectStorage
		err     error
	)
	switch cfg.Storage.Backend {
	case "gcs":
		backend, err = storage.NewGCSClient(ctx, cfg.Storage.GCS)
	default:
		backend, err = storage.NewMinioClient(cfg.Storage.Minio)
	}
	if err != nil {
		return nil, err
	}

	wrapped := storage.NewStorage(backend)
	if err := wrapped.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return wrapped, nil
}
