package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/config"
	"github.com/taskhive/apiserver/internal/db"
	"github.com/taskhive/apiserver/internal/handlers"
	"github.com/taskhive/apiserver/internal/logs"
	"github.com/taskhive/apiserver/internal/mq"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/session"
	"github.com/taskhive/apiserver/internal/storage"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// Server wraps the HTTP server, router, and the long-lived components it
// owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.Bus
	presence   *services.PresenceService
	sessions   *session.Registry
	logger     *logrus.Logger
}

// New constructs a Server wired from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := logs.New(cfg.Log)

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)

	userService := services.NewUserService(userRepo)
	taskService := services.NewTaskService(taskRepo)
	presence := services.NewPresenceService(userService, cfg.Auth.SessionTTL, logger)

	backend, err := newMQBackend(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	bus := mq.NewBus(backend)

	registry := session.NewRegistry(bus, cfg.Auth.SessionTTL, logger,
		session.WithExpireHook(func(s types.Session) {
			// The sweeper expired the session; mirror the flip server-side.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := userService.SetState(ctx, s.User.ID, types.StateOffline, time.Now()); err != nil {
				logger.WithError(err).WithField("email", s.User.Email).Warn("server: expiry offline flip failed")
			}
			presence.CancelOffline(s.User.ID)
		}),
	)
	registry.Start(ctx)

	avatars, err := newAvatarStore(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		_ = bus.Close()
		return nil, err
	}
	if avatars != nil {
		if err := avatars.EnsureBucket(ctx); err != nil {
			logger.WithError(err).Warn("server: avatar bucket check failed")
		}
	}

	authMiddleware := handlers.RequireAuth([]byte(jwtSecret), userService)
	authHandler := handlers.NewAuthHandler(
		userService,
		taskService,
		presence,
		registry,
		avatars,
		[]byte(jwtSecret),
		cfg.Auth.TokenTTL,
		logger,
	)
	taskHandler := handlers.NewTaskHandler(taskService, userService)

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
		handlers.AuthRouter(r, authHandler, authMiddleware)
	})
	router.Route("/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, taskHandler, authMiddleware)
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
		bus:        bus,
		presence:   presence,
		sessions:   registry,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("server: listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown of every owned component.
func (s *Server) Shutdown() error {
	s.sessions.Close()
	s.presence.Close()
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func newMQBackend(ctx context.Context, cfg config.MQConfig) (mq.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return mq.NewMemoryBackend(), nil
	case "rabbitmq":
		return mq.NewRabbitBackend(cfg.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubBackend(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

func newAvatarStore(ctx context.Context, cfg config.StorageConfig) (*storage.AvatarStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewAvatarStore(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewAvatarStore(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
