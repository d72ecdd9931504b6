package server

import (
	"context"
	"log/slog"
	"time"

	"backend-busboxd/internal/auth"
	"backend-busboxd/internal/config"
	"backend-busboxd/internal/feed"
	"backend-busboxd/internal/routes"
	"backend-busboxd/internal/social"
	"backend-busboxd/internal/storage"
	"backend-busboxd/internal/stream"
	"backend-busboxd/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const startupTimeout = 30 * time.Second

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Logger *slog.Logger
	Blobs  storage.Store
	Trips  *trip.Store
	Stream *stream.Hub
	Notify *stream.Notifier
}

// NewServer opens the configured blob store, loads the trip snapshot and
// registers every route. A failed initial load is logged and the service
// starts with an empty cache.
func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	blobs, err := storage.Open(ctx, cfg, db, redisClient)
	if err != nil {
		return nil, err
	}

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Logger: log,
		Blobs:  blobs,
		Trips: trip.NewStore(blobs, trip.Options{
			Name:       cfg.TripsFile,
			Location:   cfg.Location(),
			NoteMaxLen: cfg.NoteMaxLen,
			Retries:    cfg.WritebackRetries,
			Logger:     log,
		}),
		Stream: stream.NewHub(redisClient, log),
	}

	if err := s.Trips.Synchronize(ctx); err != nil {
		log.Warn("initial trip synchronize failed, writes refused until a sync succeeds", "error", err)
	} else {
		log.Info("trips loaded", "backend", cfg.StoreBackend, "trips", s.Trips.Len())
	}

	registerRoutes(s)
	return s, nil
}

// Close flushes pending trip write-backs, waits for in-flight follower
// notifications and stops the stream hub.
func (s *Server) Close(ctx context.Context) error {
	err := s.Trips.Close(ctx)
	if werr := s.Notify.Wait(ctx); werr != nil {
		s.Logger.Warn("follower notifications still in flight at shutdown", "error", werr)
	}
	s.Stream.Close()
	return err
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"backend":   s.Cfg.StoreBackend,
			"trips":     s.Trips.Len(),
			"writeback": s.Trips.Status(),
		})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	lines := routes.Load(s.Cfg.RoutesFile, s.Logger)
	authSvc := auth.NewService(s.Cfg.JWTSecret, s.Blobs, s.Cfg.UsersFile)
	socialSvc := social.NewService(s.Blobs, s.Cfg.FollowsFile, authSvc)
	s.Notify = stream.NewNotifier(s.Stream, socialSvc, s.Logger)
	socialSvc.SetNotifier(s.Notify)

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc, jwtMiddleware)
	trip.RegisterRoutes(s.App.Group("/trips"), trip.NewService(s.Trips, lines, s.Notify), jwtMiddleware, s.Logger)
	feed.RegisterRoutes(s.App.Group("/feed"), feed.NewService(s.Trips, socialSvc, s.Cfg.ClusterWindow, s.Logger), jwtMiddleware)
	social.RegisterRoutes(s.App.Group("/social"), socialSvc, jwtMiddleware)
	routes.RegisterRoutes(s.App.Group("/routes"), lines)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware)
}
