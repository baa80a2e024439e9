package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/chatsync/internal/config"
	"github.com/vedran77/chatsync/internal/database"
	"github.com/vedran77/chatsync/internal/logger"
	"github.com/vedran77/chatsync/internal/repository"
	"github.com/vedran77/chatsync/internal/repository/memory"
	postgresrepo "github.com/vedran77/chatsync/internal/repository/postgres"
	"github.com/vedran77/chatsync/internal/service"
	"github.com/vedran77/chatsync/internal/storage"
	"github.com/vedran77/chatsync/internal/transport/http/handlers"
	"github.com/vedran77/chatsync/internal/transport/http/middleware"
	"golang.org/x/sync/errgroup"
)

type repositories struct {
	users    repository.UserRepository
	convs    repository.ConversationRepository
	messages repository.MessageRepository
	markers  repository.ReadMarkerRepository
	close    func()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CHATSYNC_CONFIG"))
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level)
	defer logger.Sync()
	if cfg.Auth.JWTSecret == config.Default().Auth.JWTSecret {
		logger.Warn("JWT_SECRET is not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories
	repos, err := openRepositories(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer repos.close()

	// Services
	authService := service.NewAuthService(repos.users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	convService := service.NewConversationService(repos.convs, repos.users)
	messageService := service.NewMessageService(repos.messages, repos.convs)
	markerService := service.NewReadMarkerService(repos.markers, repos.convs)
	bucket := storage.NewBucketStorage(cfg.Storage.Endpoint, cfg.Storage.ServiceKey, cfg.Storage.Bucket)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := &handlers.Router{
		Auth:          handlers.NewAuthHandler(authService),
		Conversations: handlers.NewConversationHandler(convService),
		Messages:      handlers.NewMessageHandler(messageService),
		ReadMarkers:   handlers.NewReadMarkerHandler(markerService),
		Uploads:       handlers.NewUploadHandler(bucket, cfg.Storage.MaxUploadSize.Int64()),
		Verifier:      authService,
		Limiter:       middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		Metrics:       middleware.NewHTTPMetrics(reg),
	}
	mux := router.Mux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           middleware.CORS(cfg.Server.AllowedOrigins)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr, "driver", cfg.Database.Driver, "max_upload", cfg.Storage.MaxUploadSize.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openRepositories(ctx context.Context, cfg config.DatabaseConfig) (*repositories, error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on exit")
		db := memory.New()
		return &repositories{
			users:    memory.NewUserRepo(db),
			convs:    memory.NewConversationRepo(db),
			messages: memory.NewMessageRepo(db),
			markers:  memory.NewReadMarkerRepo(db),
			close:    func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to database", "host", cfg.Host, "name", cfg.Name)

	return &repositories{
		users:    postgresrepo.NewUserRepo(pool),
		convs:    postgresrepo.NewConversationRepo(pool),
		messages: postgresrepo.NewMessageRepo(pool),
		markers:  postgresrepo.NewReadMarkerRepo(pool),
		close:    pool.Close,
	}, nil
}
