package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/kanban-flow/internal/adapter/handler"
	"github.com/rl1809/kanban-flow/internal/adapter/storage"
	"github.com/rl1809/kanban-flow/internal/config"
	"github.com/rl1809/kanban-flow/internal/core/service"
	"github.com/rl1809/kanban-flow/internal/logger"
	"github.com/rl1809/kanban-flow/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(logger.ForEnvironment(cfg.App.Env, logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := storage.OpenDB(ctx, storage.DBConfig{
		Driver:          storage.Dialect(cfg.Database.Driver),
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		zl.Fatal("failed to open database", zap.Error(err))
	}
	zl.Info("connected to database", zap.String("driver", cfg.Database.Driver))
	store := storage.NewSQLStore(db, storage.Dialect(cfg.Database.Driver))

	// Initialize item lock: Redis when enabled, process-local otherwise
	var (
		locker port.Locker
		idem   port.IdempotencyStore
		rdb    *redis.Client
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		redisAdapter := storage.NewRedisAdapter(rdb)
		if err := redisAdapter.Ping(ctx); err != nil {
			zl.Fatal("failed to connect redis", zap.Error(err))
		}
		zl.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		locker, idem = redisAdapter, redisAdapter
	} else {
		memory := storage.NewMemoryLocker()
		locker, idem = memory, memory
		zl.Warn("redis disabled, item locks are process-local")
	}

	// Initialize services
	boardService := service.NewBoardService(store, store, service.SystemClock, logger.Named(zl, "boards"))
	transitionService := service.NewTransitionService(store, store, locker,
		service.WithIdempotencyStore(idem),
		service.WithLogger(logger.Named(zl, "transitions")),
		service.WithTransitionOptions(service.TransitionOptions{
			LockTTL:        cfg.Transition.LockTTL,
			IdempotencyTTL: cfg.Transition.IdempotencyTTL,
			MaxRetries:     cfg.Transition.MaxRetries,
		}),
	)
	historyService := service.NewHistoryService(store)

	if cfg.Seed.BoardsFile != "" {
		seed, err := config.LoadBoardSeed(cfg.Seed.BoardsFile)
		if err != nil {
			zl.Fatal("failed to load board seed", zap.Error(err))
		}
		if err := applySeed(ctx, store, boardService, seed, zl); err != nil {
			zl.Fatal("failed to apply board seed", zap.Error(err))
		}
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterTransitionsServer(grpcServer, handler.NewGRPCHandler(transitionService, boardService, logger.Named(zl, "grpc")))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.App.GRPCAddr)
	if err != nil {
		zl.Fatal("failed to listen", zap.String("addr", cfg.App.GRPCAddr), zap.Error(err))
	}

	go func() {
		zl.Info("gRPC server listening", zap.String("addr", cfg.App.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(boardService, transitionService, historyService, logger.Named(zl, "http"))
	httpServer := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: handler.NewRouter(httpHandler),
	}

	go func() {
		zl.Info("HTTP server listening", zap.String("addr", cfg.App.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			zl.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP server shutdown", zap.Error(err))
	}
	zl.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	zl.Info("gRPC server stopped")

	// Close connections
	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	zl.Info("connections closed")
}
