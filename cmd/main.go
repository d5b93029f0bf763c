package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-service/internal/api"
	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/config"
	"storefront-service/internal/pkg/logger"
	"storefront-service/internal/store"
)

const (
	defaultAppName = "StorefrontService" // App name for logger
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "INFO: No .env file found or failed to load, relying on system environment")
	}

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.With("service", defaultAppName)
	log.Info("configuration loaded", "app_env", cfg.AppEnv, "log_level", cfg.LogLevel, "storage_driver", cfg.Storage.Driver)

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped with error", "error", err)
	}
	log.Info("service shutdown sequence finished")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Cart Storage ---
	kv, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Warn("error closing cart storage", "error", err)
		}
	}()

	ledger := cart.NewLedger(ctx, kv, cfg.Storage.CartKey, log)
	log.Info("cart restored", "lines", len(ledger.Lines()), "count", ledger.Count())

	// --- Catalog ---
	fetcher := catalog.NewHTTPFetcher(cfg.Catalog.URL, &http.Client{Timeout: cfg.Catalog.HTTPTimeout})
	catalogStore := catalog.NewStore(fetcher, log)

	// --- Initialize API Handlers ---
	healthServer := health.NewServer()
	httpAPIHandler := api.NewHTTPHandler(catalogStore, ledger, log)
	grpcAPIHandler := api.NewGRPCHandler(catalogStore, ledger, healthServer, log)

	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, log)
	registerHealthCheck(httpRouter, log, catalogStore, kv)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	grpcServer := setupGRPCServer(log, grpcAPIHandler, healthServer)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A failed load is final and reported through the catalog status, not the group.
		if _, err := catalogStore.Load(gctx); err != nil && !errors.Is(err, catalog.ErrDetached) {
			log.Error("catalog unavailable", "error", err)
		}
		grpcAPIHandler.SetCatalogStatus(catalogStore.Status())
		return nil
	})

	g.Go(func() error {
		log.Info("HTTP server listening", "port", cfg.HttpServer.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe error: %w", err)
		}
		log.Info("HTTP server has stopped")
		return nil
	})

	g.Go(func() error {
		log.Info("gRPC server listening", "port", cfg.GrpcServer.Port)
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server Serve error: %w", err)
		}
		log.Info("gRPC server has stopped")
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown")
		catalogStore.Close()
		shutdown(log, cfg.ShutdownTimeout, httpServer, grpcServer)
		return nil
	})

	return g.Wait()
}

// openStorage selects the cart storage backend named by STORAGE_DRIVER.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.KeyValueStorer, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("cart storage is in-memory; the cart will not survive a restart")
		return store.NewMemoryStore(), nil

	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database connection: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		log.Info("database connection established", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)
		return pg, nil

	case config.DriverRedis:
		rs, err := store.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, err
		}
		log.Info("redis connection established", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		return rs, nil

	default:
		fs, err := store.NewFileStore(cfg.Storage.FileDir)
		if err != nil {
			return nil, err
		}
		log.Info("cart storage directory ready", "dir", cfg.Storage.FileDir)
		return fs, nil
	}
}

func setupBaseMiddleware(router *chi.Mux, log *logger.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger) // Chi's request logger
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	log.Debug("base HTTP middleware registered")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func registerHealthCheck(router *chi.Mux, log *logger.Logger, catalogStore *catalog.Store, kv store.KeyValueStorer) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		storageStatus := "healthy"
		if p, ok := kv.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				storageStatus = "unhealthy"
				log.Warn("health check storage ping failed", "error", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // Always 200, but payload indicates detailed status
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"catalog":     catalogStore.Status(),
			"storage":     storageStatus,
		})
	})
	log.Debug("HTTP health check registered", "path", healthPath)
}

func setupGRPCServer(log *logger.Logger, grpcAPIHandler *api.GRPCHandler, healthServer *health.Server) *grpc.Server {
	s := grpc.NewServer()

	api.RegisterStorefrontServer(s, grpcAPIHandler)
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	reflection.Register(s)
	log.Debug("gRPC services registered", "service", api.StorefrontServiceName)

	return s
}

func shutdown(log *logger.Logger, timeout time.Duration, httpServer *http.Server, grpcServer *grpc.Server) {
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server graceful shutdown failed", "error", err)
	} else {
		log.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		log.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		log.Warn("gRPC server graceful shutdown timed out, forcing stop", "error", shutdownCtx.Err())
		grpcServer.Stop()
	}
}
