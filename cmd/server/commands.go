package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/wastelog/internal/auth"
	"github.com/rpattn/wastelog/internal/config"
	"github.com/rpattn/wastelog/internal/consumer"
	"github.com/rpattn/wastelog/internal/db"
	"github.com/rpattn/wastelog/internal/extractor"
	"github.com/rpattn/wastelog/internal/logging"
	"github.com/rpattn/wastelog/internal/middleware"
	"github.com/rpattn/wastelog/internal/queue"
	"github.com/rpattn/wastelog/internal/reconcile"
	"github.com/rpattn/wastelog/internal/refdata"
	"github.com/rpattn/wastelog/internal/repository"
	"github.com/rpattn/wastelog/internal/storage"
	"github.com/rpattn/wastelog/internal/summarylog"
	"github.com/rpattn/wastelog/internal/uploader"
)

const shutdownTimeout = 30 * time.Second

// runtime is the state shared by every subcommand.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	conn   *db.Connection
}

func setup(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, conn: conn}, nil
}

func (rt *runtime) close() {
	rt.conn.Close()
	_ = rt.logger.Sync()
}

func (rt *runtime) commandQueue() *queue.Postgres {
	return queue.NewPostgres(rt.conn.Pool, rt.cfg.Queue.Name, rt.cfg.Queue.VisibilityTimeout)
}

func (rt *runtime) apiHandler() http.Handler {
	summaryLogs := repository.NewSummaryLogRepository(rt.conn.Pool)
	reconciler := reconcile.NewReconciler(uploader.NewClient(rt.cfg.Uploader, nil), summaryLogs, rt.logger)
	service := summarylog.NewService(summaryLogs, queue.Sender{Queue: rt.commandQueue()}, reconciler, rt.logger)

	mux := http.NewServeMux()
	mux.Handle("/v1/", auth.Middleware(summarylog.NewHTTPHandler(service, rt.logger)))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := rt.conn.Pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   rt.cfg.HTTP.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	return corsHandler.Handler(middleware.LoggingMiddleware(rt.logger)(mux))
}

func (rt *runtime) newConsumer() (*consumer.Consumer, error) {
	fetcher, err := storage.NewS3(rt.cfg.Storage)
	if err != nil {
		return nil, err
	}
	shared := consumer.Shared{
		Fetcher:       fetcher,
		Extractor:     extractor.New(rt.logger),
		Registrations: refdata.NewLoader(repository.NewRegistrationRepository(rt.conn.Pool), rt.cfg.RefData.BatchWait),
		Logger:        rt.logger,
		Now:           time.Now,
	}
	handler := consumer.NewHandler(consumer.PostgresResources(rt.conn.Pool, shared), rt.logger, shared.Now)
	return consumer.New(rt.commandQueue(), handler, rt.cfg.Worker, rt.logger), nil
}

func serveHTTP(ctx context.Context, rt *runtime) error {
	server := &http.Server{
		Addr:         rt.cfg.HTTP.Addr,
		Handler:      rt.apiHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("starting HTTP server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func cmdServe(configPath *string) *cobra.Command {
	var withWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.close()

			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error { return serveHTTP(groupCtx, rt) })
			if withWorker {
				worker, err := rt.newConsumer()
				if err != nil {
					return err
				}
				group.Go(func() error { return worker.Run(groupCtx) })
			}
			return group.Wait()
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also consume commands in this process")
	return cmd
}

func cmdWorker(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume validate and submit commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.close()

			worker, err := rt.newConsumer()
			if err != nil {
				return err
			}
			return worker.Run(ctx)
		},
	}
}

func cmdMigrate(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return db.RunMigrations(cfg.Database, logger)
		},
	}
}
