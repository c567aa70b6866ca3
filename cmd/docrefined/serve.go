package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docrefine/internal/core"
	coreasync "github.com/joseph-ayodele/docrefine/internal/core/async"
	"github.com/joseph-ayodele/docrefine/internal/export"
	"github.com/joseph-ayodele/docrefine/internal/extract"
	"github.com/joseph-ayodele/docrefine/internal/ingest"
	"github.com/joseph-ayodele/docrefine/internal/llm/openai"
	"github.com/joseph-ayodele/docrefine/internal/repository"
	"github.com/joseph-ayodele/docrefine/internal/server"
)

const (
	shutdownTimeout     = 30 * time.Second
	healthCheckInterval = 15 * time.Second
)

type healthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the gRPC health service and the inbox watcher",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.New(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close document store", "error", err)
		}
	}()

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	extractor := extract.NewExtractor(extract.Config{}, logger)
	rewriter := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	proc := core.NewProcessor(logger, extractor, rewriter, store, cfg.Worker.ProcessTimeout)
	queue := coreasync.NewProcessorQueue(proc, logger,
		coreasync.WithWorkers(cfg.Worker.Workers),
		coreasync.WithQueueSize(cfg.Worker.QueueSize),
		coreasync.WithProcessTimeout(cfg.Worker.ProcessTimeout),
	)
	proc.SetQueue(queue)

	api := server.NewServer(server.Config{
		UploadDir:      cfg.Server.UploadDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, proc, store, export.NewService(store, logger), logger)
	httpSrv := server.NewHTTPServer(cfg.Server.HTTPAddr, api.Routes(), cfg.Server)

	var grpcSrv *server.GRPCServer
	var grpcLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
		}
		grpcSrv = server.NewGRPCServer(logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr, "store", cfg.Database.Driver, "model", rewriter.Model())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(func() error {
			if err := grpcSrv.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
		if hc, ok := store.(healthChecker); ok {
			g.Go(func() error {
				grpcSrv.MonitorHealth(gctx, healthCheckInterval, func(ctx context.Context) error {
					return hc.HealthCheck(ctx, 3*time.Second)
				})
				return nil
			})
		}
	}

	if cfg.Watch.Dir != "" {
		inbox := ingest.NewInbox(ingest.Config{
			Dir:      cfg.Watch.Dir,
			Style:    cfg.Watch.Style,
			Debounce: cfg.Watch.Debounce,
		}, proc, logger)
		g.Go(func() error { return inbox.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		if grpcSrv != nil {
			grpcSrv.SetServing(false)
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", "error", err)
		}
		if grpcSrv != nil {
			grpcSrv.Stop()
		}
		// returns only after the workers exit, so the deferred store close
		// never races their final status writes
		if err := queue.Shutdown(shutdownCtx); err != nil {
			logger.Warn("queue shutdown deadline passed, remaining documents marked failed", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("stopped")
	return err
}
