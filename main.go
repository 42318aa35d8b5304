package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chaos-io/rembg-web/blob"
	"github.com/chaos-io/rembg-web/config"
	"github.com/chaos-io/rembg-web/logging"
	"github.com/chaos-io/rembg-web/rembg"
	"github.com/chaos-io/rembg-web/server"
	"github.com/chaos-io/rembg-web/store"
	"github.com/chaos-io/rembg-web/util"
	nhttp "github.com/chaos-io/rembg-web/util/http"
	"github.com/chaos-io/rembg-web/workflow"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupSessionStore(ctx context.Context, cfg *config.Config) (store.SessionStore, func()) {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL is not set, session state lives in memory")
		return store.NewMemoryStore(), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := store.NewRedisClient(connectCtx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return store.NewRedisStore(client, cfg.SessionTTL), func() { closeRedis(client) }
}

func closeRedis(client *goredis.Client) {
	if err := client.Close(); err != nil {
		slog.Error("Failed to close Redis client", "error", err)
	}
}

func newController(cfg *config.Config, sessions store.SessionStore, blobs *blob.Registry) *workflow.Controller {
	remover := rembg.NewRemoveBG(cfg.RemoveBGEndpoint, cfg.RemoveBGAPIKey)
	return workflow.New(remover, sessions, blobs, workflow.WithTimeout(cfg.RemoveBGTimeout))
}

// runOnce 命令行模式: 处理单张图片并写入 output
func runOnce(ctx context.Context, cfg *config.Config, input, output string) error {
	ctrl := newController(cfg, store.NewMemoryStore(), blob.NewRegistry())

	name, data, err := util.LoadImage(ctx, nhttp.NewHTTPClient(), input)
	if err != nil {
		return err
	}
	if err := ctrl.SelectImage(ctx, name, "", bytes.NewReader(data)); err != nil {
		return err
	}
	if err := ctrl.RemoveBackground(ctx); err != nil {
		return err
	}

	att, ok := ctrl.Download(ctx)
	if !ok {
		return workflow.ErrMissingInput
	}
	if err := os.WriteFile(output, att.Data, 0o644); err != nil {
		return err
	}
	slog.Info("Done", "input", input, "output", output, "bytes", len(att.Data))
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	sessions, closeSessions := setupSessionStore(ctx, cfg)
	defer closeSessions()

	blobs := blob.NewRegistry()
	janitor, err := blob.NewJanitor(blobs, cfg.BlobTTL)
	if err != nil {
		return err
	}
	janitor.Start()

	ctrl := newController(cfg, sessions, blobs)
	if err := ctrl.RestoreSession(ctx); err != nil {
		slog.Warn("Failed to restore session", "error", err)
	}

	srv, err := server.NewServer(cfg, ctrl)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		slog.Info("Shutdown signal received, cleaning up...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Error("Server shutdown error", "error", shutdownErr)
	}
	janitor.Stop(shutdownCtx)

	return err
}

func main() {
	input := flag.String("input", "", "image path or http(s) url to process once and exit")
	output := flag.String("output", workflow.DefaultDownloadName, "where to write the result in -input mode")
	flag.Parse()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *input != "" {
		if err := runOnce(ctx, cfg, *input, *output); err != nil {
			slog.Error("Failed to remove background", "input", *input, "error", err, "notice", workflow.Notice(err))
			os.Exit(1)
		}
		return
	}

	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)
	if err := serve(ctx, cfg); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
