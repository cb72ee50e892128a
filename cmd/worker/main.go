// Package main runs offload workers outside the API server. Workers pop due
// messages from the shared Redis queue, generate the image and deliver the
// result either to the API's callback endpoint or straight to Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/imagegen-api/internal/config"
	"github.com/phrazzld/imagegen-api/internal/offload"
	"github.com/phrazzld/imagegen-api/internal/platform/gemini"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/platform/redis"
	"github.com/phrazzld/imagegen-api/internal/signature"
	"github.com/phrazzld/imagegen-api/internal/sink"
	"github.com/phrazzld/imagegen-api/internal/sink/httpsink"
	"github.com/phrazzld/imagegen-api/internal/task"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: ./config.yaml if present)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	if cfg.Redis.Addr == "" {
		return errors.New("the offload worker needs redis.addr to reach the shared queue")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	gen, err := gemini.NewGeminiGenerator(ctx, log, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize image generator: %w", err)
	}
	executor, err := task.NewExecutor(gen, cfg.Retry, log)
	if err != nil {
		return fmt.Errorf("failed to initialize executor: %w", err)
	}

	results, err := resultSink(cfg, client, log)
	if err != nil {
		return err
	}

	wc := offload.DefaultWorkerConfig()
	if cfg.Offload.WorkerCount > 0 {
		wc.WorkerCount = cfg.Offload.WorkerCount
	}
	if cfg.Offload.PollInterval > 0 {
		wc.PollInterval = cfg.Offload.PollInterval
	}

	worker := offload.NewWorker(redis.NewQueue(client, cfg.Redis.KeyPrefix, log), executor, results, wc, log)
	worker.SetErrorHandler(func(msg offload.Message, err error) {
		log.Error("result lost", "task_id", msg.TaskID.String(), "message_id", msg.ID, "error", err)
	})

	log.Info("offload worker starting",
		"workers", wc.WorkerCount,
		"poll_interval", wc.PollInterval,
		"callback", cfg.Offload.CallbackURL != "")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	err = g.Wait()
	log.Info("offload worker stopped")
	return err
}

// resultSink posts results to the callback endpoint when one is configured
// and writes them to Redis otherwise.
func resultSink(cfg *config.Config, client *goredis.Client, log *slog.Logger) (sink.ResultSink, error) {
	if cfg.Offload.CallbackURL == "" {
		return redis.NewResultSink(client, cfg.Redis.KeyPrefix, cfg.Redis.ResultTTL, log), nil
	}

	opts := []httpsink.Option{httpsink.WithLogger(log)}
	if cfg.Offload.SigningKey != "" {
		signer, err := signature.NewSigner(cfg.Offload.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize result signer: %w", err)
		}
		opts = append(opts, httpsink.WithSigner(signer))
	}
	return httpsink.New(cfg.Offload.CallbackURL, opts...)
}
