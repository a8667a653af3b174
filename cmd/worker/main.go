package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/app"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/audit"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/config"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/lock"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/obs"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/promotion"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(cfg.LogFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 5*time.Second)
	defer cancelConnect()

	pool, err := store.NewPool(connectCtx, cfg.DatabaseURL, "rating-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := app.InitRedis(connectCtx, cfg.RedisURL, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	db := store.New(pool)

	recorder := &audit.Recorder{DB: db, Log: logger}
	sweeper := &promotion.Sweeper{
		R:      redisClient,
		DB:     db,
		Locker: lock.Locker{R: redisClient},
		Log:    logger,
	}

	asynqOpt, err := app.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for asynq")
	}

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Logger:      asynqLogger{logger},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(audit.TaskCustomerPricing, recorder.HandleCustomerPricingTask)
	mux.HandleFunc(promotion.TaskSweepCounters, sweeper.HandleSweepTask)

	scheduler := asynq.NewScheduler(asynqOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   asynqLogger{logger},
	})
	if _, err := scheduler.Register(cfg.SweepSchedule, promotion.NewSweepTask()); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Str("sweep_schedule", cfg.SweepSchedule).
		Msg("worker starting")

	<-ctx.Done()
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger adapts zerolog to the asynq logging interface.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
