package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dreamplanner/internal/config"
	"dreamplanner/internal/db"
	"dreamplanner/internal/dedup"
	"dreamplanner/internal/dispatch"
	"dreamplanner/internal/dream"
	"dreamplanner/internal/event"
	httpx "dreamplanner/internal/http"
	"dreamplanner/internal/jobs"
	"dreamplanner/internal/notification"
	"dreamplanner/internal/task"
	"dreamplanner/internal/user"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connect", zap.Error(err))
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Replay guard: Redis when configured, otherwise accept the duplicate
	// risk on event replays.
	var guard dedup.Guard = dedup.NopGuard{}
	if cfg.RedisAddr != "" {
		client, err := dedup.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		guard = &dedup.RedisGuard{Client: client}
	}

	// Delivery channel: RabbitMQ when configured, log-only otherwise.
	var dispatcher dispatch.Dispatcher = &dispatch.LogDispatcher{Log: logger}
	if cfg.RabbitMQURL != "" {
		rd, err := dispatch.NewRabbitDispatcher(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq", zap.Error(err))
		}
		dispatcher = rd
	}
	defer func() { _ = dispatcher.Close() }()

	queue := &jobs.DBQueue{DB: gdb}
	store := &notification.Store{DB: gdb}
	scheduler := &notification.Service{DB: gdb, Store: store, Queue: queue, Log: logger}

	events := &event.Log{DB: gdb}
	userSvc := &user.Service{DB: gdb}
	dreamSvc := &dream.Service{DB: gdb, Events: events, Log: logger}
	taskSvc := &task.Service{DB: gdb, Events: events, Log: logger}

	handlers := &event.Handlers{DB: gdb, Scheduler: scheduler, Guard: guard, Log: logger}
	eventDispatcher := &event.Dispatcher{
		Events:       events,
		Handlers:     handlers.Map(),
		Log:          logger,
		PollInterval: cfg.EventPollInterval,
	}

	worker := &jobs.Worker{
		ID:           "worker-1",
		Queue:        queue,
		Store:        store,
		Scheduler:    scheduler,
		DB:           gdb,
		Dispatcher:   dispatcher,
		Generator:    dispatch.NewBreakerGenerator(dispatch.StaticGenerator{}),
		Log:          logger,
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		CallTimeout:  cfg.CallTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go eventDispatcher.Run(ctx)
	go worker.Run(ctx)

	r := httpx.NewRouter(cfg, httpx.Services{
		Users:         userSvc,
		Dreams:        dreamSvc,
		Tasks:         taskSvc,
		Notifications: store,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	// Stop claiming new work, finish what is in flight, then close HTTP.
	cancel()
	worker.Drain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
