package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"taskflow/internal/platform/config"
	"taskflow/internal/platform/httpserver"
	"taskflow/internal/platform/kafka/admin"
	"taskflow/internal/platform/kafka/producer"
	"taskflow/internal/platform/logger"
	"taskflow/internal/platform/metrics"
	"taskflow/internal/storage"
	"taskflow/internal/task"
	"taskflow/internal/task/publisher"
	"taskflow/internal/task/service"
	"taskflow/internal/task/store"
	httptransport "taskflow/internal/transport/http"
)

const shutdownGrace = 10 * time.Second

// main wires the task-service: task CRUD over HTTP, persisted in Postgres
// (or memory) and announced on task.events.
func main() {
	cfg := config.TaskServiceFromEnv()
	log := logger.New("task-service", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("task-service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.TaskService, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var checks []httptransport.HealthCheck
	var tasks service.Store
	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		tasks = pg
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})
	} else {
		log.Warn("DATABASE_URL not set, tasks are kept in memory")
		tasks = store.NewInMemory()
	}

	if err := admin.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		return fmt.Errorf("ensure topic %s: %w", cfg.Kafka.Topic, err)
	}
	prod, err := producer.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return err
	}
	defer prod.Close()
	checks = append(checks, httptransport.HealthCheck{Name: "kafka", Check: prod.Ping})

	svc, err := service.New(tasks, publisher.New(prod, m), service.WithLogger(log))
	if err != nil {
		return err
	}

	r := httptransport.NewRouter("task-service", log, reg, checks...)
	task.NewHandler(svc, log).Register(r)

	return httpserver.Run(ctx, httpserver.New(cfg.Addr, r), shutdownGrace, log)
}
