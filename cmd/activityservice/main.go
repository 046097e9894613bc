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
	"golang.org/x/sync/errgroup"

	"taskflow/internal/activity"
	"taskflow/internal/activity/consumer"
	"taskflow/internal/activity/handler"
	"taskflow/internal/activity/store"
	"taskflow/internal/platform/config"
	"taskflow/internal/platform/httpserver"
	"taskflow/internal/platform/kafka/admin"
	kafka "taskflow/internal/platform/kafka/consumer"
	"taskflow/internal/platform/logger"
	"taskflow/internal/platform/metrics"
	"taskflow/internal/storage"
	httptransport "taskflow/internal/transport/http"
)

const shutdownGrace = 10 * time.Second

// activityStore is what the recorder writes to and the handler reads from.
type activityStore interface {
	consumer.Store
	handler.Reader
}

// main wires the activity-service: consume task.events into the activity
// trail and serve it over HTTP.
func main() {
	cfg := config.ActivityServiceFromEnv()
	log := logger.New("activity-service", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("activity-service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ActivityService, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var checks []httptransport.HealthCheck
	var activities activityStore
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
		activities = pg
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})
	} else {
		log.Warn("DATABASE_URL not set, activities are kept in memory")
		activities = store.NewInMemory()
	}

	if err := admin.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		return fmt.Errorf("ensure topic %s: %w", cfg.Kafka.Topic, err)
	}
	router := kafka.NewRouter(log, nil).
		Register(cfg.Kafka.Topic, consumer.NewRecorder(activities, consumer.WithLogger(log), consumer.WithMetrics(m)))
	bus, err := kafka.New(kafka.Config{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  router.Topics(),
	}, router, log)
	if err != nil {
		return err
	}

	r := httptransport.NewRouter("activity-service", log, reg, checks...)
	activity.NewHandler(activities, log).Register(r)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, httpserver.New(cfg.Addr, r), shutdownGrace, log)
	})
	g.Go(func() error {
		return bus.Run(ctx)
	})
	return g.Wait()
}
