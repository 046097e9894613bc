package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"taskflow/internal/gateway/authz"
	"taskflow/internal/gateway/proxy"
	"taskflow/internal/gateway/realtime"
	"taskflow/internal/gateway/upstream"
	jwttoken "taskflow/internal/jwt_token"
	"taskflow/internal/platform/config"
	"taskflow/internal/platform/httpserver"
	"taskflow/internal/platform/kafka/admin"
	"taskflow/internal/platform/kafka/consumer"
	"taskflow/internal/platform/logger"
	"taskflow/internal/platform/metrics"
	"taskflow/internal/platform/redis"
	httptransport "taskflow/internal/transport/http"
	"taskflow/pkg/platform/circuit"
	"taskflow/pkg/platform/middleware/auth"
)

const shutdownGrace = 10 * time.Second

// main wires the api-gateway: JWT auth, the REST proxy and the realtime
// websocket fan-out fed from task.events.
func main() {
	cfg := config.GatewayFromEnv()
	log := logger.New("gateway", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Gateway, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cache, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var checks []httptransport.HealthCheck
	var projectCache upstream.Cache
	if cache != nil {
		defer cache.Close()
		projectCache = cache
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: cache.Health})
	} else {
		log.Info("redis not configured, task project lookups are uncached")
	}

	tasksClient, err := upstream.NewClient("task-service", cfg.TaskServiceURL, cfg.UpstreamTimeout,
		upstream.WithLogger(log), upstream.WithMetrics(m))
	if err != nil {
		return err
	}
	activitiesClient, err := upstream.NewClient("activity-service", cfg.ActivityServiceURL, cfg.UpstreamTimeout,
		upstream.WithLogger(log), upstream.WithMetrics(m))
	if err != nil {
		return err
	}
	lookup := upstream.NewCachedLookup(
		upstream.NewTaskLookup(tasksClient, circuit.New("task-service")),
		projectCache, cfg.ProjectCacheTTL, log,
	)
	authorizer := authz.New(
		authz.WithAdminRole(cfg.AdminRole),
		authz.WithProjectLookup(lookup),
		authz.WithLogger(log),
	)

	registry := realtime.NewRegistry(realtime.WithRegistryLogger(log), realtime.WithRegistryMetrics(m))
	ws := realtime.NewHandler(
		realtime.NewGate(authorizer, cfg.AllowedOrigins),
		realtime.SessionConfig{
			Registry:   registry,
			Authorizer: authorizer,
			Policy:     realtime.ParsePolicy(cfg.SubscriptionPolicy),
			Logger:     log,
			Metrics:    m,
		},
		realtime.WithBaseContext(ctx),
	)

	if err := admin.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		return fmt.Errorf("ensure topic %s: %w", cfg.Kafka.Topic, err)
	}
	router := consumer.NewRouter(log, nil).
		Register(cfg.Kafka.Topic, realtime.NewRelay(registry, log, m))
	bus, err := consumer.New(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  router.Topics(),
	}, router, log)
	if err != nil {
		return err
	}

	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	r := httptransport.NewRouter("gateway", log, reg, checks...)
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(jwt, log))
		ws.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwt, log))
		proxy.New(authorizer, tasksClient, activitiesClient, log).Register(r)
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, httpserver.New(cfg.Addr, r), shutdownGrace, log)
	})
	g.Go(func() error {
		return bus.Run(ctx)
	})
	return g.Wait()
}
