package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Kafka describes the shared task.events bus.
type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
	// Partitions and ReplicationFactor are used when the topic is created
	// at startup; an existing topic is left untouched.
	Partitions        int32
	ReplicationFactor int16
}

// RedisConfig configures the optional Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Database configures the Postgres store. An empty URL selects the in-memory store.
type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Gateway captures api-gateway configuration.
type Gateway struct {
	Addr               string
	JWTSigningKey      string
	JWTIssuer          string
	JWTAudience        string
	TaskServiceURL     string
	ActivityServiceURL string
	UpstreamTimeout    time.Duration
	AllowedOrigins     []string
	// SubscriptionPolicy is "strict" (default) or "claims".
	SubscriptionPolicy string
	AdminRole          string
	ProjectCacheTTL    time.Duration
	LogLevel           string
	Kafka              Kafka
	Redis              RedisConfig
}

// TaskService captures task-service configuration.
type TaskService struct {
	Addr     string
	LogLevel string
	Kafka    Kafka
	Database Database
}

// ActivityService captures activity-service configuration.
type ActivityService struct {
	Addr     string
	LogLevel string
	Kafka    Kafka
	Database Database
}

// DefaultTopic is the domain event topic shared by all services.
const DefaultTopic = "task.events"

// GatewayFromEnv builds the gateway config from environment variables so main stays lean.
func GatewayFromEnv() Gateway {
	return Gateway{
		Addr: envOr("GATEWAY_ADDR", ":8080"),
		// Use a default for development - must be overridden in production
		JWTSigningKey:      envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:          os.Getenv("JWT_ISSUER"),
		JWTAudience:        os.Getenv("JWT_AUDIENCE"),
		TaskServiceURL:     envOr("TASK_SERVICE_URL", "http://localhost:8081"),
		ActivityServiceURL: envOr("ACTIVITY_SERVICE_URL", "http://localhost:8082"),
		UpstreamTimeout:    envDuration("UPSTREAM_TIMEOUT", 5*time.Second),
		AllowedOrigins:     envList("GATEWAY_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		SubscriptionPolicy: envOr("GATEWAY_WS_SUBSCRIPTION_POLICY", "strict"),
		AdminRole:          envOr("GATEWAY_ADMIN_ROLE", "admin"),
		ProjectCacheTTL:    envDuration("GATEWAY_PROJECT_CACHE_TTL", 5*time.Minute),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		Kafka:              kafkaFromEnv("gateway"),
		Redis:              redisFromEnv(),
	}
}

// TaskServiceFromEnv builds the task-service config.
func TaskServiceFromEnv() TaskService {
	return TaskService{
		Addr:     envOr("TASK_SERVICE_ADDR", ":8081"),
		LogLevel: envOr("LOG_LEVEL", "info"),
		Kafka:    kafkaFromEnv(""),
		Database: databaseFromEnv(),
	}
}

// ActivityServiceFromEnv builds the activity-service config.
func ActivityServiceFromEnv() ActivityService {
	return ActivityService{
		Addr:     envOr("ACTIVITY_SERVICE_ADDR", ":8082"),
		LogLevel: envOr("LOG_LEVEL", "info"),
		Kafka:    kafkaFromEnv("activity"),
		Database: databaseFromEnv(),
	}
}

func kafkaFromEnv(defaultGroup string) Kafka {
	return Kafka{
		Brokers:           envList("KAFKA_BROKERS", []string{"localhost:9092"}),
		Topic:             envOr("KAFKA_TOPIC", DefaultTopic),
		GroupID:           envOr("KAFKA_GROUP_ID", defaultGroup),
		Partitions:        int32(envInt("KAFKA_TOPIC_PARTITIONS", 3)),
		ReplicationFactor: int16(envInt("KAFKA_TOPIC_REPLICATION", 1)),
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     envInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func databaseFromEnv() Database {
	return Database{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
