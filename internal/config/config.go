package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	DatabaseURL           string
	MigrationsDir         string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisChannel          string
	KafkaBrokers          string
	KafkaTopic            string
	ServiceMinutes        int
	BaseWaitMinutes       int
	Location              *time.Location
	AllowDuplicateCheckIn bool
	BroadcastBuffer       int
	ReconcileSchedule     string
	AuthRequired          bool
	RateLimitPerMinute    int
	RateLimitBurst        int
	LogLevel              string
	LogFormat             string
	ShutdownTimeout       time.Duration
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                  port,
		DatabaseURL:           os.Getenv("DB_DSN"),
		MigrationsDir:         readString("MIGRATIONS_DIR", "migrations"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               readInt("REDIS_DB", 0),
		RedisChannel:          readString("REDIS_CHANNEL", "walkin-queue-events"),
		KafkaBrokers:          os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:            readString("KAFKA_TOPIC", "walkin-queue-events"),
		ServiceMinutes:        readInt("SERVICE_MINUTES_PER_CUSTOMER", 30),
		BaseWaitMinutes:       readInt("BASE_WAIT_MINUTES", 15),
		Location:              readLocation("QUEUE_TIMEZONE"),
		AllowDuplicateCheckIn: readBool("ALLOW_DUPLICATE_CHECKIN", false),
		BroadcastBuffer:       readInt("BROADCAST_BUFFER", 256),
		ReconcileSchedule:     readString("RECONCILE_SCHEDULE", "@every 1m"),
		AuthRequired:          readBool("AUTH_REQUIRED", false),
		RateLimitPerMinute:    readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:        readInt("RATE_LIMIT_BURST", 30),
		LogLevel:              readString("LOG_LEVEL", "info"),
		LogFormat:             readString("LOG_FORMAT", "text"),
		ShutdownTimeout:       readDurationSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10),
	}
}

func readString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func readLocation(key string) *time.Location {
	name := strings.TrimSpace(os.Getenv(key))
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
