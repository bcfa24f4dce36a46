package main

import (
	"context"
	"fmt"
	"os"

	"qms/walkin-service/internal/broadcast"
	"qms/walkin-service/internal/config"
	"qms/walkin-service/internal/directory"
	"qms/walkin-service/internal/estimator"
	"qms/walkin-service/internal/hub"
	"qms/walkin-service/internal/queue"
	"qms/walkin-service/internal/store"
	"qms/walkin-service/internal/store/memory"
	"qms/walkin-service/internal/store/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app holds every long-lived dependency a command needs.
type app struct {
	logger      *logrus.Logger
	pool        *pgxpool.Pool
	redis       *redis.Client
	kafka       *broadcast.KafkaSink
	hub         *hub.Hub
	broadcaster *broadcast.Broadcaster
	relay       *broadcast.Relay
	sessions    directory.SessionResolver
	service     *queue.Service
}

func buildApp(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*app, error) {
	a := &app{logger: logger, hub: hub.New(logger)}

	var queueStore store.QueueStore
	var dir directory.Directory
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "db connect")
		}
		a.pool = pool
		queueStore = postgres.NewStore(pool, postgres.Options{})
		pgDirectory := directory.NewPostgres(pool)
		dir = pgDirectory
		if cfg.AuthRequired {
			a.sessions = pgDirectory
		}
	} else {
		if cfg.AuthRequired {
			return nil, errors.New("AUTH_REQUIRED needs DB_DSN for session lookups")
		}
		logger.Warn("DB_DSN not set, queue kept in memory")
		queueStore = memory.NewStore(memory.Options{})
		dir = directory.Static{}
	}

	origin := processOrigin()
	sinks := []broadcast.Sink{broadcast.NewHubSink(a.hub)}
	if cfg.RedisAddr != "" {
		client, err := newRedisClient(ctx, cfg, logger)
		if err != nil {
			a.close(context.Background())
			return nil, err
		}
		a.redis = client
		sinks = append(sinks, broadcast.NewRedisSink(client, cfg.RedisChannel))
		a.relay = broadcast.NewRelay(client, cfg.RedisChannel, origin, broadcast.NewHubSink(a.hub), logger)
	}
	if brokers := broadcast.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		a.kafka = broadcast.NewKafkaSink(broadcast.NewKafkaWriter(brokers, cfg.KafkaTopic))
		sinks = append(sinks, a.kafka)
		logger.WithField("topic", cfg.KafkaTopic).Info("kafka export enabled")
	}

	a.broadcaster = broadcast.New(broadcast.Options{
		Buffer: cfg.BroadcastBuffer,
		Origin: origin,
		Logger: logger,
	}, sinks...)

	a.service = queue.NewService(queueStore, dir, a.broadcaster, queue.Options{
		Estimator:             estimator.New(cfg.ServiceMinutes, cfg.BaseWaitMinutes),
		Location:              cfg.Location,
		AllowDuplicateCheckIn: cfg.AllowDuplicateCheckIn,
		Logger:                logger,
	})
	return a, nil
}

func newRedisClient(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	logger.WithFields(logrus.Fields{"addr": cfg.RedisAddr, "channel": cfg.RedisChannel}).Info("redis fan-out enabled")
	return client, nil
}

// close drains the broadcaster before shutting down the sinks it writes to.
func (a *app) close(ctx context.Context) {
	if a.broadcaster != nil {
		if err := a.broadcaster.Close(ctx); err != nil {
			a.logger.WithError(err).Warn("broadcaster drain incomplete")
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.WithError(err).Warn("kafka writer close failed")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("redis close failed")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func processOrigin() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = serviceName
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
