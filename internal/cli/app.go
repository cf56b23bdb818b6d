package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"bitespeed-identity/internal/config"
	"bitespeed-identity/internal/database"
	"bitespeed-identity/internal/lock"
	"bitespeed-identity/internal/logging"
	"bitespeed-identity/internal/metrics"
	"bitespeed-identity/internal/service"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	service  *service.ReconciliationService
	closers  []func() error
}

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*app, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db, err := database.Open(ctx, database.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = service.NewReconciliationService(
		database.NewContactStore(db),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(a.registry)),
		service.WithLocker(locker),
	)
	return a, nil
}

func (a *app) newLocker(ctx context.Context) (lock.Locker, error) {
	switch a.cfg.Lock.Backend {
	case config.LockBackendLocal:
		return lock.NewKeyedMutex(), nil
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Lock.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", a.cfg.Lock.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("redis lock enabled", "addr", a.cfg.Lock.RedisAddr, "ttl", a.cfg.Lock.TTL)
		return lock.NewRedis(client, lock.WithTTL(a.cfg.Lock.TTL), lock.WithLogger(a.logger)), nil
	default:
		return lock.Nop{}, nil
	}
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
