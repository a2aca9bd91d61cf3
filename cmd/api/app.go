package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/svirmi/gift-ledger/internal/auth"
	"github.com/svirmi/gift-ledger/internal/cache"
	"github.com/svirmi/gift-ledger/internal/helpers"
	"github.com/svirmi/gift-ledger/internal/repository"
	"github.com/svirmi/gift-ledger/internal/seed"
	"github.com/svirmi/gift-ledger/internal/service"
)

type config struct {
	port            string
	env             string
	shutdownTimeout time.Duration
	storeDriver     string
	seed            bool
	db              helpers.DBConfig
	jwt             struct {
		secret string
		ttl    time.Duration
	}
	cache struct {
		catalogTTL time.Duration
		dedup      bool
	}
	redis struct {
		addr     string
		password string
		db       int
	}
	log struct {
		level  string
		format string
	}
}

func loadConfig() config {
	cfg := config{}

	cfg.port = helpers.GetEnvAsStr("PORT", "8080")
	cfg.env = helpers.GetEnvAsStr("ENV", "development")
	cfg.shutdownTimeout = helpers.GetEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.storeDriver = helpers.GetEnvAsStr("STORE_DRIVER", "postgres")
	cfg.seed = helpers.GetEnvAsBool("SEED", false)
	cfg.db = helpers.DBConfigFromEnv()
	cfg.jwt.secret = helpers.GetEnvAsStr("JWT_SECRET", "")
	cfg.jwt.ttl = helpers.GetEnvAsDuration("TOKEN_TTL", 12*time.Hour)
	cfg.cache.catalogTTL = helpers.GetEnvAsDuration("CACHE_CATALOG_TTL", 5*time.Minute)
	cfg.cache.dedup = helpers.GetEnvAsBool("CACHE_DEDUP", false)
	cfg.redis.addr = helpers.GetEnvAsStr("REDIS_ADDR", "")
	cfg.redis.password = helpers.GetEnvAsStr("REDIS_PASSWORD", "")
	cfg.redis.db = helpers.GetEnvAsInt("REDIS_DB", 0)
	cfg.log.level = helpers.GetEnvAsStr("LOG_LEVEL", "info")
	cfg.log.format = helpers.GetEnvAsStr("LOG_FORMAT", "json")

	return cfg
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

type application struct {
	config config
	logger *slog.Logger
	store  repository.Store
	cache  *cache.Cache
	issuer *auth.Issuer

	batches      *service.BatchCommitter
	transactions *service.TransactionService
	users        *service.UserService
	gifts        *service.GiftService
	reports      *service.ReportService

	closers []io.Closer
}

func newApplication(cfg config, logger *slog.Logger, store repository.Store, registry cache.StalenessRegistry) (*application, error) {
	issuer, err := auth.NewIssuer(cfg.jwt.secret, cfg.jwt.ttl)
	if err != nil {
		return nil, err
	}

	var opts []cache.Option
	if cfg.cache.dedup {
		opts = append(opts, cache.WithDeduplication())
	}
	c := cache.New(registry, logger, opts...)

	batches := service.NewBatchCommitter(store, logger)
	transactions := service.NewTransactionService(store, c, batches, logger)
	users := service.NewUserService(store, c, logger)
	gifts := service.NewGiftService(store, c, cfg.cache.catalogTTL, logger)

	return &application{
		config:       cfg,
		logger:       logger,
		store:        store,
		cache:        c,
		issuer:       issuer,
		batches:      batches,
		transactions: transactions,
		users:        users,
		gifts:        gifts,
		reports:      service.NewReportService(users, gifts, transactions),
	}, nil
}

// bootstrap opens the configured store and staleness registry and builds the
// application around them.
func bootstrap(ctx context.Context, cfg config, logger *slog.Logger) (*application, error) {
	var (
		store   repository.Store
		closers []io.Closer
	)
	switch cfg.storeDriver {
	case "memory":
		store = repository.NewMemory()
	case "postgres":
		db, err := helpers.OpenDB(ctx, cfg.db, logger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, db)
		if err := repository.Migrate(db, logger); err != nil {
			db.Close()
			return nil, err
		}
		store = repository.NewPostgres(db)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.storeDriver)
	}

	var registry cache.StalenessRegistry = cache.NewMemoryRegistry()
	if cfg.redis.addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.redis.addr,
			Password: cfg.redis.password,
			DB:       cfg.redis.db,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, staleness checks will refetch", "addr", cfg.redis.addr, "error", err)
		}
		closers = append(closers, client)
		registry = cache.NewRedisRegistry(client, logger)
		logger.Info("using shared staleness registry", "addr", cfg.redis.addr)
	}

	app, err := newApplication(cfg, logger, store, registry)
	if err == nil && cfg.seed {
		err = seed.Load(ctx, store, logger)
	}
	if err != nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}
	app.closers = closers
	return app, nil
}

func (app *application) close() {
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Warn("close failed", "error", err)
		}
	}
}

// invalidate marks cached views stale after a successful write. A failure
// only delays freshness, so it is logged and not returned.
func (app *application) invalidate(ctx context.Context, keys ...string) {
	if err := app.cache.MarkStale(ctx, keys...); err != nil {
		app.logger.Warn("failed to mark cache keys stale", "keys", keys, "error", err)
	}
}
