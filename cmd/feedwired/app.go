package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"feedwire/internal/dispatch"
	"feedwire/internal/fanout"
	"feedwire/internal/feed"
	"feedwire/internal/listcache"
	"feedwire/internal/memstore"
	"feedwire/internal/pgstore"
	"feedwire/pkg/feedwire"
)

const (
	envConfigFile           = "FEEDWIRE_CONFIG_FILE"
	defaultConfigFilePath   = "config/feedwired.json"
	alternateConfigFilePath = "bin/config/feedwired.json"

	defaultShutdownTimeout  = 10 * time.Second
	defaultCacheListLimit   = 500
	defaultCacheTTL         = 24 * time.Hour
	defaultPostCacheEntries = 10000
	defaultBatchSize        = 3000
	defaultFanoutWorkers    = 4
	defaultQueueBuffer      = 64
	defaultBatchTimeBudget  = time.Hour
	defaultMaxAttempts      = 3
)

type appConfig struct {
	logLevel slog.Level

	shutdownTimeout time.Duration

	postgresDSN string

	redisAddr     string
	redisPassword string
	redisDB       int

	cacheListLimit   int
	cacheTTL         time.Duration
	postCacheEntries int

	fanoutBatchSize  int
	fanoutWorkers    int
	queueBuffer      int
	batchTimeBudget  time.Duration
	batchMaxAttempts int
}

type fileConfig struct {
	LogLevel        string           `json:"log_level"`
	ShutdownTimeout string           `json:"shutdown_timeout"`
	Postgres        filePostgresConf `json:"postgres"`
	Redis           fileRedisConf    `json:"redis"`
	Cache           fileCacheConf    `json:"cache"`
	Fanout          fileFanoutConf   `json:"fanout"`
}

type filePostgresConf struct {
	DSN string `json:"dsn"`
}

type fileRedisConf struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       *int   `json:"db"`
}

type fileCacheConf struct {
	ListLimit   *int   `json:"list_limit"`
	TTL         string `json:"ttl"`
	PostEntries *int   `json:"post_entries"`
}

type fileFanoutConf struct {
	BatchSize       *int   `json:"batch_size"`
	Workers         *int   `json:"workers"`
	QueueBuffer     *int   `json:"queue_buffer"`
	BatchTimeBudget string `json:"batch_time_budget"`
	MaxAttempts     *int   `json:"max_attempts"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := buildRuntime(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer runtime.close()

	logger.Info("feedwired ready",
		"durable_store", runtime.storeKind,
		"list_cache", runtime.cacheKind,
		"cache_list_limit", cfg.cacheListLimit,
		"fanout_batch_size", cfg.fanoutBatchSize,
		"fanout_workers", cfg.fanoutWorkers,
	)

	<-ctx.Done()
	logger.Info("feedwired shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()
	if err := runtime.dispatcher.Close(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown dispatcher: %w", err)
	}

	return nil
}

// appRuntime holds the wired subsystem and the handles run must close.
type appRuntime struct {
	storeKind string
	cacheKind string

	service    *feed.Service
	listener   *feed.Listener
	dispatcher *dispatch.Pool

	pgPool      *pgxpool.Pool
	redisClient *redis.Client
}

func (r *appRuntime) close() {
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			slog.Warn("close redis client", "error", err)
		}
	}
	if r.pgPool != nil {
		r.pgPool.Close()
	}
}

// buildRuntime wires the storage, cache, fanout, and read layers. Postgres
// and Redis are attached when configured; otherwise in-process stand-ins
// serve single-node and development setups.
func buildRuntime(ctx context.Context, logger *slog.Logger, cfg appConfig) (*appRuntime, error) {
	runtime := &appRuntime{}

	var (
		store     feedwire.EntryStore
		posts     feedwire.PostStore
		directory feedwire.FollowerDirectory
	)
	if cfg.postgresDSN != "" {
		pool, err := pgstore.Connect(ctx, cfg.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("build durable store: %w", err)
		}
		runtime.pgPool = pool
		pgStore := pgstore.New(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			runtime.close()
			return nil, fmt.Errorf("build durable store: %w", err)
		}
		store = pgStore
		posts = pgstore.NewPosts(pool)
		directory = pgstore.NewDirectory(pool)
		runtime.storeKind = "postgres"
	} else {
		store = memstore.NewStore()
		posts = memstore.NewPosts()
		directory = memstore.NewDirectory()
		runtime.storeKind = "memory"
	}

	var cache feedwire.ListCache
	if cfg.redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			runtime.close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.redisAddr, err)
		}
		runtime.redisClient = client
		cache = listcache.NewRedis(client,
			listcache.WithRedisLimit(cfg.cacheListLimit),
			listcache.WithRedisTTL(cfg.cacheTTL),
		)
		runtime.cacheKind = "redis"
	} else {
		cache = listcache.NewMemory(listcache.WithMemoryLimit(cfg.cacheListLimit))
		runtime.cacheKind = "memory"
	}

	coordinator := fanout.New(store, cache, directory,
		fanout.WithLogger(logger),
		fanout.WithBatchSize(cfg.fanoutBatchSize),
	)
	runtime.dispatcher = dispatch.NewPool(coordinator,
		dispatch.WithLogger(logger),
		dispatch.WithWorkers(cfg.fanoutWorkers),
		dispatch.WithQueueBuffer(cfg.queueBuffer),
		dispatch.WithTimeBudget(cfg.batchTimeBudget),
		dispatch.WithMaxAttempts(cfg.batchMaxAttempts),
	)
	coordinator.SetDispatcher(runtime.dispatcher)

	runtime.service = feed.New(cache, store, coordinator,
		feed.WithLogger(logger),
		feed.WithCacheLimit(cfg.cacheListLimit),
	)
	postCache := feed.NewPostCache(posts, feed.WithPostCacheEntries(cfg.postCacheEntries))
	runtime.listener = feed.NewListener(cache, postCache, store, logger)

	return runtime, nil
}

func loadConfig() (appConfig, error) {
	cfg := defaultAppConfig()
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}
	if configFile == "" {
		return cfg, nil
	}

	if err := applyConfigFile(&cfg, configFile); err != nil {
		return appConfig{}, err
	}

	return cfg, nil
}

// resolveConfigFilePath returns the config file to load, or empty when no
// file is present and none was requested. Running without a config file
// means in-memory storage and cache, which is only useful for development.
func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		shutdownTimeout: defaultShutdownTimeout,

		cacheListLimit:   defaultCacheListLimit,
		cacheTTL:         defaultCacheTTL,
		postCacheEntries: defaultPostCacheEntries,

		fanoutBatchSize:  defaultBatchSize,
		fanoutWorkers:    defaultFanoutWorkers,
		queueBuffer:      defaultQueueBuffer,
		batchTimeBudget:  defaultBatchTimeBudget,
		batchMaxAttempts: defaultMaxAttempts,
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if rawTimeout := strings.TrimSpace(parsed.ShutdownTimeout); rawTimeout != "" {
		timeout, err := parsePositiveDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse shutdown_timeout: %w", err)
		}
		cfg.shutdownTimeout = timeout
	}

	cfg.postgresDSN = strings.TrimSpace(parsed.Postgres.DSN)

	cfg.redisAddr = strings.TrimSpace(parsed.Redis.Addr)
	cfg.redisPassword = parsed.Redis.Password
	if parsed.Redis.DB != nil {
		if *parsed.Redis.DB < 0 {
			return fmt.Errorf("parse redis.db: must be >= 0")
		}
		cfg.redisDB = *parsed.Redis.DB
	}

	if parsed.Cache.ListLimit != nil {
		if *parsed.Cache.ListLimit <= 0 {
			return fmt.Errorf("parse cache.list_limit: must be > 0")
		}
		cfg.cacheListLimit = *parsed.Cache.ListLimit
	}
	if rawTTL := strings.TrimSpace(parsed.Cache.TTL); rawTTL != "" {
		ttl, err := parsePositiveDuration(rawTTL)
		if err != nil {
			return fmt.Errorf("parse cache.ttl: %w", err)
		}
		cfg.cacheTTL = ttl
	}
	if parsed.Cache.PostEntries != nil {
		if *parsed.Cache.PostEntries <= 0 {
			return fmt.Errorf("parse cache.post_entries: must be > 0")
		}
		cfg.postCacheEntries = *parsed.Cache.PostEntries
	}

	if parsed.Fanout.BatchSize != nil {
		if *parsed.Fanout.BatchSize <= 0 {
			return fmt.Errorf("parse fanout.batch_size: must be > 0")
		}
		cfg.fanoutBatchSize = *parsed.Fanout.BatchSize
	}
	if parsed.Fanout.Workers != nil {
		if *parsed.Fanout.Workers <= 0 {
			return fmt.Errorf("parse fanout.workers: must be > 0")
		}
		cfg.fanoutWorkers = *parsed.Fanout.Workers
	}
	if parsed.Fanout.QueueBuffer != nil {
		if *parsed.Fanout.QueueBuffer <= 0 {
			return fmt.Errorf("parse fanout.queue_buffer: must be > 0")
		}
		cfg.queueBuffer = *parsed.Fanout.QueueBuffer
	}
	if rawBudget := strings.TrimSpace(parsed.Fanout.BatchTimeBudget); rawBudget != "" {
		budget, err := parsePositiveDuration(rawBudget)
		if err != nil {
			return fmt.Errorf("parse fanout.batch_time_budget: %w", err)
		}
		cfg.batchTimeBudget = budget
	}
	if parsed.Fanout.MaxAttempts != nil {
		if *parsed.Fanout.MaxAttempts <= 0 {
			return fmt.Errorf("parse fanout.max_attempts: must be > 0")
		}
		cfg.batchMaxAttempts = *parsed.Fanout.MaxAttempts
	}

	return nil
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("must be > 0")
	}

	return parsed, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
