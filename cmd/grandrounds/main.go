// Command grandrounds runs one diagnostic debate over a patient case
// file and prints the consensus result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/agents"
	"github.com/grandrounds/grandrounds/internal/cache"
	"github.com/grandrounds/grandrounds/internal/config"
	"github.com/grandrounds/grandrounds/internal/consensus"
	"github.com/grandrounds/grandrounds/internal/database"
	"github.com/grandrounds/grandrounds/internal/directory"
	"github.com/grandrounds/grandrounds/internal/grounding"
	"github.com/grandrounds/grandrounds/internal/models"
	"github.com/grandrounds/grandrounds/internal/orchestrator"
)

var (
	configPath = flag.String("config", "", "path to YAML configuration file")
	casePath   = flag.String("case", "", "path to patient case JSON file (required)")
	timeout    = flag.Duration("timeout", 10*time.Minute, "overall debate deadline")
	pretty     = flag.Bool("pretty", true, "indent the JSON output")
)

func main() {
	// API keys and connection strings may live in a local .env file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Debug("Could not load .env file")
	}

	flag.Parse()

	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("grandrounds failed")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	session, err := loadCase(*casePath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o, cleanup, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result := o.RunDebate(ctx, session)

	encoder := json.NewEncoder(os.Stdout)
	if *pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(result)
}

func loadConfig() (*config.Config, error) {
	if *configPath == "" {
		return config.Default(), nil
	}
	return config.Load(*configPath)
}

// loadCase reads the patient session and assigns a session id when the
// file carries none.
func loadCase(path string) (models.PatientSession, error) {
	if path == "" {
		return models.PatientSession{}, fmt.Errorf("-case is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.PatientSession{}, fmt.Errorf("failed to read case file: %w", err)
	}

	var session models.PatientSession
	if err := json.Unmarshal(data, &session); err != nil {
		return models.PatientSession{}, fmt.Errorf("failed to parse case file: %w", err)
	}
	if session.SessionID == "" {
		session.SessionID = uuid.NewString()
	}
	return session, nil
}

// wire assembles the engine from configuration. Redis and Postgres are
// optional tiers: failure to reach either degrades with a warning
// instead of refusing to run.
func wire(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*orchestrator.Orchestrator, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var l2 *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.WithError(err).Warn("redis unreachable, running with in-process cache only")
		} else {
			l2 = redisCache
			closers = append(closers, func() { _ = redisCache.Close() })
		}
	}

	tiered := cache.NewTieredCache(l2, cfg.Cache, logger)
	closers = append(closers, func() { _ = tiered.Close() })

	dirClient := directory.NewClient(cfg.Directory, logger)
	groundingSvc := grounding.NewService(cfg.Grounding, tiered, dirClient, logger)

	var store database.Store
	if cfg.Database.Enabled {
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Warn("database unreachable, opinions will not be persisted")
		} else {
			closers = append(closers, pool.Close)
			pgStore := database.NewPgStore(pool, logger)
			if err := pgStore.CreateTables(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("failed to prepare audit tables: %w", err)
			}
			store = pgStore
		}
	}

	if cfg.OpenAI.APIKey == "" {
		cleanup()
		return nil, nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	provider := agents.NewOpenAIProvider(cfg.OpenAIConfig())

	engine := consensus.NewEngine(cfg.Consensus)
	o := orchestrator.New(cfg.Debate, cfg.Heuristics, cfg.Specialists,
		provider, engine, groundingSvc, store, logger)
	return o, cleanup, nil
}
