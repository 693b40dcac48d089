// Package config loads the engine configuration from YAML with
// ${VAR_NAME} environment substitution, fills defaults, and validates
// the result before anything is wired.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/grandrounds/grandrounds/internal/agents"
	"github.com/grandrounds/grandrounds/internal/cache"
	"github.com/grandrounds/grandrounds/internal/consensus"
	"github.com/grandrounds/grandrounds/internal/database"
	"github.com/grandrounds/grandrounds/internal/directory"
	"github.com/grandrounds/grandrounds/internal/grounding"
	"github.com/grandrounds/grandrounds/internal/models"
	"github.com/grandrounds/grandrounds/internal/orchestrator"
)

// RedisSettings configures the optional durable cache tier.
type RedisSettings struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// DatabaseSettings configures the optional audit store.
type DatabaseSettings struct {
	Enabled  bool                    `json:"enabled" yaml:"enabled"`
	Postgres database.PostgresConfig `json:"postgres" yaml:"postgres"`
}

// OpenAISettings is the YAML shape of the model provider settings. The
// API key is substituted from the environment, never stored inline.
type OpenAISettings struct {
	APIKey       string            `json:"-" yaml:"api_key"`
	DefaultModel string            `json:"default_model" yaml:"default_model"`
	ModelByTier  map[string]string `json:"model_by_tier" yaml:"model_by_tier"`
	Temperature  float32           `json:"temperature" yaml:"temperature"`
}

// Config is the full engine configuration.
type Config struct {
	LogLevel    string                    `json:"log_level" yaml:"log_level"`
	Debate      orchestrator.Config       `json:"debate" yaml:"debate"`
	Heuristics  orchestrator.Heuristics   `json:"heuristics" yaml:"heuristics"`
	Consensus   consensus.EngineConfig    `json:"consensus" yaml:"consensus"`
	Grounding   grounding.ServiceConfig   `json:"grounding" yaml:"grounding"`
	Directory   directory.ClientConfig    `json:"directory" yaml:"directory"`
	Cache       cache.TieredCacheConfig   `json:"cache" yaml:"cache"`
	Redis       RedisSettings             `json:"redis" yaml:"redis"`
	Database    DatabaseSettings          `json:"database" yaml:"database"`
	OpenAI      OpenAISettings            `json:"openai" yaml:"openai"`
	Specialists []models.SpecialistProfile `json:"specialists" yaml:"specialists"`
}

// Load reads, substitutes, defaults, and validates a YAML config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration path is required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return LoadFromString(string(data))
}

// LoadFromString parses a YAML document the same way Load does.
func LoadFromString(content string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	config.substituteEnvVars()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

// substituteEnvVars replaces ${VAR_NAME} placeholders with environment
// variable values in the fields that commonly carry secrets.
func (c *Config) substituteEnvVars() {
	c.OpenAI.APIKey = os.ExpandEnv(c.OpenAI.APIKey)
	c.Redis.Addr = os.ExpandEnv(c.Redis.Addr)
	c.Redis.Password = os.ExpandEnv(c.Redis.Password)
	c.Database.Postgres.Host = os.ExpandEnv(c.Database.Postgres.Host)
	c.Database.Postgres.User = os.ExpandEnv(c.Database.Postgres.User)
	c.Database.Postgres.Password = os.ExpandEnv(c.Database.Postgres.Password)
	c.Database.Postgres.Name = os.ExpandEnv(c.Database.Postgres.Name)
	c.Directory.BaseURL = os.ExpandEnv(c.Directory.BaseURL)
}

// applyDefaults fills every zero-valued section from the component
// defaults.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	debateDef := orchestrator.DefaultConfig()
	if c.Debate.ConsensusThreshold <= 0 {
		c.Debate.ConsensusThreshold = debateDef.ConsensusThreshold
	}
	if c.Debate.MaxRounds <= 0 {
		c.Debate.MaxRounds = debateDef.MaxRounds
	}
	if c.Debate.SpecialistTimeout <= 0 {
		c.Debate.SpecialistTimeout = debateDef.SpecialistTimeout
	}
	if c.Debate.MinRelevance <= 0 {
		c.Debate.MinRelevance = debateDef.MinRelevance
	}

	consensusDef := consensus.DefaultEngineConfig()
	if c.Consensus.DiscordanceThreshold <= 0 {
		c.Consensus.DiscordanceThreshold = consensusDef.DiscordanceThreshold
	}
	if c.Consensus.ConfidenceVarianceScale <= 0 {
		c.Consensus.ConfidenceVarianceScale = consensusDef.ConfidenceVarianceScale
	}
	if c.Consensus.ContentionVariance <= 0 {
		c.Consensus.ContentionVariance = consensusDef.ContentionVariance
	}

	groundingDef := grounding.DefaultServiceConfig()
	if c.Grounding.ValidationThreshold <= 0 {
		c.Grounding.ValidationThreshold = groundingDef.ValidationThreshold
	}
	if c.Grounding.AlternativeThreshold <= 0 {
		c.Grounding.AlternativeThreshold = groundingDef.AlternativeThreshold
	}
	if c.Grounding.MaxMatches <= 0 {
		c.Grounding.MaxMatches = groundingDef.MaxMatches
	}
	if c.Grounding.BatchConcurrency <= 0 {
		c.Grounding.BatchConcurrency = groundingDef.BatchConcurrency
	}

	directoryDef := directory.DefaultClientConfig()
	if c.Directory.BaseURL == "" {
		c.Directory.BaseURL = directoryDef.BaseURL
	}
	if c.Directory.Timeout <= 0 {
		c.Directory.Timeout = directoryDef.Timeout
	}
	if c.Directory.MaxAttempts <= 0 {
		c.Directory.MaxAttempts = directoryDef.MaxAttempts
	}
	if c.Directory.BaseDelay <= 0 {
		c.Directory.BaseDelay = directoryDef.BaseDelay
	}

	cacheDef := cache.DefaultTieredCacheConfig()
	if c.Cache.L1TTL <= 0 {
		c.Cache.L1TTL = cacheDef.L1TTL
	}
	if c.Cache.L1CleanupInterval <= 0 {
		c.Cache.L1CleanupInterval = cacheDef.L1CleanupInterval
	}
	if c.Cache.L2TTL <= 0 {
		c.Cache.L2TTL = cacheDef.L2TTL
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	openaiDef := agents.DefaultOpenAIConfig()
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = openaiDef.APIKey
	}
	if c.OpenAI.DefaultModel == "" {
		c.OpenAI.DefaultModel = openaiDef.DefaultModel
	}
	if len(c.OpenAI.ModelByTier) == 0 {
		c.OpenAI.ModelByTier = openaiDef.ModelByTier
	}
	if c.OpenAI.Temperature <= 0 {
		c.OpenAI.Temperature = openaiDef.Temperature
	}

	if len(c.Specialists) == 0 {
		c.Specialists = DefaultSpecialists()
	}
}

// Validate rejects configurations that would misbehave silently.
func (c *Config) Validate() error {
	if c.Debate.ConsensusThreshold > 1 {
		return fmt.Errorf("debate.consensus_threshold must be in (0, 1], got %v", c.Debate.ConsensusThreshold)
	}
	if c.Grounding.ValidationThreshold >= 1 {
		return fmt.Errorf("grounding.validation_threshold must be below 1, got %v", c.Grounding.ValidationThreshold)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	seen := make(map[string]bool, len(c.Specialists))
	for _, specialist := range c.Specialists {
		if specialist.ID == "" {
			return fmt.Errorf("specialist with empty id")
		}
		if seen[specialist.ID] {
			return fmt.Errorf("duplicate specialist id %q", specialist.ID)
		}
		seen[specialist.ID] = true
		if specialist.Role == "" {
			return fmt.Errorf("specialist %q has no role", specialist.ID)
		}
	}
	return nil
}

// OpenAIConfig converts the YAML settings into the provider config.
func (c *Config) OpenAIConfig() agents.OpenAIConfig {
	return agents.OpenAIConfig{
		APIKey:       c.OpenAI.APIKey,
		DefaultModel: c.OpenAI.DefaultModel,
		ModelByTier:  c.OpenAI.ModelByTier,
		Temperature:  c.OpenAI.Temperature,
	}
}
