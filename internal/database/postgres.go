package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds the connection settings for the audit store.
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Name     string `json:"name" yaml:"name"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
}

// DefaultPostgresConfig returns local development settings.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:    "localhost",
		Port:    "5432",
		User:    "grandrounds",
		Name:    "grandrounds_db",
		SSLMode: "disable",
	}
}

// ConnString renders the pgx connection URL.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Connect opens a pgx pool and verifies it with a bounded ping.
func Connect(ctx context.Context, config PostgresConfig) (*pgxpool.Pool, error) {
	def := DefaultPostgresConfig()
	if config.Host == "" {
		config.Host = def.Host
	}
	if config.Port == "" {
		config.Port = def.Port
	}
	if config.User == "" {
		config.User = def.User
	}
	if config.Name == "" {
		config.Name = def.Name
	}
	if config.SSLMode == "" {
		config.SSLMode = def.SSLMode
	}

	pool, err := pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}
