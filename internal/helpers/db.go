package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

const dbConnectAttempts = 5

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func DBConfigFromEnv() DBConfig {
	return DBConfig{
		Host:     GetEnvAsStr("DB_HOST", "postgres"),
		Port:     GetEnvAsStr("DB_PORT", "5432"),
		User:     GetEnvAsStr("DB_USER", "postgres"),
		Password: GetEnvAsStr("DB_PASSWORD", "postgres"),
		Name:     GetEnvAsStr("DB_NAME", "giftledger"),
		SSLMode:  GetEnvAsStr("DB_SSLMODE", "disable"),
	}
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// OpenDB connects to Postgres, retrying while the server comes up.
func OpenDB(ctx context.Context, cfg DBConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for i := 0; i < dbConnectAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Info("waiting for database", "attempt", i+1, "of", dbConnectAttempts, "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not reach database after %d attempts: %w", dbConnectAttempts, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	logger.Info("database connection established", "host", cfg.Host, "name", cfg.Name)
	return db, nil
}
