package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresConfig holds the connection settings of a PostgreSQL store.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN returns the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name,
	)
}

// OpenPostgres connects to PostgreSQL and applies the schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*SQLStore, error) {
	return openPostgresDSN(ctx, cfg.DSN())
}

func openPostgresDSN(ctx context.Context, dsn string) (*SQLStore, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test connection
	if err = sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)                 // Max open connections
	sqlDB.SetMaxIdleConns(5)                  // Max idle connections
	sqlDB.SetConnMaxLifetime(5 * time.Minute) // Max connection lifetime

	store, err := newSQLStore(ctx, sqlDB, postgresDialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Println("✅ Database connected successfully")
	return store, nil
}
