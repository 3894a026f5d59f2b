package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/viper"
)

// Conn is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories can
// run inside or outside a transaction.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Client represents a Postgres client.
type Client struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// Pool returns the underlying connection pool.
func (p *Client) Pool() *pgxpool.Pool {
	return p.pool
}

// DB returns a database/sql view over the same pool.
func (p *Client) DB() *sql.DB {
	return p.db
}

// Close closes the database connection for graceful shutdown.
func (p *Client) Close() error {
	err := p.db.Close()
	p.pool.Close()

	return err
}

// ConnString builds the DSN from the CHECKOUT_PG_* environment.
func ConnString() string {
	port := os.Getenv("CHECKOUT_PG_PORT")
	if port == "" {
		port = "5432"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("CHECKOUT_PG_HOST"),
		port,
		os.Getenv("CHECKOUT_PG_USER"),
		os.Getenv("CHECKOUT_PG_PASSWORD"),
		os.Getenv("CHECKOUT_PG_DB"),
	)
}

// NewClient connects to connStr and applies the migrations found in migrationsDir.
func NewClient(ctx context.Context, connStr, migrationsDir string) (*Client, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if maxConns := viper.GetInt32("postgres.max_conns"); maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)

	// Run migrations using goose with stdlib adapter
	if err := goose.SetDialect("postgres"); err != nil {
		pool.Close()

		return nil, err
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{
		pool: pool,
		db:   db,
	}, nil
}

// MustNewClient creates a new Postgres client.
func MustNewClient() *Client {
	client, err := NewClient(
		context.Background(),
		ConnString(),
		viper.GetString("postgres.migrations_path"),
	)
	if err != nil {
		panic(err)
	}

	return client
}
