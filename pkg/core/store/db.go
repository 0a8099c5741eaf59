// Package store reads survey datasets from Postgres.
package store

import (
	"context"
	"fmt"
	"log"
	"sync"

	"property_appraisal/pkg/core/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	mu   sync.Mutex
	pool *pgxpool.Pool
)

// Open builds a pool for db and checks that the server answers.
func Open(ctx context.Context, db config.Database) (*pgxpool.Pool, error) {
	if db.URL == "" {
		return nil, fmt.Errorf("database url not set (%s)", config.EnvDatabaseURL)
	}
	if db.MaxConns < 0 {
		return nil, fmt.Errorf("max_conns must not be negative, got %d", db.MaxConns)
	}
	pc, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if db.MaxConns > 0 {
		pc.MaxConns = db.MaxConns
	}

	p, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("database %s unreachable: %w", pc.ConnConfig.Host, err)
	}
	log.Printf("[store] connected to %s/%s (max %d conns)", pc.ConnConfig.Host, pc.ConnConfig.Database, pc.MaxConns)
	return p, nil
}

// InitDB opens the shared pool used by repositories built without a DB.
// Calling it again while a pool is open is a no-op.
func InitDB(ctx context.Context, db config.Database) error {
	mu.Lock()
	defer mu.Unlock()
	if pool != nil {
		return nil
	}
	p, err := Open(ctx, db)
	if err != nil {
		return err
	}
	pool = p
	return nil
}

// GetPool returns the shared pool, or nil before InitDB.
func GetPool() *pgxpool.Pool {
	mu.Lock()
	defer mu.Unlock()
	return pool
}

// Close releases the shared pool. InitDB may be called again afterwards.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if pool != nil {
		pool.Close()
		pool = nil
	}
}
