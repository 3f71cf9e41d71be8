// Package database owns connectivity and schema for the two course stores:
// Postgres with pgvector for the catalog and content collections, Neo4j for
// the course knowledge graph.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// NewPostgresPool opens the pool backing the course catalog and chunk
// collections. The pool is pinged so a bad DSN fails at startup rather than
// on the first ingested course.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open course store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping course store: %w", err)
	}
	return pool, nil
}

// NewNeo4jDriver opens the driver for the course knowledge graph.
// Connectivity is not verified here: the graph is advisory, and sync failures
// are logged per course instead of blocking startup.
func NewNeo4jDriver(uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("open course graph driver: %w", err)
	}
	return driver, nil
}
