// Package db provides PostgreSQL-backed repositories for the LeanPulse
// notification engine. All repositories accept a DBTX so the same code runs
// against *pgxpool.Pool or inside a pgx.Tx.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leanpulse/internal/config"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool builds a pgx pool from DatabaseConfig and verifies connectivity.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	pingCtx := ctx
	if cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.AcquireTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// whereBuilder accumulates predicate+bind-value pairs. Column expressions are
// always literals chosen by the repository; only values are bound.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a predicate. The predicate uses a single "?" which is replaced
// by the next positional placeholder.
func (w *whereBuilder) add(pred string, val any) {
	w.args = append(w.args, val)
	w.conds = append(w.conds, strings.Replace(pred, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

// addRaw appends a predicate that binds no value.
func (w *whereBuilder) addRaw(pred string) {
	w.conds = append(w.conds, pred)
}

// bind adds a value without a predicate and returns its placeholder.
func (w *whereBuilder) bind(val any) string {
	w.args = append(w.args, val)
	return fmt.Sprintf("$%d", len(w.args))
}

// clause renders " WHERE ..." or an empty string.
func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
