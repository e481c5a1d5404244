package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type scopeKey struct{}

// Scope holds at most one pooled connection for the lifetime of a single
// request. The connection is checked out on first use and returned by Close.
type Scope struct {
	base *gorm.DB
	ctx  context.Context
	log  *zap.Logger

	mu     sync.Mutex
	conn   *sql.Conn
	tx     *gorm.DB
	closed bool
}

// NewScope creates a scope over the pool-level handle. No connection is
// acquired until DB is called.
func NewScope(ctx context.Context, base *gorm.DB, log *zap.Logger) *Scope {
	return &Scope{base: base, ctx: ctx, log: log}
}

// DB returns a gorm session pinned to the scope's connection, acquiring it
// on the first call. Later calls reuse the same connection.
func (s *Scope) DB() (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("database scope already closed")
	}
	if s.tx != nil {
		return s.tx, nil
	}

	sqlDB, err := s.base.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	conn, err := sqlDB.Conn(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}

	tx := s.base.Session(&gorm.Session{NewDB: true, Context: s.ctx})
	tx.Statement.ConnPool = conn

	s.conn = conn
	s.tx = tx
	s.log.Debug("database connection acquired")

	return tx, nil
}

// Acquired reports whether a connection has been checked out.
func (s *Scope) Acquired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close returns the connection to the pool. It is safe to call more than
// once and on a scope that never acquired a connection.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	s.tx = nil
	s.log.Debug("database connection released")

	if err != nil {
		return fmt.Errorf("failed to release database connection: %w", err)
	}
	return nil
}

// WithScope returns a copy of ctx carrying the scope
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the scope stored in ctx, if any
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}

// FromContext resolves the handle a repository should use: the request's
// scoped session when one is present, otherwise the fallback bound to ctx.
func FromContext(ctx context.Context, fallback *gorm.DB) (*gorm.DB, error) {
	if s, ok := ScopeFromContext(ctx); ok {
		return s.DB()
	}
	return fallback.WithContext(ctx), nil
}
