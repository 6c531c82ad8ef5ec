package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantScope wraps a connection bound to one server name. The connection has
// app.current_server set, which the row level security policies on the
// governance tables compare against.
//
// A pgx connection runs one statement at a time, so callers sharing a scope
// across goroutines hold Lock for the duration of each statement.
type TenantScope struct {
	Conn       *pgxpool.Conn
	ServerName string

	mu sync.Mutex
}

// Lock serializes use of Conn.
func (s *TenantScope) Lock() { s.mu.Lock() }

// Unlock releases Lock.
func (s *TenantScope) Unlock() { s.mu.Unlock() }

// Close resets the server context and releases the connection to the pool.
// This MUST be called so the server context never leaks to the next request.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_server")
	s.Conn.Release()
}

// WithTenant acquires a connection and binds it to serverName.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithTenant(ctx context.Context, serverName string) (*TenantScope, error) {
	if serverName == "" {
		return nil, fmt.Errorf("server name is required for a tenant scope")
	}

	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_server', $1, false)", serverName)
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &TenantScope{Conn: conn, ServerName: serverName}, nil
}

// WithoutTenant acquires a connection without a server context. Only used for
// maintenance that must see every server, such as test cleanup.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithoutTenant(ctx context.Context) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &TenantScope{Conn: conn}, nil
}
