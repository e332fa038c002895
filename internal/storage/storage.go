// Package storage provides a sqlite-backed audit log of session
// lifecycle events (connect/promote/disconnect), recording the
// env_type supplemented feature alongside each entry. Grounded on
// _examples/rjsadow-sortie/internal/db/db.go's bun+sqlitedialect
// wrapper and migrate.go's embedded golang-migrate wiring, trimmed to
// sqlite only: the protocol server has no multi-tenant Postgres
// deployment target, so pgdialect/lib/pq are dropped (see DESIGN.md).
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

// Event names recorded in the audit log.
const (
	EventConnected    = "connected"
	EventPromoted     = "promoted"
	EventDisconnected = "disconnected"
	EventAuthRejected = "auth_rejected"
	EventAdminLogin   = "admin_login"
)

// AuditEntry is one row of the audit_log table.
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_log"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Timestamp time.Time `bun:"timestamp,nullzero,notnull,default:current_timestamp"`
	ClientID  string    `bun:"client_id,notnull"`
	SessionID uint64    `bun:"session_id,notnull"`
	EnvType   string    `bun:"env_type,notnull"`
	Event     string    `bun:"event,notnull"`
	Detail    string    `bun:"detail"`
}

// AuditLogFilter holds query parameters for filtering audit log pages.
type AuditLogFilter struct {
	ClientID string
	Event    string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// AuditLogPage holds one page of audit log results with the total
// matching row count.
type AuditLogPage struct {
	Entries []AuditEntry
	Total   int
}

// DB wraps a bun-mediated sqlite connection dedicated to the audit
// log.
type DB struct {
	bun *bun.DB
}

// Open opens (creating if necessary) the sqlite database at path,
// runs pending migrations, and returns a ready DB handle.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: set busy_timeout: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: enable WAL mode: %w", err)
	}
	conn.SetMaxIdleConns(1)

	if err := runMigrations(path); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{bun: bun.NewDB(conn, sqlitedialect.New())}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.bun.Close() }

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error { return db.bun.PingContext(ctx) }

// LogEvent inserts an audit log entry.
func (db *DB) LogEvent(ctx context.Context, clientID string, sessionID uint64, envType, event, detail string) error {
	entry := AuditEntry{
		ClientID:  clientID,
		SessionID: sessionID,
		EnvType:   envType,
		Event:     event,
		Detail:    detail,
	}
	_, err := db.bun.NewInsert().Model(&entry).Exec(ctx)
	return err
}

// QueryAuditLog returns audit entries matching filter with pagination.
func (db *DB) QueryAuditLog(ctx context.Context, filter AuditLogFilter) (*AuditLogPage, error) {
	q := db.bun.NewSelect().Model((*AuditEntry)(nil))

	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	if filter.Event != "" {
		q = q.Where("event = ?", filter.Event)
	}
	if !filter.From.IsZero() {
		q = q.Where("timestamp >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("timestamp <= ?", filter.To)
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: count audit log: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := max(filter.Offset, 0)

	var entries []AuditEntry
	if err := q.OrderExpr("timestamp DESC, id DESC").Limit(limit).Offset(offset).Scan(ctx, &entries); err != nil {
		return nil, fmt.Errorf("storage: query audit log: %w", err)
	}

	return &AuditLogPage{Entries: entries, Total: total}, nil
}

// RecentEvents returns the most recent n audit log entries for a
// given client, newest first.
func (db *DB) RecentEvents(ctx context.Context, clientID string, n int) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := db.bun.NewSelect().Model(&entries).
		Where("client_id = ?", clientID).
		OrderExpr("timestamp DESC, id DESC").
		Limit(n).
		Scan(ctx)
	return entries, err
}
