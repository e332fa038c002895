package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRunsMigrations(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestLogEventAndQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.LogEvent(ctx, "client-a", 1, "native", EventConnected, ""); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}
	if err := db.LogEvent(ctx, "client-a", 1, "native", EventPromoted, ""); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}
	if err := db.LogEvent(ctx, "client-b", 2, "wasm", EventConnected, ""); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	page, err := db.QueryAuditLog(ctx, AuditLogFilter{ClientID: "client-a"})
	if err != nil {
		t.Fatalf("QueryAuditLog() error = %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("Total = %d, want 2", page.Total)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(page.Entries))
	}
	// Newest first.
	if page.Entries[0].Event != EventPromoted {
		t.Errorf("Entries[0].Event = %q, want %q", page.Entries[0].Event, EventPromoted)
	}
}

func TestQueryAuditLogFiltersByEvent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.LogEvent(ctx, "c1", 1, "native", EventConnected, "")
	db.LogEvent(ctx, "c2", 2, "native", EventDisconnected, "")

	page, err := db.QueryAuditLog(ctx, AuditLogFilter{Event: EventDisconnected})
	if err != nil {
		t.Fatalf("QueryAuditLog() error = %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("Total = %d, want 1", page.Total)
	}
}

func TestRecentEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.LogEvent(ctx, "c1", 1, "native", EventConnected, "")
	db.LogEvent(ctx, "c1", 1, "native", EventPromoted, "")
	db.LogEvent(ctx, "c1", 1, "native", EventDisconnected, "")

	entries, err := db.RecentEvents(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Event != EventDisconnected {
		t.Errorf("entries[0].Event = %q, want %q", entries[0].Event, EventDisconnected)
	}
}
