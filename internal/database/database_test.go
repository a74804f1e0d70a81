package database

import (
	"strings"
	"testing"
)

func TestLedgerSchemaSplitsIntoStatements(t *testing.T) {
	stmts := splitStatements(ledgerCQL)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("unexpected statement: %q", s)
		}
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	for _, table := range []string{"users", "books", "cart_entries", "orders"} {
		if !strings.Contains(migrationSQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("missing table %s", table)
		}
	}
	if !strings.Contains(migrationSQL, "UNIQUE (buyer_id, book_id)") {
		t.Fatal("cart entries must be unique per buyer and book")
	}
	if strings.Count(migrationSQL, "CREATE TABLE ") != strings.Count(migrationSQL, "CREATE TABLE IF NOT EXISTS") {
		t.Fatal("every table must be created idempotently")
	}
}
