package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesChainAndCode(t *testing.T) {
	err := fmt.Errorf("commit 100000001: %w", New(CodeServiceUnavailable, "timeout"))
	d := Dump(err)
	if d.Code != CodeServiceUnavailable {
		t.Fatalf("expected service unavailable code, got %q", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %v", d.Chain)
	}
	if _, ok := d.Fields()["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted for non-pg errors")
	}
}

func TestDumpPostgresErrors(t *testing.T) {
	pgx := &pgconn.PgError{Code: "23505", ConstraintName: "ux_tax_sync_queue_active", TableName: "tax_sync_queue"}
	d := Dump(fmt.Errorf("insert: %w", pgx))
	if d.PGCode != "23505" || d.PGConstraint != "ux_tax_sync_queue_active" {
		t.Fatalf("unexpected pgx dump %+v", d)
	}

	pqErr := &pq.Error{Code: "23505", Constraint: "ux_tax_sync_queue_active"}
	d = Dump(pqErr)
	if d.PGConstraint != "ux_tax_sync_queue_active" {
		t.Fatalf("unexpected pq dump %+v", d)
	}
	if d.Fields()["pg_code"] != "23505" {
		t.Fatalf("expected pg_code field")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
