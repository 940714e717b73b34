package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/analytics/internal/platform/db"
)

// globalPool is the shared database pool, initialized once in TestMain.
var globalPool *pgxpool.Pool

// TestMain connects to TEST_DATABASE_URL when set and otherwise starts a
// postgres container. The suite is skipped when neither is available.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err == errNoDocker {
			fmt.Fprintln(os.Stderr, "skipping integration tests: set TEST_DATABASE_URL or install docker")
			os.Exit(0)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			os.Exit(1)
		}
	}

	pool, err := db.NewPool(ctx, connStr, db.PoolOptions{MaxConns: 5})
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	globalPool = pool

	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

var clinicSeq atomic.Int64

// uniqueClinicID returns a clinic id that no other test uses.
func uniqueClinicID(prefix string) string {
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%1_000_000, clinicSeq.Add(1))
}

// ledgerDDL creates the tables the analytics engine reads.
var ledgerDDL = []string{
	`CREATE TABLE offices (id BIGINT PRIMARY KEY, name TEXT, location TEXT)`,
	`CREATE TABLE doctors (id BIGINT PRIMARY KEY, first_name TEXT, last_name TEXT, specialty TEXT, office_id BIGINT)`,
	`CREATE TABLE patients (id BIGINT PRIMARY KEY, date_of_birth DATE, gender TEXT, ethnicity TEXT,
		race TEXT, insurance_type TEXT, blood_type TEXT)`,
	`CREATE TABLE appointments (id BIGINT PRIMARY KEY, patient_id BIGINT NOT NULL, doctor_id BIGINT NOT NULL,
		office_id BIGINT NOT NULL, appointment_time TIMESTAMPTZ NOT NULL, status TEXT NOT NULL)`,
	`CREATE TABLE referrals (id BIGINT PRIMARY KEY, patient_id BIGINT NOT NULL, referring_doctor_id BIGINT NOT NULL,
		specialist_doctor_id BIGINT NOT NULL, status TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL,
		approved_at TIMESTAMPTZ, linked_visit_id BIGINT)`,
}

// createClinicSchema creates clinic_<id> with empty ledger tables and drops it
// when the test ends.
func createClinicSchema(t *testing.T, ctx context.Context, clinicID string) {
	t.Helper()
	schema, err := db.SchemaName(clinicID)
	if err != nil {
		t.Fatalf("schema name: %v", err)
	}
	if _, err := globalPool.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema %s: %v", schema, err)
	}
	t.Cleanup(func() {
		if _, err := globalPool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})

	err = db.WithClinicConn(ctx, globalPool, clinicID, func(ctx context.Context) error {
		conn := db.ConnFromContext(ctx)
		for _, stmt := range ledgerDDL {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", strings.Fields(stmt)[2], err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create ledger tables: %v", err)
	}
}

// execInClinic runs statements against the clinic's schema.
func execInClinic(t *testing.T, ctx context.Context, clinicID string, stmts ...string) {
	t.Helper()
	err := db.WithClinicConn(ctx, globalPool, clinicID, func(ctx context.Context) error {
		conn := db.ConnFromContext(ctx)
		for _, stmt := range stmts {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("exec in clinic %s: %v", clinicID, err)
	}
}
