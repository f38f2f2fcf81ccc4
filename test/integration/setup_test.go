//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/db"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

// TestMain connects to INTEGRATION_DATABASE_URL when set, otherwise starts a
// throwaway Postgres container, and applies every migration once.
func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres: %v\n", err)
		os.Exit(1)
	}

	if _, err := db.NewMigrator(tdb.Pool, tdb.MigrationsDir).Up(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply migrations: %v\n", err)
		cleanup()
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupDatabase(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		var err error
		connStr, stop, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: connStr, MaxConns: 20, MinConns: 1, ApplicationName: "clinic-integration"})
	if err != nil {
		stop()
		return nil, nil, err
	}

	return &testDB{
		Pool:          pool,
		ConnStr:       connStr,
		MigrationsDir: findMigrationsDir(),
	}, func() {
		pool.Close()
		stop()
	}, nil
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	// test/integration -> module root
	return filepath.Join(dir, "..", "..", "migrations")
}

// uniqueSuffix keeps national ids and emails distinct across tests that share
// one database.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

func newIdentityService() *identity.Service {
	return identity.NewService(identity.NewProfessionalRepo(globalDB.Pool), identity.NewPatientRepo(globalDB.Pool))
}

func newSchedulingService() *scheduling.Service {
	return scheduling.NewService(
		scheduling.NewAvailabilityRepo(globalDB.Pool),
		scheduling.NewAppointmentRepo(globalDB.Pool),
		db.NewTxManager(globalDB.Pool),
		scheduling.Config{
			Policy: scheduling.NewRoomPolicy([]string{"PHYSIO_1", "PHYSIO_2", "PHYSIO_3"}, "OFFICE"),
			Cache:  cache.Noop{},
			Logger: zerolog.Nop(),
		},
	)
}

// createTestProfessional inserts a physiotherapist through the service.
func createTestProfessional(t *testing.T, ctx context.Context, lastName string) *identity.Professional {
	t.Helper()
	sfx := uniqueSuffix()
	p, err := newIdentityService().CreateProfessional(ctx, identity.ProfessionalInput{
		FirstName:  "Test",
		LastName:   lastName,
		NationalID: "PRO-" + sfx,
		Email:      "pro-" + sfx + "@clinic.example",
		Role:       identity.RolePhysiotherapist,
	})
	if err != nil {
		t.Fatalf("create test professional: %v", err)
	}
	return p
}

// createTestPatient inserts a patient through the service.
func createTestPatient(t *testing.T, ctx context.Context, lastName string) *identity.Patient {
	t.Helper()
	sfx := uniqueSuffix()
	p, err := newIdentityService().CreatePatient(ctx, identity.PatientInput{
		FirstName:  "Test",
		LastName:   lastName,
		NationalID: "PAT-" + sfx,
		Email:      "pat-" + sfx + "@clinic.example",
	})
	if err != nil {
		t.Fatalf("create test patient: %v", err)
	}
	return p
}

// ptrStr returns a pointer to the given string.
func ptrStr(s string) *string { return &s }
