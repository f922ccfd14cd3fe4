// Package integration runs the ledger against a real PostgreSQL started with
// testcontainers. The tests are skipped with -short.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tilver/backend/internal/infrastructure/config"
	"github.com/tilver/backend/internal/infrastructure/migration"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testDBName     = "ledger_test"
	testDBUser     = "postgres"
	testDBPassword = "ledger123"
)

var (
	// Shared container for all tests in the package
	sharedContainer   testcontainers.Container
	sharedContainerMu sync.Mutex
	sharedConfig      config.DatabaseConfig
)

// TestDB is a migrated database in the shared container
type TestDB struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Config config.DatabaseConfig
	t      *testing.T
}

// NewSharedTestDB returns a connection to the shared container, starting and
// migrating it on first use. Tests isolate themselves by using fresh tenant IDs.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase(testDBName),
			tcpostgres.WithUsername(testDBUser),
			tcpostgres.WithPassword(testDBPassword),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		host, err := container.Host(ctx)
		require.NoError(t, err, "Failed to get container host")
		port, err := container.MappedPort(ctx, "5432/tcp")
		require.NoError(t, err, "Failed to get container port")

		cfg := config.DatabaseConfig{
			Host:            host,
			Port:            port.Int(),
			User:            testDBUser,
			Password:        testDBPassword,
			DBName:          testDBName,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5,
			ConnMaxIdleTime: 1,
		}
		runMigrations(t, &cfg)

		sharedContainer = container
		sharedConfig = cfg
	}

	db, sqlDB := connectToDatabase(t, &sharedConfig)
	tdb := &TestDB{DB: db, SqlDB: sqlDB, Config: sharedConfig, t: t}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return tdb
}

// CountRows counts the rows of table belonging to tenantID
func (tdb *TestDB) CountRows(table string, tenantID fmt.Stringer) int64 {
	tdb.t.Helper()
	var n int64
	err := tdb.DB.Table(table).Where("tenant_id = ?", tenantID.String()).Count(&n).Error
	require.NoError(tdb.t, err, "Failed to count %s", table)
	return n
}

func connectToDatabase(t *testing.T, cfg *config.DatabaseConfig) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(cfg.DSN()), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	return db, sqlDB
}

// runMigrations applies the embedded migrations over a dedicated connection
func runMigrations(t *testing.T, cfg *config.DatabaseConfig) {
	t.Helper()

	sqlDB, err := sql.Open("postgres", cfg.DSN())
	require.NoError(t, err, "Failed to open migration connection")
	defer sqlDB.Close()

	m, err := migration.New(sqlDB, nil)
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
	_ = m.Close()
}

// CleanupSharedContainer terminates the shared container. Call it from TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
	}
}
