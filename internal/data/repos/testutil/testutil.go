package testutil

import (
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/emineral/emineral-backend/internal/domain"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

// Logger builds the quiet test logger, failing the test instead of returning
// the construction error.
func Logger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init test logger: %v", err)
	}
	return log
}

var (
	dbOnce sync.Once
	dbConn *gorm.DB
	dbErr  error
)

// DB returns a shared connection to the test database, or skips the test when
// TEST_POSTGRES_DSN is not set.
func DB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping database test")
	}

	dbOnce.Do(func() {
		dbConn, dbErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
			TranslateError: true,
		})
		if dbErr != nil {
			return
		}
		dbErr = dbConn.AutoMigrate(
			&domain.User{},
			&domain.Record{},
			&domain.ScanLog{},
			&domain.AuditLog{},
			&domain.FormTemplate{},
		)
	})
	if dbErr != nil {
		t.Fatalf("connecting test database: %v", dbErr)
	}
	return dbConn
}

// Tx wraps a test in a transaction that is rolled back on cleanup, so tests
// never leak rows into the shared database.
func Tx(t *testing.T, db *gorm.DB) *gorm.DB {
	t.Helper()

	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("beginning test transaction: %v", tx.Error)
	}
	t.Cleanup(func() {
		tx.Rollback()
	})
	return tx
}
