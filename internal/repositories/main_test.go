package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/polygonid/academic-bridge/internal/config"
	"github.com/polygonid/academic-bridge/internal/db"
	"github.com/polygonid/academic-bridge/internal/db/tests"
	"github.com/polygonid/academic-bridge/internal/log"
)

var storage *db.Storage

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

// testMain runs the repository tests against a temporary database created in POSTGRES_TEST_DATABASE.
// Without it every test is skipped.
func testMain(m *testing.M) int {
	ctx := context.Background()
	log.Config(log.LevelDebug, log.OutputText, os.Stdout)
	conn := lookupPostgresURL()
	if conn == "" {
		log.Info(ctx, "POSTGRES_TEST_DATABASE not set, skipping repository tests")
		return m.Run()
	}

	cfg := config.Configuration{
		Database: config.Database{
			URL: conn,
		},
	}
	s, teardown, err := tests.NewTestStorage(&cfg)
	defer teardown()
	if err != nil {
		log.Error(ctx, "failed to acquire test database", "err", err)
		return 1
	}
	storage = s
	return m.Run()
}

func lookupPostgresURL() string {
	con, ok := os.LookupEnv("POSTGRES_TEST_DATABASE")
	if !ok {
		return ""
	}
	return con
}

func requireStorage(t *testing.T) {
	t.Helper()
	if storage == nil {
		t.Skip("no test database")
	}
}
