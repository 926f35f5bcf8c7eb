package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alera-fm/alera-backend/pkg/config"
	"github.com/alera-fm/alera-backend/pkg/db"
	"github.com/alera-fm/alera-backend/pkg/logger"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one %s migration", suffix)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestShippedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestAudioScanMigrationConstraints(t *testing.T) {
	content := readMigration(t, "create_audio_scan_results")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS audio_scan_results",
		"id bigserial PRIMARY KEY",
		"status scan_status NOT NULL DEFAULT 'pending'",
		"FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE",
		"CHECK (confidence IS NULL OR (confidence >= 0 AND confidence <= 100))",
		"WHERE status IN ('pending', 'processing')",
		"DROP TABLE IF EXISTS audio_scan_results",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAIUsageMigrationIsKeyedByUserAndDate(t *testing.T) {
	content := readMigration(t, "create_ai_usage")
	require.Contains(t, content, "PRIMARY KEY (user_id, usage_date)")
	require.Contains(t, content, "CHECK (tokens_used >= 0)")
}

func TestEnumMigrationCoversScanStatuses(t *testing.T) {
	content := readMigration(t, "create_enum_types")
	require.Contains(t, content, "CREATE TYPE scan_status AS ENUM ('pending', 'processing', 'completed', 'flagged', 'failed')")
	require.Contains(t, content, "CREATE TYPE release_scan_status AS ENUM ('scanning', 'scan_passed', 'scan_flagged', 'scan_failed')")
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_only_up.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644))
	require.ErrorContains(t, ValidateDir(dir), "missing")
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Scan Index!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_scan_index.sql"), path)
	require.NoError(t, ValidateDir(dir))
}

func TestMaybeRunDevBootstrapsSQLite(t *testing.T) {
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{Driver: config.DBDriverSQLite, DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: os.Stderr})

	client, err := db.New(ctx, cfg.DB, logg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, MaybeRunDev(ctx, cfg, logg, client))
	require.True(t, client.DB().Migrator().HasTable("audio_scan_results"))
	require.True(t, client.DB().Migrator().HasTable("ai_usage"))
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvProd},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, nil, nil))
}
