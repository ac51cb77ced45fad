package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "DEALFLOW_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "dealflow")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	_ = os.Unsetenv("DEALFLOW_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("DEALFLOW_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("DEALFLOW_TEST_ENV_LOAD"))
}

func TestLoadEnv_NoFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	n, err := LoadEnv([]string{".env.missing"})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, c.Database.Driver)
	require.Equal(t, 100, c.Import.OrganizationBatchSize)
	require.Equal(t, 500, c.Import.FundBatchSize)
	require.Equal(t, 10, c.Import.TopK)
	require.Equal(t, "append", c.Import.FundPolicy)
	require.Equal(t, "localhost:3200", c.SocketAddress)
	require.Contains(t, c.Database.Opts, "dbname=dealflow")
	require.NotNil(t, c.Logger())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	cases := map[string]map[string]string{
		"driver":       {"DB_DRIVER": "mysql"},
		"org batch":    {"IMPORT_ORGANIZATION_BATCH_SIZE": "0"},
		"fund batch":   {"IMPORT_FUND_BATCH_SIZE": "-1"},
		"fund policy":  {"IMPORT_FUND_POLICY": "overwrite"},
		"page size":    {"PAGE_SIZE": "600", "MAX_PAGE_SIZE": "500"},
		"sqlite path":  {"DB_DRIVER": "sqlite", "SQLITE_PATH": " "},
		"not a number": {"IMPORT_TOP_K": "ten"},
		"zero top":     {"IMPORT_TOP_K": "0"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLogrusLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"silent":  logrus.PanicLevel,
		"error":   logrus.ErrorLevel,
		"warn":    logrus.WarnLevel,
		"info":    logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"verbose": logrus.ErrorLevel,
	}
	for level, want := range cases {
		c := &Configuration{Log: LogOptions{Level: level}}
		require.Equal(t, want, c.LogrusLogLevel(), level)
	}
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_CorsAndRateLimit(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://app.example.com")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_GLOBAL_RPS", "25")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, c.CorsAllowedOrigins)
	require.True(t, c.RateLimit.Enabled)
	require.Equal(t, 25, c.RateLimit.GlobalRPS)

	t.Setenv("RATE_LIMIT_GLOBAL_RPS", "0")
	_, err = Load()
	require.Error(t, err)
}
