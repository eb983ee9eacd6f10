package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/imputr/internal/timesheet"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"TIMELY_ACCOUNT_ID", "TIMELY_EMAIL", "TIMELY_PASSWORD", "TIMELY_API_OAUTH_CLIENT_ID",
		"TIMELY_API_OAUTH_SECRET", "TIMELY_BASE_URL", "IMPUTR_HALF_DAY_POLICY", "IMPUTR_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
	assert.Equal(t, timesheet.WholeDay, cfg.HalfDayPolicy())
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, []string{"CI", "DevOps"}, cfg.Report.SpecialProjects)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[timely]
account_id = "123"
email = "file@example.com"

[report]
client_label = "Acme"
half_day_policy = "whole_day"

[holidays]
country = "GB"
`), 0644))

	t.Setenv("TIMELY_EMAIL", "env@example.com")
	t.Setenv("IMPUTR_ADDR", ":9000")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "123", cfg.Timely.AccountID)
	assert.Equal(t, "env@example.com", cfg.Timely.Email)
	assert.Equal(t, "Acme", cfg.Report.ClientLabel)
	assert.Equal(t, timesheet.WholeDay, cfg.HalfDayPolicy())
	assert.Equal(t, "GB", cfg.Holidays.Country)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	// untouched sections keep their defaults
	assert.Equal(t, "Remote", cfg.Report.LocationLabel)
	assert.Equal(t, 2.0, cfg.Analysis.Sigma)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown policy", func(c *Config) { c.Report.HalfDayPolicy = "sometimes" }, "half_day_policy"},
		{"zero sigma", func(c *Config) { c.Analysis.Sigma = 0 }, "sigma"},
		{"negative per page", func(c *Config) { c.Timely.PerPage = -1 }, "per_page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInvalidPolicyFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMPUTR_HALF_DAY_POLICY", "bogus")

	_, err := LoadFile(filepath.Join(t.TempDir(), "config.toml"))
	assert.Error(t, err)
}

func TestMissingCredentials(t *testing.T) {
	cfg := DefaultConfig()
	assert.Len(t, cfg.MissingCredentials(), 4)

	cfg.Timely = TimelyConfig{AccountID: "1", Email: "a@b.c", Password: "p", ClientID: "c"}
	assert.Empty(t, cfg.MissingCredentials())
}

func TestSaveValuePreservesOtherSettings(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[report]\nclient_label = \"Acme\"\n"), 0644))

	require.NoError(t, saveValue(path, "timely", "account_id", "42"))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "42", cfg.Timely.AccountID)
	assert.Equal(t, "Acme", cfg.Report.ClientLabel)
}
