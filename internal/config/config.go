package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/christopherklint97/imputr/internal/timesheet"
)

type Config struct {
	Timely        TimelyConfig   `toml:"timely"`
	Report        ReportConfig   `toml:"report"`
	Holidays      HolidayConfig  `toml:"holidays"`
	Analysis      AnalysisConfig `toml:"analysis"`
	Server        ServerConfig   `toml:"server"`
	Notifications NotifyConfig   `toml:"notifications"`
}

type TimelyConfig struct {
	AccountID         string  `toml:"account_id"`
	Email             string  `toml:"email"`
	Password          string  `toml:"password"`
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	PerPage           int     `toml:"per_page"`
}

type ReportConfig struct {
	ClientLabel     string   `toml:"client_label"`
	LocationLabel   string   `toml:"location_label"`
	SpecialProjects []string `toml:"special_projects"`
	HalfDayPolicy   string   `toml:"half_day_policy"` // "per_client" or "whole_day"
	SortNotes       bool     `toml:"sort_notes"`
	OutputDir       string   `toml:"output_dir"`
}

type HolidayConfig struct {
	Country      string   `toml:"country"`       // "FR", "GB", "US" or "" for none
	ExtraSources []string `toml:"extra_sources"` // ICS URLs or file paths
}

type AnalysisConfig struct {
	Sigma float64 `toml:"sigma"`
}

type ServerConfig struct {
	Addr                string `toml:"addr"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

func DefaultConfig() Config {
	return Config{
		Timely: TimelyConfig{
			RequestsPerSecond: 5,
			PerPage:           250,
		},
		Report: ReportConfig{
			LocationLabel:   "Remote",
			SpecialProjects: []string{"CI", "DevOps"},
			HalfDayPolicy:   string(timesheet.DefaultHalfDayPolicy),
			OutputDir:       ".",
		},
		Holidays: HolidayConfig{
			Country: "FR",
		},
		Analysis: AnalysisConfig{
			Sigma: 2,
		},
		Server: ServerConfig{
			Addr:                ":8000",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 60,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "imputr"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads .env from the working directory, then the config file, then
// environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIMELY_ACCOUNT_ID"); v != "" {
		cfg.Timely.AccountID = v
	}
	if v := os.Getenv("TIMELY_EMAIL"); v != "" {
		cfg.Timely.Email = v
	}
	if v := os.Getenv("TIMELY_PASSWORD"); v != "" {
		cfg.Timely.Password = v
	}
	if v := os.Getenv("TIMELY_API_OAUTH_CLIENT_ID"); v != "" {
		cfg.Timely.ClientID = v
	}
	if v := os.Getenv("TIMELY_API_OAUTH_SECRET"); v != "" {
		cfg.Timely.ClientSecret = v
	}
	if v := os.Getenv("TIMELY_BASE_URL"); v != "" {
		cfg.Timely.BaseURL = v
	}
	if v := os.Getenv("IMPUTR_HALF_DAY_POLICY"); v != "" {
		cfg.Report.HalfDayPolicy = v
	}
	if v := os.Getenv("IMPUTR_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate checks the values that cannot be corrected silently.
func (c *Config) Validate() error {
	if _, err := timesheet.ParseHalfDayPolicy(c.Report.HalfDayPolicy); err != nil {
		return fmt.Errorf("report.half_day_policy: %w", err)
	}
	if c.Analysis.Sigma <= 0 {
		return fmt.Errorf("analysis.sigma must be positive, got %v", c.Analysis.Sigma)
	}
	if c.Timely.PerPage < 0 {
		return fmt.Errorf("timely.per_page must not be negative, got %d", c.Timely.PerPage)
	}
	if c.Timely.RequestsPerSecond < 0 {
		return fmt.Errorf("timely.requests_per_second must not be negative, got %v", c.Timely.RequestsPerSecond)
	}
	return nil
}

// HalfDayPolicy returns the parsed half-day policy. Validate has already
// rejected unknown values.
func (c *Config) HalfDayPolicy() timesheet.HalfDayPolicy {
	p, err := timesheet.ParseHalfDayPolicy(c.Report.HalfDayPolicy)
	if err != nil {
		return timesheet.DefaultHalfDayPolicy
	}
	return p
}

// MissingCredentials lists the Timely settings that are still empty.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if strings.TrimSpace(c.Timely.AccountID) == "" {
		missing = append(missing, "timely.account_id (TIMELY_ACCOUNT_ID)")
	}
	if strings.TrimSpace(c.Timely.Email) == "" {
		missing = append(missing, "timely.email (TIMELY_EMAIL)")
	}
	if c.Timely.Password == "" {
		missing = append(missing, "timely.password (TIMELY_PASSWORD)")
	}
	if strings.TrimSpace(c.Timely.ClientID) == "" {
		missing = append(missing, "timely.client_id (TIMELY_API_OAUTH_CLIENT_ID)")
	}
	return missing
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// SaveAccountID persists the Timely account id to the config file using a
// read-modify-write approach to preserve other settings.
func SaveAccountID(accountID string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	return saveValue(path, "timely", "account_id", accountID)
}

func saveValue(path, section, key string, value any) error {
	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	sec, ok := cfg[section].(map[string]any)
	if !ok {
		sec = make(map[string]any)
	}
	sec[key] = value
	cfg[section] = sec

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0600)
}
