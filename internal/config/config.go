package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/forgemaster-mtg/mtglibrary/internal/version"
)

// Config represents the application configuration.
type Config struct {
	// HTTP API server
	Server ServerConfig `toml:"server"`

	// Deck storage
	Database DatabaseConfig `toml:"database"`

	// Card catalog
	Scryfall ScryfallConfig `toml:"scryfall"`

	// Import pipeline
	Import ImportConfig `toml:"import"`

	// Third-party deck sites served by the URL import proxy
	Sources SourcesConfig `toml:"sources"`

	// Inbox directory watcher
	Watch WatchConfig `toml:"watch"`

	// Database backups
	Backup BackupConfig `toml:"backup"`

	// Logging
	Log LogConfig `toml:"log"`
}

// ServerConfig contains API server settings.
type ServerConfig struct {
	Port            int      `toml:"port"`
	FrontendOrigins []string `toml:"frontend_origins"` // CORS allow list
}

// DatabaseConfig contains deck storage settings.
type DatabaseConfig struct {
	Path        string `toml:"path"`         // SQLite file; "" uses the default location
	AutoMigrate bool   `toml:"auto_migrate"` // Apply migrations on open
}

// ScryfallConfig contains card catalog client settings.
type ScryfallConfig struct {
	BaseURL   string  `toml:"base_url"`
	UserAgent string  `toml:"user_agent"`
	RateLimit float64 `toml:"rate_limit"` // Requests per second (0 = unlimited)
	Timeout   string  `toml:"timeout"`    // HTTP timeout (e.g., "30s")
}

// ImportConfig contains import pipeline settings.
type ImportConfig struct {
	ProxyURL      string `toml:"proxy_url"`       // URL import proxy endpoint
	ChunkSize     int    `toml:"chunk_size"`      // Entries per batch lookup (1-75)
	RetryNotFound bool   `toml:"retry_not_found"` // Retry misses by front-face name
}

// SourcesConfig contains deck site API endpoints.
type SourcesConfig struct {
	MoxfieldAPI  string  `toml:"moxfield_api"`
	ArchidektAPI string  `toml:"archidekt_api"`
	RateLimit    float64 `toml:"rate_limit"` // Requests per second per process
	Timeout      string  `toml:"timeout"`
}

// WatchConfig contains inbox watcher settings.
type WatchConfig struct {
	InboxDir     string `toml:"inbox_dir"`
	PollInterval string `toml:"poll_interval"` // Fallback scan interval (e.g., "5s")
	UseFsnotify  bool   `toml:"use_fsnotify"`  // Use file system events
}

// BackupConfig contains database backup settings.
type BackupConfig struct {
	Dir      string `toml:"dir"`      // "" uses a backups directory next to the database
	Interval string `toml:"interval"` // Scheduled backups while serving; "" disables
	Keep     int    `toml:"keep"`     // Backups kept by scheduled pruning (0 = all)
	Encrypt  bool   `toml:"encrypt"`  // Encrypt with the password from BackupPasswordEnv
}

// BackupPasswordEnv names the environment variable holding the backup
// password. It is never read from the config file.
const BackupPasswordEnv = "MTGLIBRARY_BACKUP_PASSWORD"

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json or console
}

const (
	maxChunkSize = 75
	configDir    = ".mtglibrary"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			FrontendOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Path:        "",
			AutoMigrate: true,
		},
		Scryfall: ScryfallConfig{
			BaseURL:   "https://api.scryfall.com",
			UserAgent: version.UserAgent(),
			RateLimit: 10,
			Timeout:   "30s",
		},
		Import: ImportConfig{
			ProxyURL:      "http://localhost:8080/api/v1/import/url",
			ChunkSize:     maxChunkSize,
			RetryNotFound: true,
		},
		Sources: SourcesConfig{
			MoxfieldAPI:  "https://api2.moxfield.com",
			ArchidektAPI: "https://archidekt.com",
			RateLimit:    2,
			Timeout:      "20s",
		},
		Watch: WatchConfig{
			InboxDir:     "",
			PollInterval: "5s",
			UseFsnotify:  true,
		},
		Backup: BackupConfig{
			Dir:      "",
			Interval: "",
			Keep:     7,
			Encrypt:  false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Dir returns the application data directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, configDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return dir, nil
}

// DefaultPath returns the path to the default configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from path, or from DefaultPath when path is
// empty. Returns default config if the file doesn't exist. Keys missing from
// the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if _, err := url.ParseRequestURI(c.Scryfall.BaseURL); err != nil {
		return fmt.Errorf("invalid scryfall base url %q: %w", c.Scryfall.BaseURL, err)
	}
	if c.Scryfall.RateLimit < 0 {
		return fmt.Errorf("scryfall rate limit cannot be negative: %v", c.Scryfall.RateLimit)
	}
	if _, err := time.ParseDuration(c.Scryfall.Timeout); err != nil {
		return fmt.Errorf("invalid scryfall timeout %q: %w", c.Scryfall.Timeout, err)
	}

	if c.Import.ChunkSize < 1 || c.Import.ChunkSize > maxChunkSize {
		return fmt.Errorf("import chunk size must be between 1 and %d: %d", maxChunkSize, c.Import.ChunkSize)
	}
	if c.Import.ProxyURL != "" {
		if _, err := url.ParseRequestURI(c.Import.ProxyURL); err != nil {
			return fmt.Errorf("invalid import proxy url %q: %w", c.Import.ProxyURL, err)
		}
	}

	if c.Sources.RateLimit < 0 {
		return fmt.Errorf("sources rate limit cannot be negative: %v", c.Sources.RateLimit)
	}
	if _, err := time.ParseDuration(c.Sources.Timeout); err != nil {
		return fmt.Errorf("invalid sources timeout %q: %w", c.Sources.Timeout, err)
	}

	if _, err := time.ParseDuration(c.Watch.PollInterval); err != nil {
		return fmt.Errorf("invalid poll interval %q: %w", c.Watch.PollInterval, err)
	}

	if c.Backup.Interval != "" {
		d, err := time.ParseDuration(c.Backup.Interval)
		if err != nil {
			return fmt.Errorf("invalid backup interval %q: %w", c.Backup.Interval, err)
		}
		if d <= 0 {
			return fmt.Errorf("backup interval must be positive: %v", d)
		}
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup keep cannot be negative: %d", c.Backup.Keep)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}

	return nil
}

// DatabasePath returns the configured database path, or the default
// location inside the application directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library.db"), nil
}

// GetScryfallTimeout returns the catalog HTTP timeout as a duration.
func (c *Config) GetScryfallTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Scryfall.Timeout)
}

// GetSourcesTimeout returns the deck site HTTP timeout as a duration.
func (c *Config) GetSourcesTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Sources.Timeout)
}

// GetWatchPollInterval returns the inbox scan interval as a duration.
func (c *Config) GetWatchPollInterval() (time.Duration, error) {
	return time.ParseDuration(c.Watch.PollInterval)
}

// GetBackupInterval returns the scheduled backup interval. Zero means
// scheduled backups are disabled.
func (c *Config) GetBackupInterval() (time.Duration, error) {
	if c.Backup.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Backup.Interval)
}

// BackupPassword returns the backup password from the environment. It
// fails when encryption is enabled and no password is set.
func (c *Config) BackupPassword() (string, error) {
	if !c.Backup.Encrypt {
		return "", nil
	}
	password := os.Getenv(BackupPasswordEnv)
	if password == "" {
		return "", fmt.Errorf("backup encryption is enabled but %s is not set", BackupPasswordEnv)
	}
	return password, nil
}
