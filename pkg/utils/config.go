package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"releasehub/pkg/database"
)

// ConfigPathEnv overrides the config file location.
const ConfigPathEnv = "RELEASEHUB_CONFIG"

const envPrefix = "RELEASEHUB_"

var DefaultConfigPaths = []string{
	"releasehub.yaml",
	"config.yaml",
	"/etc/releasehub/config.yaml",
}

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	State    StateConfig    `koanf:"state"`
	Steam    SteamConfig    `koanf:"steam"`
	Sync     SyncConfig     `koanf:"sync"`
	Calendar CalendarConfig `koanf:"calendar"`
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type StateConfig struct {
	Backend string `koanf:"backend" validate:"oneof=file badger memory"`
	Dir     string `koanf:"dir" validate:"required_unless=Backend memory"`
}

type SteamConfig struct {
	APIKey          string        `koanf:"api_key"`
	CatalogURL      string        `koanf:"catalog_url" validate:"required,url"`
	AppListURL      string        `koanf:"app_list_url" validate:"required,url"`
	DetailsURL      string        `koanf:"details_url" validate:"required,url"`
	Country         string        `koanf:"country"`
	Language        string        `koanf:"language"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	PageSize        int           `koanf:"page_size" validate:"gte=1"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type SyncConfig struct {
	BatchSize       int           `koanf:"batch_size" validate:"gte=1"`
	RequestInterval time.Duration `koanf:"request_interval" validate:"gte=0"`
	MaxAttempts     int           `koanf:"max_attempts" validate:"gte=1"`
	BackoffBase     time.Duration `koanf:"backoff_base" validate:"gte=0"`
	MaxGenreRetries int           `koanf:"max_genre_retries" validate:"gte=1"`
	Interval        time.Duration `koanf:"interval" validate:"gt=0"`
	Periodic        bool          `koanf:"periodic"`
}

type CalendarConfig struct {
	ExcludedGenres []string `koanf:"excluded_genres" validate:"dive,numeric"`
}

type ServerConfig struct {
	Addr     string `koanf:"addr" validate:"required"`
	GRPCAddr string `koanf:"grpc_addr" validate:"required"`
	// FeedAddr is the TCP event feed; empty disables it.
	FeedAddr string `koanf:"feed_addr"`
}

type AuthConfig struct {
	JWTSecret   string        `koanf:"jwt_secret" validate:"required"`
	JWTIssuer   string        `koanf:"jwt_issuer"`
	JWTDuration time.Duration `koanf:"jwt_ttl" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: database.DefaultConfig().Path},
		State:    StateConfig{Backend: "file", Dir: "data"},
		Steam: SteamConfig{
			CatalogURL:      "https://api.steampowered.com/IStoreService/GetAppList/v1/",
			AppListURL:      "https://api.steampowered.com/ISteamApps/GetAppList/v2/",
			DetailsURL:      "https://store.steampowered.com/api/appdetails",
			Country:         "us",
			Language:        "ru",
			RequestTimeout:  5 * time.Second,
			PageSize:        10000,
			BreakerFailures: 10,
			BreakerTimeout:  time.Minute,
		},
		Sync: SyncConfig{
			BatchSize:       50,
			RequestInterval: 2500 * time.Millisecond,
			MaxAttempts:     3,
			BackoffBase:     time.Second,
			MaxGenreRetries: 5,
			Interval:        6 * time.Hour,
		},
		Calendar: CalendarConfig{ExcludedGenres: []string{"4", "23", "57", "55", "51"}},
		Server:   ServerConfig{Addr: ":8080", GRPCAddr: ":9090", FeedAddr: ":7070"},
		Auth: AuthConfig{
			// dev default, override with RELEASEHUB_AUTH_JWT_SECRET
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "releasehub",
			JWTDuration: 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig layers defaults, an optional YAML file and RELEASEHUB_* env vars,
// in that order of precedence, then validates the result.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if err := splitListValues(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// listKeys are slice settings; env vars carry them comma-separated.
var listKeys = []string{
	"calendar.excluded_genres",
}

// splitListValues turns "4, 23" into ["4" "23"] for list keys set from the
// environment. An empty value clears the list.
func splitListValues(k *koanf.Koanf) error {
	for _, key := range listKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		items := []string{}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		if err := k.Set(key, items); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// envKey maps RELEASEHUB_SYNC_BATCH_SIZE to sync.batch_size.
// RELEASEHUB_DB_PATH is accepted as an alias for database.path.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	switch key {
	case "db_path":
		return "database.path"
	case "config":
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return ""
	}
	return section + "." + rest
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
