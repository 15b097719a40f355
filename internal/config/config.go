package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/nixlim/tally/internal/calendar"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Environment variables that override file values.
const (
	EnvUserID      = "TALLY_USER_ID"
	EnvDatabaseURL = "TALLY_DATABASE_URL"
)

type Config struct {
	Identity  IdentityConfig  `toml:"identity"`
	Calendar  CalendarConfig  `toml:"calendar"`
	Store     StoreConfig     `toml:"store"`
	Export    ExportConfig    `toml:"export"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Display   DisplayConfig   `toml:"display"`
	Server    ServerConfig    `toml:"server"`
	Receiver  ReceiverConfig  `toml:"receiver"`
	Events    EventsConfig    `toml:"events"`
}

type IdentityConfig struct {
	UserID      string `toml:"user_id"`
	SessionFile string `toml:"session_file"`
}

type CalendarConfig struct {
	Timezone  string `toml:"timezone"`
	StartDate string `toml:"start_date"`
}

type StoreConfig struct {
	Backend     string `toml:"backend"`
	DBPath      string `toml:"db_path"`
	DatabaseURL string `toml:"database_url"`
	PageSize    int    `toml:"page_size"`
	MaxOffset   int    `toml:"max_offset"`
}

type ExportConfig struct {
	TimestampColumns []string `toml:"timestamp_columns"`
	Dir              string   `toml:"dir"`
	S3Bucket         string   `toml:"s3_bucket"`
	S3Prefix         string   `toml:"s3_prefix"`
	S3Region         string   `toml:"s3_region"`
	S3Endpoint       string   `toml:"s3_endpoint"`
}

type SchedulerConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

type DisplayConfig struct {
	RefreshRateMS      int `toml:"refresh_rate_ms"`
	ActivityBufferSize int `toml:"activity_buffer_size"`
}

type ServerConfig struct {
	HTTPAddr string `toml:"http_addr"`
}

type ReceiverConfig struct {
	Enabled  bool   `toml:"enabled"`
	GRPCPort int    `toml:"grpc_port"`
	HTTPPort int    `toml:"http_port"`
	Bind     string `toml:"bind"`
}

type EventsConfig struct {
	NATSURL string `toml:"nats_url"`
	Subject string `toml:"subject"`
}

// StartDay returns the parsed start date. It is valid after a successful load.
func (c CalendarConfig) StartDay() calendar.Day {
	return calendar.Day(c.StartDate)
}

// Interval returns the tick interval as a duration.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tally", "config.toml")
}

// Load reads the default config file and applies environment overrides.
func Load() (*LoadResult, error) {
	return LoadFrom(defaultConfigPath())
}

// LoadFrom reads the config file at path. A missing file yields defaults.
// Environment overrides are applied before validation.
func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return load(string(data), os.Getenv)
}

// LoadFromString parses data without consulting the environment.
func LoadFromString(data string) (*LoadResult, error) {
	return load(data, func(string) string { return "" })
}

var knownTopLevel = map[string]bool{
	"identity":  true,
	"calendar":  true,
	"store":     true,
	"export":    true,
	"scheduler": true,
	"display":   true,
	"server":    true,
	"receiver":  true,
	"events":    true,
}

func load(data string, getenv func(string) string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	if data != "" {
		var raw map[string]any
		if _, err := toml.Decode(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}

		for key := range raw {
			if !knownTopLevel[key] {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
			}
		}

		var tf tomlFile
		md, err := toml.Decode(data, &tf)
		if err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		for _, key := range md.Undecoded() {
			if len(key) > 1 && knownTopLevel[key[0]] {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key.String()))
			}
		}

		mergeFromRaw(&result.Config, &tf, raw)
	}

	applyEnv(&result.Config, getenv)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

type tomlFile struct {
	Identity  *IdentityConfig  `toml:"identity"`
	Calendar  *CalendarConfig  `toml:"calendar"`
	Store     *StoreConfig     `toml:"store"`
	Export    *ExportConfig    `toml:"export"`
	Scheduler *SchedulerConfig `toml:"scheduler"`
	Display   *DisplayConfig   `toml:"display"`
	Server    *ServerConfig    `toml:"server"`
	Receiver  *ReceiverConfig  `toml:"receiver"`
	Events    *EventsConfig    `toml:"events"`
}

// mergeFromRaw copies only the keys present in the file so unset keys keep
// their defaults.
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Identity != nil {
		if section, ok := rawSection(raw, "identity"); ok {
			if _, exists := section["user_id"]; exists {
				cfg.Identity.UserID = tf.Identity.UserID
			}
			if _, exists := section["session_file"]; exists {
				cfg.Identity.SessionFile = tf.Identity.SessionFile
			}
		}
	}
	if tf.Calendar != nil {
		if section, ok := rawSection(raw, "calendar"); ok {
			if _, exists := section["timezone"]; exists {
				cfg.Calendar.Timezone = tf.Calendar.Timezone
			}
			if _, exists := section["start_date"]; exists {
				cfg.Calendar.StartDate = tf.Calendar.StartDate
			}
		}
	}
	if tf.Store != nil {
		if section, ok := rawSection(raw, "store"); ok {
			if _, exists := section["backend"]; exists {
				cfg.Store.Backend = tf.Store.Backend
			}
			if _, exists := section["db_path"]; exists {
				cfg.Store.DBPath = tf.Store.DBPath
			}
			if _, exists := section["database_url"]; exists {
				cfg.Store.DatabaseURL = tf.Store.DatabaseURL
			}
			if _, exists := section["page_size"]; exists {
				cfg.Store.PageSize = tf.Store.PageSize
			}
			if _, exists := section["max_offset"]; exists {
				cfg.Store.MaxOffset = tf.Store.MaxOffset
			}
		}
	}
	if tf.Export != nil {
		if section, ok := rawSection(raw, "export"); ok {
			if _, exists := section["timestamp_columns"]; exists {
				cfg.Export.TimestampColumns = tf.Export.TimestampColumns
			}
			if _, exists := section["dir"]; exists {
				cfg.Export.Dir = tf.Export.Dir
			}
			if _, exists := section["s3_bucket"]; exists {
				cfg.Export.S3Bucket = tf.Export.S3Bucket
			}
			if _, exists := section["s3_prefix"]; exists {
				cfg.Export.S3Prefix = tf.Export.S3Prefix
			}
			if _, exists := section["s3_region"]; exists {
				cfg.Export.S3Region = tf.Export.S3Region
			}
			if _, exists := section["s3_endpoint"]; exists {
				cfg.Export.S3Endpoint = tf.Export.S3Endpoint
			}
		}
	}
	if tf.Scheduler != nil {
		if section, ok := rawSection(raw, "scheduler"); ok {
			if _, exists := section["interval_seconds"]; exists {
				cfg.Scheduler.IntervalSeconds = tf.Scheduler.IntervalSeconds
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["refresh_rate_ms"]; exists {
				cfg.Display.RefreshRateMS = tf.Display.RefreshRateMS
			}
			if _, exists := section["activity_buffer_size"]; exists {
				cfg.Display.ActivityBufferSize = tf.Display.ActivityBufferSize
			}
		}
	}
	if tf.Server != nil {
		if section, ok := rawSection(raw, "server"); ok {
			if _, exists := section["http_addr"]; exists {
				cfg.Server.HTTPAddr = tf.Server.HTTPAddr
			}
		}
	}
	if tf.Receiver != nil {
		if section, ok := rawSection(raw, "receiver"); ok {
			if _, exists := section["enabled"]; exists {
				cfg.Receiver.Enabled = tf.Receiver.Enabled
			}
			if _, exists := section["grpc_port"]; exists {
				cfg.Receiver.GRPCPort = tf.Receiver.GRPCPort
			}
			if _, exists := section["http_port"]; exists {
				cfg.Receiver.HTTPPort = tf.Receiver.HTTPPort
			}
			if _, exists := section["bind"]; exists {
				cfg.Receiver.Bind = tf.Receiver.Bind
			}
		}
	}
	if tf.Events != nil {
		if section, ok := rawSection(raw, "events"); ok {
			if _, exists := section["nats_url"]; exists {
				cfg.Events.NATSURL = tf.Events.NATSURL
			}
			if _, exists := section["subject"]; exists {
				cfg.Events.Subject = tf.Events.Subject
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvUserID); v != "" {
		cfg.Identity.UserID = v
	}
	if v := getenv(EnvDatabaseURL); v != "" {
		cfg.Store.DatabaseURL = v
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Identity.UserID != "" {
		if _, err := uuid.Parse(cfg.Identity.UserID); err != nil {
			errs = append(errs, fmt.Sprintf("identity user_id must be a UUID, got %q", cfg.Identity.UserID))
		}
	}

	if _, err := time.LoadLocation(cfg.Calendar.Timezone); err != nil || cfg.Calendar.Timezone == "" {
		errs = append(errs, fmt.Sprintf("calendar timezone must be an IANA zone name, got %q", cfg.Calendar.Timezone))
	}
	if _, err := calendar.Parse(cfg.Calendar.StartDate); err != nil {
		errs = append(errs, fmt.Sprintf("calendar start_date must be YYYY-MM-DD, got %q", cfg.Calendar.StartDate))
	}

	switch cfg.Store.Backend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if cfg.Store.DatabaseURL == "" {
			errs = append(errs, "store database_url is required for the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store backend must be sqlite, postgres or memory, got %q", cfg.Store.Backend))
	}
	if cfg.Store.PageSize < 1 {
		errs = append(errs, fmt.Sprintf("store page_size must be positive, got %d", cfg.Store.PageSize))
	}
	if cfg.Store.MaxOffset < 0 {
		errs = append(errs, fmt.Sprintf("store max_offset must not be negative, got %d", cfg.Store.MaxOffset))
	}

	if len(cfg.Export.TimestampColumns) == 0 {
		errs = append(errs, "export timestamp_columns must list at least one column")
	}
	for _, col := range cfg.Export.TimestampColumns {
		if strings.TrimSpace(col) == "" {
			errs = append(errs, "export timestamp_columns must not contain empty names")
			break
		}
	}

	if cfg.Scheduler.IntervalSeconds < 1 {
		errs = append(errs, fmt.Sprintf("scheduler interval_seconds must be positive, got %d", cfg.Scheduler.IntervalSeconds))
	}

	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}
	if cfg.Display.ActivityBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("activity_buffer_size must be positive, got %d", cfg.Display.ActivityBufferSize))
	}

	if cfg.Server.HTTPAddr == "" {
		errs = append(errs, "server http_addr must not be empty")
	}

	if cfg.Receiver.GRPCPort < 1 || cfg.Receiver.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("grpc_port must be 1-65535, got %d", cfg.Receiver.GRPCPort))
	}
	if cfg.Receiver.HTTPPort < 1 || cfg.Receiver.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("http_port must be 1-65535, got %d", cfg.Receiver.HTTPPort))
	}

	if cfg.Events.Subject == "" {
		errs = append(errs, "events subject must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}
