package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the synchronization core. The
// reference values come from the protocol contract and must not be
// changed casually: peers rely on the same pacing.
type Config struct {
	// ServerURL is the ws:// or wss:// base of the board server.
	ServerURL string `json:"server_url"`

	// ConnectTimeout bounds the wait for a welcome after dialing.
	ConnectTimeout time.Duration `json:"connect_timeout"`

	// FlushInterval paces stroke point batches (~30 Hz).
	FlushInterval time.Duration `json:"flush_interval"`

	// CursorInterval is the cursor throttle window.
	CursorInterval time.Duration `json:"cursor_interval"`

	// MaxBacklogBytes is the outbound backlog ceiling; batches are
	// deferred, never dropped, while the backlog exceeds it.
	MaxBacklogBytes int `json:"max_backlog_bytes"`

	// AdminAbsenceTimeout is the absolute time a session survives
	// without its admin before the server ends it.
	AdminAbsenceTimeout time.Duration `json:"admin_absence_timeout"`

	// CountdownTick is the admin-absence countdown resolution.
	CountdownTick time.Duration `json:"countdown_tick"`

	// MaxObjects mirrors the server's per-room object cap;
	// ObjectWarnThreshold is where the advisory warning fires.
	MaxObjects          int `json:"max_objects"`
	ObjectWarnThreshold int `json:"object_warn_threshold"`

	// StorePath is the sqlite file holding the persisted identity.
	StorePath string `json:"store_path"`

	// WriteTimeout and PingInterval govern the websocket write pump.
	WriteTimeout time.Duration `json:"write_timeout"`
	PingInterval time.Duration `json:"ping_interval"`
}

// DefaultConfig returns the reference protocol constants.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:           "ws://localhost:8000",
		ConnectTimeout:      3 * time.Second,
		FlushInterval:       33 * time.Millisecond,
		CursorInterval:      50 * time.Millisecond,
		MaxBacklogBytes:     256 * 1024,
		AdminAbsenceTimeout: 600 * time.Second,
		CountdownTick:       time.Second,
		MaxObjects:          5000,
		ObjectWarnThreshold: 4500,
		StorePath:           "./inkboard.db",
		WriteTimeout:        10 * time.Second,
		PingInterval:        30 * time.Second,
	}
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	if c.CursorInterval <= 0 {
		return fmt.Errorf("cursor interval must be positive")
	}
	if c.MaxBacklogBytes <= 0 {
		return fmt.Errorf("max backlog bytes must be positive")
	}
	if c.AdminAbsenceTimeout <= 0 {
		return fmt.Errorf("admin absence timeout must be positive")
	}
	if c.CountdownTick <= 0 {
		return fmt.Errorf("countdown tick must be positive")
	}
	if c.MaxObjects <= 0 {
		return fmt.Errorf("max objects must be positive")
	}
	if c.ObjectWarnThreshold <= 0 || c.ObjectWarnThreshold > c.MaxObjects {
		return fmt.Errorf("object warn threshold must be between 1 and max objects")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive")
	}
	return nil
}

// LoadFromEnv returns the defaults with INKBOARD_* environment
// overrides applied. Invalid values fall back silently to defaults.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if url := os.Getenv("INKBOARD_SERVER_URL"); url != "" {
		config.ServerURL = url
	}
	if path := os.Getenv("INKBOARD_STORE_PATH"); path != "" {
		config.StorePath = path
	}
	if v := os.Getenv("INKBOARD_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ConnectTimeout = d
		}
	}
	if v := os.Getenv("INKBOARD_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.FlushInterval = d
		}
	}
	if v := os.Getenv("INKBOARD_CURSOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.CursorInterval = d
		}
	}
	if v := os.Getenv("INKBOARD_MAX_BACKLOG_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxBacklogBytes = n
		}
	}
	if v := os.Getenv("INKBOARD_ADMIN_ABSENCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.AdminAbsenceTimeout = d
		}
	}
	if v := os.Getenv("INKBOARD_COUNTDOWN_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.CountdownTick = d
		}
	}
	if v := os.Getenv("INKBOARD_MAX_OBJECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxObjects = n
		}
	}
	if v := os.Getenv("INKBOARD_OBJECT_WARN_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.ObjectWarnThreshold = n
		}
	}
	if v := os.Getenv("INKBOARD_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}
	if v := os.Getenv("INKBOARD_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.PingInterval = d
		}
	}

	return config
}
