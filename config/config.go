// Package config loads the process's runtime configuration from
// environment variables (via .env through godotenv in main), keeping
// the teacher's global Init/Get pattern.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"arbigate/venue"
)

var global *Config

// Config is the global configuration loaded once at startup.
type Config struct {
	APIServerPort int
	SessionSecret string

	MonitorTickInterval time.Duration

	Venues map[venue.ID]venue.Config

	NotifierToken  string
	NotifierChatID int64

	AuditDir string // empty disables the CSV audit sink
}

func envVenueConfig(prefix string) (venue.Config, bool) {
	apiKey := os.Getenv(prefix + "_API_KEY")
	apiSecret := os.Getenv(prefix + "_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return venue.Config{}, false
	}

	cfg := venue.Config{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Passphrase: os.Getenv(prefix + "_PASSPHRASE"),
		BaseURL:    os.Getenv(prefix + "_BASE_URL"),
		MarginMode: "cross",
		Leverage:   1,
	}

	if v := os.Getenv(prefix + "_MARGIN_MODE"); v != "" {
		cfg.MarginMode = v
	}
	if v := os.Getenv(prefix + "_LEVERAGE"); v != "" {
		if lev, err := strconv.Atoi(v); err == nil && lev > 0 {
			cfg.Leverage = lev
		}
	}
	if v := os.Getenv(prefix + "_RATE_LIMIT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.RateLimit = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg, true
}

// Init loads configuration from the environment. A venue with no
// credentials configured is simply omitted from cfg.Venues; callers
// decide whether an incomplete venue set is fatal.
func Init() {
	cfg := &Config{
		APIServerPort:       8080,
		MonitorTickInterval: 500 * time.Millisecond,
		Venues:              make(map[venue.ID]venue.Config),
	}

	if v := os.Getenv("API_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.APIServerPort = port
		}
	}

	cfg.SessionSecret = strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "default-session-secret-change-in-production"
	}

	if v := os.Getenv("MONITOR_TICK_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.MonitorTickInterval = time.Duration(ms) * time.Millisecond
		}
	}

	for id, prefix := range map[venue.ID]string{
		venue.M: "M",
		venue.G: "G",
		venue.B: "B",
	} {
		if vc, ok := envVenueConfig(prefix); ok {
			cfg.Venues[id] = vc
		}
	}

	cfg.NotifierToken = os.Getenv("NOTIFIER_TOKEN")
	if v := os.Getenv("NOTIFIER_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.NotifierChatID = id
		}
	}

	cfg.AuditDir = os.Getenv("AUDIT_DIR")

	global = cfg
}

// Get returns the global configuration, loading it on first use.
func Get() *Config {
	if global == nil {
		Init()
	}
	return global
}
