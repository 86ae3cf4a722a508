// Package config loads ObjectMail's configuration from environment
// variables (plus CLI flag overrides), generalizing the teacher's
// config.ReadConfig/CmdConfig JSON-file-plus-flag-overrides pattern
// (config/config.go, cmd/guerrillad/serve.go) to the env-based surface
// spec.md §6 describes.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully resolved set of options recognized by spec.md §6
// plus the ambient knobs this expansion introduces (pool sizes, DB
// connection limits, the optional dedup cache, logging).
type Config struct {
	Port string
	Host string

	DatabaseURL string

	EmailProvider      string
	EmailHost          string
	EmailPort          int
	EmailUser          string
	EmailPassword      string
	EmailDraftsFolder  string
	EmailPoolSize      int

	ChunkSizeMB int

	DBMaxOpenConns int
	DBMaxIdleConns int

	RedisAddr string

	LogLevel  string
	LogOutput string
}

// defaults mirrors the teacher's practice of hard-coding fallbacks inline
// in ReadConfig rather than a separate defaults struct.
func defaults() Config {
	return Config{
		Port:              "9000",
		Host:              "0.0.0.0",
		EmailProvider:     "generic",
		EmailDraftsFolder: "Drafts",
		EmailPoolSize:     4,
		ChunkSizeMB:       18,
		DBMaxOpenConns:    0,
		DBMaxIdleConns:    0,
		LogLevel:          "info",
		LogOutput:         "stderr",
	}
}

// Load reads configuration from environment variables. addrOverride, when
// non-empty, overrides Host/Port as a single "host:port" value — the
// sole CLI override this surface exposes (cmd/objectmaild's --addr flag),
// grounded on the teacher's readConfig layering a command-line iface
// override on top of its JSON-loaded config; here env vars replace the
// JSON file entirely and --addr replaces --config's interface override.
func Load(addrOverride string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := defaults()
	v.SetDefault("port", d.Port)
	v.SetDefault("host", d.Host)
	v.SetDefault("email_provider", d.EmailProvider)
	v.SetDefault("email_drafts_folder", d.EmailDraftsFolder)
	v.SetDefault("email_pool_size", d.EmailPoolSize)
	v.SetDefault("chunk_size_mb", d.ChunkSizeMB)
	v.SetDefault("db_max_open_conns", d.DBMaxOpenConns)
	v.SetDefault("db_max_idle_conns", d.DBMaxIdleConns)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_output", d.LogOutput)

	if addrOverride != "" {
		host, port, err := splitHostPort(addrOverride)
		if err != nil {
			return nil, fmt.Errorf("config: --addr: %w", err)
		}
		v.Set("host", host)
		v.Set("port", port)
	}

	cfg := &Config{
		Port:              v.GetString("port"),
		Host:              v.GetString("host"),
		DatabaseURL:       v.GetString("database_url"),
		EmailProvider:     strings.ToLower(v.GetString("email_provider")),
		EmailHost:         v.GetString("email_host"),
		EmailPort:         v.GetInt("email_port"),
		EmailUser:         v.GetString("email_user"),
		EmailPassword:     v.GetString("email_password"),
		EmailDraftsFolder: v.GetString("email_drafts_folder"),
		EmailPoolSize:     v.GetInt("email_pool_size"),
		ChunkSizeMB:       v.GetInt("chunk_size_mb"),
		DBMaxOpenConns:    v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:    v.GetInt("db_max_idle_conns"),
		RedisAddr:         v.GetString("redis_addr"),
		LogLevel:          v.GetString("log_level"),
		LogOutput:         v.GetString("log_output"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces the invariants spec.md §4.2/§6 call out explicitly
// (chunk size bound) plus the minimal set of required fields needed to
// stand up the storage pipeline, following the teacher's ReadConfig
// which fails fast on an empty AllowedHosts.
func (c *Config) validate() error {
	if c.ChunkSizeMB < 1 || c.ChunkSizeMB > 25 {
		return fmt.Errorf("config: CHUNK_SIZE_MB must be between 1 and 25, got %d", c.ChunkSizeMB)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	switch c.EmailProvider {
	case "gmail", "generic":
	default:
		return fmt.Errorf("config: EMAIL_PROVIDER must be \"gmail\" or \"generic\", got %q", c.EmailProvider)
	}
	if c.EmailProvider == "generic" && c.EmailHost == "" {
		return fmt.Errorf("config: EMAIL_HOST is required for EMAIL_PROVIDER=generic")
	}
	if c.EmailUser == "" {
		return fmt.Errorf("config: EMAIL_USER is required")
	}
	if c.EmailPassword == "" {
		return fmt.Errorf("config: EMAIL_PASSWORD is required")
	}
	if c.EmailPoolSize < 1 {
		return fmt.Errorf("config: EMAIL_POOL_SIZE must be at least 1, got %d", c.EmailPoolSize)
	}
	return nil
}

// ChunkSizeBytes converts the configured MB bound to the byte size the
// chunker expects.
func (c *Config) ChunkSizeBytes() int {
	return c.ChunkSizeMB * 1024 * 1024
}

// Addr is the listen address derived from Host/Port.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// splitHostPort splits a "host:port" flag value, tolerating a bare
// ":port" (meaning "all interfaces") the way net/http's own ListenAndServe
// does.
func splitHostPort(addr string) (host, port string, err error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", "", fmt.Errorf("expected host:port, got %q", addr)
	}
	host, port = addr[:i], addr[i+1:]
	if port == "" {
		return "", "", fmt.Errorf("expected host:port, got %q", addr)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host, port, nil
}
