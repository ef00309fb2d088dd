// Package config loads screener settings from a YAML file, a .env file and
// SCREENER_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/komsit37/screener/pkg/screener/feed"
)

type Config struct {
	API   APIConfig   `mapstructure:"api"`
	Feed  FeedConfig  `mapstructure:"feed"`
	Prefs PrefsConfig `mapstructure:"prefs"`
	UI    UIConfig    `mapstructure:"ui"`
	Order OrderConfig `mapstructure:"order"`
	Log   LogConfig   `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	WSURL   string `mapstructure:"ws_url"`
}

type FeedConfig struct {
	Transport string          `mapstructure:"transport"` // poll, push
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
}

type ReconnectConfig struct {
	Initial time.Duration `mapstructure:"initial"`
	Max     time.Duration `mapstructure:"max"`
	Factor  float64       `mapstructure:"factor"`
}

type PrefsConfig struct {
	Backend string `mapstructure:"backend"` // file, sqlite, memory
	Path    string `mapstructure:"path"`
}

type UIConfig struct {
	Locale string `mapstructure:"locale"` // ru, en
	Layout string `mapstructure:"layout"` // auto, table, cards, json, syms
	Color  bool   `mapstructure:"color"`
}

type OrderConfig struct {
	Account string `mapstructure:"account"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Backoff converts the reconnect settings for the feed package.
func (r ReconnectConfig) Backoff() feed.Backoff {
	return feed.Backoff{Initial: r.Initial, Max: r.Max, Factor: r.Factor}
}

// DefaultConfigDir returns ~/.config/screener.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "screener")
	}
	return filepath.Join(home, ".config", "screener")
}

func setDefaults(v *viper.Viper) {
	dir := DefaultConfigDir()
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.ws_url", "")
	v.SetDefault("feed.transport", "poll")
	v.SetDefault("feed.reconnect.initial", feed.DefaultBackoff.Initial)
	v.SetDefault("feed.reconnect.max", feed.DefaultBackoff.Max)
	v.SetDefault("feed.reconnect.factor", feed.DefaultBackoff.Factor)
	v.SetDefault("prefs.backend", "file")
	v.SetDefault("prefs.path", filepath.Join(dir, "prefs.yaml"))
	v.SetDefault("ui.locale", "ru")
	v.SetDefault("ui.layout", "auto")
	v.SetDefault("ui.color", true)
	v.SetDefault("order.account", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads path, or config.yaml from DefaultConfigDir when path is empty.
// A missing default file is not an error; a missing explicit one is.
// Variables from ./.env are exported first without overriding the
// environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// applyDerived fills the websocket address from the base URL when unset.
func (c *Config) applyDerived() {
	if c.API.WSURL != "" {
		return
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/screener"
	c.API.WSURL = u.String()
}

func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("api.base_url must be an http(s) url, got %q", c.API.BaseURL))
	}
	switch c.Feed.Transport {
	case "poll":
	case "push":
		if u, err := url.Parse(c.API.WSURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("api.ws_url must be a ws(s) url, got %q", c.API.WSURL))
		}
	default:
		errs = append(errs, fmt.Errorf("feed.transport must be poll or push, got %q", c.Feed.Transport))
	}
	if c.Feed.Reconnect.Initial <= 0 || c.Feed.Reconnect.Max < c.Feed.Reconnect.Initial || c.Feed.Reconnect.Factor < 1 {
		errs = append(errs, fmt.Errorf("feed.reconnect needs 0 < initial <= max and factor >= 1"))
	}
	switch c.Prefs.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Prefs.Path == "" {
			errs = append(errs, fmt.Errorf("prefs.path is required for the %s backend", c.Prefs.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("prefs.backend must be file, sqlite or memory, got %q", c.Prefs.Backend))
	}
	if c.UI.Locale != "ru" && c.UI.Locale != "en" {
		errs = append(errs, fmt.Errorf("ui.locale must be ru or en, got %q", c.UI.Locale))
	}
	switch c.UI.Layout {
	case "auto", "table", "cards", "json", "syms":
	default:
		errs = append(errs, fmt.Errorf("ui.layout %q is not supported", c.UI.Layout))
	}
	return errors.Join(errs...)
}
