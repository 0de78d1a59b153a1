package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/google"
)

const envPrefix = "ATTACHFINDER"

// Token store backends.
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Google GoogleConfig `mapstructure:"google" yaml:"google"`
	Token  TokenConfig  `mapstructure:"token" yaml:"token"`
	Search SearchConfig `mapstructure:"search" yaml:"search"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	MetricsAddr string   `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// ListenAddr returns the host:port the HTTP server binds to.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url" yaml:"redirect_url"`
}

// OAuth returns the OAuth client configuration with the default scopes.
func (g GoogleConfig) OAuth() google.OAuthConfig {
	return google.OAuthConfig{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
	}
}

type TokenConfig struct {
	Store           string `mapstructure:"store" yaml:"store"`
	Path            string `mapstructure:"path" yaml:"path"`
	KeyringDir      string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
	KeyringPassword string `mapstructure:"keyring_password" yaml:"keyring_password"`
}

type SearchConfig struct {
	PageSize      int     `mapstructure:"page_size" yaml:"page_size"`
	MaxDepth      int     `mapstructure:"max_depth" yaml:"max_depth"`
	BatchLimit    int     `mapstructure:"batch_limit" yaml:"batch_limit"`
	BatchEndpoint string  `mapstructure:"batch_endpoint" yaml:"batch_endpoint"`
	APIEndpoint   string  `mapstructure:"api_endpoint" yaml:"api_endpoint"`
	RateLimit     float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	// FromPayload reads attachments from the batch-fetched payload instead
	// of issuing one extra call per message.
	FromPayload bool `mapstructure:"from_payload" yaml:"from_payload"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:        3000,
			MetricsAddr: ":9090",
			CORSOrigins: []string{"*"},
		},
		Google: GoogleConfig{
			RedirectURL: google.OOBRedirectURL,
		},
		Token: TokenConfig{
			Store:      TokenStoreFile,
			Path:       google.DefaultTokenPath(),
			KeyringDir: filepath.Join(xdg.DataHome, "attachfinder", "keyring"),
		},
		Search: SearchConfig{
			PageSize:      gmail.DefaultPageSize,
			MaxDepth:      gmail.DefaultMaxDepth,
			BatchLimit:    gmail.DefaultBatchLimit,
			BatchEndpoint: gmail.DefaultBatchEndpoint,
		},
	}
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "attachfinder", "config.yaml")
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"host":           "server.host",
	"port":           "server.port",
	"metrics-addr":   "server.metrics_addr",
	"cors-origins":   "server.cors_origins",
	"token-store":    "token.store",
	"token-path":     "token.path",
	"page-size":      "search.page_size",
	"max-depth":      "search.max_depth",
	"batch-limit":    "search.batch_limit",
	"batch-endpoint": "search.batch_endpoint",
	"rate-limit":     "search.rate_limit",
	"from-payload":   "search.from_payload",
}

// Load reads the configuration. An empty path selects ConfigPath, which may
// be absent; an explicit path must exist. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = ConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)
	if err := bindEnv(v); err != nil {
		return cfg, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if explicit || !missing {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes cfg as YAML to path, or to ConfigPath when path is empty.
func Save(cfg Config, path string) (string, error) {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

// Redact masks secrets for display.
func Redact(cfg Config) Config {
	masked := cfg
	if masked.Google.ClientSecret != "" {
		masked.Google.ClientSecret = "****"
	}
	if masked.Token.KeyringPassword != "" {
		masked.Token.KeyringPassword = "****"
	}
	return masked
}

// Validate checks the settings that have no usable fallback.
func Validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	switch cfg.Token.Store {
	case TokenStoreFile:
		if cfg.Token.Path == "" {
			return fmt.Errorf("token.path is required for the file token store")
		}
	case TokenStoreKeyring:
	default:
		return fmt.Errorf("token.store must be %q or %q, got %q", TokenStoreFile, TokenStoreKeyring, cfg.Token.Store)
	}
	if cfg.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be positive")
	}
	if cfg.Search.MaxDepth < 0 {
		return fmt.Errorf("search.max_depth must not be negative")
	}
	if cfg.Search.BatchLimit <= 0 {
		return fmt.Errorf("search.batch_limit must be positive")
	}
	if cfg.Search.RateLimit < 0 {
		return fmt.Errorf("search.rate_limit must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.metrics_addr", cfg.Server.MetricsAddr)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)

	v.SetDefault("google.client_id", cfg.Google.ClientID)
	v.SetDefault("google.client_secret", cfg.Google.ClientSecret)
	v.SetDefault("google.redirect_url", cfg.Google.RedirectURL)

	v.SetDefault("token.store", cfg.Token.Store)
	v.SetDefault("token.path", cfg.Token.Path)
	v.SetDefault("token.keyring_dir", cfg.Token.KeyringDir)
	v.SetDefault("token.keyring_password", cfg.Token.KeyringPassword)

	v.SetDefault("search.page_size", cfg.Search.PageSize)
	v.SetDefault("search.max_depth", cfg.Search.MaxDepth)
	v.SetDefault("search.batch_limit", cfg.Search.BatchLimit)
	v.SetDefault("search.batch_endpoint", cfg.Search.BatchEndpoint)
	v.SetDefault("search.api_endpoint", cfg.Search.APIEndpoint)
	v.SetDefault("search.rate_limit", cfg.Search.RateLimit)
	v.SetDefault("search.from_payload", cfg.Search.FromPayload)
}

// bindEnv adds the unprefixed variable names the service has always read.
// The prefixed name is listed first and wins when both are set.
func bindEnv(v *viper.Viper) error {
	aliases := map[string][]string{
		"server.port":          {"ATTACHFINDER_SERVER_PORT", "PORT"},
		"google.client_id":     {"ATTACHFINDER_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID", "CLIENT_ID"},
		"google.client_secret": {"ATTACHFINDER_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET", "CLIENT_SECRET"},
		"google.redirect_url":  {"ATTACHFINDER_GOOGLE_REDIRECT_URL", "REDIRECT_URI"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}
