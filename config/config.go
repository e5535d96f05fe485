// Package config loads banklink's settings from a config file, BANKLINK_ environment variables and command-line flags
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/johnstarich/banklink/redactor"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, i.e. BANKLINK_SERVER_PORT
const EnvPrefix = "BANKLINK"

// Config holds every setting
type Config struct {
	Server  ServerConfig
	Data    DataConfig
	Online  OnlineConfig
	Pull    PullConfig
	Sandbox SandboxConfig
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port uint16
	// BaseURL is the server's externally reachable URL, used in aggregator redirects
	BaseURL string `mapstructure:"base_url"`
	// SessionTTL is how long an idle selector session lives
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// UpdateCheck enables the version endpoint's upstream release check
	UpdateCheck bool `mapstructure:"update_check"`
	// Password requires API clients to sign in. Empty disables authentication.
	Password redactor.String
}

// DataConfig configures storage
type DataConfig struct {
	// Dir is the database directory
	Dir string
	// VersionControl commits every change to a git repository in Dir
	VersionControl bool `mapstructure:"version_control"`
}

// OnlineConfig configures the aggregator clients
type OnlineConfig struct {
	GoCardlessEndpoint string `mapstructure:"gocardless_endpoint"`
	PlaidEndpoint      string `mapstructure:"plaid_endpoint"`
	CompanyName        string `mapstructure:"company_name"`
	Language           string
	// Sandbox links Nordigen journals to the sandbox institution
	Sandbox bool
}

// PullConfig configures the periodic statement pull
type PullConfig struct {
	Auto     bool
	Interval time.Duration
}

// SandboxConfig configures the local sandbox aggregator
type SandboxConfig struct {
	Port uint16
	// LinkBase is the sandbox's externally reachable URL
	LinkBase string `mapstructure:"link_base"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("server.update_check", false)
	v.SetDefault("server.password", "")
	v.SetDefault("data.dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "banklink"))
	v.SetDefault("data.version_control", true)
	v.SetDefault("online.gocardless_endpoint", "")
	v.SetDefault("online.plaid_endpoint", "")
	v.SetDefault("online.company_name", "")
	v.SetDefault("online.language", "en")
	v.SetDefault("online.sandbox", false)
	v.SetDefault("pull.auto", true)
	v.SetDefault("pull.interval", 4*time.Hour)
	v.SetDefault("sandbox.port", 8081)
	v.SetDefault("sandbox.link_base", "http://localhost:8081")
}

// Load reads the config file at 'path', or banklink.{toml,yaml,json} in the working or user config directory if path is empty.
// Environment variables override the file, and 'overrides' override both. Overrides use dotted keys, i.e. "server.port".
func Load(path string, overrides map[string]interface{}) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("banklink")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "banklink"))
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return Config{}, errors.Wrap(err, "Error reading config file")
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "Invalid config")
	}
	return c, c.Validate()
}

// Validate checks settings which have no usable fallback
func (c Config) Validate() error {
	if c.Data.Dir == "" {
		return errors.New("Data directory is required")
	}
	if c.Server.BaseURL == "" {
		return errors.New("Server base URL is required")
	}
	if c.Pull.Auto && c.Pull.Interval <= 0 {
		return errors.Errorf("Pull interval must be positive: %s", c.Pull.Interval)
	}
	return nil
}
