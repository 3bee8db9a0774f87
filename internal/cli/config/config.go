package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/recordkit/internal/changefeed"
	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/logging"
	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

// Config represents the recordkit configuration
type Config struct {
	Logging     logging.Config               `mapstructure:"logging"`
	FatalPolicy string                       `mapstructure:"fatal_policy"`
	Schemas     string                       `mapstructure:"schemas"`
	Datasources map[string]datasource.Config `mapstructure:"datasources"`
	Changefeed  changefeed.Config            `mapstructure:"changefeed"`
	Server      ServerConfig                 `mapstructure:"server"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load loads the configuration from recordkit.yml or recordkit.yaml in the
// working directory
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads the configuration from path. An empty path searches the
// working directory; a missing file there means defaults only.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.development", false)
	v.SetDefault("fatal_policy", "propagate")
	v.SetDefault("schemas", "entities.yml")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("changefeed.topic", "recordkit.changes")
	v.SetDefault("changefeed.batch_size", 100)
	v.SetDefault("changefeed.batch_timeout", time.Second)
	v.SetDefault("changefeed.write_timeout", 10*time.Second)
	v.SetDefault("changefeed.required_acks", 1)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("recordkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment variables override the file: RECORDKIT_SERVER_PORT
	v.SetEnvPrefix("RECORDKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Schemas != "" && !filepath.IsAbs(config.Schemas) && v.ConfigFileUsed() != "" {
		config.Schemas = filepath.Join(filepath.Dir(v.ConfigFileUsed()), config.Schemas)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// InProject checks if the current directory holds a recordkit config
func InProject() bool {
	for _, name := range []string{"recordkit.yml", "recordkit.yaml"} {
		if _, err := os.Stat(name); err == nil {
			return true
		}
	}
	return false
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := fault.ParseHandler(cfg.FatalPolicy); err != nil {
		return fmt.Errorf("fatal_policy: %w", err)
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", cfg.Server.Port)
	}
	for name, ds := range cfg.Datasources {
		if err := ds.Validate(); err != nil {
			return fmt.Errorf("datasources.%s: %w", name, err)
		}
	}
	if len(cfg.Changefeed.Brokers) > 0 && cfg.Changefeed.Topic == "" {
		return fmt.Errorf("changefeed.topic is required when brokers are set")
	}
	return nil
}
