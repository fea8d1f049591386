package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/output"
	"github.com/kerbaras/mangas-dl/pkg/services"
)

// EnvPrefix prefixes every environment override, e.g. MANGAS_DL_JOBS.
const EnvPrefix = "MANGAS_DL_"

var configTemplate = `# config.toml

# Pages downloaded at the same time
#
# Default: 4
#
#jobs = 4

# Space requests to a source
#
# Default: false
#
#throttle = false
#throttleInterval = "500ms"

# Output format: "auto", "cbz", "zip" or "dir"
#
# Default: "auto"
#
#format = "auto"

# Preferred translation language
#
# Default: "en"
#
#language = "en"

# Log level
#
# Default: "INFO"
#
# Options: "ERROR", "WARN", "INFO", "DEBUG", "TRACE"
#
#logLevel = "INFO"

# Log file, logs go to stderr when empty
#
#logPath = ""
#logMaxSize = 50
#logMaxBackups = 3

# Download library database, empty disables it
#
#libraryPath = "~/.mangas-dl/library.db"
`

type Config struct {
	Jobs             int           `mapstructure:"jobs" env:"JOBS"`
	Throttle         bool          `mapstructure:"throttle" env:"THROTTLE"`
	ThrottleInterval time.Duration `mapstructure:"throttleInterval" env:"THROTTLE_INTERVAL"`
	Format           string        `mapstructure:"format" env:"FORMAT"`
	Branch           string        `mapstructure:"branch" env:"BRANCH"`
	Language         string        `mapstructure:"language" env:"LANGUAGE"`
	LogLevel         string        `mapstructure:"logLevel" env:"LOG_LEVEL"`
	LogPath          string        `mapstructure:"logPath" env:"LOG_PATH"`
	LogMaxSize       int           `mapstructure:"logMaxSize" env:"LOG_MAX_SIZE"` // in megabytes
	LogMaxBackups    int           `mapstructure:"logMaxBackups" env:"LOG_MAX_BACKUPS"`
	LibraryPath      string        `mapstructure:"libraryPath" env:"LIBRARY_PATH"`
	UserAgent        string        `mapstructure:"userAgent" env:"USER_AGENT"`
	Timeout          time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
	RetryAttempts    int           `mapstructure:"retryAttempts" env:"RETRY_ATTEMPTS"`
	RetryDelay       time.Duration `mapstructure:"retryDelay" env:"RETRY_DELAY"`
	MaxRetryDelay    time.Duration `mapstructure:"maxRetryDelay" env:"MAX_RETRY_DELAY"`
	CompressionLevel int           `mapstructure:"compressionLevel" env:"COMPRESSION_LEVEL"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" env:"-"`
}

func Defaults() *Config {
	c := &Config{
		Jobs:             services.DefaultParallelism,
		ThrottleInterval: services.DefaultThrottleInterval,
		Language:         "en",
		LogLevel:         "INFO",
		LogMaxSize:       50,
		LogMaxBackups:    3,
		Timeout:          60 * time.Second,
		RetryAttempts:    services.DefaultRetryAttempts,
		RetryDelay:       services.DefaultRetryDelay,
		MaxRetryDelay:    services.DefaultMaxRetryDelay,
		CompressionLevel: -1,
	}
	if home, err := os.UserHomeDir(); err == nil {
		c.LibraryPath = filepath.Join(home, ".mangas-dl", "library.db")
	}
	return c
}

// Load reads the defaults, then the config file, then the environment. An
// explicit path must exist; otherwise the usual locations are searched and a
// missing file is fine.
func Load(path string) (*Config, error) {
	c := Defaults()

	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("$HOME/.config/mangas-dl")
		v.AddConfigPath("$HOME/.mangas-dl")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %s: %w", v.ConfigFileUsed(), err)
	}
	c.File = v.ConfigFileUsed()

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("could not parse environment: %w", err)
	}

	return c, c.Validate()
}

// Validate reports the first invalid setting as data.ErrInvalidArgument.
func (c *Config) Validate() error {
	if c.Jobs < 1 || c.Jobs > services.MaxParallelism {
		return fmt.Errorf("%w: jobs must be between 1 and %d, got %d", data.ErrInvalidArgument, services.MaxParallelism, c.Jobs)
	}
	if _, err := output.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retryAttempts must be at least 1", data.ErrInvalidArgument)
	}
	if c.CompressionLevel < -2 || c.CompressionLevel > 9 {
		return fmt.Errorf("%w: compressionLevel must be between -2 and 9", data.ErrInvalidArgument)
	}
	if c.ThrottleInterval < 0 || c.Timeout < 0 || c.RetryDelay < 0 || c.MaxRetryDelay < 0 {
		return fmt.Errorf("%w: durations cannot be negative", data.ErrInvalidArgument)
	}
	return nil
}

// RetryPolicy returns the retry settings for the downloader.
func (c *Config) RetryPolicy() services.RetryPolicy {
	return services.RetryPolicy{
		MaxAttempts: c.RetryAttempts,
		Delay:       c.RetryDelay,
		MaxDelay:    c.MaxRetryDelay,
	}
}

// WriteTemplate creates a commented config file at path unless one exists.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(configTemplate), 0o644)
}
