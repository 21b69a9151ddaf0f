package settingsstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// Store persists one settings document per plugin.
type Store interface {
	// Load decodes the settings of pluginID into v. found is false, and v
	// untouched, when nothing was saved yet.
	Load(ctx context.Context, pluginID string, v any) (found bool, err error)
	Save(ctx context.Context, pluginID string, v any) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Driver is one of file, sqlite, postgres, mysql.
	Driver string `yaml:"driver" env:"DRIVER" json:"driver"`
	// Dir is the directory of the file backend.
	Dir string `yaml:"dir" env:"DIR" json:"dir"`
	// DSN is the data source of the SQL backends.
	DSN string `yaml:"dsn" env:"DSN" json:"-"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME" json:"conn_max_lifetime"`
}

// DefaultConfig stores YAML files under ./data/settings.
func DefaultConfig() Config {
	return Config{
		Driver:          "file",
		Dir:             "data/settings",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// Validate checks the backend selection.
func (c Config) Validate() error {
	switch c.Driver {
	case "file":
		if c.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file driver")
		}
	case "sqlite", "postgres", "mysql":
		if c.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s driver", c.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	return nil
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Driver == "file" {
		fs, err := NewFileStore(cfg.Dir, logger)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
	ss, err := OpenSQL(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return ss, nil
}

var pluginIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

func checkID(id string) error {
	if !pluginIDPattern.MatchString(id) {
		return fmt.Errorf("invalid plugin id %q", id)
	}
	return nil
}
