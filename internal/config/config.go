// Package config loads relorm CLI settings from relorm.yaml, RELORM_*
// environment variables and defaults, in that order of precedence.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

const maxWalkDepth = 25

type Config struct {
	Driver           string         `mapstructure:"driver"`
	Schema           string         `mapstructure:"schema"`
	LogLevel         string         `mapstructure:"log_level"`
	EagerConcurrency int            `mapstructure:"eager_concurrency"`
	Database         DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

// Load returns the configuration and the path of the file it was read
// from, empty when none was found.
func Load(explicitPath string) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RELORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", "sqlite3")
	v.SetDefault("schema", "schema.yaml")
	v.SetDefault("log_level", "prod")
	v.SetDefault("eager_concurrency", 1)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.path", ":memory:")
}

// findConfigFile walks up from the working directory looking for
// relorm.yaml or relorm.yml, stopping at a repository root.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"relorm.yaml", "relorm.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// DSN builds the driver specific connection string. database.url wins when
// set.
func (c *Config) DSN() (string, error) {
	db := c.Database
	if db.URL != "" {
		return db.URL, nil
	}

	switch c.Driver {
	case "sqlite", "sqlite3":
		return db.Path, nil

	case "mysql":
		if db.Name == "" {
			return "", fmt.Errorf("database.name is required when database.url is not set")
		}
		mc := mysql.NewConfig()
		mc.User = db.User
		mc.Passwd = db.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(db.Host, strconv.Itoa(portOr(db.Port, 3306)))
		mc.DBName = db.Name
		mc.ParseTime = true
		return mc.FormatDSN(), nil

	case "postgres", "pgx":
		if db.Name == "" {
			return "", fmt.Errorf("database.name is required when database.url is not set")
		}
		if db.User == "" {
			return "", fmt.Errorf("database.user is required when database.url is not set")
		}
		u := &url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(db.Host, strconv.Itoa(portOr(db.Port, 5432))),
			Path:   "/" + db.Name,
		}
		if db.Password != "" {
			u.User = url.UserPassword(db.User, db.Password)
		} else {
			u.User = url.User(db.User)
		}
		if db.SSLMode != "" {
			q := u.Query()
			q.Set("sslmode", db.SSLMode)
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("unsupported driver %q", c.Driver)
}

func portOr(port, def int) int {
	if port == 0 {
		return def
	}
	return port
}
