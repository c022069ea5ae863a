package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Supported remote store drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Row is a single result record keyed by column alias
type Row = map[string]interface{}

// Querier is the remote query capability the report engine depends on.
// Implementations apply the configured query timeout to every call.
type Querier interface {
	// Query runs a SELECT and returns every row as a map keyed by column alias
	Query(ctx context.Context, query string, args ...interface{}) ([]Row, error)

	// Count runs a single-value COUNT query
	Count(ctx context.Context, query string, args ...interface{}) (int64, error)

	// Ping tests the connection
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool
	Close() error
}

// Config holds remote store configuration
type Config struct {
	// Driver selects the backend: mysql (default), postgres or sqlite3
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// Connection Settings
	Host     string `json:"host" yaml:"host" mapstructure:"host"`
	Port     int    `json:"port" yaml:"port" mapstructure:"port"`
	Database string `json:"database" yaml:"database" mapstructure:"database"`
	Username string `json:"username" yaml:"username" mapstructure:"username"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`

	// Path is the database file for the sqlite3 driver
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// SSLMode is passed through to the postgres driver (disable, require, verify-full)
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode" mapstructure:"ssl_mode"`

	// Connection Pool Settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`

	// MySQL Specific Settings
	Charset   string `json:"charset" yaml:"charset" mapstructure:"charset"`       // Default: utf8mb4
	Collation string `json:"collation" yaml:"collation" mapstructure:"collation"` // Default: utf8mb4_unicode_ci
	TimeZone  string `json:"timezone" yaml:"timezone" mapstructure:"timezone"`    // Default: UTC

	// GORM Settings
	PrepareStmt  bool          `json:"prepare_stmt" yaml:"prepare_stmt" mapstructure:"prepare_stmt"`
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout" mapstructure:"query_timeout"`

	// SSL Configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl" mapstructure:"ssl"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// SSLConfig holds SSL/TLS configuration for MySQL
type SSLConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	CertFile   string `json:"cert_file" yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile    string `json:"key_file" yaml:"key_file" mapstructure:"key_file"`
	CAFile     string `json:"ca_file" yaml:"ca_file" mapstructure:"ca_file"`
	SkipVerify bool   `json:"skip_verify" yaml:"skip_verify" mapstructure:"skip_verify"` // Skip certificate verification (not recommended for production)
	ServerName string `json:"server_name" yaml:"server_name" mapstructure:"server_name"`
}

// LoggingConfig controls database logging behavior
type LoggingConfig struct {
	Level              string        `json:"level" yaml:"level" mapstructure:"level"` // info, warn, error, silent
	SlowQueryThreshold time.Duration `json:"slow_query_threshold" yaml:"slow_query_threshold" mapstructure:"slow_query_threshold"`
}

// Manager manages the gorm-backed MySQL connection and implements Querier
type Manager struct {
	config *Config
	db     *gorm.DB
}
