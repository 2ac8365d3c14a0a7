// Package source connects to the relational database a snapshot is taken from
// and reads whole tables into a tabular.Dataset.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverPgx    = "pgx"
	DriverSQLite = "sqlite"
)

const defaultPingTimeout = 5 * time.Second

// Config describes a database connection. For DriverSQLite, Database is the
// file path (or ":memory:") and the network fields are ignored.
type Config struct {
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	PingTimeout time.Duration
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports configuration the driver cannot use.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMySQL, DriverPgx:
		if c.Host == "" {
			return fmt.Errorf("%s: host is required", c.Driver)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("%s: invalid port %d", c.Driver, c.Port)
		}
	case DriverSQLite:
		if c.Database == "" {
			return fmt.Errorf("sqlite: database path is required")
		}
	default:
		return fmt.Errorf("unsupported source driver %q", c.Driver)
	}
	return nil
}

// DSN returns the driver-specific data source name.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = c.Addr()
		mc.DBName = c.Database
		mc.ParseTime = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	case DriverPgx:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   c.Addr(),
			Path:   "/" + c.Database,
		}
		return u.String()
	default:
		return c.Database
	}
}

// Redacted describes the connection without credentials, for logging.
func (c Config) Redacted() string {
	if c.Driver == DriverSQLite {
		return "sqlite:" + c.Database
	}
	return fmt.Sprintf("%s://%s/%s", c.Driver, c.Addr(), c.Database)
}

// Open opens and pings the database.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Redacted(), err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s: %w", cfg.Redacted(), err)
	}

	return db, nil
}
