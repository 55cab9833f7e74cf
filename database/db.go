package database

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rescuehub/config"
	"rescuehub/logger"
)

// Connect opens the database described by cfg with pooling and retry.
// Duplicate-key violations are translated to gorm.ErrDuplicatedKey.
func Connect(cfg config.Database, development bool) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	// GORM logger: verbose in development
	var gl gormlogger.Interface
	if development {
		gl = gormlogger.Default.LogMode(gormlogger.Info)
	} else {
		gl = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	// Retry connection with exponential backoff
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	var db *gorm.DB
	backoff := time.Second
	for attempt := 0; attempt < retries; attempt++ {
		db, err = gorm.Open(dialector, &gorm.Config{Logger: gl, TranslateError: true})
		if err == nil {
			break
		}
		logger.Warn("[database] connect attempt %d/%d failed: %v", attempt+1, retries, err)
		if attempt+1 < retries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if err != nil {
		return nil, err
	}

	// Configure connection pool on the underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.PingOnConnect {
		if err := pingWithTimeout(sqlDB, 5*time.Second); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
	}

	return db, nil
}

// OpenSQLite opens a sqlite database at path with the same settings Connect
// applies. Used by development setups and tests.
func OpenSQLite(path string) (*gorm.DB, error) {
	return Connect(config.Database{Driver: "sqlite", DSN: path, ConnectRetries: 1}, false)
}

func dialectorFor(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return gormsqlite.Open(cfg.DSN), nil
	case "mysql", "":
		dsn, err := mysqlDSN(cfg)
		if err != nil {
			return nil, err
		}
		return gormmysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func mysqlDSN(cfg config.Database) (string, error) {
	dsn := cfg.DSN
	params := cfg.Params

	if dsn == "" {
		// Ensure TLS/timeout params are present to enforce encrypted connections and timeouts
		if !strings.Contains(params, "tls=") {
			if cfg.TLS == "true" || cfg.TLS == "preferred" {
				if cfg.TLSVerify {
					params = params + "&tls=custom"
				} else {
					params = params + "&tls=true"
				}
			}
		}
		if !strings.Contains(params, "timeout=") {
			params = params + "&timeout=10s"
		}
		if !strings.Contains(params, "readTimeout=") {
			params = params + "&readTimeout=10s"
		}
		if !strings.Contains(params, "writeTimeout=") {
			params = params + "&writeTimeout=10s"
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name, params)
	}

	safeDSN := dsn
	if cfg.Pass != "" {
		safeDSN = strings.Replace(safeDSN, cfg.Pass, "******", 1)
	}
	logger.Info("[database] using DSN: %s", safeDSN)

	// Register a custom TLS config named "custom" for strict certificate validation
	if strings.Contains(dsn, "tls=custom") {
		tlsCfg := &tls.Config{}
		if cfg.TLSCAPath != "" {
			caCert, err := os.ReadFile(cfg.TLSCAPath)
			if err != nil {
				return "", fmt.Errorf("failed reading DB TLS CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return "", errors.New("failed to append CA certs")
			}
			tlsCfg.RootCAs = pool
		}
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return "", fmt.Errorf("failed to load client cert/key: %w", err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}
		if err := mysqldriver.RegisterTLSConfig("custom", tlsCfg); err != nil {
			return "", fmt.Errorf("failed to register TLS config: %w", err)
		}
	}

	return dsn, nil
}

func pingWithTimeout(db *sql.DB, timeout time.Duration) error {
	ch := make(chan error, 1)
	go func() {
		ch <- db.Ping()
	}()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("ping timeout after %s", timeout)
	}
}
