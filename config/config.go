package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database holds connection settings for gorm.
type Database struct {
	Driver string // "mysql" or "sqlite"
	DSN    string // explicit DSN override; for sqlite this is the file path

	Host   string
	Port   string
	User   string
	Pass   string
	Name   string
	Params string

	TLS       string // "true", "preferred", "skip"
	TLSVerify bool
	TLSCAPath string
	TLSCert   string
	TLSKey    string

	ConnectRetries  int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingOnConnect   bool
}

// Config holds all server configuration
type Config struct {
	Env  string
	Port int

	Database Database

	// JWT settings; tokens are issued by the external identity provider
	JWTSecret string
	JWTAud    string
	JWTIss    string

	// Optional revocation store
	RedisAddr string
	RedisPass string
	RedisDB   int

	RequestTimeout time.Duration
	MaxBodyBytes   int64

	CORSAllowedOrigins []string
	TrustedProxies     []string

	// Per-user write budget on claim/task mutations
	RateWritePerMinute int
	RateReadPerMinute  int
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Env:  "development",
		Port: 8080,
		Database: Database{
			Driver:          "mysql",
			Host:            "127.0.0.1",
			Port:            "3306",
			User:            "root",
			Name:            "rescuehub",
			Params:          "charset=utf8mb4&parseTime=True&loc=Local",
			TLS:             "true",
			ConnectRetries:  5,
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: time.Hour,
			PingOnConnect:   true,
		},
		RequestTimeout:     10 * time.Second,
		MaxBodyBytes:       1 << 20,
		RateWritePerMinute: 60,
		RateReadPerMinute:  120,
	}
}

// LoadDotEnv loads .env if present without overwriting variables that are
// already set in the process environment.
func LoadDotEnv() {
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	c.Env = strings.ToLower(getenv("ENV", c.Env))
	if p, err := strconv.Atoi(getenv("PORT", "")); err == nil {
		c.Port = p
	}

	db := &c.Database
	db.Driver = strings.ToLower(getenv("DB_DRIVER", db.Driver))
	db.DSN = getenv("DB_DSN", db.DSN)
	db.Host = getenv("DB_HOST", db.Host)
	db.Port = getenv("DB_PORT", db.Port)
	db.User = getenv("DB_USER", db.User)
	db.Pass = getenv("DB_PASS", db.Pass)
	db.Name = getenv("DB_NAME", db.Name)
	db.Params = getenv("DB_PARAMS", db.Params)
	db.TLS = getenv("DB_TLS", db.TLS)
	db.TLSVerify = getenv("DB_TLS_VERIFY", "false") == "true"
	db.TLSCAPath = getenv("DB_TLS_CA_PATH", db.TLSCAPath)
	db.TLSCert = getenv("DB_TLS_CLIENT_CERT", db.TLSCert)
	db.TLSKey = getenv("DB_TLS_CLIENT_KEY", db.TLSKey)
	db.ConnectRetries = atoi(getenv("DB_CONNECT_RETRIES", ""), db.ConnectRetries)
	db.MaxOpenConns = atoi(getenv("DB_MAX_OPEN_CONNS", ""), db.MaxOpenConns)
	db.MaxIdleConns = atoi(getenv("DB_MAX_IDLE_CONNS", ""), db.MaxIdleConns)
	if sec := atoi(getenv("DB_CONN_MAX_LIFETIME", ""), 0); sec > 0 {
		db.ConnMaxLifetime = time.Duration(sec) * time.Second
	}
	db.PingOnConnect = getenv("DB_PING_ON_CONNECT", "true") == "true"

	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.JWTAud = getenv("JWT_AUD", c.JWTAud)
	c.JWTIss = getenv("JWT_ISS", c.JWTIss)

	c.RedisAddr = strings.ReplaceAll(getenv("REDIS_ADDR", c.RedisAddr), " ", "")
	c.RedisPass = getenv("REDIS_PASS", c.RedisPass)
	c.RedisDB = atoi(getenv("REDIS_DB", ""), c.RedisDB)

	if sec := atoi(getenv("REQ_TIMEOUT_SEC", ""), 0); sec > 0 {
		c.RequestTimeout = time.Duration(sec) * time.Second
	}
	if v, err := strconv.ParseInt(getenv("MAX_BODY_BYTES", ""), 10, 64); err == nil && v > 0 {
		c.MaxBodyBytes = v
	}

	if origins := getenv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.CORSAllowedOrigins = splitList(origins)
	}
	if proxies := getenv("TRUSTED_PROXIES", ""); proxies != "" {
		c.TrustedProxies = splitList(proxies)
	}

	c.RateWritePerMinute = atoi(getenv("RATE_USER_WRITE", ""), c.RateWritePerMinute)
	c.RateReadPerMinute = atoi(getenv("RATE_USER_READ", ""), c.RateReadPerMinute)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", c.Port)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return fmt.Errorf("DB_HOST and DB_NAME are required for mysql")
		}
	case "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN must point at the sqlite file")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
