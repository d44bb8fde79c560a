package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"LIBRA-backend/internal/platform/db"
)

const DefaultPath = "config/config.yaml"

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type CirculationConfig struct {
	// 延滞1日あたりの罰金 ("10.00" のように文字列で書く)
	FinePerDay string `yaml:"fine_per_day"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Config struct {
	Version     string            `yaml:"version"`
	Mode        string            `yaml:"mode"`
	Server      ServerConfig      `yaml:"server"`
	DB          db.DatabaseConfig `yaml:"database"`
	Certificate Certs             `yaml:"certificate"`
	Auth        AuthConfig        `yaml:"auth"`
	Circulation CirculationConfig `yaml:"circulation"`
	Log         LogConfig         `yaml:"log"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
}

// Load は YAML を読み、.env と環境変数で上書きしたうえでデフォルトを埋める
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}

	// .env は無くてもよい
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込み失敗: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Mode, "APP_MODE")
	setString(&c.DB.Driver, "DB_DRIVER")
	setString(&c.DB.Host, "DB_HOST")
	setString(&c.DB.Password, "DB_PASSWORD")
	setString(&c.DB.DBName, "DB_NAME")
	setString(&c.DB.Path, "DB_PATH")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer value for DB_PORT: %w", err)
		}
		c.DB.Port = port
	}
	return nil
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.DB.Driver == "" {
		c.DB.Driver = db.DriverMySQL
	}
	if c.Circulation.FinePerDay == "" {
		c.Circulation.FinePerDay = "10.00"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 20
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 40
	}
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errs []string

	if c.Mode != "dev" && c.Mode != "release" {
		errs = append(errs, "mode must be dev or release")
	}
	if c.DB.Driver != db.DriverMySQL && c.DB.Driver != db.DriverSQLite {
		errs = append(errs, "database.driver must be mysql or sqlite3")
	}
	if c.DB.Driver == db.DriverSQLite && c.DB.Path == "" {
		errs = append(errs, "database.path is required for sqlite3")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, "auth.jwt_secret (or JWT_SECRET) is required")
	}
	if _, err := c.FinePerDay(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, "log.format must be text or json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FinePerDay は罰金単価を decimal で返す
func (c *Config) FinePerDay() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Circulation.FinePerDay)
	if err != nil {
		return decimal.Zero, fmt.Errorf("circulation.fine_per_day is not a number: %q", c.Circulation.FinePerDay)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("circulation.fine_per_day must be >= 0")
	}
	return d, nil
}

func (c *Config) IsDevelopment() bool { return c.Mode == "dev" }

// TLSEnabled は証明書が両方設定されているときだけ true
func (c *Config) TLSEnabled() bool {
	return c.Certificate.Cert != "" && c.Certificate.Key != ""
}

// CertPaths は mode ごとの証明書ディレクトリを解決する
func (c *Config) CertPaths() (certFile, keyFile string) {
	dir := "config/tls/release"
	if c.IsDevelopment() {
		dir = "config/tls/dev"
	}
	return fmt.Sprintf("%s/%s", dir, c.Certificate.Cert), fmt.Sprintf("%s/%s", dir, c.Certificate.Key)
}
