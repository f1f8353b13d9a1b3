package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
	Database DatabaseConfig `yaml:"database" envconfig:"DB"`
	JWT      JWTConfig      `yaml:"jwt" envconfig:"JWT"`
	LDAP     LDAPConfig     `yaml:"ldap" envconfig:"LDAP"`
	Redis    RedisConfig    `yaml:"redis" envconfig:"REDIS"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Mail     MailConfig     `yaml:"mail" envconfig:"MAIL"`
	App      AppConfig      `yaml:"app" envconfig:"APP"`
}

type ServerConfig struct {
	Host string `yaml:"host" split_words:"true"`
	Port string `yaml:"port" split_words:"true"`
	Mode string `yaml:"mode" split_words:"true"` // debug, release, test
	// AllowOrigins lists CORS origins; empty allows any origin.
	AllowOrigins []string `yaml:"allow_origins" split_words:"true"`
	// RateLimit is requests per second per client IP on the auth endpoints. 0 disables it.
	RateLimit float64 `yaml:"rate_limit" split_words:"true"`
	RateBurst int     `yaml:"rate_burst" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"` // json, console; empty picks by level
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" split_words:"true"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn" split_words:"true"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret" split_words:"true"`
	ExpireHour        int    `yaml:"expire_hour" split_words:"true"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour" split_words:"true"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled" split_words:"true"`
	Host         string `yaml:"host" split_words:"true"`
	Port         int    `yaml:"port" split_words:"true"`
	BaseDN       string `yaml:"base_dn" split_words:"true"`
	BindDN       string `yaml:"bind_dn" split_words:"true"`
	BindPassword string `yaml:"bind_password" split_words:"true"`
	UserFilter   string `yaml:"user_filter" split_words:"true"`
	UseSSL       bool   `yaml:"use_ssl" split_words:"true"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" split_words:"true"`
	Addr     string `yaml:"addr" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
}

// StorageConfig selects where uploaded study files live.
type StorageConfig struct {
	Driver           string `yaml:"driver" split_words:"true"` // local, gcs, s3
	BaseDir          string `yaml:"base_dir" split_words:"true"`
	Bucket           string `yaml:"bucket" split_words:"true"`
	Prefix           string `yaml:"prefix" split_words:"true"`
	Region           string `yaml:"region" split_words:"true"`
	CredentialsFile  string `yaml:"credentials_file" split_words:"true"`
	MaxFileSizeMB    int64  `yaml:"max_file_size_mb" split_words:"true"`
	MaxFilesPerStudy int64  `yaml:"max_files_per_study" split_words:"true"`
}

type MailConfig struct {
	Provider       string `yaml:"provider" split_words:"true"` // log, smtp, sendgrid
	From           string `yaml:"from" split_words:"true"`
	SMTPHost       string `yaml:"smtp_host" split_words:"true"`
	SMTPPort       int    `yaml:"smtp_port" split_words:"true"`
	SMTPUsername   string `yaml:"smtp_username" split_words:"true"`
	SMTPPassword   string `yaml:"smtp_password" split_words:"true"`
	SMTPUseTLS     bool   `yaml:"smtp_use_tls" split_words:"true"`
	SendgridAPIKey string `yaml:"sendgrid_api_key" split_words:"true"`
}

type AppConfig struct {
	BaseURL          string `yaml:"base_url" split_words:"true"`
	HolidayCountry   string `yaml:"holiday_country" split_words:"true"`
	TokenExpireHour  int    `yaml:"token_expire_hour" split_words:"true"`
	LogRetentionDays int    `yaml:"log_retention_days" split_words:"true"`
	AdminEmail       string `yaml:"admin_email" split_words:"true"`
	AdminPassword    string `yaml:"admin_password" split_words:"true"`
	CleanupSchedule  string `yaml:"cleanup_schedule" split_words:"true"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	// .env is optional; real environment variables still win over it
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode:      "debug",
			RateLimit: 5,
			RateBurst: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "studyhub.db",
		},
		JWT: JWTConfig{
			Secret:            "studyhub-secret-key-change-in-production",
			ExpireHour:        24,
			RefreshExpireHour: 720,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Storage: StorageConfig{
			Driver:           "local",
			BaseDir:          "uploads/study-files",
			MaxFileSizeMB:    50,
			MaxFilesPerStudy: 100,
		},
		Mail: MailConfig{
			Provider: "log",
			From:     "no-reply@studyhub.local",
			SMTPPort: 587,
		},
		App: AppConfig{
			BaseURL:          "http://localhost:8080",
			HolidayCountry:   "NONE",
			TokenExpireHour:  1,
			LogRetentionDays: 30,
			AdminEmail:       "admin@studyhub.local",
			AdminPassword:    "admin",
			CleanupSchedule:  "0 3 * * *",
		},
	}
}

func (c *Config) overrideFromEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return err
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
	return nil
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

// MaxFileSize returns the per-file upload cap in bytes.
func (s *StorageConfig) MaxFileSize() int64 {
	if s.MaxFileSizeMB <= 0 {
		return 50 * 1024 * 1024
	}
	return s.MaxFileSizeMB * 1024 * 1024
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
