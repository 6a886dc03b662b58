// Application configuration.
//
// Values come from environment variables (a .env file is loaded by main
// before Load). CONFIG_FILE may point at a TOML file that overrides the
// scheduler, notification and log sections:
//
//	[scheduler]
//	enabled = true
//	cron = "1 0 * * *"
//	timezone = "America/Lima"
//
//	[notify]
//	workers = 4
//	queue_size = 256
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Auth      AuthConfig
	SMTP      SMTPConfig
	Slack     SlackConfig
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notify    NotifyConfig    `toml:"notify"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Port                 string `validate:"required"`
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	UploadDir            string `validate:"required"`
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type AuthConfig struct {
	JWTSecret      string
	JWTAccessTTL   string
	JWTRefreshTTL  string
	AllowSignup    string
	CookieSecure   string
	CookieSameSite string
	CookieDomain   string
	CookiePath     string
	AdminUsername  string
	AdminPassword  string
	AdminEmail     string
}

type SMTPConfig struct {
	Host     string
	Port     int `validate:"omitempty,min=1,max=65535"`
	Username string
	Password string
	From     string `validate:"omitempty,email"`
	TLS      string `validate:"oneof=mandatory opportunistic none"`
}

func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

type SlackConfig struct {
	BotToken    string
	ChannelID   string
	FrontendURL string
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Cron     string `toml:"cron" validate:"required"`
	Timezone string `toml:"timezone" validate:"required"`
}

type NotifyConfig struct {
	Workers   int `toml:"workers" validate:"min=1,max=64"`
	QueueSize int `toml:"queue_size" validate:"min=1"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

var validate = validator.New()

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:                 getenv("PORT", "8080"),
			CORSAllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			CORSAllowCredentials: getbool("CORS_ALLOW_CREDENTIALS", true),
			UploadDir:            getenv("UPLOAD_DIR", "uploads"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			JWTAccessTTL:   getenv("JWT_ACCESS_TTL", "15m"),
			JWTRefreshTTL:  getenv("JWT_REFRESH_TTL", "168h"),
			AllowSignup:    getenv("ALLOW_SIGNUP", "false"),
			CookieSecure:   getenv("AUTH_COOKIE_SECURE", "true"),
			CookieSameSite: getenv("AUTH_COOKIE_SAMESITE", "lax"),
			CookieDomain:   os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookiePath:     getenv("AUTH_COOKIE_PATH", "/"),
			AdminUsername:  os.Getenv("ADMIN_USERNAME"),
			AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
			AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getint("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			TLS:      getenv("SMTP_TLS", "opportunistic"),
		},
		Slack: SlackConfig{
			BotToken:    os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID:   os.Getenv("SLACK_CHANNEL_ID"),
			FrontendURL: os.Getenv("FRONTEND_URL"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getbool("SCHEDULER_ENABLED", true),
			Cron:     getenv("SCHEDULER_CRON", "1 0 * * *"),
			Timezone: getenv("APP_TIMEZONE", "UTC"),
		},
		Notify: NotifyConfig{
			Workers:   getint("NOTIFY_WORKERS", 4),
			QueueSize: getint("NOTIFY_QUEUE_SIZE", 256),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getenv("LOG_FORMAT", "text")),
		},
	}
}

// LoadFile overlays the TOML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getint(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getbool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
