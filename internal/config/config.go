package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Email    EmailConfig
	Auth     AuthConfig
	App      AppConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver         string
	PostgresDSN    string
	SQLiteDSN      string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	ConnectRetries int
	RetryDelay     time.Duration
	AutoMigrate    bool
}

// RedisConfig configures the distributed booking lock. An empty Addr
// falls back to an in-process lock.
type RedisConfig struct {
	Addr     string
	LockTTL  time.Duration
	LockWait time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketIssued        string
	TicketStatusChanged string
	TicketCancelled     string
}

// EmailConfig configures outgoing mail. An empty SMTPHost logs messages instead of sending them.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromName     string
}

type AuthConfig struct {
	JWTSecret    string
	CookieName   string
	TokenTTL     time.Duration
	CookieSecure bool
	OIDCIssuer   string
}

type AppConfig struct {
	PublicURL   string
	QRSecretKey string
	LogDir      string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8084"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         getEnv("DB_DRIVER", DriverPostgres),
			PostgresDSN:    os.Getenv("POSTGRES_DSN"),
			SQLiteDSN:      getEnv("SQLITE_DSN", "file:demo-booking.db?cache=shared"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
			RetryDelay:     2 * time.Second,
			AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			LockTTL:  getEnvDuration("BOOKING_LOCK_TTL_SECONDS", 10*time.Second),
			LockWait: getEnvDuration("BOOKING_LOCK_WAIT_SECONDS", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				TicketIssued:        getEnv("KAFKA_TOPIC_TICKET_ISSUED", "demo.ticket.issued"),
				TicketStatusChanged: getEnv("KAFKA_TOPIC_TICKET_STATUS_CHANGED", "demo.ticket.status_changed"),
				TicketCancelled:     getEnv("KAFKA_TOPIC_TICKET_CANCELLED", "demo.ticket.cancelled"),
			},
		},
		Email: EmailConfig{
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			FromName:     getEnv("EMAIL_FROM_NAME", "CODEVERSE ACADEMY"),
		},
		Auth: AuthConfig{
			JWTSecret:    os.Getenv("JWT_SECRET"),
			CookieName:   getEnv("ADMIN_COOKIE_NAME", "adminAuth"),
			TokenTTL:     getEnvDuration("ADMIN_TOKEN_TTL_SECONDS", 24*time.Hour),
			CookieSecure: getEnvBool("COOKIE_SECURE", false),
			OIDCIssuer:   os.Getenv("OIDC_ISSUER"),
		},
		App: AppConfig{
			PublicURL:   strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
			QRSecretKey: os.Getenv("QR_SECRET_KEY"),
			LogDir:      os.Getenv("LOG_DIR"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
