package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the enrollment service.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	// MigrateCourses also creates the catalogue's courses table (local only)
	MigrateCourses bool

	RedisURL       string
	CourseCacheTTL time.Duration

	// "postgres" or "dynamodb"
	CapacityBackend string
	CapacityTable   string

	// "sns", "kafka" or "none"
	EventsBackend         string
	EnrollmentSNSTopicARN string
	KafkaBrokers          []string
	KafkaTopic            string

	PaymentResultsQueueURL string

	JWTSecret           string
	GatewaySecret       string
	AdmissionMaxRetries int
	RateLimitRPS        float64
	CORSAllowedOrigins  []string

	MetricsEnabled     bool
	CloudWatchLogGroup string
}

// LoadConfig reads configuration from the environment (and .env when
// present) with optional Secrets Manager override of the DB credentials.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8091"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),
		MigrateCourses:   getEnvBool("MIGRATE_COURSES", false),

		RedisURL:       os.Getenv("REDIS_URL"),
		CourseCacheTTL: getEnvDuration("COURSE_CACHE_TTL", 5*time.Minute),

		CapacityBackend: strings.ToLower(getEnv("CAPACITY_BACKEND", "postgres")),
		CapacityTable:   getEnv("DDB_TABLE_COURSE_CAPACITY", "course_capacity"),

		EventsBackend:         strings.ToLower(getEnv("EVENTS_BACKEND", "none")),
		EnrollmentSNSTopicARN: os.Getenv("ENROLLMENT_SNS_TOPIC_ARN"),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "enrollment-events"),

		PaymentResultsQueueURL: os.Getenv("PAYMENT_RESULTS_QUEUE_URL"),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		GatewaySecret:       os.Getenv("GATEWAY_SHARED_SECRET"),
		AdmissionMaxRetries: getEnvInt("ADMISSION_MAX_RETRIES", 3),
		RateLimitRPS:        getEnvFloat("RATE_LIMIT_RPS", 0),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		MetricsEnabled:     getEnvBool("METRICS_ENABLED", false),
		CloudWatchLogGroup: os.Getenv("CLOUDWATCH_LOG_GROUP"),
	}

	// Override DB credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			sm := aws_pkg.NewSecretsClient(awsCfg)
			name := getEnv("DB_SECRET_NAME", "enrollment/DB_CREDENTIALS")
			if m, err := sm.GetSecretJSON(context.Background(), name); err == nil {
				override(&cfg.PostgresUser, m["POSTGRES_USER"])
				override(&cfg.PostgresPassword, m["POSTGRES_PASSWORD"])
				override(&cfg.PostgresDB, m["POSTGRES_DB"])
				override(&cfg.PostgresHost, m["POSTGRES_HOST"])
				override(&cfg.PostgresPort, m["POSTGRES_PORT"])
			}
		}
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	switch cfg.CapacityBackend {
	case "postgres", "dynamodb":
	default:
		return nil, fmt.Errorf("unknown CAPACITY_BACKEND %q", cfg.CapacityBackend)
	}
	switch cfg.EventsBackend {
	case "none":
	case "sns":
		if cfg.EnrollmentSNSTopicARN == "" {
			return nil, fmt.Errorf("ENROLLMENT_SNS_TOPIC_ARN required for sns events")
		}
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS required for kafka events")
		}
	default:
		return nil, fmt.Errorf("unknown EVENTS_BACKEND %q", cfg.EventsBackend)
	}
	if cfg.AdmissionMaxRetries < 1 {
		cfg.AdmissionMaxRetries = 1
	}
	return cfg, nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.CapacityBackend == "dynamodb" ||
		c.EventsBackend == "sns" ||
		c.PaymentResultsQueueURL != "" ||
		c.MetricsEnabled ||
		c.CloudWatchLogGroup != ""
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
