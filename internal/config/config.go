package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

type StorageConfig struct {
	Driver       string // "local" or "s3"
	Dir          string
	PublicPrefix string
	ExternalURL  string
}

type LoanConfig struct {
	Lender         string
	Currency       string
	AnnualRate     decimal.Decimal
	MaxDuration    int
	MaxUploadBytes int64
	LockTTL        time.Duration
}

type AppConfig struct {
	Port           string
	RegistryDriver string // "postgres" or "memory"
	LogLevel       string
	CORSOrigins    []string
	Postgres       PostgresConfig
	Redis          RedisConfig
	S3             S3Config
	Storage        StorageConfig
	Loan           LoanConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("invalid decimal value %q: %v", s, err)
	}
	if d.IsNegative() {
		log.Fatalf("negative rate %q is not allowed", s)
	}
	return d
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

func Load() AppConfig {
	return AppConfig{
		Port:           getenv("APP_PORT", "8000"),
		RegistryDriver: getenv("REGISTRY_DRIVER", "postgres"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "postgres"),
			Password: getenv("PG_PASSWORD", "postgres"),
			DBName:   getenv("PG_DB", "loandb"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:     mustBool(getenv("REDIS_ENABLED", "false")),
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "loan_engine:"),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "loan-documents"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
		},
		Storage: StorageConfig{
			Driver:       getenv("STORAGE_DRIVER", "local"),
			Dir:          getenv("STORAGE_DIR", "./uploads"),
			PublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
			ExternalURL:  getenv("EXTERNAL_URL", ""),
		},
		Loan: LoanConfig{
			Lender:         getenv("LOAN_LENDER", ""),
			Currency:       getenv("LOAN_CURRENCY", "$"),
			AnnualRate:     mustDecimal(getenv("LOAN_ANNUAL_RATE", "5.5")),
			MaxDuration:    mustAtoi(getenv("LOAN_MAX_DURATION", "360")),
			MaxUploadBytes: int64(mustAtoi(getenv("UPLOAD_MAX_BYTES", "10485760"))),
			LockTTL:        time.Duration(mustAtoi(getenv("APPROVAL_LOCK_TTL", "30"))) * time.Second,
		},
	}
}
