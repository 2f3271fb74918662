package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DBUrl         string
	JWTSecret     string
	AllowedOrigin string
	FrontendURL   string
	// DB Config
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnIdleTime time.Duration
	// Paymob Gateway
	PaymobBaseURL             string
	PaymobAPIKey              string
	PaymobHMACSecret          string
	PaymobCardIntegrationID   int
	PaymobWalletIntegrationID int
	PaymobIframeID            string
	PaymobTimeout             time.Duration
	// Pending payment reconciliation job
	ReconcileInterval time.Duration
	ReconcileMinAge   time.Duration
	ReconcileMaxAge   time.Duration
	ReconcileThrottle time.Duration
	ReconcileBatch    int
	// Invoice notification dispatch
	NotifyURL    string
	NotifyAPIKey string
	// R2 payload audit archive
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2BucketName      string
	R2UploadTimeout   time.Duration
	// Cache
	CacheCatalogTTL time.Duration
	// Business Rules
	Currency    string
	MaxCartSize int
}

func LoadConfig() *Config {
	// 1. Check if a specific config file is requested via env var
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		} else {
			log.Printf("Loaded configuration from %s", configFile)
		}
	} else {
		// 2. Default fallback: .env for local dev; in docker/prod envs we
		// rely on system env vars, so a missing file is not an error.
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading it, relying on system env vars")
		}
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DBUrl:         getEnv("DB_DSN", ""),
		JWTSecret:     getEnv("JWT_SECRET", "default_secret_CHANGE_ME"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),

		DBMaxConns:        getInt32Env("DB_MAX_CONNS", 50),
		DBMinConns:        getInt32Env("DB_MIN_CONNS", 10),
		DBMaxConnIdleTime: getDurationEnv("DB_MAX_CONN_IDLE_TIME", time.Minute*15),

		PaymobBaseURL:             getEnv("PAYMOB_BASE_URL", "https://accept.paymob.com/api"),
		PaymobAPIKey:              getEnv("PAYMOB_API_KEY", ""),
		PaymobHMACSecret:          getEnv("PAYMOB_HMAC_SECRET", ""),
		PaymobCardIntegrationID:   getIntEnv("PAYMOB_CARD_INTEGRATION_ID", 0),
		PaymobWalletIntegrationID: getIntEnv("PAYMOB_WALLET_INTEGRATION_ID", 0),
		PaymobIframeID:            getEnv("PAYMOB_IFRAME_ID", ""),
		PaymobTimeout:             getDurationEnv("PAYMOB_TIMEOUT", 15*time.Second),

		// Job defaults: sweep every 5m; give the webhook 10m to arrive,
		// give up on purchases older than 24h; 500ms between gateway calls.
		ReconcileInterval: getDurationEnv("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileMinAge:   getDurationEnv("RECONCILE_MIN_AGE", 10*time.Minute),
		ReconcileMaxAge:   getDurationEnv("RECONCILE_MAX_AGE", 24*time.Hour),
		ReconcileThrottle: getDurationEnv("RECONCILE_THROTTLE", 500*time.Millisecond),
		ReconcileBatch:    getIntEnv("RECONCILE_BATCH", 50),

		NotifyURL:    getEnv("NOTIFY_URL", ""),
		NotifyAPIKey: getEnv("NOTIFY_API_KEY", ""),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2UploadTimeout:   getDurationEnv("R2_UPLOAD_TIMEOUT", 30*time.Second),

		CacheCatalogTTL: getDurationEnv("CACHE_CATALOG_TTL", 10*time.Minute),

		Currency:    getEnv("CURRENCY", "EGP"),
		MaxCartSize: getIntEnv("MAX_CART_SIZE", 50),
	}

	cfg.Validate()
	return cfg
}

func (c *Config) Validate() {
	if c.DBUrl == "" {
		log.Fatal("CRITICAL: DB_DSN environment variable is required")
	}
	if c.JWTSecret == "default_secret_CHANGE_ME" {
		log.Println("WARNING: Using default JWT secret. Setting up for failure in production.")
	}
	if c.PaymobAPIKey == "" {
		log.Println("WARNING: PAYMOB_API_KEY not set; payment sessions will fail")
	}
	if c.PaymobHMACSecret == "" && c.Env != "development" {
		log.Fatal("CRITICAL: PAYMOB_HMAC_SECRET is required outside development")
	}
}

// IsProduction reports whether unsigned webhooks must be rejected.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}

func getInt32Env(key string, fallback int32) int32 {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
		log.Printf("Invalid int32 for %s, using fallback", key)
	}
	return fallback
}
