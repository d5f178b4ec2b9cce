package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Port        string
	GinMode     string
	CORSOrigins []string
	Debug       bool

	// Version store
	MongoURI            string
	DBName              string
	VersionStoreBackend string // "mongo" (default), "postgres", "memory"
	PostgresURL         string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// LLM providers
	LLMProvider       string // "gemini" (default), "groq", "ollama"
	GeminiAPIKey      string
	ChatModel         string
	ParseModel        string
	GroqAPIKey        string
	GroqModel         string
	OllamaHost        string
	OllamaModel       string
	SystemInstruction string
	LLMRequestsPerSec float64

	// Object storage (S3 interoperable, GCS via HMAC keys)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	SignedURLTTL     time.Duration

	// Chat relay
	ChatBackendURL   string
	ChatProbeTimeout time.Duration

	// Admin gate
	AdminPassphrase string
	JWTSecret       string
	JWTExpiresIn    time.Duration
	BcryptCost      int

	// Uploads
	MaxFileSize         int64
	SyncProcessingLimit int64

	RateLimitReqs        int
	RateLimitWindow      int
	CacheRefreshInterval time.Duration
	CacheTTL             time.Duration

	OTelExporterEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "sop-assistant"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		Debug:       getEnvBool("DEBUG", false),

		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017/sop_assistant"),
		DBName:              getEnv("DB_NAME", "sop_assistant"),
		VersionStoreBackend: strings.ToLower(getEnv("VERSION_STORE_BACKEND", "mongo")),
		PostgresURL:         getEnv("POSTGRES_URL", ""),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		ChatModel:         getEnv("CHAT_MODEL", "gemini-2.0-flash"),
		ParseModel:        getEnv("PARSE_MODEL", "gemini-2.0-flash"),
		GroqAPIKey:        getEnv("GROQ_API_KEY", ""),
		GroqModel:         getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3.1"),
		SystemInstruction: getEnv("SYSTEM_INSTRUCTION", "你是 SOP 助手。"),
		LLMRequestsPerSec: getEnvFloat64("LLM_REQUESTS_PER_SECOND", 5),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "storage.googleapis.com"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", "sop-assets"),
		StorageUseSSL:    getEnvBool("STORAGE_USE_SSL", true),
		SignedURLTTL:     time.Duration(getEnvInt("SIGNED_URL_TTL_SECONDS", 43200)) * time.Second,

		ChatBackendURL:   getEnv("CHAT_BACKEND_URL", ""),
		ChatProbeTimeout: getEnvDuration("CHAT_PROBE_TIMEOUT", 60*time.Second),

		AdminPassphrase: getEnv("ADMIN_PASSPHRASE", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiresIn:    getEnvDuration("JWT_EXPIRES_IN", 12*time.Hour),
		BcryptCost:      getEnvInt("BCRYPT_COST", 12),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 20971520),          // 20MB
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 5242880), // 5MB

		RateLimitReqs:        getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:      getEnvInt("RATE_LIMIT_WINDOW", 60),
		CacheRefreshInterval: getEnvDuration("CACHE_REFRESH_INTERVAL", 5*time.Minute),
		CacheTTL:             getEnvDuration("CACHE_TTL", 30*time.Minute),

		OTelExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch c.VersionStoreBackend {
	case "mongo", "memory":
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when VERSION_STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown VERSION_STORE_BACKEND %q", c.VersionStoreBackend)
	}

	switch c.LLMProvider {
	case "gemini", "groq", "ollama":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.AdminPassphrase != "" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ADMIN_PASSPHRASE is set - set it in .env file")
	}
	return nil
}

// AdminEnabled reports whether the admin gate is configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminPassphrase != ""
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
