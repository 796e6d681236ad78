// File: internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	chatservice "github.com/iyunix/go-livechat/internal/services/chat"
)

type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTSecretKey string
	JWTTTL       time.Duration
	CookieSecure bool

	// Empty disables the cross-instance relay.
	RedisURL     string
	RedisChannel string

	WelcomeMessage     string
	MaxMessageLength   int
	SubscriptionBuffer int
	StoreTimeout       time.Duration
	ResubscribeOnLoss  bool

	VisitorSendRate  float64
	VisitorSendBurst int

	AllowedOrigins []string
}

// Load reads configuration from environment variables or .env file.
func Load() (*Config, error) {
	env := os.Getenv("ENV")
	production := strings.ToLower(env) == "production"
	if !production {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: env,
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL: getEnv("DATABASE_URL", "livechat.db"),

		JWTSecretKey: getEnv("JWT_SECRET_KEY", ""),
		JWTTTL:       getEnvAsDuration("JWT_TTL", 24*time.Hour),
		CookieSecure: getEnvAsBool("COOKIE_SECURE", production),

		RedisURL:     getEnv("REDIS_URL", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "livechat:messages"),

		WelcomeMessage:     getEnv("WELCOME_MESSAGE", chatservice.DefaultWelcomeMessage),
		MaxMessageLength:   getEnvAsInt("MAX_MESSAGE_LENGTH", 4000),
		SubscriptionBuffer: getEnvAsInt("SUBSCRIPTION_BUFFER", 64),
		StoreTimeout:       getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),
		ResubscribeOnLoss:  getEnvAsBool("RESUBSCRIBE_ON_LOSS", true),

		VisitorSendRate:  getEnvAsFloat("VISITOR_SEND_RATE", 1),
		VisitorSendBurst: getEnvAsInt("VISITOR_SEND_BURST", 5),

		AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the engine settings always and the secrets in production.
func (c *Config) Validate() error {
	if err := c.Chat().Validate(); err != nil {
		return fmt.Errorf("invalid chat configuration: %w", err)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}

	if c.IsProduction() {
		missing := []string{}
		if c.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if c.DBDriver == "postgres" && c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required production environment variables: %v", missing)
		}
		if len(c.JWTSecretKey) < 32 {
			return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// Chat returns the engine settings.
func (c *Config) Chat() *chatservice.Config {
	return &chatservice.Config{
		WelcomeMessage:     c.WelcomeMessage,
		MaxContentLength:   c.MaxMessageLength,
		SubscriptionBuffer: c.SubscriptionBuffer,
		StoreTimeout:       c.StoreTimeout,
		ResubscribeOnLoss:  c.ResubscribeOnLoss,
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as number. Using default value.", key)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as duration. Using default value.", key)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as boolean. Using default value.", key)
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value.
func getEnvAsList(key string, defaultValue []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
