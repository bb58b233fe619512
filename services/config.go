package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	Gateway   GatewayConfig
	Interview InterviewConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Driver       string // "postgres" or "sqlite"
	URL          string
	SQLitePath   string
	Seed         bool
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey string
	Model        string
}

type GatewayConfig struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxRetries     int
	RequestTimeout time.Duration
}

type InterviewConfig struct {
	Category      string
	QuestionCount int
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.sqlite_path", "prepwise.db")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.0-flash")
	viper.SetDefault("gateway.base_delay_ms", "1000")
	viper.SetDefault("gateway.max_delay_ms", "30000")
	viper.SetDefault("gateway.max_retries", "3")
	viper.SetDefault("gateway.request_timeout_ms", "30000")
	viper.SetDefault("interview.category", "React/Node")
	viper.SetDefault("interview.question_count", "6")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("websocket.allowed_origins", "")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.sqlite_path", "DATABASE_SQLITE_PATH")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("gateway.base_delay_ms", "GATEWAY_BASE_DELAY_MS")
	viper.BindEnv("gateway.max_delay_ms", "GATEWAY_MAX_DELAY_MS")
	viper.BindEnv("gateway.max_retries", "GATEWAY_MAX_RETRIES")
	viper.BindEnv("gateway.request_timeout_ms", "GATEWAY_REQUEST_TIMEOUT_MS")
	viper.BindEnv("interview.category", "INTERVIEW_CATEGORY")
	viper.BindEnv("interview.question_count", "INTERVIEW_QUESTION_COUNT")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			Driver:       viper.GetString("database.driver"),
			URL:          viper.GetString("database.url"),
			SQLitePath:   viper.GetString("database.sqlite_path"),
			Seed:         viper.GetBool("database.seed"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey: viper.GetString("gemini.api_key"),
			Model:        viper.GetString("gemini.model"),
		},
		Gateway: GatewayConfig{
			BaseDelay:      time.Duration(viper.GetInt("gateway.base_delay_ms")) * time.Millisecond,
			MaxDelay:       time.Duration(viper.GetInt("gateway.max_delay_ms")) * time.Millisecond,
			MaxRetries:     viper.GetInt("gateway.max_retries"),
			RequestTimeout: time.Duration(viper.GetInt("gateway.request_timeout_ms")) * time.Millisecond,
		},
		Interview: InterviewConfig{
			Category:      viper.GetString("interview.category"),
			QuestionCount: viper.GetInt("interview.question_count"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
