package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Auth       AuthConfig       `mapstructure:"auth"`
	AI         AIConfig         `mapstructure:"ai"`
	Engagement EngagementConfig `mapstructure:"engagement"`
	Callback   CallbackConfig   `mapstructure:"callback"`
	Channels   ChannelsConfig   `mapstructure:"channels"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

// IsProduction reports whether the service runs in production
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// Addr returns the HTTP listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the gRPC listen address
func (c GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Schema          string        `mapstructure:"schema"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.Schema,
	)
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TLS       bool   `mapstructure:"tls"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled    bool               `mapstructure:"enabled"`
	URL        string             `mapstructure:"url"`
	StreamName string             `mapstructure:"stream_name"`
	Subjects   NATSSubjectsConfig `mapstructure:"subjects"`
}

type NATSSubjectsConfig struct {
	Turns   string `mapstructure:"turns"`
	Reports string `mapstructure:"reports"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// AuthConfig lists the API keys accepted in the x-api-key header
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

type AIConfig struct {
	Provider            string        `mapstructure:"provider"`
	Model               string        `mapstructure:"model"`
	ClaudeAPIKey        string        `mapstructure:"claude_api_key"`
	OpenAIAPIKey        string        `mapstructure:"openai_api_key"`
	GeminiAPIKey        string        `mapstructure:"gemini_api_key"`
	ClaudeBaseURL       string        `mapstructure:"claude_base_url"`
	OpenAIBaseURL       string        `mapstructure:"openai_base_url"`
	GeminiBaseURL       string        `mapstructure:"gemini_base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Temperature         float64       `mapstructure:"temperature"`
	AuxiliaryExtraction bool          `mapstructure:"auxiliary_extraction"`
	BreakerMaxFailures  uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout  time.Duration `mapstructure:"breaker_open_timeout"`
}

type EngagementConfig struct {
	MinIntelligenceItems int           `mapstructure:"min_intelligence_items"`
	MinMessages          int           `mapstructure:"min_messages"`
	SessionStore         string        `mapstructure:"session_store"` // "memory" or "redis"
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	LockTimeout          time.Duration `mapstructure:"lock_timeout"`
	DefaultChannel       string        `mapstructure:"default_channel"`
}

type CallbackConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
}

type ChannelsConfig struct {
	Twilio    TwilioConfig    `mapstructure:"twilio"`
	Instagram InstagramConfig `mapstructure:"instagram"`
}

type TwilioConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type InstagramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	VerifyToken string `mapstructure:"verify_token"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "honeypot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 9090)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "honeypot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "honeypot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.schema", "public")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "honeypot:")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "HONEYPOT_EVENTS")
	v.SetDefault("nats.subjects.turns", "honeypot.turns")
	v.SetDefault("nats.subjects.reports", "honeypot.reports")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)

	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.timeout", 10*time.Second)
	v.SetDefault("ai.max_tokens", 150)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.auxiliary_extraction", true)
	v.SetDefault("ai.breaker_max_failures", 5)
	v.SetDefault("ai.breaker_open_timeout", 30*time.Second)

	v.SetDefault("engagement.min_intelligence_items", 3)
	v.SetDefault("engagement.min_messages", 5)
	v.SetDefault("engagement.session_store", "memory")
	v.SetDefault("engagement.session_ttl", 24*time.Hour)
	v.SetDefault("engagement.lock_timeout", 5*time.Second)
	v.SetDefault("engagement.default_channel", "whatsapp")

	v.SetDefault("callback.url", "https://hackathon.guvi.in/api/updateHoneyPotFinalResult")
	v.SetDefault("callback.timeout", 5*time.Second)
	v.SetDefault("callback.workers", 4)
	v.SetDefault("callback.queue_size", 256)

	v.SetDefault("channels.twilio.enabled", true)
	v.SetDefault("channels.instagram.enabled", true)
	v.SetDefault("channels.instagram.verify_token", "")
}

// Load reads configuration from file and environment variables.
// A missing config file is not an error; defaults and the environment apply.
func Load(configPath string) (*Config, error) {
	// Local .env for development; absence is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/honeypot")
	}

	// Environment variables
	v.SetEnvPrefix("HONEYPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets and the usual deployment overrides
	v.BindEnv("redis.password", "HONEYPOT_REDIS_PASSWORD")
	v.BindEnv("database.password", "HONEYPOT_DATABASE_PASSWORD")
	v.BindEnv("ai.claude_api_key", "HONEYPOT_AI_CLAUDE_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("ai.openai_api_key", "HONEYPOT_AI_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("ai.gemini_api_key", "HONEYPOT_AI_GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("callback.api_key", "HONEYPOT_CALLBACK_API_KEY")
	v.BindEnv("channels.instagram.verify_token", "HONEYPOT_CHANNELS_INSTAGRAM_VERIFY_TOKEN", "META_VERIFY_TOKEN")
	v.BindEnv("app.environment", "HONEYPOT_APP_ENVIRONMENT")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Auth.APIKeys = splitList(strings.Join(cfg.Auth.APIKeys, ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	switch c.Engagement.SessionStore {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("engagement.session_store is redis but redis is disabled")
		}
	default:
		return fmt.Errorf("unknown engagement.session_store %q", c.Engagement.SessionStore)
	}

	if c.Engagement.MinIntelligenceItems <= 0 || c.Engagement.MinMessages <= 0 {
		return fmt.Errorf("engagement thresholds must be positive")
	}

	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
