package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Server       ServerConfig       `mapstructure:"server"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Completion   CompletionConfig   `mapstructure:"completion"`
	Consultation ConsultationConfig `mapstructure:"consultation"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"min=1s"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" validate:"min=1s"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token" validate:"required_if=Enabled true"`
	Debug   bool   `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=memory postgres sqlite"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=0,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path" validate:"required_if=Driver sqlite"`
}

type CompletionConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	Model           string        `mapstructure:"model" validate:"required"`
	MaxTokens       int           `mapstructure:"max_tokens" validate:"min=1"`
	ReportMaxTokens int           `mapstructure:"report_max_tokens" validate:"min=1"`
	Temperature     float64       `mapstructure:"temperature" validate:"min=0,max=2"`
	TopP            float64       `mapstructure:"top_p" validate:"min=0,max=1"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
}

// Enabled reports whether the remote completion path can be used at all.
func (c CompletionConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type ConsultationConfig struct {
	Threshold      int           `mapstructure:"threshold" validate:"min=1"`
	PromoteTo      string        `mapstructure:"promote_to" validate:"oneof=analysis report"`
	MaxMessageSize int           `mapstructure:"max_message_size" validate:"min=1"`
	Welcome        string        `mapstructure:"welcome" validate:"required"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" validate:"min=1m"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" validate:"min=1s"`
}

const defaultWelcome = "🌟 Welcome to your personalized astrology consultation. I'm here to understand your concerns " +
	"and provide insights based on planetary influences. Please start by telling me what's currently troubling you " +
	"or what area of life you'd like guidance on."

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.development", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "astro")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "./data/astro.db")

	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("completion.model", "llama-3.1-70b-versatile")
	v.SetDefault("completion.max_tokens", 1000)
	v.SetDefault("completion.report_max_tokens", 2000)
	v.SetDefault("completion.temperature", 0.7)
	v.SetDefault("completion.top_p", 1.0)
	v.SetDefault("completion.timeout", 30*time.Second)

	v.SetDefault("consultation.threshold", 5)
	v.SetDefault("consultation.promote_to", "analysis")
	v.SetDefault("consultation.max_message_size", 4000)
	v.SetDefault("consultation.welcome", defaultWelcome)
	v.SetDefault("consultation.session_ttl", 24*time.Hour)
	v.SetDefault("consultation.sweep_interval", 10*time.Minute)
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads configuration from defaults, an optional config file, a
// .env file and the environment, in increasing order of precedence. An empty
// path skips the config file.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	// The credential lives only on the server side.
	for _, key := range []string{"COMPLETION_API_KEY", "GROQ_API_KEY"} {
		if apiKey := v.GetString(key); apiKey != "" {
			config.Completion.APIKey = apiKey
			break
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the decoded configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
