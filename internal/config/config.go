package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	DatabaseURL string
	AutoMigrate bool
	Port        int
	GitSHA      string
	LogLevel    string
	LogFormat   string
	Timezone    string
	CORSOrigins []string
	JWTSecret   string

	// Assistant Config
	GeminiAPIKey     string
	GeminiModel      string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	AssistantTimeout time.Duration
	ShopAIMaxLines   int

	// Telegram Config
	TelegramBotToken   string
	TelegramWebhookURL string
	TelegramAllowlist  []int64

	// Recipe import
	RedisURL           string
	ImportFetchTimeout time.Duration
	ImportPreviewTTL   time.Duration
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	allowlist, err := parseAllowlist(v.GetString("TELEGRAM_ALLOWLIST"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:        strings.TrimSpace(v.GetString("DATABASE_URL")),
		AutoMigrate:        v.GetBool("AUTO_MIGRATE"),
		Port:               v.GetInt("PORT"),
		GitSHA:             strings.TrimSpace(v.GetString("GIT_SHA")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		Timezone:           v.GetString("TIMEZONE"),
		CORSOrigins:        splitList(v.GetString("CORS_ORIGINS")),
		JWTSecret:          v.GetString("API_JWT_SECRET"),
		GeminiAPIKey:       strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:        strings.TrimSpace(v.GetString("GEMINI_MODEL")),
		OpenAIAPIKey:       strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIModel:        strings.TrimSpace(v.GetString("OPENAI_MODEL")),
		OpenAIBaseURL:      strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
		AssistantTimeout:   v.GetDuration("ASSISTANT_TIMEOUT"),
		ShopAIMaxLines:     v.GetInt("SHOP_AI_MAX_LINES"),
		TelegramBotToken:   v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: v.GetString("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowlist:  allowlist,
		RedisURL:           strings.TrimSpace(v.GetString("REDIS_URL")),
		ImportFetchTimeout: v.GetDuration("IMPORT_FETCH_TIMEOUT"),
		ImportPreviewTTL:   v.GetDuration("IMPORT_PREVIEW_TTL"),
	}
	if cfg.GitSHA == "" {
		cfg.GitSHA = "local"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_URL", "sqlite://data/weekplan.db")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("PORT", 8080)
	v.SetDefault("GIT_SHA", "local")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("TIMEZONE", "Europe/Berlin")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("ASSISTANT_TIMEOUT", "20s")
	v.SetDefault("SHOP_AI_MAX_LINES", 60)
	v.SetDefault("TELEGRAM_ALLOWLIST", "")
	v.SetDefault("IMPORT_FETCH_TIMEOUT", "10s")
	v.SetDefault("IMPORT_PREVIEW_TTL", "20m")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"API_JWT_SECRET", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_WEBHOOK_URL", "REDIS_URL",
	} {
		v.SetDefault(key, "")
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.AssistantTimeout <= 0 {
		return fmt.Errorf("ASSISTANT_TIMEOUT must be positive")
	}
	if c.ShopAIMaxLines < 0 {
		return fmt.Errorf("SHOP_AI_MAX_LINES must not be negative")
	}
	if c.ImportFetchTimeout <= 0 {
		return fmt.Errorf("IMPORT_FETCH_TIMEOUT must be positive")
	}
	return nil
}

// AssistantProvider reports which assistant backend the credentials select.
// Gemini wins when both keys are present; an empty string means none is configured.
func (c *Config) AssistantProvider() string {
	switch {
	case c.GeminiAPIKey != "":
		return "gemini"
	case c.OpenAIAPIKey != "":
		return "openai"
	default:
		return ""
	}
}

// AssistantModel returns the model name of the selected provider.
func (c *Config) AssistantModel() string {
	switch c.AssistantProvider() {
	case "gemini":
		return c.GeminiModel
	case "openai":
		return c.OpenAIModel
	default:
		return ""
	}
}

// Location resolves the configured timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// IsAllowedTelegramUser reports whether a sender may use the bot.
// An empty allowlist admits everyone.
func (c *Config) IsAllowedTelegramUser(id int64) bool {
	if len(c.TelegramAllowlist) == 0 {
		return true
	}
	for _, allowed := range c.TelegramAllowlist {
		if allowed == id {
			return true
		}
	}
	return false
}

func parseAllowlist(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOWLIST contains an invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
