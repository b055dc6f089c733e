package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all process configuration. Loaded once at startup and
// passed explicitly to the components that need it; never re-read.
type Config struct {
	Port          string
	DataFile      string
	PublicBaseURL string

	AdminToken string

	PayPal   PayPalConfig
	Telegram TelegramConfig
}

// PayPalConfig carries both credential pairs; the payment package picks
// one based on Sandbox at resolution time.
type PayPalConfig struct {
	Sandbox         bool
	SandboxClientID string
	SandboxSecret   string
	LiveClientID    string
	LiveSecret      string
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8081"),
		DataFile:      getEnv("DATA_FILE", "data.json"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8081"),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),
		PayPal: PayPalConfig{
			Sandbox:         getBoolEnv("PAYPAL_SANDBOX", true),
			SandboxClientID: getEnv("PAYPAL_SANDBOX_CLIENT_ID", ""),
			SandboxSecret:   getEnv("PAYPAL_SANDBOX_SECRET", ""),
			LiveClientID:    getEnv("PAYPAL_LIVE_CLIENT_ID", ""),
			LiveSecret:      getEnv("PAYPAL_LIVE_SECRET", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}
