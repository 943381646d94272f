package config

import (
	"os"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string // bars database
	JournalPath   string // signals journal database
	MetricsAddr   string

	// Bar intake: "redis" (streams via consumer groups) or "ws" (live feed)
	FeedMode    string
	FeedWSURL   string
	BackfillURL string // optional REST history endpoint, "" disables backfill
	SessionOnly bool   // drop live bars outside NSE trading hours

	ConsumerGroup string
	ConsumerName  string

	// Instrument universe + per-instrument detection parameters
	InstrumentsFile string

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Logging
	LogFile  string
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		JournalPath:   getEnv("JOURNAL_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		FeedMode:    getEnv("FEED_MODE", "redis"),
		FeedWSURL:   getEnv("FEED_WS_URL", "ws://localhost:9001/bars"),
		BackfillURL: getEnv("BACKFILL_URL", ""),
		SessionOnly: getEnv("SESSION_ONLY", "false") == "true",

		ConsumerGroup: getEnv("CONSUMER_GROUP", "wavescan"),
		ConsumerName:  getEnv("CONSUMER_NAME", "scanner-1"),

		InstrumentsFile: getEnv("INSTRUMENTS_FILE", "instruments.yaml"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogFile:  getEnv("LOG_FILE", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
