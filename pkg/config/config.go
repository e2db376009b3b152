package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the bot.
type Config struct {
	Port string

	// Binance USDT-M futures
	EnableBinance    bool
	BinanceTestnet   bool
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceSymbols   []string

	// BitMEX
	EnableBitmex    bool
	BitmexTestnet   bool
	BitmexAPIKey    string
	BitmexAPISecret string
	BitmexSymbols   []string

	// Database
	DBPath string

	// Strategy presets synced into the database at startup; empty disables.
	StrategyPresetPath string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		EnableBinance:      getEnv("ENABLE_BINANCE", "true") == "true",
		BinanceTestnet:     getEnv("BINANCE_TESTNET", "true") == "true",
		BinanceAPIKey:      os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:   os.Getenv("BINANCE_API_SECRET"),
		BinanceSymbols:     splitAndTrim(getEnv("BINANCE_SYMBOLS", "BTCUSDT,ETHUSDT")),
		EnableBitmex:       getEnv("ENABLE_BITMEX", "false") == "true",
		BitmexTestnet:      getEnv("BITMEX_TESTNET", "true") == "true",
		BitmexAPIKey:       os.Getenv("BITMEX_API_KEY"),
		BitmexAPISecret:    os.Getenv("BITMEX_API_SECRET"),
		BitmexSymbols:      splitAndTrim(getEnv("BITMEX_SYMBOLS", "XBTUSD")),
		DBPath:             getEnv("DB_PATH", "./data/trading.db"),
		StrategyPresetPath: getEnv("STRATEGY_PRESETS", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
