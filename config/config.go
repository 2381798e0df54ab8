package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	DBDriver string
	DBDSN    string

	JWTSecret string

	SeatingDuration   time.Duration
	AutoConfirm       bool
	AlertScanInterval time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
	AllowedOrigins     []string

	KafkaBroker     string
	KafkaTopic      string
	EventBufferSize int

	SeedDemoData bool
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:               port,
		GinMode:            os.Getenv("GIN_MODE"),
		LogLevel:           readString("LOG_LEVEL", "info"),
		DBDriver:           readString("DB_DRIVER", "sqlite"),
		DBDSN:              os.Getenv("DB_DSN"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SeatingDuration:    time.Duration(readInt("RESERVATION_DURATION_MINUTES", 120)) * time.Minute,
		AutoConfirm:        readBool("RESERVATION_AUTO_CONFIRM", false),
		AlertScanInterval:  time.Duration(readInt("ALERT_SCAN_INTERVAL_SECONDS", 60)) * time.Second,
		RateLimitPerSecond: readFloat("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 40),
		AllowedOrigins:     readList("CORS_ALLOWED_ORIGINS"),
		KafkaBroker:        os.Getenv("KAFKA_BROKER"),
		KafkaTopic:         readString("KAFKA_TOPIC", "restaurant.events"),
		EventBufferSize:    readInt("EVENT_BUFFER_SIZE", 1024),
		SeedDemoData:       readBool("SEED_DEMO_DATA", false),
	}
}

func readString(key, fallback string) string {
	if raw := os.Getenv(key); raw != "" {
		return raw
	}
	return fallback
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
