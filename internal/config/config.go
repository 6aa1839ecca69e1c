package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GroqAPIKey   string
	DatabaseURL  string
	HTTPPort     string
	ShareBaseURL string
	LogLevel     string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GroqAPIKey:   getEnv("GROQ_API_KEY", ""),
		DatabaseURL:  getEnv("DATABASE_URL", "whatif.db"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		ShareBaseURL: getEnv("SHARE_BASE_URL", "http://localhost:3000"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
	}

	// Generation endpoints need the key; universe listing and the other read
	// endpoints must keep working without it.
	if AppConfig.GroqAPIKey == "" {
		log.Println("GROQ_API_KEY is not set; story generation endpoints will be unavailable")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
