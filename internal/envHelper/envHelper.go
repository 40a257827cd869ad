package envHelper

import (
	"github.com/joho/godotenv"
	"log"
	"os"
	"strconv"
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		// Not fatal, just log the error and continue
		log.Println("Couldn't load .env file:", err)
	}
}

// GetEnvOrDefault returns the value of key, or fallback when it is unset or empty.
func GetEnvOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

// GetEnvInt parses key as an integer. Unparseable values are logged and replaced by fallback.
func GetEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v\n", key, value, err)
		return fallback
	}
	return parsed
}
