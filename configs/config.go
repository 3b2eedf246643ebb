package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var loadEnv sync.Once

func Config(key string) string {
	loadEnv.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})

	return os.Getenv(key)
}

// ConfigDefault returns the value for key, or def when it is unset or empty.
func ConfigDefault(key, def string) string {
	if v := Config(key); v != "" {
		return v
	}
	return def
}
