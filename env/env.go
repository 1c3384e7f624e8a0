package env

import (
	"os"

	"github.com/joho/godotenv"
)

type Environment string

const (
	Local Environment = "local"
)

func IsLocal() bool {
	return Get() == Local
}

func Get() Environment {
	return Environment(os.Getenv("ENVIRONMENT"))
}

func GetOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load reads .env files into the process environment. Missing files are ignored and
// variables that are already set are never overwritten.
func Load(filenames ...string) {
	if len(filenames) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range filenames {
		_ = godotenv.Load(f)
	}
}
