package chatclient

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config points the client at the chat API and the identity platform.
type Config struct {
	APIURL      string
	PlatformURL string
	AnonKey     string
}

// LoadConfig reads CHAT_API_URL, PLATFORM_URL and PLATFORM_ANON_KEY from the
// environment after loading .env if one exists.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		APIURL:      strings.TrimRight(getEnv("CHAT_API_URL", "http://localhost:4000"), "/"),
		PlatformURL: strings.TrimRight(getEnv("PLATFORM_URL", ""), "/"),
		AnonKey:     getEnv("PLATFORM_ANON_KEY", ""),
	}
}

func (c Config) validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("chat api url is required"))
	}
	if c.PlatformURL == "" {
		errs = append(errs, errors.New("platform url is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
