// Package config loads settings for the server and feesctl from the
// environment, with an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Server holds the settings for cmd/server.
type Server struct {
	Port       int           `validate:"min=1,max=65535"`
	DBPath     string        `validate:"required"`
	JWTSecret  string        `validate:"required,min=16"`
	TokenTTL   time.Duration `validate:"gt=0"`
	LogLevel   string        `validate:"oneof=debug info warn error"`
	LogFormat  string        `validate:"oneof=text json"`
	Currency   string        `validate:"required,len=3,uppercase"`
	SchoolName string        `validate:"required"`
}

// Client holds the settings for feesctl.
type Client struct {
	APIURL    string        `validate:"required,url"`
	APIToken  string        `validate:"omitempty,jwt"`
	JWTSecret string        `validate:"omitempty,min=16"`
	TokenTTL  time.Duration `validate:"gt=0"`
	LogLevel  string        `validate:"oneof=debug info warn error"`
	Currency  string        `validate:"required,len=3,uppercase"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadServer reads the server settings. Files are loaded with godotenv
// first; variables already set in the environment win.
func LoadServer(envFiles ...string) (Server, error) {
	if err := loadDotenv(envFiles); err != nil {
		return Server{}, err
	}

	port, err := getInt("PORT", 8080)
	if err != nil {
		return Server{}, err
	}
	ttl, err := getDuration("TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return Server{}, err
	}

	cfg := Server{
		Port:       port,
		DBPath:     getEnv("DB_PATH", "./data/fees.db"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		TokenTTL:   ttl,
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
		Currency:   getEnv("CURRENCY", "INR"),
		SchoolName: getEnv("SCHOOL_NAME", "School"),
	}
	if err := validate.Struct(cfg); err != nil {
		return Server{}, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

// LoadClient reads the feesctl settings.
func LoadClient(envFiles ...string) (Client, error) {
	if err := loadDotenv(envFiles); err != nil {
		return Client{}, err
	}

	ttl, err := getDuration("TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return Client{}, err
	}

	cfg := Client{
		APIURL:    getEnv("API_URL", "http://localhost:8080"),
		APIToken:  os.Getenv("API_TOKEN"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  ttl,
		LogLevel:  getEnv("LOG_LEVEL", "warn"),
		Currency:  getEnv("CURRENCY", "INR"),
	}
	if err := validate.Struct(cfg); err != nil {
		return Client{}, fmt.Errorf("invalid client config: %w", err)
	}
	return cfg, nil
}

// loadDotenv loads the given files, or .env when none are named. A
// missing default .env is not an error.
func loadDotenv(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
