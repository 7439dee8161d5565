// Package config содержит логику чтения конфигурации сервиса аренды ботов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса аренды ботов.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`
	GeminiKey   string `env:"GEMINI_API_KEY"`
	GeminiModel string `env:"GEMINI_MODEL"`
	OwnerToken  string `env:"OWNER_TOKEN"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envGeminiKey := cfg.GeminiKey
	envGeminiModel := cfg.GeminiModel
	envOwnerToken := cfg.OwnerToken

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for session cookies and admin tokens")
	flag.StringVar(&cfg.GeminiKey, "g", "", "Gemini API key")
	flag.StringVar(&cfg.GeminiModel, "m", "", "Gemini model name")
	flag.StringVar(&cfg.OwnerToken, "t", "", "owner activation token")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envGeminiKey != "" {
		cfg.GeminiKey = envGeminiKey
	}
	if envGeminiModel != "" {
		cfg.GeminiModel = envGeminiModel
	}
	if envOwnerToken != "" {
		cfg.OwnerToken = envOwnerToken
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
