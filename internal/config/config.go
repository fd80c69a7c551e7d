// Package config loads the runtime configuration of the ema-live binary
// from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Gemini credentials
	DefaultAPIKey  string
	UsePersonalKey bool
	PersonalAPIKey string

	Model string
	Voice string

	AudioBackend string
	FrameSize    int // samples per captured frame

	InventoryFile string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is read first when present; variables already set in
// the environment take precedence over it.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to read .env file", "error", err)
	}

	return Config{
		DefaultAPIKey:  envStr("GEMINI_API_KEY", ""),
		UsePersonalKey: envBool("EMA_USE_PERSONAL_KEY", false),
		PersonalAPIKey: envStr("EMA_PERSONAL_API_KEY", ""),

		Model: envStr("EMA_MODEL", ""),
		Voice: envStr("EMA_VOICE", ""),

		AudioBackend: envStr("EMA_AUDIO_BACKEND", BackendMiniaudio),
		FrameSize:    envInt("EMA_FRAME_SIZE", 4096),

		InventoryFile: envStr("EMA_INVENTORY_FILE", ""),
	}
}

// APIKey returns the personal key when it is enabled and non-blank,
// otherwise the default key.
func (c Config) APIKey() string {
	if c.UsePersonalKey && strings.TrimSpace(c.PersonalAPIKey) != "" {
		return c.PersonalAPIKey
	}
	return c.DefaultAPIKey
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
