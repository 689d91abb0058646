// Package config loads bridge configuration from a .env file and the
// process environment: a best-effort godotenv.Load() followed by a fixed
// list of BRIDGE_* environment variable reads.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/lokutor-ai/vibebridge/internal/session"
)

// Config is the thin, load-once adapter over session.ConfigureParams plus
// the two operator-tunable orchestrator knobs (narration concurrency and
// timeout) that are not session fields.
type Config struct {
	Session session.ConfigureParams

	NarrationConcurrency int
	NarrationTimeout     time.Duration

	// NarratorCmd, when non-empty, is the command line of an external MCP
	// narration server the bridge should spawn and call instead of running
	// the narration service in-process.
	NarratorCmd string
}

// Default narration concurrency and per-request timeout.
const (
	DefaultNarrationConcurrency = 2
	DefaultNarrationTimeout     = 60 * time.Second
)

// FromEnv loads an optional .env file (a missing file is not an error, only
// logged by the caller if it wants to) and reads BRIDGE_* environment
// variables into a Config.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Session: session.ConfigureParams{
			LLMAPIKey:   os.Getenv("BRIDGE_LLM_API_KEY"),
			TTSAPIKey:   os.Getenv("BRIDGE_TTS_API_KEY"),
			LLMModel:    os.Getenv("BRIDGE_LLM_MODEL"),
			Voice:       os.Getenv("BRIDGE_VOICE"),
			Mode:        session.Mode(os.Getenv("BRIDGE_MODE")),
			Character:   os.Getenv("BRIDGE_CHARACTER"),
			BaseURL:     os.Getenv("BRIDGE_BASE_URL"),
			TTSProvider: session.Provider(os.Getenv("BRIDGE_TTS_PROVIDER")),
		},
		NarrationConcurrency: DefaultNarrationConcurrency,
		NarrationTimeout:     DefaultNarrationTimeout,
		NarratorCmd:          os.Getenv("BRIDGE_NARRATOR_CMD"),
	}

	if n := os.Getenv("BRIDGE_NARRATION_N"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			cfg.NarrationConcurrency = v
		}
	}
	if t := os.Getenv("BRIDGE_NARRATION_TIMEOUT"); t != "" {
		if v, err := strconv.Atoi(t); err == nil && v > 0 {
			cfg.NarrationTimeout = time.Duration(v) * time.Second
		}
	}

	return cfg, nil
}
