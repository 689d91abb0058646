// Package session holds the process-local, mutable narration session
// configuration and its invariants. There is exactly one Session per bridge
// process; it is shared (read-many/write-on-configure) between the
// narration service tool handlers.
package session

import (
	"strings"
	"sync"
)

// Provider identifies which TTS backend a session targets.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderElevenLabs Provider = "elevenlabs"
)

// Mode selects narration-mode versus chat-mode prompting.
type Mode string

const (
	ModeNarration Mode = "narration"
	ModeChat      Mode = "chat"
)

// DefaultModel, DefaultCharacter and DefaultMode are the fallbacks used
// when configure() omits a field.
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultCharacter = "reluctant_developer"
	DefaultMode      = ModeNarration
)

// Session is the mutable, process-local configuration record. Zero value is
// "not configured". All fields are guarded by mu; callers reach the session
// through Snapshot/Configure rather than touching fields directly.
type Session struct {
	mu sync.RWMutex

	llmAPIKey      string
	ttsAPIKey      string
	llmModel       string
	voice          string
	ttsProvider    Provider
	ttsProviderSet bool
	mode           Mode
	character      string
	baseURL        string
	defaultHeaders map[string]string
}

// New returns an unconfigured Session with the documented defaults for
// model/mode/character.
func New() *Session {
	return &Session{
		llmModel:  DefaultModel,
		mode:      DefaultMode,
		character: DefaultCharacter,
	}
}

// ConfigureParams mirrors the configure() tool's input fields. A zero-valued
// field means absent; a field cannot be explicitly cleared.
type ConfigureParams struct {
	LLMAPIKey      string
	LLMModel       string
	Voice          string
	Mode           Mode
	Character      string
	BaseURL        string
	DefaultHeaders map[string]string
	TTSAPIKey      string
	TTSProvider    Provider
}

// Configure mutates the session under a write lock. llm_api_key is the only
// required field; every other field either overrides the current value (if
// non-zero) or is left untouched except tts_api_key, which defaults to
// llm_api_key, and tts_provider, which is auto-detected from the effective
// tts_api_key when not supplied.
func (s *Session) Configure(p ConfigureParams) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.LLMAPIKey != "" {
		s.llmAPIKey = p.LLMAPIKey
	}
	if p.LLMModel != "" {
		s.llmModel = p.LLMModel
	}
	if p.Voice != "" {
		s.voice = p.Voice
	}
	if p.Mode != "" {
		s.mode = p.Mode
	}
	if p.Character != "" {
		s.character = p.Character
	}
	if p.BaseURL != "" {
		s.baseURL = p.BaseURL
	}
	if p.DefaultHeaders != nil {
		s.defaultHeaders = p.DefaultHeaders
	}

	if p.TTSAPIKey != "" {
		s.ttsAPIKey = p.TTSAPIKey
	} else if s.ttsAPIKey == "" {
		s.ttsAPIKey = s.llmAPIKey
	}

	if p.TTSProvider != "" {
		s.ttsProvider = p.TTSProvider
		s.ttsProviderSet = true
	}
}

// Snapshot is an immutable, consistent read of the session taken under a
// read lock, safe to pass into a narration request without further locking.
type Snapshot struct {
	LLMAPIKey      string
	TTSAPIKey      string
	LLMModel       string
	Voice          string
	TTSProvider    Provider
	Mode           Mode
	Character      string
	BaseURL        string
	DefaultHeaders map[string]string
}

// IsConfigured reports the invariant is_configured <=> llm_api_key != nil &&
// tts_api_key != nil.
func (s Snapshot) IsConfigured() bool {
	return s.LLMAPIKey != "" && s.TTSAPIKey != ""
}

// Snapshot returns a consistent copy of the current configuration. If
// tts_provider was never explicitly set, it is re-derived from tts_api_key
// on every snapshot, per the component's invariant.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	provider := s.ttsProvider
	if !s.ttsProviderSet {
		provider = DetectProvider(s.ttsAPIKey)
	}

	headers := make(map[string]string, len(s.defaultHeaders))
	for k, v := range s.defaultHeaders {
		headers[k] = v
	}

	return Snapshot{
		LLMAPIKey:      s.llmAPIKey,
		TTSAPIKey:      s.ttsAPIKey,
		LLMModel:       s.llmModel,
		Voice:          s.voice,
		TTSProvider:    provider,
		Mode:           s.mode,
		Character:      s.character,
		BaseURL:        s.baseURL,
		DefaultHeaders: headers,
	}
}

// DetectProvider auto-detects a TTS provider from an api key's prefix:
// "elevenlabs_" or "el-" select ElevenLabs; anything else defaults to OpenAI.
func DetectProvider(apiKey string) Provider {
	if strings.HasPrefix(apiKey, "elevenlabs_") || strings.HasPrefix(apiKey, "el-") {
		return ProviderElevenLabs
	}
	return ProviderOpenAI
}
