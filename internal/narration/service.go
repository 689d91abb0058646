package narration

import (
	"context"
	"fmt"

	"github.com/lokutor-ai/vibebridge/internal/character"
	"github.com/lokutor-ai/vibebridge/internal/session"
)

// Service implements the four tool-style narration operations on top of a
// Session and a Pipeline. It is the thing internal/mcpserver hosts as MCP
// tools.
type Service struct {
	Session  *session.Session
	Pipeline *Pipeline
}

// NewService returns a Service over sess and pipeline.
func NewService(sess *session.Session, pipeline *Pipeline) *Service {
	return &Service{Session: sess, Pipeline: pipeline}
}

// ConfigureResult is configure()'s human-readable acknowledgment.
type ConfigureResult struct {
	Message string
}

// Configure mutates the session. See session.Session.Configure for field
// semantics.
func (s *Service) Configure(p session.ConfigureParams) ConfigureResult {
	s.Session.Configure(p)
	snap := s.Session.Snapshot()
	return ConfigureResult{
		Message: fmt.Sprintf(
			"Configured: model=%s mode=%s character=%s tts_provider=%s",
			snap.LLMModel, snap.Mode, snap.Character, snap.TTSProvider,
		),
	}
}

// NarrateResult is narrate_text()'s terminal response.
type NarrateResult struct {
	Text   string
	Audio  []byte
	Format string
	Error  string
}

// NarrateText runs one narration request against prompt. onChunk, if
// non-nil, receives each emitted (text, audio) fragment as it is produced,
// for progressive playback before the terminal result is returned.
func (s *Service) NarrateText(ctx context.Context, prompt string, onChunk func(Chunk)) (NarrateResult, error) {
	snap := s.Session.Snapshot()
	if !snap.IsConfigured() {
		return NarrateResult{}, ErrNotConfigured
	}

	char := character.Get(snap.Character)
	result, err := s.Pipeline.Run(ctx, snap, char, prompt, onChunk)
	if err != nil {
		return NarrateResult{}, err
	}

	return NarrateResult{
		Text:   result.Text,
		Audio:  result.Audio,
		Format: "mp3",
	}, nil
}

// CharacterInfo is one entry of list_characters()'s response.
type CharacterInfo struct {
	ID          string
	Name        string
	Description string
}

// ListCharacters returns every registered character.
func (s *Service) ListCharacters() []CharacterInfo {
	chars := character.List()
	out := make([]CharacterInfo, 0, len(chars))
	for _, c := range chars {
		out = append(out, CharacterInfo{ID: c.ID, Name: c.HumanName, Description: c.Description()})
	}
	return out
}

// ConfigStatus is get_config_status()'s response. Secret values are never
// included, only presence booleans.
type ConfigStatus struct {
	HasAPIKey         bool
	HasTTSAPIKey      bool
	IsConfigured      bool
	Model             string
	Voice             string
	Mode              string
	Character         string
	BaseURL           string
	HasDefaultHeaders bool
	TTSProvider       string
	DefaultHeaderKeys []string
}

// GetConfigStatus introspects the current session without exposing secrets.
func (s *Service) GetConfigStatus() ConfigStatus {
	snap := s.Session.Snapshot()

	keys := make([]string, 0, len(snap.DefaultHeaders))
	for k := range snap.DefaultHeaders {
		keys = append(keys, k)
	}

	return ConfigStatus{
		HasAPIKey:         snap.LLMAPIKey != "",
		HasTTSAPIKey:      snap.TTSAPIKey != "",
		IsConfigured:      snap.IsConfigured(),
		Model:             snap.LLMModel,
		Voice:             snap.Voice,
		Mode:              string(snap.Mode),
		Character:         snap.Character,
		BaseURL:           snap.BaseURL,
		HasDefaultHeaders: len(snap.DefaultHeaders) > 0,
		TTSProvider:       string(snap.TTSProvider),
		DefaultHeaderKeys: keys,
	}
}
