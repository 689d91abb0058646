// Package ttsclient is a provider-polymorphic text-to-speech client. The
// provider is a runtime variant of one contract rather than a type
// hierarchy; both openai and elevenlabs are plain POST-and-stream-bytes
// endpoints, so the client is REST throughout.
package ttsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lokutor-ai/vibebridge/internal/session"
)

const (
	openAIEndpoint        = "https://api.openai.com/v1/audio/speech"
	elevenLabsEndpointFmt = "https://api.elevenlabs.io/v1/text-to-speech/%s"

	// DefaultElevenLabsModel is used for every elevenlabs request; sessions
	// expose voice selection, not model_id, so this is the multilingual
	// model elevenlabs documents as the default.
	DefaultElevenLabsModel = "eleven_multilingual_v2"

	// MimeTypeMP3 is the content type every chunk's audio is decoded as.
	MimeTypeMP3 = "audio/mpeg"
)

// Request describes one text-to-speech call. StyleInstructions is only sent
// to the openai-compatible endpoint; elevenlabs carries prosody through
// model/voice choice instead.
type Request struct {
	Provider          session.Provider
	APIKey            string
	Voice             string
	Text              string
	StyleInstructions string
}

// Client is a minimal REST TTS client. The zero value is usable; tests
// override OpenAIEndpoint/ElevenLabsEndpointFmt to point at a fake server.
type Client struct {
	HTTPClient *http.Client

	OpenAIEndpoint        string
	ElevenLabsEndpointFmt string
}

// New returns a Client using http.DefaultClient and the real provider
// endpoints.
func New() *Client {
	return &Client{
		HTTPClient:            http.DefaultClient,
		OpenAIEndpoint:        openAIEndpoint,
		ElevenLabsEndpointFmt: elevenLabsEndpointFmt,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) openAIEndpoint() string {
	if c.OpenAIEndpoint != "" {
		return c.OpenAIEndpoint
	}
	return openAIEndpoint
}

func (c *Client) elevenLabsEndpointFmt() string {
	if c.ElevenLabsEndpointFmt != "" {
		return c.ElevenLabsEndpointFmt
	}
	return elevenLabsEndpointFmt
}

// Synthesize calls the provider and returns the full MP3-framed audio for
// req.Text. Every fragment the provider streams back is concatenated into
// this single blob before returning, so the caller always receives an
// independently decodable chunk.
func (c *Client) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	switch req.Provider {
	case session.ProviderElevenLabs:
		return c.synthesizeElevenLabs(ctx, req)
	default:
		return c.synthesizeOpenAI(ctx, req)
	}
}

func (c *Client) synthesizeOpenAI(ctx context.Context, req Request) ([]byte, error) {
	payload := map[string]any{
		"model":           "tts-1",
		"voice":           req.Voice,
		"input":           req.Text,
		"response_format": "mp3",
	}
	if req.StyleInstructions != "" {
		payload["instructions"] = req.StyleInstructions
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ttsclient: encode openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openAIEndpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ttsclient: build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	return c.doAndDrain(httpReq, "openai")
}

func (c *Client) synthesizeElevenLabs(ctx context.Context, req Request) ([]byte, error) {
	payload := map[string]any{
		"text":     req.Text,
		"model_id": DefaultElevenLabsModel,
		"voice_settings": map[string]float64{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ttsclient: encode elevenlabs request: %w", err)
	}

	url := fmt.Sprintf(c.elevenLabsEndpointFmt(), req.Voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ttsclient: build elevenlabs request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", MimeTypeMP3)
	httpReq.Header.Set("xi-api-key", req.APIKey)

	return c.doAndDrain(httpReq, "elevenlabs")
}

func (c *Client) doAndDrain(httpReq *http.Request, provider string) ([]byte, error) {
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ttsclient: %s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Provider: provider, Status: resp.StatusCode, Message: string(msg), URL: httpReq.URL.String()}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("ttsclient: %s read response: %w", provider, err)
	}
	return buf.Bytes(), nil
}

// APIError carries provider diagnostic detail for narration.errors to wrap.
type APIError struct {
	Provider string
	Status   int
	Message  string
	URL      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ttsclient: %s status %d: %s", e.Provider, e.Status, e.Message)
}
