package ttsclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lokutor-ai/vibebridge/internal/session"
)

func TestSynthesizeOpenAISendsInstructionsAndReturnsBytes(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("fake-mp3-bytes"))
	}))
	defer server.Close()

	c := &Client{HTTPClient: server.Client(), OpenAIEndpoint: server.URL}
	audio, err := c.Synthesize(context.Background(), Request{
		Provider:          session.ProviderOpenAI,
		APIKey:            "test-key",
		Voice:             "nova",
		Text:              "hello world",
		StyleInstructions: "speak wearily",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "fake-mp3-bytes" {
		t.Errorf("audio = %q, want fake-mp3-bytes", audio)
	}
	if got["instructions"] != "speak wearily" {
		t.Errorf("instructions = %v, want speak wearily", got["instructions"])
	}
	if got["response_format"] != "mp3" {
		t.Errorf("response_format = %v, want mp3", got["response_format"])
	}
}

func TestSynthesizeElevenLabsSendsVoiceSettings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "el-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hello" {
			t.Errorf("text = %v, want hello", body["text"])
		}
		settings, ok := body["voice_settings"].(map[string]any)
		if !ok || settings["stability"] != 0.5 {
			t.Errorf("voice_settings = %v", body["voice_settings"])
		}
		w.Write([]byte("fake-mp3-bytes"))
	}))
	defer server.Close()

	c := &Client{HTTPClient: server.Client(), ElevenLabsEndpointFmt: server.URL + "/%s"}
	audio, err := c.Synthesize(context.Background(), Request{
		Provider: session.ProviderElevenLabs,
		APIKey:   "el-key",
		Voice:    "voice-id",
		Text:     "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "fake-mp3-bytes" {
		t.Errorf("audio = %q, want fake-mp3-bytes", audio)
	}
}

func TestSynthesizeErrorCarriesStatusAndURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	c := &Client{HTTPClient: server.Client(), OpenAIEndpoint: server.URL}
	_, err := c.Synthesize(context.Background(), Request{Provider: session.ProviderOpenAI, APIKey: "x", Text: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err type = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", apiErr.Status)
	}
}
