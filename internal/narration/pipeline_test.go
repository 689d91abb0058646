package narration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lokutor-ai/vibebridge/internal/character"
	"github.com/lokutor-ai/vibebridge/internal/llmclient"
	"github.com/lokutor-ai/vibebridge/internal/session"
	"github.com/lokutor-ai/vibebridge/internal/ttsclient"
)

func fakeLLMServer(t *testing.T, sentences []string, finishReason string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, s := range sentences {
			chunk := map[string]any{"choices": []map[string]any{{"delta": map[string]string{"content": s}}}}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		final := map[string]any{"choices": []map[string]any{{"delta": map[string]string{}, "finish_reason": finishReason}}}
		b, _ := json.Marshal(final)
		fmt.Fprintf(w, "data: %s\n\n", b)
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func fakeTTSServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte("mp3:" + fmt.Sprint(body["input"])))
	}))
}

func TestPipelineRunProducesChunksInOrder(t *testing.T) {
	llmServer := fakeLLMServer(t, []string{"Hello there.", " How are you."}, "stop")
	defer llmServer.Close()
	ttsServer := fakeTTSServer(t)
	defer ttsServer.Close()

	p := NewPipeline(
		&llmclient.Client{HTTPClient: llmServer.Client()},
		&ttsclient.Client{HTTPClient: ttsServer.Client(), OpenAIEndpoint: ttsServer.URL},
		nil,
	)

	snap := session.Snapshot{
		LLMAPIKey:   "sk-x",
		TTSAPIKey:   "sk-x",
		LLMModel:    "gpt-4o-mini",
		Mode:        session.ModeNarration,
		TTSProvider: session.ProviderOpenAI,
	}
	snap.BaseURL = llmServer.URL

	var chunks []Chunk
	result, err := p.Run(context.Background(), snap, character.Default(), "hello world", func(c Chunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
	}
	if result.Text == "" {
		t.Error("expected non-empty result text")
	}
}

func TestPipelineEmptyResultIsNotAnError(t *testing.T) {
	llmServer := fakeLLMServer(t, nil, "stop")
	defer llmServer.Close()
	ttsServer := fakeTTSServer(t)
	defer ttsServer.Close()

	p := NewPipeline(
		&llmclient.Client{HTTPClient: llmServer.Client()},
		&ttsclient.Client{HTTPClient: ttsServer.Client(), OpenAIEndpoint: ttsServer.URL},
		nil,
	)
	snap := session.Snapshot{LLMAPIKey: "sk-x", TTSAPIKey: "sk-x", TTSProvider: session.ProviderOpenAI}
	snap.BaseURL = llmServer.URL

	result, err := p.Run(context.Background(), snap, character.Default(), "> write tests", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "" {
		t.Errorf("expected empty text, got %q", result.Text)
	}
}

func TestPipelineSentenceBoundaryContinuation(t *testing.T) {
	callCount := 0
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "text/event-stream")
		var sentences []string
		finish := "stop"
		if callCount == 1 {
			sentences = []string{"Everything worked fine and then"}
			finish = "length"
		} else {
			sentences = []string{"Everything worked fine and then", " it crashed."}
			finish = "stop"
		}
		for _, s := range sentences {
			chunk := map[string]any{"choices": []map[string]any{{"delta": map[string]string{"content": s}}}}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		final := map[string]any{"choices": []map[string]any{{"delta": map[string]string{}, "finish_reason": finish}}}
		b, _ := json.Marshal(final)
		fmt.Fprintf(w, "data: %s\n\n", b)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer llmServer.Close()
	ttsServer := fakeTTSServer(t)
	defer ttsServer.Close()

	p := NewPipeline(
		&llmclient.Client{HTTPClient: llmServer.Client()},
		&ttsclient.Client{HTTPClient: ttsServer.Client(), OpenAIEndpoint: ttsServer.URL},
		nil,
	)
	snap := session.Snapshot{LLMAPIKey: "sk-x", TTSAPIKey: "sk-x", TTSProvider: session.ProviderOpenAI}
	snap.BaseURL = llmServer.URL

	result, err := p.Run(context.Background(), snap, character.Default(), "what happened", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Everything worked fine and then it crashed."
	if result.Text != want {
		t.Errorf("result.Text = %q, want %q", result.Text, want)
	}
	if callCount < 2 {
		t.Errorf("expected continuation call, callCount = %d", callCount)
	}
}

// TestPipelineTTSFailureDuringStreamIsReturned guards against a TTS failure
// on an early sentence being logged and swallowed while the LLM stream
// keeps running to completion: the error must propagate out of Run, and no
// partial result should be returned.
func TestPipelineTTSFailureDuringStreamIsReturned(t *testing.T) {
	llmServer := fakeLLMServer(t, []string{"First sentence.", " Second sentence.", " Third sentence."}, "stop")
	defer llmServer.Close()

	ttsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if strings.Contains(fmt.Sprint(body["input"]), "Second") {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("synthesis failed"))
			return
		}
		w.Write([]byte("mp3:" + fmt.Sprint(body["input"])))
	}))
	defer ttsServer.Close()

	p := NewPipeline(
		&llmclient.Client{HTTPClient: llmServer.Client()},
		&ttsclient.Client{HTTPClient: ttsServer.Client(), OpenAIEndpoint: ttsServer.URL},
		nil,
	)
	snap := session.Snapshot{LLMAPIKey: "sk-x", TTSAPIKey: "sk-x", TTSProvider: session.ProviderOpenAI}
	snap.BaseURL = llmServer.URL

	var chunks []Chunk
	result, err := p.Run(context.Background(), snap, character.Default(), "tell me what happened", func(c Chunk) {
		chunks = append(chunks, c)
	})
	if err == nil {
		t.Fatal("expected an error from the failed TTS chunk, got nil")
	}
	if result.Text != "" || result.Audio != nil {
		t.Errorf("expected empty Result on failure, got %+v", result)
	}
}

// TestPipelineEmitsChunksInOrderDespiteOutOfOrderTTS proves the result
// emitter reorders by chunk index rather than by TTS completion order: the
// first sentence's synthesis is made artificially slower than the second's,
// so the underlying TTS calls finish out of order, but onChunk must still
// be invoked with indexes 0, 1, 2 in that order.
func TestPipelineEmitsChunksInOrderDespiteOutOfOrderTTS(t *testing.T) {
	llmServer := fakeLLMServer(t, []string{"Alpha.", " Beta.", " Gamma."}, "stop")
	defer llmServer.Close()

	ttsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		input := fmt.Sprint(body["input"])
		if strings.Contains(input, "Alpha") {
			time.Sleep(40 * time.Millisecond)
		}
		w.Write([]byte("mp3:" + input))
	}))
	defer ttsServer.Close()

	p := NewPipeline(
		&llmclient.Client{HTTPClient: llmServer.Client()},
		&ttsclient.Client{HTTPClient: ttsServer.Client(), OpenAIEndpoint: ttsServer.URL},
		nil,
	)
	snap := session.Snapshot{LLMAPIKey: "sk-x", TTSAPIKey: "sk-x", TTSProvider: session.ProviderOpenAI}
	snap.BaseURL = llmServer.URL

	var chunks []Chunk
	result, err := p.Run(context.Background(), snap, character.Default(), "recap", func(c Chunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("onChunk delivered index %d at position %d, want in-order delivery", c.Index, i)
		}
	}
	if !strings.HasPrefix(result.Text, "Alpha.") {
		t.Errorf("result.Text = %q, want to start with %q despite Alpha's slower synthesis", result.Text, "Alpha.")
	}
}
