package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lokutor-ai/vibebridge/internal/llmclient"
	"github.com/lokutor-ai/vibebridge/internal/mcpserver"
	"github.com/lokutor-ai/vibebridge/internal/narration"
	"github.com/lokutor-ai/vibebridge/internal/session"
	"github.com/lokutor-ai/vibebridge/internal/ttsclient"
)

// TestMCPNarratorDeliversAudioToOnChunk drives a narration request through
// a real in-memory MCP server and asserts the decoded audio reaches the
// onChunk callback, which is what the orchestrator feeds the audio player
// from. Without it, the out-of-process narrator mode would be silent.
func TestMCPNarratorDeliversAudioToOnChunk(t *testing.T) {
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunk := map[string]any{"choices": []map[string]any{{"delta": map[string]string{"content": "All done."}}}}
		b, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", b)
		final := map[string]any{"choices": []map[string]any{{"delta": map[string]string{}, "finish_reason": "stop"}}}
		b, _ = json.Marshal(final)
		fmt.Fprintf(w, "data: %s\n\n", b)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer llmServer.Close()

	ttsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-mp3-bytes"))
	}))
	defer ttsServer.Close()

	sess := session.New()
	sess.Configure(session.ConfigureParams{LLMAPIKey: "sk-x", Voice: "nova", BaseURL: llmServer.URL})
	pipeline := narration.NewPipeline(
		&llmclient.Client{HTTPClient: llmServer.Client()},
		&ttsclient.Client{HTTPClient: ttsServer.Client(), OpenAIEndpoint: ttsServer.URL},
		nil,
	)
	srv := mcpserver.New(narration.NewService(sess, pipeline), nil, nil)

	clientTr, serverTr := mcpsdk.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx, serverTr)

	narr, err := NewMCPNarrator(ctx, clientTr, nil)
	if err != nil {
		t.Fatalf("connect narrator: %v", err)
	}
	defer narr.Close()

	var chunks []narration.Chunk
	result, err := narr.NarrateText(ctx, "task finished", func(c narration.Chunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("narrate: %v", err)
	}
	if len(result.Audio) == 0 {
		t.Fatal("expected non-empty audio in the terminal result")
	}
	if len(chunks) == 0 {
		t.Fatal("expected onChunk to receive the narration audio")
	}
	if len(chunks[0].AudioBytes) == 0 {
		t.Error("onChunk chunk has empty audio")
	}
	if chunks[0].TextFragment == "" {
		t.Error("onChunk chunk has empty text")
	}
}
