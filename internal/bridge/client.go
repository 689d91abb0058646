package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lokutor-ai/vibebridge/internal/logging"
	"github.com/lokutor-ai/vibebridge/internal/narration"
	"github.com/lokutor-ai/vibebridge/internal/ttsclient"
)

// MCPNarrator adapts a connected MCP client session into the Narrator
// interface, so the orchestrator can drive narration running in a separate
// process (internal/mcpserver) exactly like an in-process
// narration.Service.
type MCPNarrator struct {
	session *mcpsdk.ClientSession
	names   toolNames
	logger  logging.Logger
}

// NewMCPNarrator connects transport and resolves the narration tool names it
// exposes.
func NewMCPNarrator(ctx context.Context, transport mcpsdk.Transport, logger logging.Logger) (*MCPNarrator, error) {
	if logger == nil {
		logger = logging.NoOp()
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "vibebridge", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: connect to narration mcp server: %w", err)
	}
	names, err := resolveToolNames(ctx, session, logger)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return &MCPNarrator{session: session, names: names, logger: logger}, nil
}

// Close disconnects the underlying MCP session.
func (m *MCPNarrator) Close() error {
	return m.session.Close()
}

type narrateCallArgs struct {
	Prompt string `json:"prompt"`
}

type narrateCallResult struct {
	Text   string `json:"text"`
	Audio  string `json:"audio"`
	Format string `json:"format"`
	Error  string `json:"error,omitempty"`
}

// NarrateText satisfies Narrator by round-tripping through narrate_text.
// The MCP call is synchronous, so per-chunk progress is not observable
// here; the decoded terminal result is handed to onChunk as one final
// chunk instead, so a caller wired for progressive playback still receives
// the audio. (Live per-chunk progress, when wanted, flows over the
// server's separate websocket sink.)
func (m *MCPNarrator) NarrateText(ctx context.Context, prompt string, onChunk func(narration.Chunk)) (narration.NarrateResult, error) {
	args, err := structToMap(narrateCallArgs{Prompt: prompt})
	if err != nil {
		return narration.NarrateResult{}, err
	}

	callResult, err := m.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      m.names.NarrateText,
		Arguments: args,
	})
	if err != nil {
		return narration.NarrateResult{}, fmt.Errorf("bridge: mcp call narrate_text: %w", err)
	}

	var out narrateCallResult
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			_ = json.Unmarshal([]byte(tc.Text), &out)
		}
	}
	if out.Error != "" {
		return narration.NarrateResult{}, fmt.Errorf("bridge: narration service: %s", out.Error)
	}

	audio, err := base64.StdEncoding.DecodeString(out.Audio)
	if err != nil {
		return narration.NarrateResult{}, fmt.Errorf("bridge: decode narration audio: %w", err)
	}
	if onChunk != nil && len(audio) > 0 {
		onChunk(narration.Chunk{Index: 0, TextFragment: out.Text, AudioBytes: audio, MimeType: ttsclient.MimeTypeMP3})
	}
	return narration.NarrateResult{Text: out.Text, Audio: audio, Format: out.Format}, nil
}

func structToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("bridge: marshal mcp tool args: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("bridge: remarshal mcp tool args: %w", err)
	}
	return m, nil
}
