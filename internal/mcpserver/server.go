// Package mcpserver hosts the narration service (internal/narration) as
// four MCP tools using github.com/modelcontextprotocol/go-sdk, plus an
// optional websocket fan-out of per-chunk progress events for companion
// clients that want progressive playback.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lokutor-ai/vibebridge/internal/logging"
	"github.com/lokutor-ai/vibebridge/internal/narration"
	"github.com/lokutor-ai/vibebridge/internal/session"
)

// Server wraps a narration.Service as an MCP server exposing configure,
// narrate_text, list_characters and get_config_status.
type Server struct {
	svc      *narration.Service
	logger   logging.Logger
	mcp      *mcpsdk.Server
	progress ProgressSink
}

// ProgressSink receives one progress event per emitted narration chunk.
// cmd/narrator supplies a websocket-backed sink (see progress.go) so a
// companion terminal client can start progressive playback before the
// terminal narrate_text response arrives; nil is a valid no-op sink.
type ProgressSink interface {
	Publish(event ChunkEvent)
}

// ChunkEvent is the wire shape of a narrate_text progress notification:
// {type: "chunk", index, text, audio (base64)}.
type ChunkEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Text  string `json:"text"`
	Audio string `json:"audio"`
}

// New builds the MCP server and registers its four tools. logger defaults
// to a no-op logger; progress defaults to a no-op sink when nil.
func New(svc *narration.Service, logger logging.Logger, progress ProgressSink) *Server {
	if logger == nil {
		logger = logging.NoOp()
	}
	s := &Server{svc: svc, logger: logger, progress: progress}

	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{Name: "vibebridge-narrator", Version: "1.0.0"}, nil)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "configure",
		Description: "Configure the narration session's LLM/TTS credentials, model, voice, mode and character.",
	}, s.handleConfigure)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "narrate_text",
		Description: "Narrate a captured span of terminal output in the configured character's voice.",
	}, s.handleNarrateText)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "list_characters",
		Description: "List the available narration characters.",
	}, s.handleListCharacters)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "get_config_status",
		Description: "Report whether the narration session is configured, without exposing secret values.",
	}, s.handleGetConfigStatus)

	return s
}

// Run serves the MCP contract over transport (stdio, in-process pipe, …)
// until the context is canceled or the transport closes.
func (s *Server) Run(ctx context.Context, transport mcpsdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}

type configureArgs struct {
	LLMAPIKey      string            `json:"llm_api_key"`
	LLMModel       string            `json:"llm_model,omitempty"`
	Voice          string            `json:"voice,omitempty"`
	Mode           string            `json:"mode,omitempty"`
	Character      string            `json:"character,omitempty"`
	BaseURL        string            `json:"base_url,omitempty"`
	DefaultHeaders map[string]string `json:"default_headers,omitempty"`
	TTSAPIKey      string            `json:"tts_api_key,omitempty"`
	TTSProvider    string            `json:"tts_provider,omitempty"`
}

type configureResult struct {
	Message string `json:"message"`
}

func (s *Server) handleConfigure(ctx context.Context, req *mcpsdk.CallToolRequest, args configureArgs) (*mcpsdk.CallToolResult, configureResult, error) {
	res := s.svc.Configure(session.ConfigureParams{
		LLMAPIKey:      args.LLMAPIKey,
		LLMModel:       args.LLMModel,
		Voice:          args.Voice,
		Mode:           session.Mode(args.Mode),
		Character:      args.Character,
		BaseURL:        args.BaseURL,
		DefaultHeaders: args.DefaultHeaders,
		TTSAPIKey:      args.TTSAPIKey,
		TTSProvider:    session.Provider(args.TTSProvider),
	})
	out := configureResult{Message: res.Message}
	return textResult(res.Message), out, nil
}

type narrateArgs struct {
	Prompt string `json:"prompt"`
}

type narrateResult struct {
	Text   string `json:"text"`
	Audio  string `json:"audio"`
	Format string `json:"format"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleNarrateText(ctx context.Context, req *mcpsdk.CallToolRequest, args narrateArgs) (*mcpsdk.CallToolResult, narrateResult, error) {
	result, err := s.svc.NarrateText(ctx, args.Prompt, func(c narration.Chunk) {
		if s.progress != nil {
			s.progress.Publish(ChunkEvent{
				Type:  "chunk",
				Index: c.Index,
				Text:  c.TextFragment,
				Audio: base64.StdEncoding.EncodeToString(c.AudioBytes),
			})
		}
	})
	if err != nil {
		out := narrateResult{Error: err.Error()}
		return jsonResult(out), out, nil
	}

	out := narrateResult{
		Text:   result.Text,
		Audio:  base64.StdEncoding.EncodeToString(result.Audio),
		Format: result.Format,
	}
	return jsonResult(out), out, nil
}

type listCharactersResult struct {
	Characters []characterEntry `json:"characters"`
}

type characterEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleListCharacters(ctx context.Context, req *mcpsdk.CallToolRequest, args struct{}) (*mcpsdk.CallToolResult, listCharactersResult, error) {
	chars := s.svc.ListCharacters()
	out := listCharactersResult{Characters: make([]characterEntry, 0, len(chars))}
	for _, c := range chars {
		out.Characters = append(out.Characters, characterEntry{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	return textResult("ok"), out, nil
}

type configStatusResult struct {
	HasAPIKey    bool `json:"has_api_key"`
	HasTTSAPIKey bool `json:"has_tts_api_key"`
	IsConfigured bool `json:"is_configured"`
	Session      struct {
		Model             string   `json:"model"`
		Voice             string   `json:"voice"`
		Mode              string   `json:"mode"`
		Character         string   `json:"character"`
		BaseURL           string   `json:"base_url"`
		HasDefaultHeaders bool     `json:"has_default_headers"`
		TTSProvider       string   `json:"tts_provider"`
		DefaultHeaderKeys []string `json:"default_headers_keys,omitempty"`
	} `json:"session"`
}

func (s *Server) handleGetConfigStatus(ctx context.Context, req *mcpsdk.CallToolRequest, args struct{}) (*mcpsdk.CallToolResult, configStatusResult, error) {
	status := s.svc.GetConfigStatus()
	out := configStatusResult{
		HasAPIKey:    status.HasAPIKey,
		HasTTSAPIKey: status.HasTTSAPIKey,
		IsConfigured: status.IsConfigured,
	}
	out.Session.Model = status.Model
	out.Session.Voice = status.Voice
	out.Session.Mode = status.Mode
	out.Session.Character = status.Character
	out.Session.BaseURL = status.BaseURL
	out.Session.HasDefaultHeaders = status.HasDefaultHeaders
	out.Session.TTSProvider = status.TTSProvider
	out.Session.DefaultHeaderKeys = status.DefaultHeaderKeys
	return textResult("ok"), out, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}}}
}

// jsonResult embeds v's JSON encoding as the tool's text content, so a
// client-side caller (internal/bridge.MCPNarrator) can decode the result
// without depending on a structured-content field the SDK may or may not
// surface identically across versions.
func jsonResult(v any) *mcpsdk.CallToolResult {
	raw, err := json.Marshal(v)
	if err != nil {
		return textResult(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return textResult(string(raw))
}
