package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lokutor-ai/vibebridge/internal/audioplayer"
	"github.com/lokutor-ai/vibebridge/internal/bridge"
	"github.com/lokutor-ai/vibebridge/internal/config"
	"github.com/lokutor-ai/vibebridge/internal/llmclient"
	"github.com/lokutor-ai/vibebridge/internal/logging"
	"github.com/lokutor-ai/vibebridge/internal/narration"
	"github.com/lokutor-ai/vibebridge/internal/session"
	"github.com/lokutor-ai/vibebridge/internal/ttsclient"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bridge <command> [args...]")
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("bridge: load config: %v", err)
	}
	if cfg.Session.LLMAPIKey == "" {
		log.Println("Note: BRIDGE_LLM_API_KEY not set; narration stays unconfigured")
	}

	logger := buildLogger()

	narrator, closeNarrator, err := buildNarrator(cfg, logger)
	if err != nil {
		log.Fatalf("bridge: %v", err)
	}

	player := audioplayer.New(logger)
	if err := player.Start(); err != nil {
		log.Printf("bridge: audio player unavailable, narration will run silently: %v", err)
	}

	orchCfg := bridge.Config{
		NarrationConcurrency: cfg.NarrationConcurrency,
		NarrationTimeout:     cfg.NarrationTimeout,
	}
	orch := bridge.New(narrator, player, orchCfg, logger)

	exitCode, err := orch.Run(context.Background(), command, args)
	player.Stop()
	closeNarrator()
	if err != nil {
		log.Printf("bridge: %v", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// buildNarrator picks the in-process narration service for the common
// single-process deployment. When BRIDGE_NARRATOR_CMD names an external MCP
// narration server, it spawns that server and drives it over stdio through a
// bridge.MCPNarrator instead.
func buildNarrator(cfg config.Config, logger logging.Logger) (bridge.Narrator, func(), error) {
	if parts := strings.Fields(cfg.NarratorCmd); len(parts) > 0 {
		transport := &mcpsdk.CommandTransport{Command: exec.Command(parts[0], parts[1:]...)}
		mcpNarr, err := bridge.NewMCPNarrator(context.Background(), transport, logger)
		if err != nil {
			return nil, nil, err
		}
		return mcpNarr, func() { mcpNarr.Close() }, nil
	}

	sess := session.New()
	if cfg.Session.LLMAPIKey != "" {
		sess.Configure(cfg.Session)
	}
	pipeline := narration.NewPipeline(llmclient.New(), ttsclient.New(), logger)
	return narrationAdapter{narration.NewService(sess, pipeline)}, func() {}, nil
}

// narrationAdapter satisfies bridge.Narrator over an in-process
// narration.Service.
type narrationAdapter struct {
	svc *narration.Service
}

func (a narrationAdapter) NarrateText(ctx context.Context, prompt string, onChunk func(narration.Chunk)) (narration.NarrateResult, error) {
	return a.svc.NarrateText(ctx, prompt, onChunk)
}

func buildLogger() logging.Logger {
	path := os.Getenv("BRIDGE_LOG_FILE")
	if path == "" {
		return logging.NewConsole()
	}
	rotating, err := logging.NewRotatingFile(path, 10, 3)
	if err != nil {
		log.Printf("bridge: could not open log file %q, falling back to console: %v", path, err)
		return logging.NewConsole()
	}
	return logging.Multi(logging.NewConsole(), rotating)
}
