// Command narrator hosts the narration service as a standalone MCP server
// over stdio, for deployments where the PTY bridge and the narration
// service run as separate processes. The bridge connects to it with
// BRIDGE_NARRATOR_CMD; any MCP-capable client can drive the same four
// tools directly.
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lokutor-ai/vibebridge/internal/config"
	"github.com/lokutor-ai/vibebridge/internal/llmclient"
	"github.com/lokutor-ai/vibebridge/internal/logging"
	"github.com/lokutor-ai/vibebridge/internal/mcpserver"
	"github.com/lokutor-ai/vibebridge/internal/narration"
	"github.com/lokutor-ai/vibebridge/internal/session"
	"github.com/lokutor-ai/vibebridge/internal/ttsclient"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("narrator: load config: %v", err)
	}

	// stdout carries the MCP framing, so logs go to stderr or a file only.
	logger := buildLogger()

	sess := session.New()
	if cfg.Session.LLMAPIKey != "" {
		sess.Configure(cfg.Session)
	}

	pipeline := narration.NewPipeline(llmclient.New(), ttsclient.New(), logger)
	svc := narration.NewService(sess, pipeline)

	var sink mcpserver.ProgressSink
	if addr := os.Getenv("BRIDGE_PROGRESS_ADDR"); addr != "" {
		ws := mcpserver.NewWebsocketProgressSink(logger)
		sink = ws
		go func() {
			if err := http.ListenAndServe(addr, ws.Handler()); err != nil {
				logger.Error("narrator: progress listener failed", "addr", addr, "err", err)
			}
		}()
	}

	srv := mcpserver.New(svc, logger, sink)
	if err := srv.Run(context.Background(), &mcpsdk.StdioTransport{}); err != nil {
		log.Fatalf("narrator: %v", err)
	}
}

func buildLogger() logging.Logger {
	path := os.Getenv("BRIDGE_LOG_FILE")
	if path == "" {
		return logging.NewConsole()
	}
	rotating, err := logging.NewRotatingFile(path, 10, 3)
	if err != nil {
		log.Printf("narrator: could not open log file %q, falling back to console: %v", path, err)
		return logging.NewConsole()
	}
	return logging.Multi(logging.NewConsole(), rotating)
}
