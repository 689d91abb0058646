package bridge

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lokutor-ai/vibebridge/internal/logging"
)

// The logical tool names are the operations the narration service exposes,
// keyed by what the rest of this package calls them regardless of whatever
// name the connected MCP server actually registered them under.
const (
	logicalConfigure       = "configure"
	logicalNarrateText     = "narrate_text"
	logicalListCharacters  = "list_characters"
	logicalGetConfigStatus = "get_config_status"
)

// toolNames maps each logical operation to the name to send in CallTool.
type toolNames struct {
	Configure       string
	NarrateText     string
	ListCharacters  string
	GetConfigStatus string
}

// resolveToolNames discovers the tool catalogue of a connected MCP session
// and maps it onto the four logical operations the bridge needs, tolerating
// a server that namespaces its tools (e.g. under a prefix like
// "vibebridge_narrate_text" instead of the bare "narrate_text"). Resolution
// is exact match first, then a "*_<logical name>" suffix match, and finally
// falls back to the bare logical name with a logged warning so a
// misconfigured server still gets a best-effort CallTool attempt instead of
// a hard failure at startup.
func resolveToolNames(ctx context.Context, session *mcpsdk.ClientSession, logger logging.Logger) (toolNames, error) {
	if logger == nil {
		logger = logging.NoOp()
	}

	var available []string
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return toolNames{}, fmt.Errorf("bridge: list mcp tools: %w", err)
		}
		available = append(available, tool.Name)
	}

	resolve := func(logical string) string {
		for _, name := range available {
			if name == logical {
				return name
			}
		}
		suffix := "_" + logical
		for _, name := range available {
			if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
				return name
			}
		}
		logger.Warn("bridge: mcp server did not advertise tool, falling back to logical name", "tool", logical)
		return logical
	}

	return toolNames{
		Configure:       resolve(logicalConfigure),
		NarrateText:     resolve(logicalNarrateText),
		ListCharacters:  resolve(logicalListCharacters),
		GetConfigStatus: resolve(logicalGetConfigStatus),
	}, nil
}
