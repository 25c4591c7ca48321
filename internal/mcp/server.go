package mcp

import (
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/beautify/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"beautify", "session"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"beautify_effects": {
		def:     effectsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEffects },
	},
	"beautify_apply": {
		def:     applyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApply },
	},
	"beautify_thumbnails": {
		def:     thumbnailsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleThumbnails },
	},
	"beautify_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"beautify_last": {
		def:     lastToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLast },
	},
	"beautify_purge": {
		def:     purgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
	"session_open": {
		def:     sessionOpenToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionOpen },
	},
	"session_get": {
		def:     sessionGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionGet },
	},
	"session_adjust": {
		def:     sessionAdjustToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionAdjust },
	},
	"session_select_effect": {
		def:     sessionSelectEffectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionSelectEffect },
	},
	"session_set_opacity": {
		def:     sessionSetOpacityToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionSetOpacity },
	},
	"session_switch_category": {
		def:     sessionSwitchCategoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionSwitchCategory },
	},
	"session_preview": {
		def:     sessionPreviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionPreview },
	},
	"session_accept": {
		def:     sessionAcceptToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionAccept },
	},
	"session_cancel": {
		def:     sessionCancelToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCancel },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "session_open" → "session").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Beautify tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration. The returned Handlers own the session
// registry; callers close it with Handlers.Close.
func NewServer(db *sql.DB, cfg *config.Config, version string) (*server.MCPServer, *Handlers) {
	s := server.NewMCPServer(
		"beautify",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s, h
}

// Run starts the MCP server using stdio transport. Open sessions are
// discarded when the transport closes.
func Run(db *sql.DB, cfg *config.Config, version string) error {
	s, h := NewServer(db, cfg, version)
	defer h.Close()
	return server.ServeStdio(s)
}
