package mcp

import (
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/rutina/internal/config"
	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/logger"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"routine", "profile", "day", "insights", "event", "reminder", "person", "backup"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"routine_generate": {
		def:     routineGenerateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRoutineGenerate },
	},
	"routine_refine": {
		def:     routineRefineToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRoutineRefine },
	},
	"routine_get": {
		def:     routineGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRoutineGet },
	},
	"routine_export": {
		def:     routineExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRoutineExport },
	},
	"profile_get": {
		def:     profileGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileGet },
	},
	"profile_save": {
		def:     profileSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileSave },
	},
	"day_get": {
		def:     dayGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDayGet },
	},
	"day_feedback": {
		def:     dayFeedbackToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDayFeedback },
	},
	"day_checklist": {
		def:     dayChecklistToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDayChecklist },
	},
	"day_close": {
		def:     dayCloseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDayClose },
	},
	"insights_get": {
		def:     insightsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInsightsGet },
	},
	"event_add": {
		def:     eventAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventAdd },
	},
	"event_list": {
		def:     eventListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventList },
	},
	"event_delete": {
		def:     eventDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventDelete },
	},
	"event_calendar": {
		def:     eventCalendarToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventCalendar },
	},
	"reminder_add": {
		def:     reminderAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReminderAdd },
	},
	"reminder_list": {
		def:     reminderListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReminderList },
	},
	"reminder_delete": {
		def:     reminderDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReminderDelete },
	},
	"person_add": {
		def:     personAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePersonAdd },
	},
	"person_list": {
		def:     personListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePersonList },
	},
	"person_delete": {
		def:     personDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePersonDelete },
	},
	"backup_export": {
		def:     backupExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackupExport },
	},
	"backup_import": {
		def:     backupImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackupImport },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
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
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name
// ("routine_generate" → "routine").
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

	tools := make([]string, 0)
	for _, name := range AllToolNames() {
		if slices.Contains(types, GetTypeForTool(name)) {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server with the Rutina tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration; unknown names are logged and ignored.
func NewServer(kv db.KV, cfg *config.Config, baseDir, version string, log *logger.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"rutina",
		version,
		server.WithToolCapabilities(true),
	)

	if unknown := ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("ignoring unknown disabled tools", "tools", unknown)
	}
	if unknown := ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("ignoring unknown disabled types", "types", unknown)
	}

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	h := NewHandlers(kv, baseDir)
	registered := 0
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
		registered++
	}
	log.Debug("mcp tools registered", "count", registered, "disabled", len(disabled))

	return s
}

// Run serves the MCP tools over stdio until stdin closes.
func Run(kv db.KV, cfg *config.Config, baseDir, version string, log *logger.Logger) error {
	s := NewServer(kv, cfg, baseDir, version, log)
	return server.ServeStdio(s)
}
