package mcp

import "github.com/mark3labs/mcp-go/mcp"

var feedbackItems = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"routineId": map[string]any{"type": "string"},
		"stepId":    map[string]any{"type": "string"},
		"outcome":   map[string]any{"type": "string", "enum": []string{"ok", "hard", "failed"}},
		"note":      map[string]any{"type": "string"},
	},
	"required": []string{"routineId", "stepId", "outcome"},
}

// profileOptions are shared by routine_generate and profile_save.
func profileOptions(desc string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithDescription(desc),
		mcp.WithString("name", mcp.Description("First name used in the routine title")),
		mcp.WithNumber("age", mcp.Required(), mcp.Description("Age in years (2-99)"), mcp.Min(2), mcp.Max(99)),
		mcp.WithString("communicationLevel", mcp.Required(),
			mcp.Enum("verbal", "semi-verbal", "non-verbal")),
		mcp.WithArray("sensorySensitivity",
			mcp.Description("Sensory channels the person is sensitive to"),
			mcp.Items(map[string]any{"type": "string", "enum": []string{"sound", "light", "touch", "crowds"}})),
		mcp.WithString("supportLevel", mcp.Enum("low", "moderate", "high")),
		mcp.WithString("routineFocus", mcp.Enum("full-day", "morning", "afternoon", "evening")),
		mcp.WithString("goal", mcp.Required(), mcp.Description("What the routine is for (5-140 characters)")),
		mcp.WithString("context", mcp.Required(), mcp.Enum("home", "school", "mixed")),
	}
}

func dayOption() mcp.ToolOption {
	return mcp.WithString("day", mcp.Description("Calendar day YYYY-MM-DD (default: today)"))
}

var routineGenerateToolDef = mcp.NewTool("routine_generate",
	profileOptions("Generate a visual daily routine from a caregiver profile and store it as the current routine")...,
)

var routineRefineToolDef = mcp.NewTool("routine_refine",
	mcp.WithDescription("Adjust a routine from per-step feedback. Steps marked hard or failed get shorter durations and a backup plan. The result becomes the stored routine."),
	mcp.WithObject("routine", mcp.Required(), mcp.Description("Routine to refine, as returned by routine_generate or routine_get")),
	mcp.WithArray("feedback", mcp.Required(), mcp.Items(feedbackItems)),
)

var routineGetToolDef = mcp.NewTool("routine_get",
	mcp.WithDescription("Return the current routine"),
	mcp.WithReadOnlyHintAnnotation(true),
)

var routineExportToolDef = mcp.NewTool("routine_export",
	mcp.WithDescription("Write the current routine as a printable markdown file in the exports directory"),
	mcp.WithString("path", mcp.Description("Target .md file inside the exports directory (default: generated name)")),
)

var profileGetToolDef = mcp.NewTool("profile_get",
	mcp.WithDescription("Return the saved caregiver profile"),
	mcp.WithReadOnlyHintAnnotation(true),
)

var profileSaveToolDef = mcp.NewTool("profile_save",
	profileOptions("Validate and save the caregiver profile")...,
)

var dayGetToolDef = mcp.NewTool("day_get",
	mcp.WithDescription("Return the checklist and feedback recorded for a day"),
	dayOption(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var dayFeedbackToolDef = mcp.NewTool("day_feedback",
	mcp.WithDescription("Record per-step outcomes for a day; a later entry for a step replaces the earlier one"),
	dayOption(),
	mcp.WithArray("feedback", mcp.Required(), mcp.Items(feedbackItems)),
)

var dayChecklistToolDef = mcp.NewTool("day_checklist",
	mcp.WithDescription("Mark a step done or not done for a day"),
	dayOption(),
	mcp.WithString("stepId", mcp.Required()),
	mcp.WithBoolean("done", mcp.Description("Desired state (default: toggle)")),
)

var dayCloseToolDef = mcp.NewTool("day_close",
	mcp.WithDescription("Close a day: record completion stats and clear its checklist and feedback"),
	dayOption(),
)

var insightsGetToolDef = mcp.NewTool("insights_get",
	mcp.WithDescription("Summarize closed days: average completion and hard/failed totals"),
	mcp.WithNumber("days", mcp.Description("Window size in days including today (default: 7, max: 366)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var eventAddToolDef = mcp.NewTool("event_add",
	mcp.WithDescription("Add a planned event to a calendar day"),
	mcp.WithString("day", mcp.Required(), mcp.Description("Calendar day YYYY-MM-DD")),
	mcp.WithString("time", mcp.Description("HH:MM")),
	mcp.WithString("title", mcp.Required()),
	mcp.WithString("category", mcp.Enum("therapy", "school", "family", "outing", "medication", "custom")),
	mcp.WithString("location"),
	mcp.WithArray("preparation", mcp.Description("Things to prepare"), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithString("pictogramSrc"),
)

var eventListToolDef = mcp.NewTool("event_list",
	mcp.WithDescription("List a day's events ordered by time"),
	dayOption(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var eventDeleteToolDef = mcp.NewTool("event_delete",
	mcp.WithDescription("Delete an event"),
	mcp.WithString("day", mcp.Required()),
	mcp.WithString("id", mcp.Required()),
	mcp.WithDestructiveHintAnnotation(true),
)

var eventCalendarToolDef = mcp.NewTool("event_calendar",
	mcp.WithDescription("List the days of a year that have events"),
	mcp.WithNumber("year", mcp.Description("Year (default: current year)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var reminderAddToolDef = mcp.NewTool("reminder_add",
	mcp.WithDescription("Schedule a caregiver reminder"),
	mcp.WithString("title", mcp.Required()),
	mcp.WithString("kind", mcp.Enum("medication", "therapy", "appointment", "custom")),
	mcp.WithString("datetimeISO", mcp.Required(), mcp.Description("RFC 3339 due time")),
	mcp.WithString("repeat", mcp.Enum("none", "daily", "weekly")),
	mcp.WithString("notes"),
)

var reminderListToolDef = mcp.NewTool("reminder_list",
	mcp.WithDescription("List reminders by due time"),
	mcp.WithReadOnlyHintAnnotation(true),
)

var reminderDeleteToolDef = mcp.NewTool("reminder_delete",
	mcp.WithDescription("Delete a reminder"),
	mcp.WithString("id", mcp.Required()),
	mcp.WithDestructiveHintAnnotation(true),
)

var personAddToolDef = mcp.NewTool("person_add",
	mcp.WithDescription("Add a familiar person card. Photo and audio are uploaded over HTTP and referenced here."),
	mcp.WithString("displayName", mcp.Required()),
	mcp.WithString("relation", mcp.Enum(
		"dad", "mom", "brother", "sister", "grandpa", "grandma",
		"uncle", "aunt", "cousin", "caregiver", "teacher", "other")),
	mcp.WithString("photoRef"),
	mcp.WithString("audioRef"),
	mcp.WithString("audioText", mcp.Description("Short greeting read aloud with the card")),
)

var personListToolDef = mcp.NewTool("person_list",
	mcp.WithDescription("List person cards"),
	mcp.WithReadOnlyHintAnnotation(true),
)

var personDeleteToolDef = mcp.NewTool("person_delete",
	mcp.WithDescription("Delete a person card and its photo and audio"),
	mcp.WithString("id", mcp.Required()),
	mcp.WithDestructiveHintAnnotation(true),
)

var backupExportToolDef = mcp.NewTool("backup_export",
	mcp.WithDescription("Write every stored record to a JSONL backup in the exports directory"),
	mcp.WithString("path", mcp.Description("Target .jsonl file inside the exports directory (default: generated name)")),
)

var backupImportToolDef = mcp.NewTool("backup_import",
	mcp.WithDescription("Restore records from a JSONL backup in the exports directory"),
	mcp.WithString("path", mcp.Required()),
	mcp.WithString("mode", mcp.Enum("error", "replace", "skip"),
		mcp.Description("Collision handling for existing keys (default: error)")),
)
