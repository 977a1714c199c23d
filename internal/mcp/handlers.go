package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/ops"
	"github.com/hpungsan/rutina/internal/routine"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	kv         db.KV
	exportsDir string
	now        func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(kv db.KV, baseDir string) *Handlers {
	return &Handlers{
		kv:         kv,
		exportsDir: ops.ExportsDir(baseDir),
		now:        time.Now,
	}
}

// Request types for JSON decoding

// DayRequest addresses one calendar day; an empty Day means today.
type DayRequest struct {
	Day string `json:"day,omitempty"`
}

// ChecklistRequest represents the arguments for day_checklist.
type ChecklistRequest struct {
	Day    string `json:"day,omitempty"`
	StepID string `json:"stepId"`
	Done   *bool  `json:"done,omitempty"`
}

// InsightsRequest represents the arguments for insights_get.
type InsightsRequest struct {
	Days int `json:"days,omitempty"`
}

// EventDeleteRequest represents the arguments for event_delete.
type EventDeleteRequest struct {
	Day string `json:"day"`
	ID  string `json:"id"`
}

// CalendarRequest represents the arguments for event_calendar.
type CalendarRequest struct {
	Year int `json:"year,omitempty"`
}

// IDRequest addresses a reminder or person by ID.
type IDRequest struct {
	ID string `json:"id"`
}

// ExportRequest represents the arguments for routine_export and backup_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for backup_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

func (h *Handlers) day(day string) string {
	if day == "" {
		return ops.Today(h.now())
	}
	return day
}

// HandleRoutineGenerate handles the routine_generate tool call.
func (h *Handlers) HandleRoutineGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[routine.ProfileInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GenerateRoutine(ctx, h.kv, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRoutineRefine handles the routine_refine tool call.
func (h *Handlers) HandleRoutineRefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	input, err := ops.DecodeRefineInput(raw)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RefineRoutine(ctx, h.kv, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRoutineGet handles the routine_get tool call.
func (h *Handlers) HandleRoutineGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.GetRoutine(ctx, h.kv)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRoutineExport handles the routine_export tool call.
func (h *Handlers) HandleRoutineExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportRoutine(ctx, h.kv, h.exportsDir, ops.ExportInput{
		Path: ops.ResolveExportPath(h.exportsDir, input.Path),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileGet handles the profile_get tool call.
func (h *Handlers) HandleProfileGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.GetProfile(ctx, h.kv)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileSave handles the profile_save tool call.
func (h *Handlers) HandleProfileSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[routine.ProfileInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SaveProfile(ctx, h.kv, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDayGet handles the day_get tool call.
func (h *Handlers) HandleDayGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetDay(ctx, h.kv, h.day(input.Day))
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDayFeedback handles the day_feedback tool call.
func (h *Handlers) HandleDayFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	feedback, err := ops.DecodeFeedbackInput(raw)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RecordFeedback(ctx, h.kv, ops.RecordFeedbackInput{
		Day:      h.day(input.Day),
		Feedback: feedback,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDayChecklist handles the day_checklist tool call.
func (h *Handlers) HandleDayChecklist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChecklistRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ToggleStep(ctx, h.kv, ops.ToggleStepInput{
		Day:    h.day(input.Day),
		StepID: input.StepID,
		Done:   input.Done,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDayClose handles the day_close tool call.
func (h *Handlers) HandleDayClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CloseDay(ctx, h.kv, h.day(input.Day), h.now())
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleInsightsGet handles the insights_get tool call.
func (h *Handlers) HandleInsightsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InsightsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Insights(ctx, h.kv, input.Days, h.now())
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleEventAdd handles the event_add tool call.
func (h *Handlers) HandleEventAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.AddEventInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddEvent(ctx, h.kv, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleEventList handles the event_list tool call.
func (h *Handlers) HandleEventList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListEvents(ctx, h.kv, h.day(input.Day))
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleEventDelete handles the event_delete tool call.
func (h *Handlers) HandleEventDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteEvent(ctx, h.kv, input.Day, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleEventCalendar handles the event_calendar tool call.
func (h *Handlers) HandleEventCalendar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CalendarRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	year := input.Year
	if year == 0 {
		year = h.now().Year()
	}

	result, err := ops.DaysWithEvents(ctx, h.kv, year)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleReminderAdd handles the reminder_add tool call.
func (h *Handlers) HandleReminderAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.AddReminderInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddReminder(ctx, h.kv, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleReminderList handles the reminder_list tool call.
func (h *Handlers) HandleReminderList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListReminders(ctx, h.kv)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleReminderDelete handles the reminder_delete tool call.
func (h *Handlers) HandleReminderDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteReminder(ctx, h.kv, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePersonAdd handles the person_add tool call.
func (h *Handlers) HandlePersonAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.AddPersonInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddPerson(ctx, h.kv, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePersonList handles the person_list tool call.
func (h *Handlers) HandlePersonList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListPeople(ctx, h.kv)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePersonDelete handles the person_delete tool call.
func (h *Handlers) HandlePersonDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeletePerson(ctx, h.kv, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBackupExport handles the backup_export tool call.
func (h *Handlers) HandleBackupExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportBackup(ctx, h.kv, h.exportsDir, ops.ExportInput{
		Path: ops.ResolveExportPath(h.exportsDir, input.Path),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBackupImport handles the backup_import tool call.
func (h *Handlers) HandleBackupImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImportBackup(ctx, h.kv, h.exportsDir, ops.ImportInput{
		Path: ops.ResolveExportPath(h.exportsDir, input.Path),
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// INTERNAL errors carry a generic message and no details.
func errorResult(err error) *mcp.CallToolResult {
	rErr := errors.As(err)

	errorObj := map[string]any{
		"code":    rErr.Code,
		"message": rErr.Message,
		"status":  rErr.Status,
	}
	if rErr.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else if rErr.Details != nil {
		errorObj["details"] = rErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
