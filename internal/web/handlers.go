package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/rutina/internal/config"
	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/logger"
	"github.com/hpungsan/rutina/internal/ops"
	"github.com/hpungsan/rutina/internal/routine"
)

// Handlers contains the HTTP route handlers.
type Handlers struct {
	kv       db.KV
	cfg      *config.Config
	renderer *Renderer
	static   fs.FS
	log      *logger.Logger
	now      func() time.Time
}

// NewHandlers builds the handlers over the embedded templates and assets.
func NewHandlers(kv db.KV, cfg *config.Config, baseDir, version string, log *logger.Logger) (*Handlers, error) {
	templates, err := subFS(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	static, err := subFS(staticFS, "static")
	if err != nil {
		return nil, err
	}
	renderer, err := NewRenderer(templates, version, log)
	if err != nil {
		return nil, err
	}

	return &Handlers{
		kv:       kv,
		cfg:      cfg,
		renderer: renderer,
		static:   static,
		log:      log,
		now:      time.Now,
	}, nil
}

// fail writes err as JSON and logs it when it is INTERNAL.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.As(err).Code == errors.ErrInternal {
		h.log.Error("request failed",
			"request_id", requestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, err)
}

// respond writes result, or the error if err is non-nil.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, status int, result any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	renderJSON(w, status, result)
}

// --- Pages ---

// HandleRoutinePage handles GET /routine: the stored routine rendered for
// printing, with the day's progress and events.
func (h *Handlers) HandleRoutinePage(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = ops.Today(h.now())
	}
	day, err := ops.ParseDay(day)
	if err != nil {
		h.renderer.renderError(w, err)
		return
	}

	data := RoutinePageData{
		PageData: PageData{Title: "Rutina", Version: h.renderer.version},
		Day:      day,
	}

	out, err := ops.GetRoutine(r.Context(), h.kv)
	switch {
	case errors.Is(err, errors.ErrNotFound):
	case err != nil:
		h.renderer.renderError(w, err)
		return
	default:
		data.HasRoutine = true
		data.Title = out.Routine.Title
		data.Content = h.renderer.renderMarkdown(routine.Markdown(out.Routine))
		data.TotalSteps = len(out.Routine.StepIDs())
		data.TotalMinutes = out.Routine.TotalMinutes()

		state, err := ops.GetDay(r.Context(), h.kv, day)
		if err != nil {
			h.renderer.renderError(w, err)
			return
		}
		for _, id := range state.Done {
			if out.Routine.Step(id) != nil {
				data.DoneSteps++
			}
		}
	}

	events, err := ops.ListEvents(r.Context(), h.kv, day)
	if err != nil {
		h.renderer.renderError(w, err)
		return
	}
	data.Events = events.Events

	h.renderer.renderPage(w, http.StatusOK, "routine", data)
}

// --- Routine ---

// HandleGenerate handles POST /api/routines/generate.
func (h *Handlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var p routine.ProfileInput
	if err := decodeJSON(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.GenerateRoutine(r.Context(), h.kv, p)
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleRefine handles POST /api/routines/refine.
func (h *Handlers) HandleRefine(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	input, err := ops.DecodeRefineInput(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.RefineRoutine(r.Context(), h.kv, input)
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleGetRoutine handles GET /api/routine.
func (h *Handlers) HandleGetRoutine(w http.ResponseWriter, r *http.Request) {
	out, err := ops.GetRoutine(r.Context(), h.kv)
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleAttachAsset handles POST /api/routine/steps/{stepId}/assets.
func (h *Handlers) HandleAttachAsset(w http.ResponseWriter, r *http.Request) {
	var asset routine.VisualAsset
	if err := decodeJSON(r, &asset); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.AttachVisualAsset(r.Context(), h.kv, ops.AttachVisualAssetInput{
		StepID: r.PathValue("stepId"),
		Asset:  asset,
	})
	h.respond(w, r, http.StatusOK, out, err)
}

// --- Profile ---

// HandleGetProfile handles GET /api/profile.
func (h *Handlers) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	out, err := ops.GetProfile(r.Context(), h.kv)
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleSaveProfile handles PUT /api/profile.
func (h *Handlers) HandleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var p routine.ProfileInput
	if err := decodeJSON(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.SaveProfile(r.Context(), h.kv, p)
	h.respond(w, r, http.StatusOK, out, err)
}

// --- Day session ---

// HandleGetDay handles GET /api/days/{day}.
func (h *Handlers) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	out, err := ops.GetDay(r.Context(), h.kv, r.PathValue("day"))
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleDayFeedback handles PUT /api/days/{day}/feedback with a
// {"feedback": [...]} body.
func (h *Handlers) HandleDayFeedback(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	feedback, err := ops.DecodeFeedbackInput(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.RecordFeedback(r.Context(), h.kv, ops.RecordFeedbackInput{
		Day:      r.PathValue("day"),
		Feedback: feedback,
	})
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleChecklist handles PUT /api/days/{day}/checklist/{stepId}. The
// optional {"done": bool} body sets the state; an empty body toggles it.
func (h *Handlers) HandleChecklist(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Done *bool `json:"done"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.fail(w, r, errors.NewInvalidRequest("body must be a JSON object with an optional boolean done"))
			return
		}
	}
	out, err := ops.ToggleStep(r.Context(), h.kv, ops.ToggleStepInput{
		Day:    r.PathValue("day"),
		StepID: r.PathValue("stepId"),
		Done:   req.Done,
	})
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleCloseDay handles POST /api/days/{day}/close.
func (h *Handlers) HandleCloseDay(w http.ResponseWriter, r *http.Request) {
	out, err := ops.CloseDay(r.Context(), h.kv, r.PathValue("day"), h.now())
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleInsights handles GET /api/insights?days=N.
func (h *Handlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query().Get("days"), 0, "days")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.Insights(r.Context(), h.kv, days, h.now())
	h.respond(w, r, http.StatusOK, out, err)
}

// --- Events ---

// HandleListEvents handles GET /api/days/{day}/events.
func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListEvents(r.Context(), h.kv, r.PathValue("day"))
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleAddEvent handles POST /api/days/{day}/events. The path day wins
// over any day in the body.
func (h *Handlers) HandleAddEvent(w http.ResponseWriter, r *http.Request) {
	var input ops.AddEventInput
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	input.Day = r.PathValue("day")
	out, err := ops.AddEvent(r.Context(), h.kv, input)
	h.respond(w, r, http.StatusCreated, out, err)
}

// HandleDeleteEvent handles DELETE /api/days/{day}/events/{id}.
func (h *Handlers) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	out, err := ops.DeleteEvent(r.Context(), h.kv, r.PathValue("day"), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleCalendar handles GET /api/calendar/{year}.
func (h *Handlers) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r.PathValue("year"), 0, "year")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.DaysWithEvents(r.Context(), h.kv, year)
	h.respond(w, r, http.StatusOK, out, err)
}

// --- Reminders ---

// HandleListReminders handles GET /api/reminders.
func (h *Handlers) HandleListReminders(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListReminders(r.Context(), h.kv)
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleAddReminder handles POST /api/reminders.
func (h *Handlers) HandleAddReminder(w http.ResponseWriter, r *http.Request) {
	var input ops.AddReminderInput
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.AddReminder(r.Context(), h.kv, input)
	h.respond(w, r, http.StatusCreated, out, err)
}

// HandleDeleteReminder handles DELETE /api/reminders/{id}.
func (h *Handlers) HandleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	out, err := ops.DeleteReminder(r.Context(), h.kv, r.PathValue("id"))
	h.respond(w, r, http.StatusOK, out, err)
}

// --- People and media ---

// HandleListPeople handles GET /api/people.
func (h *Handlers) HandleListPeople(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListPeople(r.Context(), h.kv)
	h.respond(w, r, http.StatusOK, out, err)
}

// HandleAddPerson handles POST /api/people.
func (h *Handlers) HandleAddPerson(w http.ResponseWriter, r *http.Request) {
	var input ops.AddPersonInput
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.AddPerson(r.Context(), h.kv, input)
	h.respond(w, r, http.StatusCreated, out, err)
}

// HandleDeletePerson handles DELETE /api/people/{id}.
func (h *Handlers) HandleDeletePerson(w http.ResponseWriter, r *http.Request) {
	out, err := ops.DeletePerson(r.Context(), h.kv, r.PathValue("id"))
	h.respond(w, r, http.StatusOK, out, err)
}

// HandlePutMedia handles POST /api/media. The body is the raw image or
// audio; Content-Type is sniffed when absent.
func (h *Handlers) HandlePutMedia(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := ops.PutMedia(r.Context(), h.kv, ops.PutMediaInput{
		ContentType: r.Header.Get("Content-Type"),
		Data:        body,
		MaxBytes:    h.cfg.MaxBodyBytes,
	})
	h.respond(w, r, http.StatusCreated, out, err)
}

// HandleGetMedia handles GET /api/media/{ref}.
func (h *Handlers) HandleGetMedia(w http.ResponseWriter, r *http.Request) {
	m, err := ops.GetMedia(r.Context(), h.kv, r.PathValue("ref"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", m.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(m.Data)))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(m.Data)
}

// --- Request helpers ---

// readBody reads the whole (size-limited) request body.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, bodyError(err)
	}
	return data, nil
}

// decodeJSON decodes a single JSON value from the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.NewInvalidRequest("request body is empty")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &maxErr):
		return errors.NewBodyTooLarge(maxErr.Limit)
	case stderrors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return errors.NewValidation(map[string]string{field: "has the wrong type"})
	case stderrors.Is(err, io.EOF):
		return errors.NewInvalidRequest("request body is empty")
	default:
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
}

// intParam parses an optional integer parameter; empty yields def.
func intParam(s string, def int, name string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewValidation(map[string]string{name: "must be an integer"})
	}
	return v, nil
}
