package ops

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
)

// ReminderKind classifies a reminder.
type ReminderKind string

const (
	KindMedication  ReminderKind = "medication"
	KindTherapy     ReminderKind = "therapy"
	KindAppointment ReminderKind = "appointment"
	KindCustom      ReminderKind = "custom"
)

// Repeat controls what happens after a reminder fires.
type Repeat string

const (
	RepeatNone   Repeat = "none"
	RepeatDaily  Repeat = "daily"
	RepeatWeekly Repeat = "weekly"
)

const (
	maxReminderTitleChars = 120
	maxReminderNoteChars  = 280
)

// Reminder is a scheduled caregiver alert.
type Reminder struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Kind     ReminderKind `json:"kind"`
	Datetime time.Time    `json:"datetimeISO"`
	Repeat   Repeat       `json:"repeat"`
	Notes    string       `json:"notes,omitempty"`
	Enabled  bool         `json:"enabled"`
}

// AddReminderInput contains parameters for AddReminder.
type AddReminderInput struct {
	Title    string       `json:"title"`
	Kind     ReminderKind `json:"kind,omitempty"`
	Datetime time.Time    `json:"datetimeISO"`
	Repeat   Repeat       `json:"repeat,omitempty"`
	Notes    string       `json:"notes,omitempty"`
}

// RemindersOutput lists reminders by due time.
type RemindersOutput struct {
	Reminders []Reminder `json:"reminders"`
}

// AddReminder validates and stores an enabled reminder.
func AddReminder(ctx context.Context, kv db.KV, input AddReminderInput) (*Reminder, error) {
	fe := map[string]string{}
	title := strings.TrimSpace(input.Title)
	if n := utf8.RuneCountInString(title); n < 2 || n > maxReminderTitleChars {
		fe["title"] = fmt.Sprintf("must be between 2 and %d characters", maxReminderTitleChars)
	}
	kind := input.Kind
	if kind == "" {
		kind = KindCustom
	}
	switch kind {
	case KindMedication, KindTherapy, KindAppointment, KindCustom:
	default:
		fe["kind"] = "must be one of: medication, therapy, appointment, custom"
	}
	if input.Datetime.IsZero() {
		fe["datetimeISO"] = "is required"
	}
	repeat := input.Repeat
	if repeat == "" {
		repeat = RepeatNone
	}
	switch repeat {
	case RepeatNone, RepeatDaily, RepeatWeekly:
	default:
		fe["repeat"] = "must be one of: none, daily, weekly"
	}
	notes := strings.TrimSpace(input.Notes)
	if utf8.RuneCountInString(notes) > maxReminderNoteChars {
		fe["notes"] = fmt.Sprintf("must be at most %d characters", maxReminderNoteChars)
	}
	if len(fe) > 0 {
		return nil, errors.NewValidation(fe)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	rem := Reminder{
		ID:       id,
		Title:    title,
		Kind:     kind,
		Datetime: input.Datetime.UTC(),
		Repeat:   repeat,
		Notes:    notes,
		Enabled:  true,
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	list, err := loadReminders(ctx, kv)
	if err != nil {
		return nil, err
	}
	list = append(list, rem)
	if err := writeJSON(ctx, kv, keyReminders, list); err != nil {
		return nil, err
	}
	return &rem, nil
}

// ListReminders returns every reminder sorted by due time.
func ListReminders(ctx context.Context, kv db.KV) (*RemindersOutput, error) {
	list, err := loadReminders(ctx, kv)
	if err != nil {
		return nil, err
	}
	sortReminders(list)
	return &RemindersOutput{Reminders: list}, nil
}

// DeleteReminder removes a reminder by ID.
func DeleteReminder(ctx context.Context, kv db.KV, id string) (*DeleteOutput, error) {
	writeMu.Lock()
	defer writeMu.Unlock()

	list, err := loadReminders(ctx, kv)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(list, func(r Reminder) bool { return r.ID == id })
	if idx < 0 {
		return nil, errors.NewNotFound("reminder", id)
	}
	list = slices.Delete(list, idx, idx+1)
	if err := writeJSON(ctx, kv, keyReminders, list); err != nil {
		return nil, err
	}
	return &DeleteOutput{Deleted: true, ID: id}, nil
}

// FireDueReminders returns the enabled reminders due at or before now, as
// they were when they fired, and reschedules them: daily and weekly
// reminders move forward by whole periods until they are in the future;
// one-shot reminders are disabled.
func FireDueReminders(ctx context.Context, kv db.KV, now time.Time) ([]Reminder, error) {
	writeMu.Lock()
	defer writeMu.Unlock()

	list, err := loadReminders(ctx, kv)
	if err != nil {
		return nil, err
	}

	var fired []Reminder
	for i := range list {
		r := &list[i]
		if !r.Enabled || r.Datetime.After(now) {
			continue
		}
		fired = append(fired, *r)
		switch r.Repeat {
		case RepeatDaily:
			r.Datetime = advance(r.Datetime, now, 1)
		case RepeatWeekly:
			r.Datetime = advance(r.Datetime, now, 7)
		default:
			r.Enabled = false
		}
	}

	if len(fired) == 0 {
		return nil, nil
	}
	if err := writeJSON(ctx, kv, keyReminders, list); err != nil {
		return nil, err
	}
	sortReminders(fired)
	return fired, nil
}

// advance adds periods of days to t until it is after now.
func advance(t, now time.Time, days int) time.Time {
	for !t.After(now) {
		t = t.AddDate(0, 0, days)
	}
	return t
}

func sortReminders(list []Reminder) {
	slices.SortStableFunc(list, func(a, b Reminder) int {
		return a.Datetime.Compare(b.Datetime)
	})
}

func loadReminders(ctx context.Context, kv db.KV) ([]Reminder, error) {
	list := []Reminder{}
	if _, err := readJSON(ctx, kv, keyReminders, &list); err != nil {
		return nil, err
	}
	return list, nil
}
