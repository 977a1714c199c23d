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

// EventCategory groups planned events on the calendar.
type EventCategory string

const (
	CategoryTherapy    EventCategory = "therapy"
	CategorySchool     EventCategory = "school"
	CategoryFamily     EventCategory = "family"
	CategoryOuting     EventCategory = "outing"
	CategoryMedication EventCategory = "medication"
	CategoryCustom     EventCategory = "custom"
)

var eventCategories = []EventCategory{
	CategoryTherapy, CategorySchool, CategoryFamily, CategoryOuting, CategoryMedication, CategoryCustom,
}

const (
	maxEventTitleChars = 120
	maxPreparation     = 20
)

// PlannedEvent is a calendar entry for one day.
type PlannedEvent struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Time         string        `json:"time,omitempty"`
	Title        string        `json:"title"`
	Category     EventCategory `json:"category"`
	Location     string        `json:"location,omitempty"`
	Preparation  []string      `json:"preparation,omitempty"`
	PictogramSrc string        `json:"pictogramSrc,omitempty"`
}

// AddEventInput contains parameters for AddEvent.
type AddEventInput struct {
	Day          string        `json:"day"`
	Time         string        `json:"time,omitempty"`
	Title        string        `json:"title"`
	Category     EventCategory `json:"category,omitempty"`
	Location     string        `json:"location,omitempty"`
	Preparation  []string      `json:"preparation,omitempty"`
	PictogramSrc string        `json:"pictogramSrc,omitempty"`
}

// EventsOutput lists the events of one day ordered by time.
type EventsOutput struct {
	Day    string         `json:"day"`
	Events []PlannedEvent `json:"events"`
}

// AddEvent validates and appends an event to its day.
func AddEvent(ctx context.Context, kv db.KV, input AddEventInput) (*PlannedEvent, error) {
	day, err := ParseDay(input.Day)
	if err != nil {
		return nil, err
	}

	fe := map[string]string{}
	title := strings.TrimSpace(input.Title)
	if n := utf8.RuneCountInString(title); n < 2 || n > maxEventTitleChars {
		fe["title"] = fmt.Sprintf("must be between 2 and %d characters", maxEventTitleChars)
	}
	hhmm := strings.TrimSpace(input.Time)
	if hhmm != "" {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			fe["time"] = "must be HH:MM"
		}
	}
	category := input.Category
	if category == "" {
		category = CategoryCustom
	}
	if !slices.Contains(eventCategories, category) {
		fe["category"] = "must be one of: therapy, school, family, outing, medication, custom"
	}
	if len(input.Preparation) > maxPreparation {
		fe["preparation"] = fmt.Sprintf("must have at most %d items", maxPreparation)
	}
	if len(fe) > 0 {
		return nil, errors.NewValidation(fe)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	ev := PlannedEvent{
		ID:           id,
		Date:         day,
		Time:         hhmm,
		Title:        title,
		Category:     category,
		Location:     strings.TrimSpace(input.Location),
		Preparation:  trimNonEmpty(input.Preparation),
		PictogramSrc: strings.TrimSpace(input.PictogramSrc),
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	list, err := loadEvents(ctx, kv, day)
	if err != nil {
		return nil, err
	}
	list = append(list, ev)
	if err := writeJSON(ctx, kv, eventsKey(day), list); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListEvents returns the events of day ordered by time; untimed events last.
func ListEvents(ctx context.Context, kv db.KV, day string) (*EventsOutput, error) {
	day, err := ParseDay(day)
	if err != nil {
		return nil, err
	}
	list, err := loadEvents(ctx, kv, day)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(list, func(a, b PlannedEvent) int {
		switch {
		case a.Time == b.Time:
			return 0
		case a.Time == "":
			return 1
		case b.Time == "":
			return -1
		default:
			return strings.Compare(a.Time, b.Time)
		}
	})
	return &EventsOutput{Day: day, Events: list}, nil
}

// DeleteOutput reports a deleted record.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteEvent removes one event from a day. The day's record is removed
// when its last event goes.
func DeleteEvent(ctx context.Context, kv db.KV, day, id string) (*DeleteOutput, error) {
	day, err := ParseDay(day)
	if err != nil {
		return nil, err
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	list, err := loadEvents(ctx, kv, day)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(list, func(ev PlannedEvent) bool { return ev.ID == id })
	if idx < 0 {
		return nil, errors.NewNotFound("event", id)
	}
	list = slices.Delete(list, idx, idx+1)

	if len(list) == 0 {
		err = kv.Delete(ctx, eventsKey(day))
	} else {
		err = writeJSON(ctx, kv, eventsKey(day), list)
	}
	if err != nil {
		return nil, err
	}
	return &DeleteOutput{Deleted: true, ID: id}, nil
}

// CalendarOutput lists the days of a year that have at least one event.
type CalendarOutput struct {
	Year int      `json:"year"`
	Days []string `json:"days"`
}

// DaysWithEvents returns the days of year with events, in ascending order.
func DaysWithEvents(ctx context.Context, kv db.KV, year int) (*CalendarOutput, error) {
	if year < 1 || year > 9999 {
		return nil, errors.NewValidation(map[string]string{"year": "must be between 1 and 9999"})
	}

	keys, err := kv.KeysWithPrefix(ctx, fmt.Sprintf("%s%04d-", prefixEvents, year))
	if err != nil {
		return nil, err
	}

	out := &CalendarOutput{Year: year, Days: []string{}}
	for _, k := range keys {
		day := strings.TrimPrefix(k, prefixEvents)
		list, err := loadEvents(ctx, kv, day)
		if err != nil {
			return nil, err
		}
		if len(list) > 0 {
			out.Days = append(out.Days, day)
		}
	}
	return out, nil
}

func loadEvents(ctx context.Context, kv db.KV, day string) ([]PlannedEvent, error) {
	list := []PlannedEvent{}
	if _, err := readJSON(ctx, kv, eventsKey(day), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func trimNonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
