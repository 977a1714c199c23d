package ops

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
)

// Store keys. The _v1 suffix versions the JSON layout of each record.
const (
	keyProfile     = "profile_v1"
	keyLastRoutine = "last_routine_v1"
	keyReminders   = "reminders_v1"
	keyPeople      = "people_v1"

	prefixDay    = "day_v1_"
	prefixStats  = "stats_v1_"
	prefixEvents = "events_v1_"
	prefixMedia  = "media_v1_"
)

// DayLayout is the calendar-day format used in keys and URLs.
const DayLayout = "2006-01-02"

// Insights window limits.
const (
	DefaultInsightDays = 7
	MaxInsightDays     = 366
)

func checklistKey(day string) string { return prefixDay + day + "_checklist" }
func feedbackKey(day string) string  { return prefixDay + day + "_feedback" }
func statsKey(day string) string     { return prefixStats + day }
func eventsKey(day string) string    { return prefixEvents + day }
func mediaKey(ref string) string     { return prefixMedia + ref }

// writeMu serializes read-modify-write cycles on list records within this
// process.
var writeMu sync.Mutex

// ParseDay validates a YYYY-MM-DD calendar day and returns it unchanged.
func ParseDay(day string) (string, error) {
	day = strings.TrimSpace(day)
	if _, err := time.Parse(DayLayout, day); err != nil {
		return "", errors.NewValidation(map[string]string{"day": "must be a date in YYYY-MM-DD format"})
	}
	return day, nil
}

// Today returns the local calendar day for t.
func Today(t time.Time) string {
	return t.Format(DayLayout)
}

// readJSON loads key into v. Returns false if the key is absent.
func readJSON(ctx context.Context, kv db.KV, key string, v any) (bool, error) {
	data, found, err := kv.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.NewInternal(fmt.Errorf("decode %s: %w", key, err))
	}
	return true, nil
}

func writeJSON(ctx context.Context, kv db.KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("encode %s: %w", key, err))
	}
	return kv.Set(ctx, key, data)
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
