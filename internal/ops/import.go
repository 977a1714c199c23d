package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail if any key exists, write nothing
	ImportModeReplace ImportMode = "replace" // overwrite existing keys
	ImportModeSkip    ImportMode = "skip"    // keep existing keys
)

// maxBackupLine bounds a single JSONL line; media records dominate.
const maxBackupLine = 64 << 20

// ImportInput contains parameters for ImportBackup.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of ImportBackup.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes a rejected backup line.
type ImportError struct {
	Line    int    `json:"line"`
	Key     string `json:"key,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportBackup restores records from a backup written by ExportBackup.
func ImportBackup(ctx context.Context, kv db.KV, exportsDir string, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	switch input.Mode {
	case ImportModeError, ImportModeReplace, ImportModeSkip:
	default:
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, skip")
	}
	if err := ValidatePath(input.Path, PathCheckRead, exportsDir, ".jsonl"); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.As(err)
	}
	defer file.Close()

	records, parseErrors := parseBackup(bufio.NewScanner(file))

	out := &ImportOutput{Errors: parseErrors}
	if input.Mode == ImportModeError {
		if len(parseErrors) > 0 {
			return out, nil
		}
		for _, rec := range records {
			_, found, err := kv.Get(ctx, rec.Key)
			if err != nil {
				return nil, err
			}
			if found {
				return nil, errors.NewConflict(fmt.Sprintf("key %q already exists (use mode replace or skip)", rec.Key))
			}
		}
	}
	out.Skipped = len(parseErrors)

	writeMu.Lock()
	defer writeMu.Unlock()

	for _, rec := range records {
		if input.Mode == ImportModeSkip {
			_, found, err := kv.Get(ctx, rec.Key)
			if err != nil {
				return nil, err
			}
			if found {
				out.Skipped++
				continue
			}
		}
		if err := kv.Set(ctx, rec.Key, rec.Value); err != nil {
			return nil, err
		}
		out.Imported++
	}
	return out, nil
}

func parseBackup(scanner *bufio.Scanner) ([]BackupRecord, []ImportError) {
	scanner.Buffer(make([]byte, 0, 64*1024), maxBackupLine)

	var records []BackupRecord
	var parseErrors []ImportError
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var probe struct {
			BackupHeader
			BackupRecord
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if probe.RutinaExport {
			continue
		}
		if !knownKey(probe.Key) {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Key:     probe.Key,
				Code:    "INVALID_RECORD",
				Message: "unknown key",
			})
			continue
		}
		if len(probe.Value) == 0 {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Key:     probe.Key,
				Code:    "INVALID_RECORD",
				Message: "missing value",
			})
			continue
		}
		records = append(records, BackupRecord{Key: probe.Key, Value: append(json.RawMessage(nil), probe.Value...)})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return records, parseErrors
}

// knownKey reports whether k belongs to the store's key layout.
func knownKey(k string) bool {
	switch k {
	case keyProfile, keyLastRoutine, keyReminders, keyPeople:
		return true
	}
	for _, p := range []string{prefixDay, prefixStats, prefixEvents, prefixMedia} {
		if strings.HasPrefix(k, p) && len(k) > len(p) {
			return true
		}
	}
	return false
}
