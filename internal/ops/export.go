package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/routine"
)

// BackupSchemaVersion is written in every backup header.
const BackupSchemaVersion = "1"

// ExportInput contains parameters for ExportBackup and ExportRoutine.
type ExportInput struct {
	Path string // optional, default: <exports>/<name>-<timestamp>.<ext>
}

// ExportOutput contains the result of an export.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// BackupHeader is the first line of a backup file.
type BackupHeader struct {
	RutinaExport  bool   `json:"_rutina_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// BackupRecord is one stored key and its JSON value.
type BackupRecord struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ExportBackup writes every stored record to a JSONL file.
func ExportBackup(ctx context.Context, kv db.KV, exportsDir string, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	path := input.Path
	if path == "" {
		path = filepath.Join(exportsDir, fmt.Sprintf("rutina-%s.jsonl", now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(path, PathCheckWrite, exportsDir, ".jsonl"); err != nil {
		return nil, err
	}

	keys, err := kv.KeysWithPrefix(ctx, "")
	if err != nil {
		return nil, err
	}

	count := 0
	err = writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		if err := enc.Encode(BackupHeader{RutinaExport: true, SchemaVersion: BackupSchemaVersion, ExportedAt: now.Unix()}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, found, err := kv.Get(ctx, k)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if !json.Valid(v) {
				return fmt.Errorf("record %s is not valid JSON", k)
			}
			if err := enc.Encode(BackupRecord{Key: k, Value: v}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{Path: path, Count: count, ExportedAt: now.Unix()}, nil
}

// ExportRoutine writes the stored routine as a printable markdown file.
func ExportRoutine(ctx context.Context, kv db.KV, exportsDir string, input ExportInput) (*ExportOutput, error) {
	r, err := loadRoutine(ctx, kv)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	path := input.Path
	if path == "" {
		name := SanitizeForFilename(r.Title)
		path = filepath.Join(exportsDir, fmt.Sprintf("%s-%s.md", name, now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(path, PathCheckWrite, exportsDir, ".md"); err != nil {
		return nil, err
	}

	err = writeFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, routine.Markdown(r))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ExportOutput{Path: path, Count: len(r.StepIDs()), ExportedAt: now.Unix()}, nil
}

// writeFileAtomic writes to a temp file next to path and renames it into
// place, so an existing file survives a failed export.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := write(bw); err != nil {
		return errors.As(err)
	}
	if err := bw.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	// os.Rename refuses to replace an existing file on Windows; keep the
	// old file rather than delete-then-rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewConflict("export destination already exists")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
