package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/rutina/internal/errors"
)

func TestExportImportBackup_RoundTrip(t *testing.T) {
	src := newTestKV(t)
	ctx := context.Background()
	exportsDir := ExportsDir(t.TempDir())

	r := seedRoutine(t, src)
	_, err := SaveProfile(ctx, src, schoolProfile())
	require.NoError(t, err)
	_, err = AddEvent(ctx, src, AddEventInput{Day: testDay, Title: "Terapia"})
	require.NoError(t, err)
	ref, err := PutMedia(ctx, src, PutMediaInput{Data: pngPixel})
	require.NoError(t, err)

	out, err := ExportBackup(ctx, src, exportsDir, ExportInput{})
	require.NoError(t, err)
	require.Equal(t, 4, out.Count)
	require.Equal(t, exportsDir, filepath.Dir(out.Path))

	f, err := os.Open(out.Path)
	require.NoError(t, err)
	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var header BackupHeader
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &header))
	require.True(t, header.RutinaExport)
	require.Equal(t, BackupSchemaVersion, header.SchemaVersion)
	f.Close()

	dst := newTestKV(t)
	res, err := ImportBackup(ctx, dst, exportsDir, ImportInput{Path: out.Path})
	require.NoError(t, err)
	require.Equal(t, 4, res.Imported)
	require.Empty(t, res.Errors)

	got, err := GetRoutine(ctx, dst)
	require.NoError(t, err)
	require.Equal(t, r.StepIDs(), got.Routine.StepIDs())

	m, err := GetMedia(ctx, dst, ref.Ref)
	require.NoError(t, err)
	require.Equal(t, pngPixel, m.Data)

	// mode error refuses to overwrite
	_, err = ImportBackup(ctx, dst, exportsDir, ImportInput{Path: out.Path})
	requireCode(t, err, errors.ErrConflict)

	res, err = ImportBackup(ctx, dst, exportsDir, ImportInput{Path: out.Path, Mode: ImportModeSkip})
	require.NoError(t, err)
	require.Equal(t, 0, res.Imported)
	require.Equal(t, 4, res.Skipped)

	res, err = ImportBackup(ctx, dst, exportsDir, ImportInput{Path: out.Path, Mode: ImportModeReplace})
	require.NoError(t, err)
	require.Equal(t, 4, res.Imported)
}

func TestImportBackup_BadLines(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	exportsDir := ExportsDir(t.TempDir())
	require.NoError(t, os.MkdirAll(exportsDir, 0700))

	path := filepath.Join(exportsDir, "bad.jsonl")
	lines := []string{
		`{"_rutina_export":true,"schema_version":"1","exported_at":1}`,
		`{not json}`,
		`{"key":"secrets","value":{}}`,
		`{"key":"people_v1"}`,
		`{"key":"reminders_v1","value":[]}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))

	res, err := ImportBackup(ctx, kv, exportsDir, ImportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, 0, res.Imported)
	require.Len(t, res.Errors, 3)
	require.Equal(t, 2, res.Errors[0].Line)
	require.Equal(t, "PARSE_ERROR", res.Errors[0].Code)

	res, err = ImportBackup(ctx, kv, exportsDir, ImportInput{Path: path, Mode: ImportModeReplace})
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)
	require.Equal(t, 3, res.Skipped)

	list, err := ListReminders(ctx, kv)
	require.NoError(t, err)
	require.Empty(t, list.Reminders)
}

func TestImportBackup_InvalidInput(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	exportsDir := ExportsDir(t.TempDir())

	_, err := ImportBackup(ctx, kv, exportsDir, ImportInput{Path: "x.jsonl", Mode: "rename"})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = ImportBackup(ctx, kv, exportsDir, ImportInput{Path: filepath.Join(exportsDir, "missing.jsonl")})
	requireCode(t, err, errors.ErrNotFound)
}

func TestExportRoutine_Markdown(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	exportsDir := ExportsDir(t.TempDir())

	_, err := ExportRoutine(ctx, kv, exportsDir, ExportInput{})
	requireCode(t, err, errors.ErrNotFound)

	seedRoutine(t, kv)
	out, err := ExportRoutine(ctx, kv, exportsDir, ExportInput{})
	require.NoError(t, err)
	require.Equal(t, 11, out.Count)
	require.True(t, strings.HasSuffix(out.Path, ".md"))

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Contains(t, string(data), "## Mañana")

	_, err = ExportRoutine(ctx, kv, exportsDir, ExportInput{Path: filepath.Join(exportsDir, "rutina.txt")})
	requireCode(t, err, errors.ErrInvalidRequest)
}
