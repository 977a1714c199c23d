package ops

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hpungsan/rutina/internal/errors"
)

func TestValidatePath(t *testing.T) {
	exportsDir := ExportsDir(t.TempDir())
	if err := os.MkdirAll(filepath.Join(exportsDir, "nested"), 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	tests := []struct {
		name    string
		path    string
		mode    PathCheckMode
		wantErr errors.ErrorCode
	}{
		{"ok write", filepath.Join(exportsDir, "backup.jsonl"), PathCheckWrite, ""},
		{"empty", "", PathCheckWrite, errors.ErrInvalidRequest},
		{"traversal", filepath.Join(exportsDir, "..", "backup.jsonl"), PathCheckWrite, errors.ErrInvalidRequest},
		{"relative traversal", "../../etc/backup.jsonl", PathCheckWrite, errors.ErrInvalidRequest},
		{"wrong extension", filepath.Join(exportsDir, "backup.json"), PathCheckWrite, errors.ErrInvalidRequest},
		{"subdirectory", filepath.Join(exportsDir, "nested", "backup.jsonl"), PathCheckWrite, errors.ErrInvalidRequest},
		{"outside", filepath.Join(os.TempDir(), "backup.jsonl"), PathCheckWrite, errors.ErrInvalidRequest},
		{"read missing", filepath.Join(exportsDir, "gone.jsonl"), PathCheckRead, errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.mode, exportsDir, ".jsonl")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidatePath() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePath() error = %v, want %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	exportsDir := ExportsDir(t.TempDir())
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	target := filepath.Join(t.TempDir(), "real.jsonl")
	if err := os.WriteFile(target, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	link := filepath.Join(exportsDir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
		if err := ValidatePath(link, mode, exportsDir, ".jsonl"); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("mode %d: ValidatePath() error = %v, want INVALID_REQUEST", mode, err)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Rutina diaria de Leo", "Rutina-diaria-de-Leo"},
		{"../../etc/passwd", "etc-passwd"},
		{"a\x00b", "ab"},
		{"///", "unnamed"},
	}
	for _, tt := range tests {
		if got := SanitizeForFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveExportPath(t *testing.T) {
	dir := filepath.Join("base", "exports")
	tests := []struct{ in, want string }{
		{"", ""},
		{"backup.jsonl", filepath.Join(dir, "backup.jsonl")},
		{"sub/backup.jsonl", "sub/backup.jsonl"},
		{"../backup.jsonl", "../backup.jsonl"},
	}
	for _, tt := range tests {
		if got := ResolveExportPath(dir, tt.in); got != tt.want {
			t.Errorf("ResolveExportPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
