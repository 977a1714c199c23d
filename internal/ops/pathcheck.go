package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/rutina/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // import
	PathCheckWrite                      // export
)

// ExportsDir returns the directory backups and printable routines are
// confined to.
func ExportsDir(baseDir string) string {
	return filepath.Join(baseDir, "exports")
}

// ResolveExportPath turns a bare file name into a path inside exportsDir.
// Anything else is returned unchanged for ValidatePath to judge.
func ResolveExportPath(exportsDir, path string) string {
	if path == "" || filepath.IsAbs(path) || strings.ContainsAny(path, "/\\") {
		return path
	}
	return filepath.Join(exportsDir, path)
}

// ValidatePath checks a user-supplied file path for import/export:
// no ".." components, the required extension, and the file sits directly in
// exportsDir (no subdirectories). Symlinked files and parents are rejected.
func ValidatePath(path string, mode PathCheckMode, exportsDir, ext string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ext {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have %s extension", ext))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	allowed, err := filepath.Abs(filepath.Clean(exportsDir))
	if err != nil {
		return errors.NewInternal(fmt.Errorf("invalid exports directory: %w", err))
	}

	parentDir := filepath.Dir(absPath)
	if parentDir != allowed {
		return errors.NewInvalidRequest(fmt.Sprintf("file must be directly in %s", allowed))
	}
	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewNotFound("file", path)
		}
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

func containsTraversal(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizeForFilename makes s safe to embed in a file name.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteRune('-')
		case r >= 32 && r != 127:
			b.WriteRune(r)
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		s = "unnamed"
	}
	return s
}
