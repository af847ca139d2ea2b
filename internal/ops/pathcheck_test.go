package ops

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/errors"
)

func TestValidatePath_Rejections(t *testing.T) {
	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	tests := []struct {
		name string
		path string
		cfg  *config.Config
	}{
		{"empty", "", unsafe},
		{"parent traversal", "../backup.jsonl", unsafe},
		{"mid-path traversal", "/tmp/../etc/backup.jsonl", unsafe},
		{"forward slash traversal", "exports/../../x.jsonl", unsafe},
		{"no extension", "/tmp/backup", unsafe},
		{"wrong extension", "/tmp/backup.json", unsafe},
		{"outside exports dir", "/tmp/backup.jsonl", config.DefaultConfig()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, PathCheckWrite, tc.cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected INVALID_REQUEST, got %v", err)
			}
		})
	}
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir, "relative/ignored"}

	if err := ValidatePath(filepath.Join(dir, "snap.jsonl"), PathCheckWrite, cfg); err != nil {
		t.Errorf("direct child of allowed dir rejected: %v", err)
	}

	nested := filepath.Join(dir, "sub")
	if err := os.Mkdir(nested, 0700); err != nil {
		t.Fatal(err)
	}
	if err := ValidatePath(filepath.Join(nested, "snap.jsonl"), PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("nested path should be rejected, got %v", err)
	}
}

func TestValidatePath_ReadMissing(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}

	err := ValidatePath(filepath.Join(dir, "missing.jsonl"), PathCheckRead, cfg)
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "real.jsonl")
	if err := os.WriteFile(target, []byte("{}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	for _, unsafePaths := range []bool{false, true} {
		cfg := config.DefaultConfig()
		cfg.AllowedPaths = []string{dir}
		cfg.AllowUnsafePaths = unsafePaths
		for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
			if err := ValidatePath(link, mode, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("unsafe=%v mode=%d: expected INVALID_REQUEST, got %v", unsafePaths, mode, err)
			}
		}
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := map[string]bool{
		"a/b.jsonl":      false,
		"..":             true,
		"a/../b.jsonl":   true,
		"a..b.jsonl":     false,
		"/x/y/..":        true,
		"./snap.jsonl":   false,
		"a/...b/c.jsonl": false,
	}
	for path, want := range tests {
		if got := containsTraversal(path); got != want {
			t.Errorf("containsTraversal(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := map[string]string{
		"weekly":            "weekly",
		"../../etc/passwd":  "etc-passwd",
		"a/b\\c":            "a-b-c",
		"\x00\x01":          "unnamed",
		"--q3 review--":     "q3 review",
		"":                  "unnamed",
		"textiles..germany": "textiles-germany",
	}
	for in, want := range tests {
		if got := SanitizeForFilename(in); got != want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultExportsDir(t *testing.T) {
	dir, err := DefaultExportsDir()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dir) != "exports" || filepath.Base(filepath.Dir(dir)) != ".tipe" {
		t.Errorf("DefaultExportsDir = %q", dir)
	}
}
