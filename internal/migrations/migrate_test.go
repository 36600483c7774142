package migrations

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_init.up.sql",
		"000001_init.down.sql",
		"000003_payment_orders.up.sql",
		"README.md",
		"notes_000009.sql",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "000010_dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if got := latestVersion(dir); got != 3 {
		t.Errorf("expected latest version 3, got %d", got)
	}
}

func TestLatestVersionMissingDir(t *testing.T) {
	if got := latestVersion(filepath.Join(t.TempDir(), "nope")); got != 0 {
		t.Errorf("expected 0 for missing dir, got %d", got)
	}
}

func TestRunMigrationsRequiresURL(t *testing.T) {
	if err := RunMigrations(""); err == nil {
		t.Errorf("expected error for empty database URL")
	}
}

func TestVersionRequiresURL(t *testing.T) {
	if _, _, err := Version("", DefaultDir); err == nil {
		t.Errorf("expected error for empty database URL")
	}
}
