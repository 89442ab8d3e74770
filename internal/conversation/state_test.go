package conversation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestStatePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	path, err := statePath(dir)
	if err != nil {
		t.Fatalf("statePath(%q) error = %v", dir, err)
	}
	if path != filepath.Join(dir, stateFileName) {
		t.Errorf("statePath() = %q, want file inside %q", path, dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("statePath() did not create directory: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o750 {
		t.Errorf("state directory mode = %o, want 0750", got)
	}
}

func TestSaveAndLoadCurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		dir := t.TempDir()
		id := uuid.New()

		if err := SaveCurrent(ctx, dir, id); err != nil {
			t.Fatalf("SaveCurrent() error = %v", err)
		}

		got, err := LoadCurrent(dir)
		if err != nil {
			t.Fatalf("LoadCurrent() error = %v", err)
		}
		if got == nil {
			t.Fatal("LoadCurrent() = nil, want id")
		}
		if *got != id {
			t.Errorf("LoadCurrent() = %v, want %v", *got, id)
		}
	})

	t.Run("load without state returns nil", func(t *testing.T) {
		got, err := LoadCurrent(t.TempDir())
		if err != nil {
			t.Errorf("LoadCurrent() error = %v, want nil", err)
		}
		if got != nil {
			t.Errorf("LoadCurrent() = %v, want nil", *got)
		}
	})

	t.Run("save overwrites previous id", func(t *testing.T) {
		dir := t.TempDir()
		first, second := uuid.New(), uuid.New()

		if err := SaveCurrent(ctx, dir, first); err != nil {
			t.Fatalf("SaveCurrent(first) error = %v", err)
		}
		if err := SaveCurrent(ctx, dir, second); err != nil {
			t.Fatalf("SaveCurrent(second) error = %v", err)
		}

		got, err := LoadCurrent(dir)
		if err != nil {
			t.Fatalf("LoadCurrent() error = %v", err)
		}
		if got == nil || *got != second {
			t.Errorf("LoadCurrent() = %v, want %v", got, second)
		}
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		dir := t.TempDir()
		if err := SaveCurrent(ctx, dir, uuid.New()); err != nil {
			t.Fatalf("SaveCurrent() error = %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		for _, e := range entries {
			if e.Name() != stateFileName && e.Name() != stateFileName+".lock" {
				t.Errorf("unexpected file after save: %q", e.Name())
			}
		}
	})
}

func TestClearCurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("removes state", func(t *testing.T) {
		dir := t.TempDir()
		if err := SaveCurrent(ctx, dir, uuid.New()); err != nil {
			t.Fatalf("SaveCurrent() setup error = %v", err)
		}

		if err := ClearCurrent(ctx, dir); err != nil {
			t.Errorf("ClearCurrent() error = %v", err)
		}

		got, err := LoadCurrent(dir)
		if err != nil {
			t.Errorf("LoadCurrent() after clear error = %v", err)
		}
		if got != nil {
			t.Errorf("LoadCurrent() after clear = %v, want nil", *got)
		}
	})

	t.Run("idempotent on missing state", func(t *testing.T) {
		if err := ClearCurrent(ctx, t.TempDir()); err != nil {
			t.Errorf("ClearCurrent() on empty dir error = %v, want nil", err)
		}
	})
}

func TestLoadCurrent_InvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantNil bool
		wantErr bool
	}{
		{name: "empty file returns nil", content: "", wantNil: true},
		{name: "whitespace only returns nil", content: "   \n\t  ", wantNil: true},
		{name: "invalid id returns error", content: "not-a-valid-uuid", wantErr: true},
		{name: "truncated id returns error", content: "12345678-1234-1234-1234", wantErr: true},
		{name: "valid id", content: "550e8400-e29b-41d4-a716-446655440000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path, err := statePath(dir)
			if err != nil {
				t.Fatalf("statePath() error = %v", err)
			}
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			got, err := LoadCurrent(dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadCurrent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantNil && got != nil {
				t.Errorf("LoadCurrent() = %v, want nil", *got)
			}
			if !tt.wantNil && !tt.wantErr && got == nil {
				t.Error("LoadCurrent() = nil, want id")
			}
		})
	}
}
