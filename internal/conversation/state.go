package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// stateFileName holds the id of the conversation the CLI is currently
// talking to, inside the config directory.
const stateFileName = "current_conversation"

const (
	stateLockTimeout = 2 * time.Second
	stateLockRetry   = 50 * time.Millisecond
)

// DefaultStateDir returns the config directory (~/.simplechat) used for
// local CLI state.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".simplechat"), nil
}

// statePath returns the state file path inside dir, creating dir if
// needed.
func statePath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return filepath.Join(dir, stateFileName), nil
}

// withStateLock runs fn while holding an advisory lock next to the state
// file, so concurrent CLI invocations don't interleave writes.
func withStateLock(ctx context.Context, path string, fn func() error) error {
	lock := flock.New(path + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, stateLockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, stateLockRetry)
	if err != nil {
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("state file is locked by another process")
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

// SaveCurrent records id as the active conversation in dir. The write
// goes through a temp file and rename, so readers never observe a
// partial file.
func SaveCurrent(ctx context.Context, dir string, id uuid.UUID) error {
	path, err := statePath(dir)
	if err != nil {
		return err
	}

	return withStateLock(ctx, path, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(path), stateFileName+".tmp-*")
		if err != nil {
			return fmt.Errorf("creating temp state file: %w", err)
		}
		tmpName := tmp.Name()

		if _, err := tmp.WriteString(id.String() + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing state file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("closing state file: %w", err)
		}
		if err := os.Rename(tmpName, path); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("replacing state file: %w", err)
		}
		return nil
	})
}

// LoadCurrent returns the active conversation id recorded in dir, or nil
// when none is set. An empty state file also reads as none.
//
// Reads skip the lock: the rename in SaveCurrent is atomic, so a read
// sees either the old id or the new one, never a mix.
func LoadCurrent(dir string) (*uuid.UUID, error) {
	path, err := statePath(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id in state file: %w", err)
	}
	return &id, nil
}

// ClearCurrent forgets the active conversation. Clearing when nothing is
// set is not an error.
func ClearCurrent(ctx context.Context, dir string) error {
	path, err := statePath(dir)
	if err != nil {
		return err
	}

	return withStateLock(ctx, path, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing state file: %w", err)
		}
		return nil
	})
}
