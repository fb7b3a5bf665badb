// Package artifact persists model artifacts as versioned JSON envelopes and
// replaces files atomically so concurrent readers never observe a partial write.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

var (
	ErrArtifactMissing = errors.New("artifact missing")
	ErrArtifactCorrupt = errors.New("artifact corrupt")
	ErrSchemaMismatch  = errors.New("artifact schema mismatch")
)

// Envelope wraps every artifact payload.
type Envelope struct {
	Kind          string          `json:"kind"`
	SchemaVersion int             `json:"schema_version"`
	CreatedAt     time.Time       `json:"created_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Meta describes a loaded artifact.
type Meta struct {
	Kind          string
	SchemaVersion int
	CreatedAt     time.Time
	ModTime       time.Time
}

// Save encodes payload inside an envelope and atomically replaces path.
func Save(path, kind string, version int, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("artifact %s: encode payload: %w", kind, err)
	}
	data, err := json.Marshal(Envelope{
		Kind:          kind,
		SchemaVersion: version,
		CreatedAt:     time.Now().UTC(),
		Payload:       body,
	})
	if err != nil {
		return fmt.Errorf("artifact %s: encode envelope: %w", kind, err)
	}
	return WriteFileAtomic(path, data)
}

// Load reads path, checks its kind and schema version, and decodes the payload into out.
func Load(path, kind string, version int, out any) (Meta, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return Meta{}, fmt.Errorf("artifact %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("artifact %s: %w", path, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %w", ErrArtifactCorrupt, path, err)
	}
	if env.Kind != kind {
		return Meta{}, fmt.Errorf("%w: %s holds %q, want %q", ErrArtifactCorrupt, path, env.Kind, kind)
	}
	if env.SchemaVersion != version {
		return Meta{}, fmt.Errorf("%w: %s has schema %d, want %d", ErrSchemaMismatch, path, env.SchemaVersion, version)
	}
	if len(bytes.TrimSpace(env.Payload)) == 0 || bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		return Meta{}, fmt.Errorf("%w: %s has no payload", ErrArtifactCorrupt, path)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return Meta{}, fmt.Errorf("%w: %s payload: %w", ErrArtifactCorrupt, path, err)
	}
	return Meta{Kind: env.Kind, SchemaVersion: env.SchemaVersion, CreatedAt: env.CreatedAt, ModTime: info.ModTime()}, nil
}

// ModTime returns the modification time of path, or ErrArtifactMissing.
func ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// WriteFileAtomic writes data to a temp file in path's directory and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("artifact: temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("artifact: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("artifact: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("artifact: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("artifact: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("artifact: rename to %s: %w", path, err)
	}
	return nil
}
