// Package state persists the engine's durable document: the observation
// history plus the most recent classification result, tagged with a
// schema version for forward migration.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"jpxsignal/internal/classify"
	"jpxsignal/internal/history"
)

// SchemaVersion is the current layout version of the state document.
const SchemaVersion = 2

// Document is the durable, collaborator-agnostic state layout.
type Document struct {
	SchemaVersion int              `json:"schema_version"`
	History       []history.Record `json:"history"`
	Latest        *classify.Result `json:"latest,omitempty"`
}

// Empty returns a fresh document at the current schema version.
func Empty() *Document {
	return &Document{SchemaVersion: SchemaVersion}
}

// Load reads the state document from path. A missing file is a first run
// and yields an empty document, not an error. An unreadable or corrupt
// file is logged and likewise degrades to an empty document so the
// current invocation can still classify from fresh data.
func Load(path string, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("state file not found, starting with empty history", "path", path)
		} else {
			logger.Warn("state file unreadable, starting with empty history",
				"path", path, "error", err)
		}
		return Empty()
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("state file corrupt, starting with empty history",
			"path", path, "error", err)
		return Empty()
	}

	if doc.SchemaVersion > SchemaVersion {
		logger.Warn("state file written by a newer schema, starting with empty history",
			"path", path, "file_version", doc.SchemaVersion, "supported", SchemaVersion)
		return Empty()
	}
	doc.SchemaVersion = SchemaVersion
	return &doc
}

// Save writes the document atomically (temp file plus rename). Callers
// treat failure as non-fatal: the run continues with in-memory state.
func Save(path string, doc *Document) error {
	if path == "" {
		return fmt.Errorf("no state path configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
