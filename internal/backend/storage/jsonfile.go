package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

const timelineFileMode = 0o644

// JSONFileStore keeps the timeline as a single pretty-printed JSON array on
// disk. All appends go through one mutex, so a read-modify-write cycle never
// interleaves with another.
type JSONFileStore struct {
	mu   sync.Mutex
	path string
}

func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("timeline file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create timeline directory: %w", err)
	}
	return &JSONFileStore{path: path}, nil
}

func (s *JSONFileStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	elements := s.readElements()

	encoded, err := encode(entry, "")
	if err != nil {
		return fmt.Errorf("failed to marshal timeline entry: %w", err)
	}
	elements = append(elements, json.RawMessage(encoded))

	data, err := encode(elements, "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}
	if err := s.writeFile(data); err != nil {
		return fmt.Errorf("failed to write timeline file %s: %w", s.path, err)
	}

	slog.Debug("timeline entry appended", "path", s.path, "entries", len(elements))
	return nil
}

func (s *JSONFileStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elements := s.readElements()
	entries := make([]Entry, 0, len(elements))
	for i, element := range elements {
		var entry Entry
		if err := json.Unmarshal(element, &entry); err != nil {
			slog.Warn("skipping undecodable timeline element", "path", s.path, "index", i, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *JSONFileStore) Close() error {
	return nil
}

// readElements returns the raw array elements currently on disk. A missing,
// unreadable or corrupt file yields an empty timeline; the next append then
// replaces it. Elements are kept verbatim so keys unknown to Entry survive.
func (s *JSONFileStore) readElements() []json.RawMessage {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("timeline file does not exist yet", "path", s.path)
		} else {
			slog.Warn("failed to read timeline file; treating timeline as empty", "path", s.path, "error", err)
		}
		return []json.RawMessage{}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		slog.Warn("timeline file is corrupt; treating timeline as empty", "path", s.path, "error", err)
		return []json.RawMessage{}
	}
	if elements == nil {
		elements = []json.RawMessage{}
	}
	return elements
}

// writeFile replaces the timeline file atomically so readers never observe
// a partial write.
func (s *JSONFileStore) writeFile(data []byte) error {
	return renameio.WriteFile(s.path, data, timelineFileMode)
}

// encode marshals v without HTML escaping and without the trailing newline
// json.Encoder adds.
func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
