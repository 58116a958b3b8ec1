// Package manifest persists the small piece of store state that lives
// outside the segment files: which generation is current and which
// fields are declared for indexing.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grafema/rfdb/model"
)

const (
	FileName       = "MANIFEST"
	CurrentVersion = 1
)

// Manifest describes the durable state of a store at one point in
// time. It is rewritten atomically after every flush and after every
// declaration change.
type Manifest struct {
	Version      int               `json:"version"`
	Generation   uint64            `json:"generation"`
	NodeCount    uint64            `json:"node_count"`
	EdgeCount    uint64            `json:"edge_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Declarations []model.FieldDecl `json:"declarations,omitempty"`
}

// NodeSegmentFile returns the node segment filename for a generation.
func NodeSegmentFile(gen uint64) string {
	return fmt.Sprintf("nodes-%06d.seg", gen)
}

// EdgeSegmentFile returns the edge segment filename for a generation.
func EdgeSegmentFile(gen uint64) string {
	return fmt.Sprintf("edges-%06d.seg", gen)
}

// Store manages the manifest file and its atomic updates.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a manifest store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load reads the current manifest. A missing file yields a fresh
// generation-zero manifest, so opening an empty directory just works.
func (s *Store) Load() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		now := time.Now().UTC()
		return &Manifest{Version: CurrentVersion, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", s.Path(), err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d (expected %d)", m.Version, CurrentVersion)
	}
	for i := range m.Declarations {
		if err := m.Declarations[i].Validate(); err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
	}
	return &m, nil
}

// Save atomically replaces the manifest: write to a temp name, fsync,
// rename over the old file.
func (s *Store) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	path := s.Path()
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
