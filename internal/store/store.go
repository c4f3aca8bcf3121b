// Package store keeps a content-addressable collection of animation
// data sets: raw payload bytes under sets/, JSON metadata under
// metadata/, plus an index.json for quick listing.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dicewire/dicewire/pixel"
)

// Store manages a content-addressable collection of animation data sets.
type Store struct {
	baseDir     string
	setsDir     string
	metadataDir string
	indexPath   string
}

// Index contains quick lookup information for all stored sets.
type Index struct {
	Sets      map[string]IndexEntry `json:"sets"` // hash -> entry
	UpdatedAt time.Time             `json:"updated_at"`
}

// IndexEntry contains summary info for quick listing.
type IndexEntry struct {
	Name           string    `json:"name,omitempty"`
	Size           int       `json:"size"`
	AnimationCount uint16    `json:"animation_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// DefaultPath returns the default store path (~/.dicewire/store).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dicewire", "store"), nil
}

// Open opens or creates a store at the given path.
func Open(path string) (*Store, error) {
	s := &Store{
		baseDir:     path,
		setsDir:     filepath.Join(path, "sets"),
		metadataDir: filepath.Join(path, "metadata"),
		indexPath:   filepath.Join(path, "index.json"),
	}

	if err := os.MkdirAll(s.setsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sets dir: %w", err)
	}
	if err := os.MkdirAll(s.metadataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata dir: %w", err)
	}

	return s, nil
}

// OpenDefault opens the store at the default path.
func OpenDefault() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Import adds a data set to the store. If the set already exists (same
// payload hash) only its sources are updated. Returns the hash and
// whether the set was new.
func (s *Store) Import(ds *pixel.DataSet, name string, source Source) (string, bool, error) {
	hash, err := ContentHash(ds.Data)
	if err != nil {
		return "", false, err
	}

	setPath := filepath.Join(s.setsDir, hashToFilename(hash)+".bin")
	metaPath := filepath.Join(s.metadataDir, hashToFilename(hash)+".json")

	isNew := false
	var meta *Metadata

	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		isNew = true
		meta = newMetadata(ds, name, hash)
		meta.Sources = []Source{source}

		if err := os.WriteFile(setPath, ds.Data, 0644); err != nil {
			return "", false, fmt.Errorf("failed to write data set: %w", err)
		}
	} else {
		metaData, err := os.ReadFile(metaPath)
		if err != nil {
			return "", false, fmt.Errorf("failed to read metadata: %w", err)
		}
		meta = &Metadata{}
		if err := json.Unmarshal(metaData, meta); err != nil {
			return "", false, fmt.Errorf("failed to parse metadata: %w", err)
		}
		meta.Sources = append(meta.Sources, source)
		if name != "" {
			meta.Name = name
		}
		meta.UpdatedAt = time.Now()
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", false, fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := s.updateIndex(hash, meta); err != nil {
		return "", false, fmt.Errorf("failed to update index: %w", err)
	}

	return hash, isNew, nil
}

// Get retrieves a transferable data set by hash (full or short).
func (s *Store) Get(hash string) (*pixel.DataSet, *Metadata, error) {
	full, err := s.resolveHash(hash)
	if err != nil {
		return nil, nil, err
	}
	meta, err := s.GetMetadata(full)
	if err != nil {
		return nil, nil, err
	}
	payload, err := os.ReadFile(filepath.Join(s.setsDir, hashToFilename(full)+".bin"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read data set: %w", err)
	}
	return meta.DataSet(payload), meta, nil
}

// GetMetadata retrieves data-set metadata by full hash.
func (s *Store) GetMetadata(hash string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.metadataDir, hashToFilename(hash)+".json"))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// List returns all stored sets with their hashes, newest first.
func (s *Store) List() (map[string]IndexEntry, error) {
	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return index.Sets, nil
}

// Hashes returns all stored hashes sorted by creation date, newest
// first.
func (s *Store) Hashes() ([]string, error) {
	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(index.Sets))
	for hash := range index.Sets {
		hashes = append(hashes, hash)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return index.Sets[hashes[i]].CreatedAt.After(index.Sets[hashes[j]].CreatedAt)
	})
	return hashes, nil
}

// Export writes a stored set to a data-set file.
func (s *Store) Export(hash, destPath string) error {
	ds, meta, err := s.Get(hash)
	if err != nil {
		return err
	}
	return WriteDataSetFile(destPath, ds, meta.Name)
}

// Count returns the number of stored sets.
func (s *Store) Count() (int, error) {
	index, err := s.loadIndex()
	if err != nil {
		return 0, err
	}
	return len(index.Sets), nil
}

// resolveHash expands a short hash prefix to a full stored hash.
func (s *Store) resolveHash(hash string) (string, error) {
	if len(hash) >= 71 { // "sha256:" + 64 hex chars
		return hash, nil
	}
	index, err := s.loadIndex()
	if err != nil {
		return "", err
	}
	var match string
	for full := range index.Sets {
		if ShortHash(full) == hash || hashToFilename(full)[:min(len(hash), 64)] == hash {
			if match != "" {
				return "", fmt.Errorf("ambiguous hash prefix %q", hash)
			}
			match = full
		}
	}
	if match == "" {
		return "", fmt.Errorf("no data set matching %q", hash)
	}
	return match, nil
}

func (s *Store) loadIndex() (*Index, error) {
	data, err := os.ReadFile(s.indexPath)
	if os.IsNotExist(err) {
		return &Index{Sets: make(map[string]IndexEntry)}, nil
	}
	if err != nil {
		return nil, err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	if index.Sets == nil {
		index.Sets = make(map[string]IndexEntry)
	}
	return &index, nil
}

func (s *Store) updateIndex(hash string, meta *Metadata) error {
	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	index.Sets[hash] = IndexEntry{
		Name:           meta.Name,
		Size:           meta.Size,
		AnimationCount: meta.AnimationCount,
		CreatedAt:      meta.CreatedAt,
	}
	index.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath, data, 0644)
}
