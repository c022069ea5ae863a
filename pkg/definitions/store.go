package definitions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// StorageKey is the single key under which every definition is stored
const StorageKey = "saved_reports"

const (
	lockTimeout       = 3 * time.Second
	lockRetryInterval = 50 * time.Millisecond
)

// ErrDefinitionNotFound is returned when no definition has the requested id
var ErrDefinitionNotFound = errors.New("report definition not found")

// IsNotFound checks if an error is ErrDefinitionNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// Definition is a named, saved report shape
type Definition struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Entity  string                 `json:"entity"`
	Columns []string               `json:"columns"`
	Filters map[string]interface{} `json:"filters"`
	Limit   int                    `json:"limit"`
	SavedAt time.Time              `json:"saved_at"`
}

// Config holds definition storage configuration
type Config struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// DefaultConfig stores definitions under the user's config directory
func DefaultConfig() Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return Config{Path: filepath.Join(dir, "reportq", "definitions.json")}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("definitions path is required")
	}
	return nil
}

// Store persists definitions as one ordered list in a JSON file.
// A sibling .lock file serializes access across processes: writers hold it
// exclusively and readers share it. The file lock is one handle per Store, so
// calls within a process are serialized by mu.
type Store struct {
	path     string
	fileLock *flock.Flock
	mu       sync.Mutex
	now      func() time.Time
	newID    func() string
}

// NewStore creates a store backed by the file at path.
// The file and its directory are created on first save.
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		fileLock: flock.New(path + ".lock"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Save assigns an id when missing, stamps the save time and upserts by id
func (s *Store) Save(def Definition) (Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(true)
	if err != nil {
		return Definition{}, err
	}
	defer unlock()

	defs, err := s.load()
	if err != nil {
		return Definition{}, err
	}

	if def.ID == "" {
		def.ID = s.newID()
	}
	def.SavedAt = s.now().UTC()

	replaced := false
	for i := range defs {
		if defs[i].ID == def.ID {
			defs[i] = def
			replaced = true
			break
		}
	}
	if !replaced {
		defs = append(defs, def)
	}

	if err := s.write(defs); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// List returns every definition in save order
func (s *Store) List() ([]Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.load()
}

// Get returns the definition with id
func (s *Store) Get(id string) (Definition, error) {
	defs, err := s.List()
	if err != nil {
		return Definition{}, err
	}
	for _, def := range defs {
		if def.ID == id {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %s", ErrDefinitionNotFound, id)
}

// Delete removes the definition with id. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	defs, err := s.load()
	if err != nil {
		return err
	}

	kept := defs[:0]
	for _, def := range defs {
		if def.ID != id {
			kept = append(kept, def)
		}
	}
	if len(kept) == len(defs) {
		return nil
	}
	return s.write(kept)
}

// lock takes the file lock, exclusive for writers and shared for readers
func (s *Store) lock(exclusive bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create definitions directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	try := s.fileLock.TryRLockContext
	if exclusive {
		try = s.fileLock.TryLockContext
	}
	locked, err := try(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire file lock")
	}
	return func() { _ = s.fileLock.Unlock() }, nil
}

// load reads the stored list. A missing or empty file is an empty list;
// fields missing from older records decode to zero values.
func (s *Store) load() ([]Definition, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Definition{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	if len(data) == 0 {
		return []Definition{}, nil
	}

	var doc map[string][]Definition
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}

	defs := doc[StorageKey]
	if defs == nil {
		defs = []Definition{}
	}
	return defs, nil
}

// write replaces the file atomically through a temp file and rename
func (s *Store) write(defs []Definition) error {
	data, err := json.MarshalIndent(map[string][]Definition{StorageKey: defs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode definitions: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".definitions-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write definitions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write definitions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace definitions file: %w", err)
	}
	return nil
}
