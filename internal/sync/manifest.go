package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	ManifestVersion  = "1.0"
	ManifestFileName = ".copilot-assets.json"
)

// Source records where a local file came from.
type Source struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Path   string `json:"path"`
}

// ManifestEntry is the last-synced provenance of one local path.
type ManifestEntry struct {
	Source           Source    `json:"source"`
	RemoteSHA        string    `json:"remoteSha"`
	LocalContentHash string    `json:"localContentHash"`
	InstalledAt      time.Time `json:"installedAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type manifestData struct {
	Version string                   `json:"version"`
	Assets  map[string]ManifestEntry `json:"assets"`
}

func emptyManifest() manifestData {
	return manifestData{Version: ManifestVersion, Assets: make(map[string]ManifestEntry)}
}

// Manifest is the persisted record of what was last synced, keyed by
// workspace-relative local path. It is loaded once and held in memory;
// Save writes the whole document back.
type Manifest struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu     sync.RWMutex
	data   manifestData
	loaded bool

	saveMu sync.Mutex
}

// NewManifest returns a manifest stored at <workspaceRoot>/ManifestFileName.
func NewManifest(workspaceRoot string, logger *slog.Logger) *Manifest {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(workspaceRoot, ManifestFileName)
	return &Manifest{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
		data:   emptyManifest(),
	}
}

// Path returns the manifest file location.
func (m *Manifest) Path() string {
	return m.path
}

// Load reads the manifest file. A missing, unreadable or structurally
// invalid file resets the manifest to empty; Load never fails.
func (m *Manifest) Load() {
	data, err := m.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("manifest reset to empty", "error", &CorruptStateError{Path: m.path, Err: err})
		}
		data = emptyManifest()
	}

	m.mu.Lock()
	m.data = data
	m.loaded = true
	m.mu.Unlock()
}

func (m *Manifest) read() (manifestData, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return manifestData{}, err
	}
	var d manifestData
	if err := json.Unmarshal(raw, &d); err != nil {
		return manifestData{}, err
	}
	if d.Assets == nil {
		return manifestData{}, errors.New(`missing "assets" object`)
	}
	if d.Version == "" {
		d.Version = ManifestVersion
	}
	return d, nil
}

// Loaded reports whether Load has run.
func (m *Manifest) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

func (m *Manifest) Get(localPath string) (ManifestEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data.Assets[localPath]
	return e, ok
}

func (m *Manifest) Set(localPath string, entry ManifestEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Assets[localPath] = entry
}

func (m *Manifest) Remove(localPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data.Assets, localPath)
}

func (m *Manifest) Has(localPath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data.Assets[localPath]
	return ok
}

// All returns a copy of every entry.
func (m *Manifest) All() map[string]ManifestEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data.Assets)
}

// Save writes the manifest as indented JSON with a trailing newline. Keys
// are sorted by encoding/json. Saves are serialized in-process and across
// processes via a lock file, and the file is replaced atomically.
func (m *Manifest) Save() error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	out, err := json.MarshalIndent(m.data, "", "  ")
	n := len(m.data.Assets)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	out = append(out, '\n')

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock manifest: %w", err)
	}
	defer func() {
		if err := m.lock.Unlock(); err != nil {
			m.logger.Warn("failed to unlock manifest", "error", err)
		}
	}()

	if err := writeFileAtomic(m.path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	m.logger.Debug("manifest saved", "path", m.path, "entries", n)
	return nil
}
