// Package checkpoint persists pipeline progress: processed URLs, failures,
// completed (type,year) combinations, and opaque positions. One store per
// logical pipeline run; single writer, atomic rename on flush.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// flushEvery is how many mutations accumulate before an automatic flush.
const flushEvery = 100

// FailureInfo records why a URL failed.
type FailureInfo struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// state is the serialized checkpoint record.
type state struct {
	ProcessedURLs         map[string]bool        `json:"processed_urls"`
	FailedURLs            map[string]FailureInfo `json:"failed_urls"`
	CompletedCombinations map[string]bool        `json:"completed_combinations"`
	Positions             map[string]any         `json:"positions"`
	Metadata              map[string]string      `json:"metadata"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

func newState() state {
	return state{
		ProcessedURLs:         make(map[string]bool),
		FailedURLs:            make(map[string]FailureInfo),
		CompletedCombinations: make(map[string]bool),
		Positions:             make(map[string]any),
		Metadata:              make(map[string]string),
	}
}

// Store is a durable, file-backed checkpoint.
type Store struct {
	mu    sync.Mutex
	path  string
	st    state
	dirty int
}

// Key builds the checkpoint key for a pipeline run.
func Key(docType string, minYear, maxYear int, subtypes []string) string {
	sorted := append([]string(nil), subtypes...)
	sort.Strings(sorted)
	key := fmt.Sprintf("%s_%d_%d", docType, minYear, maxYear)
	if len(sorted) > 0 {
		key += "_" + strings.Join(sorted, "_")
	}
	return key
}

// CombinationKey is the unit of completion: "<type>_<year>".
func CombinationKey(docType string, year int) string {
	return fmt.Sprintf("%s_%d", docType, year)
}

// Open loads (or creates) the checkpoint for key under dir.
func Open(dir, key string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	s := &Store{
		path: filepath.Join(dir, key+".json"),
		st:   newState(),
	}
	data, err := os.ReadFile(s.path)
	if err == nil {
		if err := json.Unmarshal(data, &s.st); err != nil {
			// A corrupt checkpoint is a cold start, not a crash.
			s.st = newState()
		}
	}
	if s.st.ProcessedURLs == nil {
		s.st = newState()
	}
	return s, nil
}

// IsProcessed reports whether url was handled in this or a prior run.
func (s *Store) IsProcessed(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ProcessedURLs[url]
}

// MarkProcessed records a successful upsert for url.
func (s *Store) MarkProcessed(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.ProcessedURLs[url] = true
	delete(s.st.FailedURLs, url)
	return s.bump()
}

// MarkFailed records an item-level failure. Failed entries do not block
// retries in a later explicit run but are visible in Stats.
func (s *Store) MarkFailed(url string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.FailedURLs[url] = FailureInfo{Error: cause.Error(), Timestamp: time.Now().UTC()}
	return s.bump()
}

// IsCombinationComplete reports whether a (type,year) tuple finished.
func (s *Store) IsCombinationComplete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CompletedCombinations[key]
}

// MarkCombinationComplete records a fully drained (type,year) tuple.
func (s *Store) MarkCombinationComplete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.CompletedCombinations[key] = true
	return s.bump()
}

// SavePosition stores an opaque scroll position.
func (s *Store) SavePosition(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Positions[key] = v
	return s.bump()
}

// GetPosition returns a saved position, or nil.
func (s *Store) GetPosition(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Positions[key]
}

// SetMetadata records run metadata (status, limits).
func (s *Store) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Metadata[key] = value
	return s.bump()
}

// Stats summarizes checkpoint contents.
type Stats struct {
	Processed             int `json:"processed"`
	Failed                int `json:"failed"`
	CompletedCombinations int `json:"completed_combinations"`
}

// Stats returns checkpoint counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Processed:             len(s.st.ProcessedURLs),
		Failed:                len(s.st.FailedURLs),
		CompletedCombinations: len(s.st.CompletedCombinations),
	}
}

// FailedURLs returns a snapshot of failures.
func (s *Store) FailedURLs() map[string]FailureInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]FailureInfo, len(s.st.FailedURLs))
	for k, v := range s.st.FailedURLs {
		out[k] = v
	}
	return out
}

// Clear wipes all state and flushes.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = newState()
	return s.flushLocked()
}

// Flush writes state to disk immediately.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes pending state; call on graceful shutdown.
func (s *Store) Close() error {
	return s.Flush()
}

// bump counts a mutation and flushes every flushEvery items. Must hold mu.
func (s *Store) bump() error {
	s.dirty++
	if s.dirty < flushEvery {
		return nil
	}
	return s.flushLocked()
}

// flushLocked writes with atomic rename. Must hold mu.
func (s *Store) flushLocked() error {
	s.dirty = 0
	s.st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s.st, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}
