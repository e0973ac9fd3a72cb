package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound reports a snapshot name with no stored document.
var ErrNotFound = errors.New("snapshot: not found")

const parsedCacheSize = 256

// Store keeps snapshot documents either in a local directory or in an
// S3-compatible bucket, with a small LRU cache over parsed documents so
// repeated comparisons do not re-read and re-decode the same files.
type Store struct {
	dir string
	s3  *S3Store

	parsed *lru.Cache[string, *Snapshot]
}

func NewFileStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "snapshots"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir %s: %w", dir, err)
	}
	cache, err := lru.New[string, *Snapshot](parsedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, parsed: cache}, nil
}

func NewS3Backed(s3 *S3Store) (*Store, error) {
	cache, err := lru.New[string, *Snapshot](parsedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{s3: s3, parsed: cache}, nil
}

// NewFromEnv prefers the S3 backend when an endpoint is configured and
// falls back to the local directory.
func NewFromEnv(dir string) (*Store, error) {
	cfg := S3ConfigFromEnv()
	if cfg.Endpoint != "" {
		s3, err := NewS3Store(cfg)
		if err == nil {
			return NewS3Backed(s3)
		}
	}
	return NewFileStore(dir)
}

// Save validates that content is a JSON object and stores it pretty
// printed under name.
func (s *Store) Save(ctx context.Context, name string, content []byte) error {
	if s == nil {
		return fmt.Errorf("snapshot: store is nil")
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("snapshot: content is not a JSON object: %w", err)
	}
	pretty, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	s.parsed.Remove(name)

	if s.s3 != nil {
		return s.s3.Put(ctx, name, pretty)
	}
	return os.WriteFile(filepath.Join(s.dir, name), pretty, 0o644)
}

// Get returns the raw stored document.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("snapshot: store is nil")
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if s.s3 != nil {
		return s.s3.Get(ctx, name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// GetParsed returns the decoded snapshot, served from the LRU cache when
// possible.
func (s *Store) GetParsed(ctx context.Context, name string) (*Snapshot, error) {
	if s == nil {
		return nil, fmt.Errorf("snapshot: store is nil")
	}
	key, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.parsed.Get(key); ok {
		return cached, nil
	}
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	snap, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	s.parsed.Add(key, snap)
	return snap, nil
}

// List returns stored snapshot names sorted ascending.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("snapshot: store is nil")
	}
	if s.s3 != nil {
		return s.s3.List(ctx)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a stored snapshot.
func (s *Store) Delete(ctx context.Context, name string) error {
	if s == nil {
		return fmt.Errorf("snapshot: store is nil")
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	s.parsed.Remove(name)
	if s.s3 != nil {
		return s.s3.Remove(ctx, name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// cleanName rejects path traversal and enforces the .json suffix.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("snapshot: name is required")
	}
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("snapshot: invalid name %q", name)
	}
	if !strings.HasSuffix(name, ".json") {
		return "", fmt.Errorf("snapshot: name %q must end in .json", name)
	}
	return name, nil
}
