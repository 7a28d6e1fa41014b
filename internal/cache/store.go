// Package cache stores embedding vectors on disk, addressed by fingerprint.
//
// Layout:
//
//	<root>/<fp[0:2]>/<fp[2:4]>/<fp>.npy
//
// Shard directories are created on first write and never pruned.
package cache

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/fingerprint"
)

// Ext is the entry file extension.
const Ext = ".npy"

// Store is a sharded, content-addressed vector store. It is safe for
// concurrent use; concurrent writes of the same fingerprint are last-writer-wins.
type Store struct {
	root string
	mem  *lru.Cache[string, []float64]
}

// Stats summarizes the entries under the store root.
type Stats struct {
	Root    string `json:"root"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// New returns a store rooted at root. memSize > 0 keeps that many vectors in
// an in-memory LRU in front of the disk.
func New(root string, memSize int) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.NewInvalidRequest("storage root is required")
	}
	s := &Store{root: root}
	if memSize > 0 {
		mem, err := lru.New[string, []float64](memSize)
		if err != nil {
			return nil, fmt.Errorf("init memory cache: %w", err)
		}
		s.mem = mem
	}
	return s, nil
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

// Path returns the entry path for fp.
func (s *Store) Path(fp string) string {
	return filepath.Join(s.root, fp[:2], fp[2:4], fp+Ext)
}

// Exists reports whether an entry file for fp is present.
func (s *Store) Exists(fp string) bool {
	if !fingerprint.Valid(fp) {
		return false
	}
	fi, err := os.Stat(s.Path(fp))
	return err == nil && fi.Mode().IsRegular()
}

// Write persists vec under fp, replacing any previous entry, and returns vec.
// The entry is written to a temp file in the shard directory and renamed into
// place, so readers never observe a partial file.
func (s *Store) Write(fp string, vec []float64) ([]float64, error) {
	if !fingerprint.Valid(fp) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid fingerprint %q", fp))
	}
	finalPath := s.Path(fp)
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("create shard directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, "emb-tmp-*")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return nil, errors.NewInternal(err)
	}
	if _, err := tmp.Write(encodeNPY(vec)); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		return nil, errors.NewInternal(err)
	}

	if s.mem != nil {
		s.mem.Add(fp, cloneVector(vec))
	}
	return vec, nil
}

// Read returns the vector stored under fp. A missing entry is NOT_FOUND; an
// entry that cannot be decoded is CACHE_CORRUPT.
func (s *Store) Read(fp string) ([]float64, error) {
	if !fingerprint.Valid(fp) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid fingerprint %q", fp))
	}
	if s.mem != nil {
		if vec, ok := s.mem.Get(fp); ok {
			return cloneVector(vec), nil
		}
	}

	path := s.Path(fp)
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFound(fp)
		}
		return nil, errors.NewInternal(err)
	}
	vec, err := decodeNPY(data)
	if err != nil {
		return nil, errors.NewCacheCorrupt(path, err)
	}

	if s.mem != nil {
		s.mem.Add(fp, cloneVector(vec))
	}
	return vec, nil
}

// Stats walks the store and counts entries. A missing root is an empty store.
func (s *Store) Stats() (Stats, error) {
	st := Stats{Root: s.root}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) && path == s.root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != Ext {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		st.Entries++
		st.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, errors.NewInternal(err)
	}
	return st, nil
}

func cloneVector(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
