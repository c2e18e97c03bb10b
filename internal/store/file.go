package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	fileLockTimeout = 3 * time.Second
	fileLockRetry   = 50 * time.Millisecond
)

// File keeps every record in one JSON file. Each operation takes an
// exclusive lock on a sibling ".lock" file, so several processes can
// share the same store.
//
// Thread-safety: safe for concurrent use.
type File struct {
	path     string
	fileLock *flock.Flock
	mu       sync.Mutex
}

type fileData struct {
	Version int               `json:"version"`
	Records map[string]Record `json:"records"`
}

// OpenFile returns a file backend at path. The file is created on first
// write; its directory must exist.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("store: file backend needs a path")
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("store: open file backend: %w", err)
	}
	return &File{path: path, fileLock: flock.New(path + ".lock")}, nil
}

func (f *File) Set(ctx context.Context, key string, rec Record) error {
	if err := validKey(key); err != nil {
		return err
	}
	return f.update(ctx, func(d *fileData) bool {
		d.Records[key] = normalize(rec)
		return true
	})
}

func (f *File) Get(ctx context.Context, key string) (Record, error) {
	var (
		rec Record
		ok  bool
	)
	err := f.view(ctx, func(d *fileData) {
		rec, ok = d.Records[key]
	})
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	return normalize(rec), nil
}

func (f *File) Delete(ctx context.Context, key string) (bool, error) {
	var found bool
	err := f.update(ctx, func(d *fileData) bool {
		if _, found = d.Records[key]; found {
			delete(d.Records, key)
		}
		return found
	})
	return found, err
}

func (f *File) References(ctx context.Context, foreign string) ([]string, error) {
	out := []string{}
	err := f.view(ctx, func(d *fileData) {
		for k, rec := range d.Records {
			if _, ok := slices.BinarySearch(rec.ForeignKeys, foreign); ok {
				out = append(out, k)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

func (f *File) Close() error { return nil }

func (f *File) view(ctx context.Context, fn func(*fileData)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	d, err := f.load()
	if err != nil {
		return err
	}
	fn(d)
	return nil
}

// update loads the file, applies fn and saves the result if fn reports a
// change.
func (f *File) update(ctx context.Context, fn func(*fileData) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	d, err := f.load()
	if err != nil {
		return err
	}
	if !fn(d) {
		return nil
	}
	return f.save(d)
}

func (f *File) lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, fileLockTimeout)
	defer cancel()

	locked, err := f.fileLock.TryLockContext(ctx, fileLockRetry)
	if err != nil {
		return nil, fmt.Errorf("store: acquire file lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("store: could not acquire file lock")
	}
	return func() { _ = f.fileLock.Unlock() }, nil
}

func (f *File) load() (*fileData, error) {
	d := &fileData{Version: 1, Records: make(map[string]Record)}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", f.path, err)
	}
	if d.Records == nil {
		d.Records = make(map[string]Record)
	}
	return d, nil
}

// save replaces the file atomically through a temporary sibling.
func (f *File) save(d *fileData) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode records: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("store: replace %s: %w", f.path, err)
	}
	return nil
}
