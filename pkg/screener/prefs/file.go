package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileKV stores entries as one YAML mapping of key to string value. The file
// is rewritten through a temporary file on every Set.
type FileKV struct {
	path string

	mu sync.Mutex
	m  map[string]string
}

// ErrCorrupt is returned with a usable, empty store when the backing file
// cannot be parsed. The next Set overwrites it.
var ErrCorrupt = errors.New("corrupt prefs file")

// NewFileKV opens path, creating nothing until the first Set. A missing
// file is an empty store.
func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		return nil, fmt.Errorf("file prefs backend requires a path")
	}
	k := &FileKV{path: path, m: map[string]string{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return k, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &k.m); err != nil {
		k.m = map[string]string{}
		return k, fmt.Errorf("%w %s: %v", ErrCorrupt, path, err)
	}
	if k.m == nil {
		k.m = map[string]string{}
	}
	return k, nil
}

func (k *FileKV) Get(key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *FileKV) Set(entries map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	next := make(map[string]string, len(k.m)+len(entries))
	for key, v := range k.m {
		next[key] = v
	}
	for key, v := range entries {
		next[key] = v
	}
	data, err := yaml.Marshal(next)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0o755); err != nil {
		return err
	}
	tmp := k.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, k.path); err != nil {
		return err
	}
	k.m = next
	return nil
}

func (k *FileKV) Close() error { return nil }
