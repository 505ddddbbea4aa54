package blueprint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore keeps the blueprint as a YAML document on local disk.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the YAML file at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("blueprint path is required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the location of the blueprint file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context, app string) (*Blueprint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read blueprint: %w", err)
	}

	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("decode blueprint %s: %w", s.path, err)
	}
	if bp.Checksums == nil {
		bp.Checksums = map[string]string{}
	}
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("blueprint %s: %w", s.path, err)
	}
	if err := checkOwner(&bp, app); err != nil {
		return nil, err
	}
	return &bp, nil
}

// Save writes the blueprint atomically through a temporary file in the same
// directory.
func (s *FileStore) Save(_ context.Context, bp *Blueprint) error {
	if err := bp.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(bp)
	if err != nil {
		return fmt.Errorf("encode blueprint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create blueprint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".blueprint-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp blueprint: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write blueprint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close blueprint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace blueprint: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
