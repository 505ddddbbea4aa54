package changecontrol

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// SentinelPath stands for the whole app configuration in the tracked set.
	SentinelPath = "uxy.json"

	// DefaultSourceDir holds the function source deployed to the cloud.
	DefaultSourceDir = "src"
)

// Decision is the outcome of comparing fresh fingerprints with stored ones.
// Fingerprints always replaces the stored set, whether or not Changed is set.
type Decision struct {
	Fingerprints Fingerprints
	Changed      bool
	Added        []string
	Removed      []string
	Modified     []string
}

// ChangeControl detects changes in the tracked files of a project.
type ChangeControl struct {
	root      string
	sourceDir string
}

// New returns a ChangeControl for the project at root. sourceDir defaults to
// DefaultSourceDir when empty.
func New(root, sourceDir string) (*ChangeControl, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("project root is required")
	}
	if sourceDir == "" {
		sourceDir = DefaultSourceDir
	}
	return &ChangeControl{root: root, sourceDir: sourceDir}, nil
}

// TrackedFiles lists the sentinel configuration file plus every regular file
// under the source directory, sorted. Hidden entries and __pycache__ are skipped.
func (c *ChangeControl) TrackedFiles() ([]string, error) {
	paths := []string{SentinelPath}

	base := filepath.Join(c.root, filepath.FromSlash(c.sourceDir))
	info, err := os.Stat(base)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return paths, nil
	case err != nil:
		return nil, err
	case !info.IsDir():
		return nil, fmt.Errorf("source path %q is not a directory", c.sourceDir)
	}

	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != base && (strings.HasPrefix(name, ".") || name == "__pycache__") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", path, err)
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths[1:])
	return paths, nil
}

// Compare fingerprints the tracked files and diffs them against stored. The
// stored set is copied before use and never modified.
func (c *ChangeControl) Compare(ctx context.Context, stored map[string]string) (Decision, error) {
	paths, err := c.TrackedFiles()
	if err != nil {
		return Decision{}, fmt.Errorf("list tracked files: %w", err)
	}
	fresh, err := Compute(ctx, c.root, paths)
	if err != nil {
		return Decision{}, err
	}

	return Diff(Fingerprints(stored).Clone(), fresh), nil
}

// Diff compares two fingerprint sets. A path present on only one side counts
// as a change.
func Diff(stored, fresh Fingerprints) Decision {
	decision := Decision{Fingerprints: fresh.Clone()}

	for _, path := range fresh.Paths() {
		old, ok := stored[path]
		switch {
		case !ok:
			decision.Added = append(decision.Added, path)
		case old != fresh[path]:
			decision.Modified = append(decision.Modified, path)
		}
	}
	for _, path := range stored.Paths() {
		if _, ok := fresh[path]; !ok {
			decision.Removed = append(decision.Removed, path)
		}
	}

	decision.Changed = len(decision.Added)+len(decision.Removed)+len(decision.Modified) > 0
	return decision
}
