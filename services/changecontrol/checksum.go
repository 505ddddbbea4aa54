package changecontrol

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// Fingerprints maps a slash-separated project path to the hex BLAKE3 digest
// of its content.
type Fingerprints map[string]string

// Clone returns an independent copy. A nil receiver yields an empty set.
func (f Fingerprints) Clone() Fingerprints {
	out := make(Fingerprints, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Paths returns the tracked paths in sorted order.
func (f Fingerprints) Paths() []string {
	paths := make([]string, 0, len(f))
	for path := range f {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Compute fingerprints every path under root. A path that cannot be read
// fails the whole computation.
func Compute(ctx context.Context, root string, paths []string) (Fingerprints, error) {
	out := make(Fingerprints, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum, err := fingerprintFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", rel, err)
		}
		out[rel] = sum
	}
	return out, nil
}

func fingerprintFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
