package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// ErrNoSources is returned when a project has nothing to deploy.
var ErrNoSources = errors.New("no function sources")

// zipEpoch is stamped on every entry so identical sources give identical archives.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Artifact is a packaged function source tree.
type Artifact struct {
	Data []byte
	// SHA256 is the hex digest of Data.
	SHA256 string
	// CodeSha256 is the base64 digest Lambda reports for deployed code.
	CodeSha256 string
	Files      []string
}

// Size returns the archive length in bytes.
func (a Artifact) Size() int64 { return int64(len(a.Data)) }

// Package zips the files under sourceDir. files are project-relative,
// slash-separated paths; entries outside sourceDir are ignored and the rest
// are stored relative to sourceDir in sorted order.
func Package(ctx context.Context, root, sourceDir string, files []string) (Artifact, error) {
	prefix := strings.Trim(filepath.ToSlash(sourceDir), "/") + "/"

	var entries []string
	for _, file := range files {
		if strings.HasPrefix(file, prefix) {
			entries = append(entries, file)
		}
	}
	if len(entries) == 0 {
		return Artifact{}, fmt.Errorf("%w under %s", ErrNoSources, sourceDir)
	}
	sort.Strings(entries)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, file := range entries {
		if err := ctx.Err(); err != nil {
			return Artifact{}, err
		}
		if err := addEntry(zw, root, file, strings.TrimPrefix(file, prefix)); err != nil {
			return Artifact{}, err
		}
	}
	if err := zw.Close(); err != nil {
		return Artifact{}, fmt.Errorf("finalize archive: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return Artifact{
		Data:       buf.Bytes(),
		SHA256:     hex.EncodeToString(sum[:]),
		CodeSha256: base64.StdEncoding.EncodeToString(sum[:]),
		Files:      entries,
	}, nil
}

func addEntry(zw *zip.Writer, root, file, name string) error {
	src := filepath.Join(root, filepath.FromSlash(file))
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", file, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", file)
	}

	header := &zip.FileHeader{
		Name:     path.Clean(name),
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	mode := os.FileMode(0o644)
	if info.Mode()&0o111 != 0 {
		mode = 0o755
	}
	header.SetMode(mode)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compress %s: %w", file, err)
	}
	return nil
}
