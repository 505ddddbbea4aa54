package blueprint

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Store persists one blueprint per application.
type Store interface {
	// Load returns the blueprint of app, or ErrNotFound when none was saved.
	Load(ctx context.Context, app string) (*Blueprint, error)
	// Save replaces the stored blueprint of bp.AppName.
	Save(ctx context.Context, bp *Blueprint) error
	Close() error
}

// Open selects a Store implementation from rawURL:
//
//	file://.uxy/blueprint.yaml   YAML file, relative paths resolve against root
//	s3://bucket/key.json         JSON object
//	postgres://user@host/db      row in the blueprints table
func Open(ctx context.Context, rawURL, root string) (Store, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("blueprint url is required")
	}

	scheme, rest, found := strings.Cut(rawURL, "://")
	if !found {
		scheme, rest = "file", rawURL
	}

	switch scheme {
	case "file":
		path := filepath.FromSlash(rest)
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		return NewFileStore(path)
	case "s3":
		bucket, key, err := parseS3URL(rawURL)
		if err != nil {
			return nil, err
		}
		return NewS3StoreFromEnv(ctx, bucket, key)
	case "postgres", "postgresql":
		if _, err := url.Parse(rawURL); err != nil {
			return nil, fmt.Errorf("parse postgres url: %w", err)
		}
		return OpenPostgresStore(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unsupported blueprint url scheme %q", scheme)
	}
}

func checkOwner(bp *Blueprint, app string) error {
	if app != "" && bp.AppName != "" && bp.AppName != app {
		return fmt.Errorf("stored blueprint belongs to %q, not %q", bp.AppName, app)
	}
	return nil
}

func parseS3URL(raw string) (string, string, error) {
	if !strings.HasPrefix(raw, "s3://") {
		return "", "", fmt.Errorf("unsupported blueprint url %q", raw)
	}
	trimmed := strings.TrimPrefix(raw, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid s3 url %q", raw)
	}
	bucket := parts[0]
	key := parts[1]
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q", raw)
	}
	return bucket, key, nil
}
