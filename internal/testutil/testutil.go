package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleConfig is a valid uxy.json with a dev and a prod stage.
const SampleConfig = `{
  // comments are accepted
  "app:name": "demo-bot",
  "app:version": "1",
  "app:description": "A demo bot",
  "app:runtime": "python3.12",
  "app:stage": "dev",
  "aws:config": {"region": "us-east-1"},
  "app:config": {
    "dev": {"fileReplacements": [
      {"replace": "src/env/environment.cfg", "with": "src/env/environment.dev.cfg"},
    ]},
    "prod": {"fileReplacements": []}
  },
  "chatbot:config": {
    "URLsToWhiteList": ["https://example.com"],
    "enable_menu": true,
    "persistent_menu": [{"locale": "default", "call_to_actions": [{"type": "postback", "title": "Help", "payload": "HELP"}]}]
  }
}
`

// SampleEnvironment is an environment.cfg with a page token set.
const SampleEnvironment = "[FACEBOOK]\nFB_PAGE_TOKEN = token-dev\n"

// Project is a temporary uxy project tree.
type Project struct {
	Root string
	T    *testing.T
}

// NewProject creates an empty project directory that is removed when the test ends.
func NewProject(t *testing.T) *Project {
	t.Helper()
	return &Project{Root: t.TempDir(), T: t}
}

// NewSampleProject creates a project with SampleConfig, a handler and the
// dev environment files.
func NewSampleProject(t *testing.T) *Project {
	t.Helper()

	p := NewProject(t)
	p.WriteFile("uxy.json", SampleConfig)
	p.WriteFile("src/handler.py", "def handler(event, context):\n    return {}\n")
	p.WriteFile("src/env/environment.cfg", "[FACEBOOK]\nFB_PAGE_TOKEN =\n")
	p.WriteFile("src/env/environment.dev.cfg", SampleEnvironment)
	return p
}

// WriteFile writes content to a slash-separated path relative to the project root.
func (p *Project) WriteFile(name, content string) string {
	p.T.Helper()

	path := filepath.Join(p.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		p.T.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		p.T.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// ReadFile returns the content of a project file.
func (p *Project) ReadFile(name string) string {
	p.T.Helper()

	data, err := os.ReadFile(filepath.Join(p.Root, filepath.FromSlash(name)))
	if err != nil {
		p.T.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// Remove deletes a project file.
func (p *Project) Remove(name string) {
	p.T.Helper()

	if err := os.Remove(filepath.Join(p.Root, filepath.FromSlash(name))); err != nil {
		p.T.Fatalf("failed to remove %s: %v", name, err)
	}
}
