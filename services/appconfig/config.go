package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// FileName is the project configuration file, relative to the project root.
const FileName = "uxy.json"

// Config is the local application configuration read from uxy.json.
type Config struct {
	Name        string                 `json:"app:name"`
	Version     string                 `json:"app:version"`
	Description string                 `json:"app:description"`
	Runtime     string                 `json:"app:runtime"`
	Stage       string                 `json:"app:stage"`
	AWS         AWSConfig              `json:"aws:config"`
	Stages      map[string]StageConfig `json:"app:config"`
	Chatbot     ChatbotConfig          `json:"chatbot:config"`

	// present records which top-level keys appeared in the source document.
	present map[string]bool
}

// AWSConfig holds the cloud account settings of the project.
type AWSConfig struct {
	Region string `json:"region"`
}

// StageConfig holds the stage-specific deployment settings.
type StageConfig struct {
	FileReplacements []FileReplacement `json:"fileReplacements"`
}

// FileReplacement copies the content of With over Replace before deploying.
type FileReplacement struct {
	Replace string `json:"replace"`
	With    string `json:"with"`
}

// ChatbotConfig holds the chat-platform facets pushed on deploy.
type ChatbotConfig struct {
	URLsToWhiteList []string `json:"URLsToWhiteList"`
	EnableMenu      bool     `json:"enable_menu"`
	PersistentMenu  any      `json:"persistent_menu"`
}

// Parse decodes a uxy.json document. Line comments, block comments and
// trailing commas are accepted.
func Parse(data []byte) (*Config, error) {
	stripped := jsonc.ToJSON(data)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(stripped, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s is not valid json: %v", ErrInvalid, FileName, err)
	}

	var cfg Config
	if err := json.Unmarshal(stripped, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalid, FileName, err)
	}

	cfg.present = make(map[string]bool, len(raw))
	for key := range raw {
		cfg.present[key] = true
	}
	return &cfg, nil
}

// Load reads uxy.json from the project root.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to locate app configuration file %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// ResolveStage returns the requested stage, falling back to app:stage.
func (c *Config) ResolveStage(requested string) string {
	if stage := strings.TrimSpace(requested); stage != "" {
		return stage
	}
	if c == nil {
		return ""
	}
	return c.Stage
}

// Has reports whether the top-level key was present in the parsed document.
// Configs built in code report every key as present.
func (c *Config) Has(key string) bool {
	if c == nil {
		return false
	}
	if c.present == nil {
		return true
	}
	return c.present[key]
}
