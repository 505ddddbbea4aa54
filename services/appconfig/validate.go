package appconfig

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalid marks structural or semantic problems in uxy.json.
	ErrInvalid = errors.New("app configuration is invalid")
	// ErrMissingFile marks a configuration or replacement file that does not exist.
	ErrMissingFile = errors.New("missing file")
)

const maxDescriptionLength = 160

var (
	appNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,48}$`)

	requiredKeys = []string{"app:name", "app:runtime", "app:stage", "app:config", "chatbot:config"}

	supportedRuntimes = map[string]struct{}{
		"python3.9":       {},
		"python3.10":      {},
		"python3.11":      {},
		"python3.12":      {},
		"python3.13":      {},
		"nodejs18.x":      {},
		"nodejs20.x":      {},
		"nodejs22.x":      {},
		"go1.x":           {},
		"provided.al2023": {},
	}
)

// ValidationError carries every problem found in a configuration.
type ValidationError struct {
	Summary  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return e.Summary
	}
	return e.Summary + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validate checks the configuration for the given deployment stage. Checks run
// in three passes (required keys, rules, stage) and stop at the first pass
// that reports problems.
func Validate(cfg *Config, stage string) error {
	if cfg == nil {
		return &ValidationError{Summary: "app configuration is missing"}
	}

	if missing := missingKeys(cfg); len(missing) > 0 {
		return &ValidationError{
			Summary:  "app configuration is invalid. Missing some key parameters",
			Problems: missing,
		}
	}

	if problems := ruleProblems(cfg); len(problems) > 0 {
		return &ValidationError{
			Summary:  "app configuration is invalid",
			Problems: problems,
		}
	}

	stage = strings.TrimSpace(stage)
	if stage == "" {
		return &ValidationError{Summary: "deployment stage is not set"}
	}
	if _, ok := cfg.Stages[stage]; !ok {
		return &ValidationError{
			Summary: fmt.Sprintf("deployment stage: %s not in app configuration (%s) app:config", stage, FileName),
		}
	}

	return nil
}

func missingKeys(cfg *Config) []string {
	var missing []string
	for _, key := range requiredKeys {
		if !cfg.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

func ruleProblems(cfg *Config) []string {
	var problems []string

	if !appNamePattern.MatchString(cfg.Name) {
		problems = append(problems, fmt.Sprintf("app:name %q must be 1-48 letters, digits, '-' or '_'", cfg.Name))
	}
	if _, ok := supportedRuntimes[cfg.Runtime]; !ok {
		problems = append(problems, fmt.Sprintf("app:runtime %q is not supported", cfg.Runtime))
	}
	if n := utf8.RuneCountInString(cfg.Description); n > maxDescriptionLength {
		problems = append(problems, fmt.Sprintf("app:description is %d characters, limit is %d", n, maxDescriptionLength))
	}

	for _, raw := range cfg.Chatbot.URLsToWhiteList {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("URLsToWhiteList entry %q must be an absolute https url", raw))
		}
	}
	if cfg.Chatbot.EnableMenu && isEmptyMenu(cfg.Chatbot.PersistentMenu) {
		problems = append(problems, "enable_menu requires a non-empty persistent_menu")
	}

	stages := make([]string, 0, len(cfg.Stages))
	for name := range cfg.Stages {
		stages = append(stages, name)
	}
	sort.Strings(stages)
	for _, name := range stages {
		for i, pair := range cfg.Stages[name].FileReplacements {
			if strings.TrimSpace(pair.Replace) == "" || strings.TrimSpace(pair.With) == "" {
				problems = append(problems, fmt.Sprintf("app:config.%s.fileReplacements[%d] needs both replace and with", name, i))
			}
		}
	}

	return problems
}

func isEmptyMenu(menu any) bool {
	switch v := menu.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}
