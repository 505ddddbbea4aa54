package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// ReplaceFiles applies the stage's file replacements under root in order. It
// stops at the first pair whose source or target is missing; pairs written
// before that point stay written.
func ReplaceFiles(root string, cfg *Config, stage string, logger zerolog.Logger) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil configuration", ErrInvalid)
	}
	stageCfg, ok := cfg.Stages[stage]
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalid, stage)
	}

	for _, pair := range stageCfg.FileReplacements {
		target := filepath.Join(root, filepath.FromSlash(pair.Replace))
		source := filepath.Join(root, filepath.FromSlash(pair.With))

		if !isFile(target) {
			return fmt.Errorf("%w: failed to locate %s", ErrMissingFile, pair.Replace)
		}
		if !isFile(source) {
			return fmt.Errorf("%w: failed to locate %s", ErrMissingFile, pair.With)
		}

		logger.Info().Str("replace", pair.Replace).Str("with", pair.With).Msg("replacing file")

		data, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("read %s: %w", pair.With, err)
		}
		info, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("stat %s: %w", pair.Replace, err)
		}
		if err := os.WriteFile(target, data, info.Mode().Perm()); err != nil {
			return fmt.Errorf("write %s: %w", pair.Replace, err)
		}
	}

	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
