package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"uxy/pkg/render"
	"uxy/services/appconfig"
	"uxy/services/environment"
)

// scaffold writes uxy.json and the per-stage environment files that do not
// exist yet. Existing files are left untouched. It returns the created paths.
func scaffold(root string, engine *render.Engine, project render.Project, pageToken string) ([]string, error) {
	files := map[string]string{}

	out, err := engine.Render(render.ConfigTemplate, project)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", appconfig.FileName, err)
	}
	files[appconfig.FileName] = out

	out, err = engine.Render(render.EnvironmentTemplate, render.Environment{Stage: project.Stage})
	if err != nil {
		return nil, fmt.Errorf("render environment: %w", err)
	}
	files[environment.DefaultPath] = out

	base := strings.TrimSuffix(environment.DefaultPath, ".cfg")
	for _, stage := range project.Stages {
		out, err := engine.Render(render.EnvironmentTemplate, render.Environment{Stage: stage, PageToken: pageToken})
		if err != nil {
			return nil, fmt.Errorf("render environment for %s: %w", stage, err)
		}
		files[base+"."+stage+".cfg"] = out
	}

	var created []string
	for _, name := range sortedKeys(files) {
		path := filepath.Join(root, filepath.FromSlash(name))
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return created, err
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return created, fmt.Errorf("create %s: %w", filepath.Dir(name), err)
		}
		if err := os.WriteFile(path, []byte(files[name]), 0o600); err != nil {
			return created, fmt.Errorf("write %s: %w", name, err)
		}
		created = append(created, name)
	}
	return created, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// defaultHandler is the function entry point conventionally used by runtime.
func defaultHandler(runtime string) string {
	switch {
	case strings.HasPrefix(runtime, "python"):
		return "handler.handler"
	case strings.HasPrefix(runtime, "nodejs"):
		return "index.handler"
	default:
		return "bootstrap"
	}
}
