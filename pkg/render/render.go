package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"reflect"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const (
	// ConfigTemplate renders uxy.json from a Project.
	ConfigTemplate = "uxy.json.tmpl"
	// EnvironmentTemplate renders an environment.cfg from an Environment.
	EnvironmentTemplate = "environment.cfg.tmpl"
)

// Project is the data behind ConfigTemplate.
type Project struct {
	Name        string
	Description string
	Runtime     string
	Stage       string
	Region      string
	Stages      []string
}

// Environment is the data behind EnvironmentTemplate.
type Environment struct {
	Stage       string
	PageToken   string
	VerifyToken string
}

// Engine renders templates embedded in the package.
type Engine struct {
	templates *template.Template
}

// New initialises an Engine by parsing all embedded templates.
func New() (*Engine, error) {
	t, err := template.New("render").Funcs(template.FuncMap{
		"json": toJSON,
		"last": isLast,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Engine{templates: t}, nil
}

// Render executes the named template with the provided data and returns the rendered string.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil || e.templates == nil {
		return "", fmt.Errorf("nil engine")
	}

	buf := bytes.NewBuffer(nil)
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isLast(i int, list any) bool {
	v := reflect.ValueOf(list)
	return v.Kind() == reflect.Slice && i == v.Len()-1
}
