package steps

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templateFuncs — дополнительные функции для шаблонов артефактов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// numbered — нумерует строки: "1. a", "2. b"
	"numbered": func(items []string) []string {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = fmt.Sprintf("%d. %s", i+1, item)
		}
		return out
	},

	"join":     func(sep string, items []string) string { return strings.Join(items, sep) },
	"contains": strings.Contains,
	"lower":    strings.ToLower,
	"upper":    strings.ToUpper,
	"trim":     strings.TrimSpace,
}

var (
	templatesOnce sync.Once
	templates     *template.Template
	templatesErr  error
)

func loadTemplates() (*template.Template, error) {
	templatesOnce.Do(func() {
		t, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.tmpl")
		if err != nil {
			templatesErr = fmt.Errorf("%w: %v", ErrTemplateParse, err)
			return
		}
		templates = t
	})
	return templates, templatesErr
}

// Render рендерит встроенный шаблон артефакта по имени файла.
//
//	code, err := Render("backend.py.tmpl", backendData{WithHealth: true})
//
// Результат обрезается по краям.
func Render(name string, data any) (string, error) {
	t, err := loadTemplates()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Templates возвращает имена встроенных шаблонов.
func Templates() ([]string, error) {
	t, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, tmpl := range t.Templates() {
		if strings.HasSuffix(tmpl.Name(), ".tmpl") {
			names = append(names, tmpl.Name())
		}
	}
	return names, nil
}
