// Package web holds the HTML templates compiled into the binary.
package web

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page template with the shared helper functions.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"since": func(t time.Time) string {
			return time.Since(t).Round(time.Second).String()
		},
	}).ParseFS(templateFS, "templates/*.html")
}
