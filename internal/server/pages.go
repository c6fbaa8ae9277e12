package server

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/teemow/spotify-mcp/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Template names.
const (
	pageAuth    = "auth.html"
	pageSuccess = "success.html"
	pageError   = "error.html"
)

// Error page icons.
const (
	iconDenied   = "❌"
	iconState    = "🔒"
	iconMissing  = "⚠️"
	iconExchange = "💥"
)

type authPage struct {
	Identity string
	AuthURL  string
}

type successPage struct {
	Identity string
}

type errorPage struct {
	Title   string
	Message string
	Icon    string
}

func setPageHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
}

// renderPage executes the template into a buffer first so a template error
// can still produce a clean 500.
func renderPage(w http.ResponseWriter, logger *slog.Logger, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Failed to render page", "template", name, logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	setPageHeaders(w)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func renderError(w http.ResponseWriter, logger *slog.Logger, status int, page errorPage) {
	renderPage(w, logger, status, pageError, page)
}
