// Package v0 provides the HTTP handlers for the version status endpoints.
package v0

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clemenko/dzver/internal/cache"
	"github.com/clemenko/dzver/internal/config"
	"github.com/clemenko/dzver/internal/versions"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// loadingPlaceholder renders for any source not present in the snapshot yet
const loadingPlaceholder = "loading..."

// VersionReader provides read access to the current version snapshot.
type VersionReader interface {
	// Get returns the current snapshot; empty before the first refresh
	// cycle completes.
	Get() cache.Snapshot
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes defines the routes for the version API
type Routes struct {
	reader  VersionReader
	sources []config.SourceSpec
}

// NewRoutes creates a new Routes instance over the snapshot reader and the
// source registry (which fixes the status page row order).
func NewRoutes(reader VersionReader, sources []config.SourceSpec) *Routes {
	return &Routes{
		reader:  reader,
		sources: sources,
	}
}

// Router creates a new router for the version API
func Router(reader VersionReader, sources []config.SourceSpec) http.Handler {
	routes := NewRoutes(reader, sources)

	r := chi.NewRouter()
	r.Get("/", routes.getStatusPage)
	r.Get("/json", routes.getVersionsJSON)
	r.Get("/health", getHealth)
	r.Get("/version", getVersionInfo)

	return r
}

// getVersionsJSON handles GET /json. It serializes the current snapshot as
// a flat JSON object, one field per source name. Always responds 200.
func (rr *Routes) getVersionsJSON(w http.ResponseWriter, _ *http.Request) {
	rr.writeJSONResponse(w, rr.reader.Get())
}

type statusRow struct {
	Name    string
	Version string
}

type statusPageData struct {
	Rows        []statusRow
	GeneratedAt string
}

// getStatusPage handles GET /. It renders one row per registered source,
// substituting the loading placeholder for any name missing from the
// snapshot.
func (rr *Routes) getStatusPage(w http.ResponseWriter, _ *http.Request) {
	snapshot := rr.reader.Get()

	data := statusPageData{
		Rows:        make([]statusRow, 0, len(rr.sources)),
		GeneratedAt: time.Now().Format(time.RFC1123),
	}
	for _, src := range rr.sources {
		version, ok := snapshot[src.Name]
		if !ok {
			version = loadingPlaceholder
		}
		data.Rows = append(data.Rows, statusRow{Name: src.Name, Version: version})
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		slog.Error("Failed to render status page", "error", err)
		rr.writeErrorResponse(w, "Failed to render status page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func getHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func getVersionInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(versions.GetVersionInfo()); err != nil {
		slog.Error("Failed to encode version info", "error", err)
	}
}

// writeJSONResponse writes a JSON response with appropriate headers
func (*Routes) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (*Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
