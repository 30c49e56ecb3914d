package httpx

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/haukened/padkey/internal/domain"
)

// IndexRenderer abstracts template execution for easier testing.
// Typically implemented by a thin wrapper around html/template.Template.
type IndexRenderer interface {
	Execute(w http.ResponseWriter, data any) error
}

// TemplateRenderer implements IndexRenderer using html/template.
type TemplateRenderer struct{ T *template.Template }

func (tr TemplateRenderer) Execute(w http.ResponseWriter, data any) error {
	return tr.T.Execute(w, data)
}

// ParseIndex parses the index page template from fsys.
func ParseIndex(fsys fs.FS) (TemplateRenderer, error) {
	t, err := template.ParseFS(fsys, "index.tmpl.html")
	if err != nil {
		return TemplateRenderer{}, fmt.Errorf("parse index template: %w", err)
	}
	return TemplateRenderer{T: t}, nil
}

// IndexView supplies the validity window and usage hints to the index template.
type IndexView struct {
	Single         bool
	KeepForever    bool
	WindowDays     int // pools kept in daily mode
	Current        string
	Today          string
	Origin         string
	MaxUploadHuman string
}

func humanBytes(n int64) string {
	if n <= 0 {
		return "no limit"
	}
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	suffixes := []string{"KB", "MB", "GB", "TB"}
	f := float64(n)
	for _, s := range suffixes {
		f /= 1024
		if f < 1024 {
			return fmt.Sprintf("%.1f %s", f, s)
		}
	}
	return fmt.Sprintf("%.1f PB", f/1024)
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (h *Handler) indexView(r *http.Request) IndexView {
	s := h.Service.Settings()
	return IndexView{
		Single:         s.Mode == domain.ModeSingle,
		KeepForever:    s.DaysToKeep == domain.KeepForever,
		WindowDays:     max(1, s.DaysToKeep),
		Current:        h.Service.CurrentID().String(),
		Today:          domain.DateID(h.now()).String(),
		Origin:         origin(r),
		MaxUploadHuman: humanBytes(h.MaxBody),
	}
}

// handleIndex renders the root HTML page.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if h.IndexTmpl == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("index unavailable"))
		return
	}
	renderTemplate(w, h.IndexTmpl, h.indexView(r))
}

// staticHandler serves embedded/static assets under /static/.
func (h *Handler) staticHandler() http.Handler {
	fsys := h.Assets
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent directory listings; require a file with extension
		if strings.HasSuffix(r.URL.Path, "/") || path.Ext(r.URL.Path) == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		http.FileServer(fsys).ServeHTTP(w, r)
	})
}
