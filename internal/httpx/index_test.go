package httpx

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/padkey/internal/app"
	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/keyfile"
	"github.com/haukened/padkey/web"
)

type settingsOnly struct {
	s       app.Settings
	current domain.PoolID
}

func (f settingsOnly) Settings() app.Settings   { return f.s }
func (f settingsOnly) CurrentID() domain.PoolID { return f.current }
func (settingsOnly) OpenPool(context.Context, string) (*os.File, domain.PoolID, error) {
	return nil, "", errors.New("unused")
}
func (settingsOnly) Encode(context.Context, string, string, []byte) (keyfile.Key, error) {
	return keyfile.Key{}, errors.New("unused")
}
func (settingsOnly) Decode(context.Context, keyfile.Key) ([]byte, error) {
	return nil, errors.New("unused")
}
func (settingsOnly) Pools(context.Context) (app.PoolsView, error) {
	return app.PoolsView{}, errors.New("unused")
}

func fixedNow() time.Time { return time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC) }

func TestIndexView(t *testing.T) {
	tests := []struct {
		name string
		s    app.Settings
		want IndexView
	}{
		{"daily window", app.Settings{DaysToKeep: 3, Mode: domain.ModeDaily}, IndexView{WindowDays: 3}},
		{"zero keeps one", app.Settings{DaysToKeep: 0, Mode: domain.ModeDaily}, IndexView{WindowDays: 1}},
		{"forever", app.Settings{DaysToKeep: -1, Mode: domain.ModeDaily}, IndexView{WindowDays: 1, KeepForever: true}},
		{"single", app.Settings{DaysToKeep: 7, Mode: domain.ModeSingle}, IndexView{WindowDays: 7, Single: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &Handler{Service: settingsOnly{s: tc.s, current: "2024-03-04"}, MaxBody: 2048, Now: fixedNow}
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = "pads.example"
			got := h.indexView(r)
			assert.Equal(t, tc.want.Single, got.Single)
			assert.Equal(t, tc.want.KeepForever, got.KeepForever)
			assert.Equal(t, tc.want.WindowDays, got.WindowDays)
			assert.Equal(t, "2024-03-04", got.Today)
			assert.Equal(t, "http://pads.example", got.Origin)
			assert.Equal(t, "2.0 KB", got.MaxUploadHuman)
		})
	}
}

func TestIndexRendersEmbeddedTemplate(t *testing.T) {
	tmpl, err := ParseIndex(web.Assets)
	require.NoError(t, err)
	h := New(settingsOnly{s: app.Settings{DaysToKeep: 3, Mode: domain.ModeDaily}, current: "2024-03-04"}, 1<<20, nil)
	h.IndexTmpl = tmpl
	h.Now = fixedNow

	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "newest 3 pools are kept")
	assert.Contains(t, w.Body.String(), "/api/encode/2024-03-04")
}

func TestIndexUnavailableAndTemplateError(t *testing.T) {
	h := New(settingsOnly{}, 0, nil)
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h.IndexTmpl = TemplateRenderer{T: template.Must(template.New("x").Parse(`{{ .Missing.Field }}`))}
	w = httptest.NewRecorder()
	h.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "template error", w.Body.String())
}

func TestParseIndexMissing(t *testing.T) {
	_, err := ParseIndex(fstest.MapFS{})
	assert.Error(t, err)
}

func TestStaticHandler(t *testing.T) {
	assets := fstest.MapFS{"site.css": {Data: []byte("body{}")}}
	h := New(settingsOnly{}, 0, nil)
	h.Assets = http.FS(assets)

	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/site.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	h.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "no limit", humanBytes(0))
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "16.0 MB", humanBytes(16<<20))
}
