package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeSnapshot struct {
	snap Snapshot
	err  error
}

func (f *fakeSnapshot) Snapshot(ctx context.Context) (Snapshot, error) {
	return f.snap, f.err
}

func TestHandlerAuth(t *testing.T) {
	f := &fakeSnapshot{snap: Snapshot{
		Counters:  map[string]int64{"a": 1},
		Summaries: map[string]Summary{"x": {Count: 2, Sum: 5, Min: 2, Max: 3}},
	}}
	h := Handler(f, "tok")

	for _, hdr := range []string{"", "Bearer ", "Bearer wrong", "Basic tok"} {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		rw := httptest.NewRecorder()
		h(rw, req)
		if rw.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 got %d", hdr, rw.Code)
		}
	}

	req2 := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req2.Header.Set("Authorization", "Bearer tok")
	rw2 := httptest.NewRecorder()
	h(rw2, req2)
	if rw2.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rw2.Code)
	}
	var decoded struct {
		Counters  map[string]int64            `json:"counters"`
		Summaries map[string]map[string]int64 `json:"summaries"`
	}
	if err := json.Unmarshal(rw2.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Counters["a"] != 1 {
		t.Fatalf("counter mismatch")
	}
	if v := decoded.Summaries["x"]; v["count"] != 2 || v["sum"] != 5 || v["min"] != 2 || v["max"] != 3 {
		t.Fatalf("summary mismatch: %+v", v)
	}
}

func TestHandlerNoToken(t *testing.T) {
	h := Handler(&fakeSnapshot{snap: Snapshot{Counters: map[string]int64{}, Summaries: map[string]Summary{}}}, "")
	rw := httptest.NewRecorder()
	h(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rw.Code)
	}
	if ct := rw.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type %q", ct)
	}
}

func TestHandlerSnapshotError(t *testing.T) {
	h := Handler(&fakeSnapshot{err: errors.New("db gone")}, "")
	rw := httptest.NewRecorder()
	h(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rw.Code)
	}
}
