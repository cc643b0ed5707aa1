package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandler_EmbeddedAssets(t *testing.T) {
	h := Handler("")

	tests := []struct {
		path     string
		contains string
	}{
		{"/", "<!DOCTYPE html>"},
		{"/kiosk.js", "/kiosk/passcode"},
		{"/kiosk.css", "#keypad"},
		{"/some/deep/route", "<!DOCTYPE html>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, h, http.MethodGet, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
			if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-cache") {
				t.Errorf("Cache-Control = %q", got)
			}
		})
	}
}

func TestHandler_RejectsWrites(t *testing.T) {
	w := get(t, Handler(""), http.MethodPost, "/")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestHandler_FilesystemMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(`<!DOCTYPE html><p>bench display</p>`), 0o644); err != nil {
		t.Fatal(err)
	}
	h := Handler(dir)

	for _, p := range []string{"/", "/missing.js"} {
		w := get(t, h, http.MethodGet, p)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bench display") {
			t.Errorf("GET %s: status %d, body %q", p, w.Code, w.Body.String())
		}
	}

	w := get(t, Handler(filepath.Join(dir, "absent")), http.MethodGet, "/kiosk.js")
	if w.Code != http.StatusOK {
		t.Errorf("missing dir did not fall back to embedded assets: %d", w.Code)
	}
}
