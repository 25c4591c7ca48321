package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/beautify/internal/adjust"
	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/db"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/ops"
	"github.com/hpungsan/beautify/internal/raster"
)

func setupTest(t *testing.T) (*Handlers, http.Handler) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	h := newHandlers(database, cfg, "test")
	t.Cleanup(h.Close)
	return h, securityHeaders(newMux(h))
}

// seedImage writes a solid 24x16 PNG and returns its path.
func seedImage(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 120, 60, 255
	}
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := raster.Save(path, img, 0); err != nil {
		t.Fatalf("seed image: %v", err)
	}
	return path
}

// openSession opens a session through the registry and returns its ID.
func openSession(t *testing.T, h *Handlers) string {
	t.Helper()
	out, err := h.sessions.Open(context.Background(), ops.OpenSessionInput{Source: seedImage(t)})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return out.Session.ID
}

func do(mux http.Handler, method, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

var jsonAccept = map[string]string{"Accept": "application/json"}

var htmx = map[string]string{"HX-Request": "true"}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return out
}

// --- Catalog ---

func TestHandleEffects_RendersMarkdownDescriptions(t *testing.T) {
	_, mux := setupTest(t)

	rec := do(mux, "GET", "/effects", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Pink Lady", "purple-fantasy", "<em>gentle glow</em>", "<strong>cold shadows</strong>", "<!DOCTYPE html>"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
}

func TestHandleEffects_JSON(t *testing.T) {
	_, mux := setupTest(t)

	rec := do(mux, "GET", "/effects?category=lomo", nil, jsonAccept)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := decodeJSON(t, rec)
	if out["count"].(float64) != 3 {
		t.Errorf("count = %v, want 3", out["count"])
	}
}

func TestHandleEffects_UnknownCategory(t *testing.T) {
	_, mux := setupTest(t)

	rec := do(mux, "GET", "/effects?category=retro", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "404") {
		t.Error("expected error page with status code")
	}
}

func TestRootRedirectsToEffects(t *testing.T) {
	_, mux := setupTest(t)

	rec := do(mux, "GET", "/", nil, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/effects" {
		t.Errorf("got %d %q, want 302 /effects", rec.Code, rec.Header().Get("Location"))
	}
}

func TestSecurityHeaders(t *testing.T) {
	_, mux := setupTest(t)

	rec := do(mux, "GET", "/effects", nil, nil)
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "default-src 'self'") {
		t.Errorf("Content-Security-Policy = %q", got)
	}
}

func TestStaticFiles(t *testing.T) {
	_, mux := setupTest(t)

	for _, path := range []string{"/static/style.css", "/static/session.js"} {
		if rec := do(mux, "GET", path, nil, nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

// --- Sessions ---

func TestHandleSessionOpen_Redirects(t *testing.T) {
	h, mux := setupTest(t)

	rec := do(mux, "POST", "/sessions", url.Values{"source": {seedImage(t)}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/sessions/") {
		t.Fatalf("Location = %q", loc)
	}
	if h.sessions.Len() != 1 {
		t.Errorf("open sessions = %d, want 1", h.sessions.Len())
	}

	page := do(mux, "GET", loc, nil, nil)
	if page.Code != http.StatusOK {
		t.Fatalf("GET %s = %d, want 200", loc, page.Code)
	}
	body := page.Body.String()
	for _, want := range []string{"Soft Light", "Strong Contrast", "/preview.png", "/thumbs/basic/invert.png", `name="yellow_blue"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in session page", want)
		}
	}
}

func TestHandleSessionOpen_JSONAndErrors(t *testing.T) {
	_, mux := setupTest(t)

	rec := do(mux, "POST", "/sessions", url.Values{"source": {seedImage(t)}}, jsonAccept)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	out := decodeJSON(t, rec)
	if thumbs := out["thumbnails"].([]any); len(thumbs) != 6 {
		t.Errorf("thumbnails = %d, want 6", len(thumbs))
	}

	tests := []struct {
		name   string
		source string
		status int
	}{
		{"missing source", "", http.StatusBadRequest},
		{"missing file", filepath.Join(t.TempDir(), "none.png"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, "POST", "/sessions", url.Values{"source": {tt.source}}, jsonAccept)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandlePreviewAndThumbnails(t *testing.T) {
	h, mux := setupTest(t)
	id := openSession(t, h)

	rec := do(mux, "GET", "/sessions/"+id+"/preview.png", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 16 {
		t.Errorf("preview bounds = %v, want 24x16", b)
	}

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"rendered", "/thumbs/basic/warm.png", http.StatusOK},
		{"display name slug", "/thumbs/basic/soft-light.png", http.StatusOK},
		{"wrong extension", "/thumbs/basic/warm.jpg", http.StatusNotFound},
		{"page not rendered", "/thumbs/lomo/gothic-style.png", http.StatusNotFound},
		{"unknown effect", "/thumbs/basic/sepia.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, "GET", "/sessions/"+id+tt.path, nil, nil)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestSessionEvents(t *testing.T) {
	h, mux := setupTest(t)
	id := openSession(t, h)
	base := "/sessions/" + id

	rec := do(mux, "POST", base+"/adjust", url.Values{"brightness": {"10"}, "hue": {"-400"}}, jsonAccept)
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust status = %d: %s", rec.Code, rec.Body.String())
	}
	adj := decodeJSON(t, rec)["adjustments"].(map[string]any)
	if adj["brightness"].(float64) != 10 || adj["hue"].(float64) != -180 {
		t.Errorf("adjustments = %v", adj)
	}

	rec = do(mux, "POST", base+"/effect", url.Values{"effect": {"Warm"}}, htmx)
	if rec.Code != http.StatusOK {
		t.Fatalf("effect status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("HTMX response should not include the layout")
	}
	if !strings.Contains(body, "Reset: brightness, hue") {
		t.Errorf("expected reset notice in fragment, got: %s", body)
	}
	if !strings.Contains(body, `name="opacity"`) {
		t.Error("expected opacity control once an effect is active")
	}

	rec = do(mux, "POST", base+"/opacity", url.Values{"opacity": {"150"}}, jsonAccept)
	if rec.Code != http.StatusOK {
		t.Fatalf("opacity status = %d", rec.Code)
	}
	if got := decodeJSON(t, rec)["opacity"].(float64); got != 100 {
		t.Errorf("opacity = %v, want clamped 100", got)
	}

	rec = do(mux, "POST", base+"/category", url.Values{"category": {"fashion"}}, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != base {
		t.Errorf("category got %d %q, want 303 %s", rec.Code, rec.Header().Get("Location"), base)
	}
	info, err := h.sessions.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info.Category != "fashion" || info.Effect != "warm" {
		t.Errorf("session = %+v", info)
	}

	errorCases := []struct {
		name   string
		path   string
		form   url.Values
		status int
	}{
		{"adjust not a number", "/adjust", url.Values{"contrast": {"abc"}}, http.StatusBadRequest},
		{"adjust nothing", "/adjust", url.Values{}, http.StatusBadRequest},
		{"effect missing", "/effect", url.Values{}, http.StatusBadRequest},
		{"effect unknown", "/effect", url.Values{"effect": {"sepia"}}, http.StatusNotFound},
		{"opacity not a number", "/opacity", url.Values{"opacity": {"x"}}, http.StatusBadRequest},
		{"category unknown", "/category", url.Values{"category": {"retro"}}, http.StatusNotFound},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, "POST", base+tt.path, tt.form, jsonAccept)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestHandleAccept(t *testing.T) {
	h, mux := setupTest(t)
	id := openSession(t, h)
	base := "/sessions/" + id

	if rec := do(mux, "POST", base+"/effect", url.Values{"effect": {"invert"}}, jsonAccept); rec.Code != http.StatusOK {
		t.Fatalf("effect status = %d", rec.Code)
	}

	output := filepath.Join(t.TempDir(), "out.png")
	rec := do(mux, "POST", base+"/accept", url.Values{"output": {output}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Saved") || !strings.Contains(body, output) {
		t.Errorf("expected saved page with output path, got: %s", body)
	}

	img, _, err := raster.Open(output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	r, g, b, _ := img.At(3, 3).RGBA()
	if r>>8 != 55 || g>>8 != 135 || b>>8 != 195 {
		t.Errorf("pixel = (%d,%d,%d), want inverted (55,135,195)", r>>8, g>>8, b>>8)
	}

	if rec := do(mux, "GET", base, nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("accepted session should be gone, got %d", rec.Code)
	}

	hist := do(mux, "GET", "/history?mode=session", nil, nil)
	if hist.Code != http.StatusOK {
		t.Fatalf("history status = %d", hist.Code)
	}
	if !strings.Contains(hist.Body.String(), output) {
		t.Error("expected accepted output in history")
	}
}

func TestHandleCancel(t *testing.T) {
	h, mux := setupTest(t)

	tests := []struct {
		name     string
		headers  map[string]string
		status   int
		location string
	}{
		{"default redirect", nil, http.StatusFound, "/effects"},
		{"json", jsonAccept, http.StatusOK, ""},
		{"htmx", htmx, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := openSession(t, h)
			rec := do(mux, "POST", "/sessions/"+id+"/cancel", nil, tt.headers)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.location != "" && rec.Header().Get("Location") != tt.location {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.location)
			}
			if tt.name == "htmx" && rec.Header().Get("HX-Redirect") != "/effects" {
				t.Errorf("HX-Redirect = %q", rec.Header().Get("HX-Redirect"))
			}
			if tt.name == "json" && decodeJSON(t, rec)["cancelled"] != true {
				t.Error("expected cancelled=true")
			}
		})
	}

	if h.sessions.Len() != 0 {
		t.Errorf("open sessions = %d, want 0", h.sessions.Len())
	}

	rec := do(mux, "POST", "/sessions/01UNKNOWN/cancel", nil, jsonAccept)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}

// --- History ---

func TestHandleHistory(t *testing.T) {
	h, mux := setupTest(t)

	rec := do(mux, "GET", "/history", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No history records.") {
		t.Fatalf("empty history: %d", rec.Code)
	}

	src := seedImage(t)
	for _, fx := range []string{"warm", "blues"} {
		_, err := ops.Apply(context.Background(), h.db, h.cfg, ops.ApplyInput{
			Source: src,
			Output: filepath.Join(t.TempDir(), fx+".png"),
			Effect: fx,
		})
		if err != nil {
			t.Fatalf("apply %s: %v", fx, err)
		}
	}

	rec = do(mux, "GET", "/history?effect=blues", nil, jsonAccept)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	items := decodeJSON(t, rec)["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["effect"] != "blues" {
		t.Errorf("items = %v", items)
	}

	rec = do(mux, "GET", "/history?limit=1", nil, nil)
	body := rec.Body.String()
	if !strings.Contains(body, "Older") || !strings.Contains(body, " B)") {
		t.Errorf("expected pagination and humanized size, got: %s", body)
	}

	if rec := do(mux, "GET", "/history?mode=batch", nil, jsonAccept); rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", rec.Code)
	}
}

func TestHandlePurge(t *testing.T) {
	h, mux := setupTest(t)

	_, err := ops.Apply(context.Background(), h.db, h.cfg, ops.ApplyInput{
		Source: seedImage(t),
		Output: filepath.Join(t.TempDir(), "a.png"),
		Effect: "warm",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	tests := []struct {
		name    string
		form    url.Values
		headers map[string]string
		status  int
	}{
		{"missing confirm", url.Values{}, nil, http.StatusBadRequest},
		{"confirm false", url.Values{"confirm": {"false"}}, nil, http.StatusBadRequest},
		{"bad days", url.Values{"confirm": {"true"}, "older_than_days": {"abc"}}, nil, http.StatusBadRequest},
		{"older than keeps recent", url.Values{"confirm": {"true"}, "older_than_days": {"7"}}, jsonAccept, http.StatusOK},
		{"default redirect", url.Values{"confirm": {"true"}}, nil, http.StatusFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, "POST", "/history/purge", tt.form, tt.headers)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.headers != nil && decodeJSON(t, rec)["purged"].(float64) != 0 {
				t.Error("recent records should survive older_than_days=7")
			}
		})
	}

	out, err := ops.History(h.db, ops.HistoryInput{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if out.Pagination.Total != 0 {
		t.Errorf("total = %d, want 0 after purge", out.Pagination.Total)
	}
}

// --- Error rendering ---

func TestErrorRendering(t *testing.T) {
	h, _ := setupTest(t)

	tests := []struct {
		name        string
		headers     map[string]string
		contentType string
		contains    string
	}{
		{"htmx fragment", htmx, "text/html; charset=utf-8", `<div class="error-message">session not found: 01X</div>`},
		{"json", jsonAccept, "application/json", `"code":"NOT_FOUND"`},
		{"full page", nil, "text/html; charset=utf-8", "<!DOCTYPE html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/sessions/01X", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.renderer.renderError(rec, req, errors.NewNotFound("session", "01X"))

			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("expected %q in body, got: %s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestErrorRendering_PlainErrorIsInternal(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.renderer.renderError(rec, req, context.Canceled)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "context canceled") {
		t.Error("internal error details should not be exposed")
	}
}

// --- Helpers ---

func TestParseAdjustments(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		want    map[adjust.Field]float64
		wantErr bool
	}{
		{"empty", url.Values{}, map[adjust.Field]float64{}, false},
		{"blank ignored", url.Values{"hue": {""}}, map[adjust.Field]float64{}, false},
		{"values", url.Values{"brightness": {"12"}, "magenta_green": {"-3.5"}}, map[adjust.Field]float64{adjust.Brightness: 12, adjust.MagentaGreen: -3.5}, false},
		{"unknown fields ignored", url.Values{"gamma": {"2"}}, map[adjust.Field]float64{}, false},
		{"not a number", url.Values{"saturation": {"lots"}}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAdjustments(tt.form)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidParameter) {
					t.Errorf("err = %v, want INVALID_PARAMETER", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			st, err := got.State()
			if err != nil {
				t.Fatalf("State: %v", err)
			}
			for _, f := range adjust.Fields {
				if st.Get(f) != tt.want[f] {
					t.Errorf("%s = %v, want %v", f, st.Get(f), tt.want[f])
				}
			}
		})
	}
}

func TestBuildSliders(t *testing.T) {
	hue := 45.0
	sliders, err := buildSliders(ops.Adjustments{Hue: &hue})
	if err != nil {
		t.Fatalf("buildSliders: %v", err)
	}
	if len(sliders) != len(adjust.Fields) {
		t.Fatalf("sliders = %d, want %d", len(sliders), len(adjust.Fields))
	}
	if s := sliders[0]; s.Label != "Brightness" || s.Min != -127 || s.Step != 1 {
		t.Errorf("brightness slider = %+v", s)
	}
	if s := sliders[3]; s.Value != 45 || s.Max != 180 || s.Step != 0.1 {
		t.Errorf("hue slider = %+v", s)
	}
	if s := sliders[6]; s.Label != "Yellow / Blue" {
		t.Errorf("yellow_blue label = %q", s.Label)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query      string
		defaultVal int
		want       int
	}{
		{"", 20, 20},
		{"limit=5", 20, 5},
		{"limit=abc", 20, 20},
		{"limit=-1", 20, -1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/history?"+tt.query, nil)
			if got := parseIntParam(req, "limit", tt.defaultVal); got != tt.want {
				t.Errorf("parseIntParam() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1500, "1.5 kB"},
		{-1, "-"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
