package mcp

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/db"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/raster"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	cleanup := func() {
		database.Close()
	}

	return database, cfg, cleanup
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// testImage writes a solid 24x16 PNG and returns its path.
func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 90, 120, 150, 255
	}
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := raster.Save(path, img, 0); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

type toolCase struct {
	name      string
	args      map[string]any
	wantError bool
	errorCode string
}

func runToolCases(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), tests []toolCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleEffects(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(database, cfg)
	defer h.Close()

	result, err := h.HandleEffects(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["count"].(float64) != 22 {
		t.Errorf("count = %v, want 22", output["count"])
	}

	runToolCases(t, h.HandleEffects, []toolCase{
		{name: "by id", args: map[string]any{"category": "fashion"}},
		{name: "by title", args: map[string]any{"category": "LOMO"}},
		{name: "unknown category", args: map[string]any{"category": "retro"}, wantError: true, errorCode: "UNKNOWN_CATEGORY"},
		{name: "wrong type", args: map[string]any{"category": 7}, wantError: true, errorCode: "INVALID_REQUEST"},
	})
}

func TestHandleApply(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(database, cfg)
	defer h.Close()

	src := testImage(t)
	outDir := t.TempDir()

	runToolCases(t, h.HandleApply, []toolCase{
		{
			name: "effect with adjustments",
			args: map[string]any{
				"source":     src,
				"output":     filepath.Join(outDir, "a.png"),
				"effect":     "pink lady",
				"opacity":    60,
				"brightness": 10,
			},
		},
		{
			name: "adjustments only",
			args: map[string]any{
				"source":   src,
				"output":   filepath.Join(outDir, "b.jpg"),
				"contrast": -20,
			},
		},
		{name: "missing source", args: map[string]any{}, wantError: true, errorCode: "INVALID_REQUEST"},
		{name: "unknown effect", args: map[string]any{"source": src, "effect": "sepia"}, wantError: true, errorCode: "UNKNOWN_EFFECT"},
		{name: "missing file", args: map[string]any{"source": filepath.Join(outDir, "none.png")}, wantError: true, errorCode: "NOT_FOUND"},
		{name: "bad output", args: map[string]any{"source": src, "output": filepath.Join(outDir, "c.gif")}, wantError: true, errorCode: "INVALID_REQUEST"},
	})

	result, err := h.HandleApply(context.Background(), makeRequest(map[string]any{
		"source":   src,
		"output":   filepath.Join(outDir, "d.png"),
		"use_last": true,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["effect"] != "none" {
		t.Errorf("use_last effect = %v, want none (last apply had no effect)", output["effect"])
	}
	adj := output["adjustments"].(map[string]any)
	if adj["contrast"].(float64) != -20 {
		t.Errorf("use_last adjustments = %v", adj)
	}
}

func TestHandleApply_CancelledContextReturnsCancelled(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(database, cfg)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.HandleApply(ctx, makeRequest(map[string]any{
		"source": testImage(t),
		"output": filepath.Join(t.TempDir(), "out.png"),
		"effect": "invert",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "CANCELLED")
}

func TestHandleThumbnails(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(database, cfg)
	defer h.Close()

	src := testImage(t)
	outDir := t.TempDir()

	result, err := h.HandleThumbnails(context.Background(), makeRequest(map[string]any{
		"source":   src,
		"category": "studio",
		"out_dir":  outDir,
		"size":     12,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	thumbs := output["thumbnails"].([]any)
	if len(thumbs) != 9 {
		t.Fatalf("thumbnails = %d, want 9", len(thumbs))
	}
	first := thumbs[0].(map[string]any)
	if first["effect"] != "little-fresh" || first["path"] == nil {
		t.Errorf("first thumbnail = %v", first)
	}

	runToolCases(t, h.HandleThumbnails, []toolCase{
		{name: "missing source", args: map[string]any{}, wantError: true, errorCode: "INVALID_REQUEST"},
		{name: "unknown category", args: map[string]any{"source": src, "category": "x"}, wantError: true, errorCode: "UNKNOWN_CATEGORY"},
	})
}

func TestHandleHistoryLastPurge(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(database, cfg)
	defer h.Close()
	ctx := context.Background()

	result, err := h.HandleLast(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")

	src := testImage(t)
	outDir := t.TempDir()
	for i, fx := range []string{"warm", "astral", "warm"} {
		result, err := h.HandleApply(ctx, makeRequest(map[string]any{
			"source": src,
			"output": filepath.Join(outDir, fmt.Sprintf("%d.png", i)),
			"effect": fx,
		}))
		if err != nil || result.IsError {
			t.Fatalf("apply %s failed: %v %s", fx, err, extractErrorMessage(result))
		}
	}

	result, err = h.HandleHistory(ctx, makeRequest(map[string]any{"effect": "warm", "limit": 1}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	pagination := output["pagination"].(map[string]any)
	if pagination["total"].(float64) != 2 || pagination["has_more"] != true {
		t.Errorf("pagination = %v", pagination)
	}

	result, err = h.HandleLast(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if output := parseOutput(t, result); output["effect"] != "warm" {
		t.Errorf("last effect = %v, want warm", output["effect"])
	}

	runToolCases(t, h.HandleHistory, []toolCase{
		{name: "bad mode", args: map[string]any{"mode": "batch"}, wantError: true, errorCode: "INVALID_REQUEST"},
		{name: "unknown effect", args: map[string]any{"effect": "sepia"}, wantError: true, errorCode: "UNKNOWN_EFFECT"},
	})

	result, err = h.HandlePurge(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if output := parseOutput(t, result); output["purged"].(float64) != 3 {
		t.Errorf("purged = %v, want 3", output["purged"])
	}
}

func TestSessionTools(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(database, cfg)
	defer h.Close()
	ctx := context.Background()

	result, err := h.HandleSessionOpen(ctx, makeRequest(map[string]any{"source": testImage(t)}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	opened := parseOutput(t, result)
	id := opened["session"].(map[string]any)["id"].(string)
	if len(opened["thumbnails"].([]any)) != 6 {
		t.Errorf("open thumbnails = %v", opened["thumbnails"])
	}

	runToolCases(t, h.HandleSessionAdjust, []toolCase{
		{name: "adjust", args: map[string]any{"session_id": id, "saturation": 20, "hue": 500}},
		{name: "no sliders", args: map[string]any{"session_id": id}, wantError: true, errorCode: "INVALID_REQUEST"},
		{name: "no session id", args: map[string]any{"hue": 5}, wantError: true, errorCode: "INVALID_REQUEST"},
		{name: "unknown session", args: map[string]any{"session_id": "01NOPE", "hue": 5}, wantError: true, errorCode: "NOT_FOUND"},
	})

	result, err = h.HandleSessionGet(ctx, makeRequest(map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	info := parseOutput(t, result)
	if info["state"] != "adjusting" || info["adjustments"].(map[string]any)["hue"].(float64) != 180 {
		t.Errorf("session = %v", info)
	}

	result, err = h.HandleSessionSelectEffect(ctx, makeRequest(map[string]any{"session_id": id, "effect": "Japanese"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	selected := parseOutput(t, result)
	if reset := selected["reset"].([]any); len(reset) != 2 {
		t.Errorf("reset = %v, want saturation and hue", reset)
	}

	runToolCases(t, h.HandleSessionSelectEffect, []toolCase{
		{name: "missing effect", args: map[string]any{"session_id": id}, wantError: true, errorCode: "INVALID_REQUEST"},
		{name: "unknown effect", args: map[string]any{"session_id": id, "effect": "sepia"}, wantError: true, errorCode: "UNKNOWN_EFFECT"},
	})
	runToolCases(t, h.HandleSessionSetOpacity, []toolCase{
		{name: "set", args: map[string]any{"session_id": id, "opacity": 35}},
		{name: "missing opacity", args: map[string]any{"session_id": id}, wantError: true, errorCode: "INVALID_REQUEST"},
	})
	runToolCases(t, h.HandleSessionSwitchCategory, []toolCase{
		{name: "switch", args: map[string]any{"session_id": id, "category": "fashion"}},
		{name: "unknown category", args: map[string]any{"session_id": id, "category": "retro"}, wantError: true, errorCode: "UNKNOWN_CATEGORY"},
	})

	result, err = h.HandleSessionPreview(ctx, makeRequest(map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("preview failed: %s", extractErrorMessage(result))
	}
	var found bool
	for _, c := range result.Content {
		if img, ok := c.(mcp.ImageContent); ok {
			found = true
			if img.MIMEType != "image/png" {
				t.Errorf("MIMEType = %q", img.MIMEType)
			}
			if _, err := base64.StdEncoding.DecodeString(img.Data); err != nil {
				t.Errorf("image data is not base64: %v", err)
			}
		}
	}
	if !found {
		t.Error("preview result has no image content")
	}

	result, err = h.HandleSessionAccept(ctx, makeRequest(map[string]any{
		"session_id": id,
		"output":     filepath.Join(t.TempDir(), "accepted.png"),
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	accepted := parseOutput(t, result)
	if accepted["effect"] != "japanese" || accepted["opacity"].(float64) != 35 {
		t.Errorf("accepted = %v", accepted)
	}

	result, err = h.HandleSessionCancel(ctx, makeRequest(map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestSessionCancel(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(database, cfg)
	defer h.Close()
	ctx := context.Background()

	result, err := h.HandleSessionOpen(ctx, makeRequest(map[string]any{"source": testImage(t)}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	id := parseOutput(t, result)["session"].(map[string]any)["id"].(string)

	result, err = h.HandleSessionCancel(ctx, makeRequest(map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if output := parseOutput(t, result); output["cancelled"] != true {
		t.Errorf("output = %v", output)
	}

	result, err = h.HandleSessionGet(ctx, makeRequest(map[string]any{"session_id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestSessionOpen_TooMany(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	cfg.MaxSessions = 1
	h := NewHandlers(database, cfg)
	defer h.Close()

	src := testImage(t)
	runToolCases(t, h.HandleSessionOpen, []toolCase{
		{name: "first", args: map[string]any{"source": src}},
		{name: "second", args: map[string]any{"source": src}, wantError: true, errorCode: "TOO_MANY_SESSIONS"},
	})
}

func TestServerRegistration(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	s, h := NewServer(database, cfg, "test")
	defer h.Close()
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"beautify_effects",
		"beautify_apply",
		"beautify_thumbnails",
		"beautify_history",
		"beautify_last",
		"beautify_purge",
		"session_open",
		"session_get",
		"session_adjust",
		"session_select_effect",
		"session_set_opacity",
		"session_switch_category",
		"session_preview",
		"session_accept",
		"session_cancel",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = []string{"beautify_purge", "beautify_purge", "session_cancel"}
	s, h := NewServer(database, cfg, "test")
	defer h.Close()
	tools := s.ListTools()

	// 15 - 2 disabled, duplicates ignored
	if len(tools) != 13 {
		t.Errorf("registered tool count = %d, want 13", len(tools))
	}
	for _, name := range []string{"beautify_purge", "session_cancel"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTypes = []string{"session"}
	s, h := NewServer(database, cfg, "test")
	defer h.Close()
	tools := s.ListTools()

	if len(tools) != 6 {
		t.Errorf("registered tool count = %d, want 6", len(tools))
	}
	for name := range tools {
		if GetTypeForTool(name) != "beautify" {
			t.Errorf("tool %q should have been disabled", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = AllToolNames()
	s, h := NewServer(database, cfg, "test")
	defer h.Close()

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"beautify_purge", "session_open"}, 0},
		{"one unknown", []string{"beautify_purge", "fake_tool"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	if unknown := ValidateDisabledTypes([]string{"beautify", "session"}); len(unknown) != 0 {
		t.Errorf("known types reported unknown: %v", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"filter"}); len(unknown) != 1 {
		t.Errorf("unknown = %v, want [filter]", unknown)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 15 {
		t.Errorf("AllToolNames() returned %d names, want 15", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("thumbnail studio/blues: %w", errors.NewHostOperationFailed("levels", fmt.Errorf("indexed image")))

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrHostOperationFailed) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrHostOperationFailed)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "thumbnail studio/blues") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("session", "01ABC"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	assertErrorCode(t, r, "INTERNAL")
	if strings.Contains(extractErrorMessage(r), "boom") {
		t.Error("plain errors must not leak their message")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}

