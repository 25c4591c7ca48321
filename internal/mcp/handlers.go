package mcp

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	sessions *ops.Registry
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg, sessions: ops.NewRegistry(db, cfg)}
}

// Close discards every open session.
func (h *Handlers) Close() {
	h.sessions.CloseAll()
}

// Request types for each tool

// EffectsRequest represents the arguments for beautify_effects.
type EffectsRequest struct {
	Category string `json:"category,omitempty"`
}

// ApplyRequest represents the arguments for beautify_apply.
type ApplyRequest struct {
	Source  string   `json:"source"`
	Output  string   `json:"output,omitempty"`
	Effect  string   `json:"effect,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
	UseLast bool     `json:"use_last,omitempty"`
	ops.Adjustments
}

// ThumbnailsRequest represents the arguments for beautify_thumbnails.
type ThumbnailsRequest struct {
	Source   string `json:"source"`
	Category string `json:"category,omitempty"`
	OutDir   string `json:"out_dir,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// HistoryRequest represents the arguments for beautify_history.
type HistoryRequest struct {
	Effect string `json:"effect,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// PurgeRequest represents the arguments for beautify_purge.
type PurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// SessionOpenRequest represents the arguments for session_open.
type SessionOpenRequest struct {
	Source string `json:"source"`
}

// SessionRequest represents the arguments of tools that only name a session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SessionAdjustRequest represents the arguments for session_adjust.
type SessionAdjustRequest struct {
	SessionID string `json:"session_id"`
	ops.Adjustments
}

// SessionSelectEffectRequest represents the arguments for session_select_effect.
type SessionSelectEffectRequest struct {
	SessionID string `json:"session_id"`
	Effect    string `json:"effect"`
}

// SessionSetOpacityRequest represents the arguments for session_set_opacity.
type SessionSetOpacityRequest struct {
	SessionID string   `json:"session_id"`
	Opacity   *float64 `json:"opacity"`
}

// SessionSwitchCategoryRequest represents the arguments for session_switch_category.
type SessionSwitchCategoryRequest struct {
	SessionID string `json:"session_id"`
	Category  string `json:"category"`
}

// SessionAcceptRequest represents the arguments for session_accept.
type SessionAcceptRequest struct {
	SessionID string `json:"session_id"`
	Output    string `json:"output,omitempty"`
}

// HandleEffects handles the beautify_effects tool call.
func (h *Handlers) HandleEffects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EffectsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Effects(ops.EffectsInput{Category: input.Category})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApply handles the beautify_apply tool call.
func (h *Handlers) HandleApply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApplyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Apply(ctx, h.db, h.cfg, ops.ApplyInput{
		Source:      input.Source,
		Output:      input.Output,
		Effect:      input.Effect,
		Opacity:     input.Opacity,
		Adjustments: input.Adjustments,
		UseLast:     input.UseLast,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleThumbnails handles the beautify_thumbnails tool call.
func (h *Handlers) HandleThumbnails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ThumbnailsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Thumbnails(ctx, h.cfg, ops.ThumbnailsInput{
		Source:   input.Source,
		Category: input.Category,
		OutDir:   input.OutDir,
		Size:     input.Size,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the beautify_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(h.db, ops.HistoryInput{
		Effect: input.Effect,
		Mode:   input.Mode,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLast handles the beautify_last tool call.
func (h *Handlers) HandleLast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.LastValues(h.db)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the beautify_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{OlderThanDays: input.OlderThanDays})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionOpen handles the session_open tool call.
func (h *Handlers) HandleSessionOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionOpenRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.sessions.Open(ctx, ops.OpenSessionInput{Source: input.Source})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionGet handles the session_get tool call.
func (h *Handlers) HandleSessionGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSession[SessionRequest](req, func(r SessionRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.sessions.Get(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionAdjust handles the session_adjust tool call.
func (h *Handlers) HandleSessionAdjust(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSession[SessionAdjustRequest](req, func(r SessionAdjustRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	if input.Adjustments.IsEmpty() {
		return errorResult(errors.NewInvalidRequest("at least one adjustment is required")), nil
	}

	result, err := h.sessions.Adjust(ctx, input.SessionID, input.Adjustments)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionSelectEffect handles the session_select_effect tool call.
func (h *Handlers) HandleSessionSelectEffect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSession[SessionSelectEffectRequest](req, func(r SessionSelectEffectRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	if input.Effect == "" {
		return errorResult(errors.NewInvalidRequest("effect is required")), nil
	}

	result, err := h.sessions.SelectEffect(ctx, input.SessionID, input.Effect)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionSetOpacity handles the session_set_opacity tool call.
func (h *Handlers) HandleSessionSetOpacity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSession[SessionSetOpacityRequest](req, func(r SessionSetOpacityRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	if input.Opacity == nil {
		return errorResult(errors.NewInvalidRequest("opacity is required")), nil
	}

	result, err := h.sessions.SetOpacity(ctx, input.SessionID, *input.Opacity)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionSwitchCategory handles the session_switch_category tool call.
func (h *Handlers) HandleSessionSwitchCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSession[SessionSwitchCategoryRequest](req, func(r SessionSwitchCategoryRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.sessions.SwitchCategory(ctx, input.SessionID, input.Category)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionPreview handles the session_preview tool call.
func (h *Handlers) HandleSessionPreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSession[SessionRequest](req, func(r SessionRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}

	data, err := h.sessions.PreviewPNG(ctx, input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultImage("preview of session "+input.SessionID, base64.StdEncoding.EncodeToString(data), "image/png"), nil
}

// HandleSessionAccept handles the session_accept tool call.
func (h *Handlers) HandleSessionAccept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSession[SessionAcceptRequest](req, func(r SessionAcceptRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.sessions.Accept(ctx, input.SessionID, ops.AcceptInput{Output: input.Output})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionCancel handles the session_cancel tool call.
func (h *Handlers) HandleSessionCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSession[SessionRequest](req, func(r SessionRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}

	if err := h.sessions.Cancel(input.SessionID); err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"session_id": input.SessionID, "cancelled": true})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if bErr, ok := errors.As(err); ok {
		message := bErr.Message
		// Keep context added by wrapping (e.g. "thumbnail basic/invert: ...").
		if err != error(bErr) && bErr.Code != errors.ErrInternal {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    bErr.Code,
			"message": message,
			"status":  bErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if bErr.Code != errors.ErrInternal && bErr.Details != nil {
			errorObj["details"] = bErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
