package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const adjustmentsHelp = "Slider values are clamped into range: brightness -127..127, contrast -50..50, " +
	"saturation -50..50, hue -180..180, cyan_red/magenta_green/yellow_blue -50..50."

// adjustmentParams declares the seven slider arguments shared by apply and session_adjust.
func adjustmentParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("brightness", mcp.Description("Brightness (-127..127)")),
		mcp.WithNumber("contrast", mcp.Description("Contrast (-50..50)")),
		mcp.WithNumber("saturation", mcp.Description("Saturation (-50..50)")),
		mcp.WithNumber("hue", mcp.Description("Hue rotation in degrees (-180..180)")),
		mcp.WithNumber("cyan_red", mcp.Description("Cyan/red color balance (-50..50)")),
		mcp.WithNumber("magenta_green", mcp.Description("Magenta/green color balance (-50..50)")),
		mcp.WithNumber("yellow_blue", mcp.Description("Yellow/blue color balance (-50..50)")),
	}
}

func sessionIDParam() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by session_open"))
}

func withOptions(base []mcp.ToolOption, more ...mcp.ToolOption) []mcp.ToolOption {
	return append(base, more...)
}

var effectsToolDef = mcp.NewTool("beautify_effects",
	mcp.WithDescription("List the effect catalog: categories in gallery order, each with its effects, "+
		"grid position and a short description."),
	mcp.WithString("category", mcp.Description("Only this category (basic, lomo, studio, fashion)")),
)

var applyToolDef = mcp.NewTool("beautify_apply", withOptions([]mcp.ToolOption{
	mcp.WithDescription("Apply adjustments and an effect to an image file in one step and write the result. "+
		"Adjustments are applied first, then the effect is composited on top at the given opacity. "+adjustmentsHelp),
	mcp.WithString("source", mcp.Required(), mcp.Description("Path of the image to read")),
	mcp.WithString("output", mcp.Description("Output path (.png/.jpg); default ~/.beautify/outputs/<name>-<effect>-<timestamp>")),
	mcp.WithString("effect", mcp.Description("Effect slug or name, e.g. \"pink-lady\"; omit or \"none\" for adjustments only")),
	mcp.WithNumber("opacity", mcp.Description("Effect opacity 0..100 (default 100)")),
	mcp.WithBoolean("use_last", mcp.Description("Start from the last accepted values; explicit arguments override")),
}, adjustmentParams()...)...)

var thumbnailsToolDef = mcp.NewTool("beautify_thumbnails",
	mcp.WithDescription("Render one PNG thumbnail per effect of a category for a source image."),
	mcp.WithString("source", mcp.Required(), mcp.Description("Path of the image to read")),
	mcp.WithString("category", mcp.Description("Category (default: basic)")),
	mcp.WithString("out_dir", mcp.Description("Directory for the PNGs (default ~/.beautify/outputs)")),
	mcp.WithNumber("size", mcp.Description("Longest thumbnail edge in pixels (default 80)")),
)

var historyToolDef = mcp.NewTool("beautify_history",
	mcp.WithDescription("List accepted edits, newest first."),
	mcp.WithString("effect", mcp.Description("Only edits with this effect")),
	mcp.WithString("mode", mcp.Description("Only \"apply\" or \"session\" edits")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var lastToolDef = mcp.NewTool("beautify_last",
	mcp.WithDescription("Return the effect, opacity and slider values of the most recent accepted edit."),
)

var purgeToolDef = mcp.NewTool("beautify_purge",
	mcp.WithDescription("Permanently delete history records. Output images are kept."),
	mcp.WithNumber("older_than_days", mcp.Description("Only records older than this many days")),
)

var sessionOpenToolDef = mcp.NewTool("session_open",
	mcp.WithDescription("Open an interactive editing session over an image. Returns the session id and "+
		"the first category's thumbnails."),
	mcp.WithString("source", mcp.Required(), mcp.Description("Path of the image to edit")),
)

var sessionGetToolDef = mcp.NewTool("session_get",
	mcp.WithDescription("Return the current state of a session."),
	sessionIDParam(),
)

var sessionAdjustToolDef = mcp.NewTool("session_adjust", withOptions([]mcp.ToolOption{
	mcp.WithDescription("Set one or more sliders and recompute the preview. " + adjustmentsHelp),
	sessionIDParam(),
}, adjustmentParams()...)...)

var sessionSelectEffectToolDef = mcp.NewTool("session_select_effect",
	mcp.WithDescription("Pick an effect. Pending adjustments are committed underneath, the sliders reset "+
		"and opacity returns to the default. \"none\" removes the active effect."),
	sessionIDParam(),
	mcp.WithString("effect", mcp.Required(), mcp.Description("Effect slug or name, or \"none\"")),
)

var sessionSetOpacityToolDef = mcp.NewTool("session_set_opacity",
	mcp.WithDescription("Change the active effect's opacity (0..100). Ignored when no effect is active."),
	sessionIDParam(),
	mcp.WithNumber("opacity", mcp.Required(), mcp.Description("Opacity percent")),
)

var sessionSwitchCategoryToolDef = mcp.NewTool("session_switch_category",
	mcp.WithDescription("Show a category page of the effect gallery, rendering its thumbnails on first visit."),
	sessionIDParam(),
	mcp.WithString("category", mcp.Required(), mcp.Description("basic, lomo, studio or fashion")),
)

var sessionPreviewToolDef = mcp.NewTool("session_preview",
	mcp.WithDescription("Return the current preview as a PNG image."),
	sessionIDParam(),
)

var sessionAcceptToolDef = mcp.NewTool("session_accept",
	mcp.WithDescription("Commit the session onto the image, write it and close the session."),
	sessionIDParam(),
	mcp.WithString("output", mcp.Description("Output path (.png/.jpg); default ~/.beautify/outputs/<name>-<effect>-<timestamp>")),
)

var sessionCancelToolDef = mcp.NewTool("session_cancel",
	mcp.WithDescription("Discard a session without writing anything."),
	sessionIDParam(),
)
