package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hpungsan/beautify/internal/adjust"
	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	sessions *ops.Registry
}

// Close cancels every open session.
func (h *Handlers) Close() {
	h.sessions.CloseAll()
}

// HandleEffects handles GET /effects: the effect catalog.
func (h *Handlers) HandleEffects(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Effects(ops.EffectsInput{Category: r.URL.Query().Get("category")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	cats := make([]CategoryView, 0, len(result.Categories))
	for _, c := range result.Categories {
		view := CategoryView{ID: c.ID, Title: c.Title, Effects: make([]EffectView, 0, len(c.Effects))}
		for _, e := range c.Effects {
			view.Effects = append(view.Effects, EffectView{EffectSummary: e, DescriptionHTML: renderMarkdown(e.Description)})
		}
		cats = append(cats, view)
	}

	h.renderer.renderPage(w, r, "effects", EffectsPageData{
		PageData: PageData{
			Title:   "Effects",
			Version: h.renderer.version,
			Nav:     "effects",
		},
		Categories: cats,
		Count:      result.Count,
	})
}

// HandleHistory handles GET /history: accepted edits, newest first.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	input := ops.HistoryInput{
		Effect: r.URL.Query().Get("effect"),
		Mode:   r.URL.Query().Get("mode"),
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}

	result, err := ops.History(h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "history", HistoryPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     "history",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Effect:     input.Effect,
		Mode:       input.Mode,
	})
}

// HandlePurge handles POST /history/purge: permanently delete history records.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	var input ops.PurgeInput
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: return HTML fragment
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/history", http.StatusFound)
}

// HandleSessionOpen handles POST /sessions: open a session over a source image.
func (h *Handlers) HandleSessionOpen(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := h.sessions.Open(r.Context(), ops.OpenSessionInput{Source: r.FormValue("source")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, result)
		return
	}

	h.redirectToSession(w, r, result.Session.ID)
}

// HandleSession handles GET /sessions/{id}: the interactive preview page.
// A category query parameter switches the gallery page.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	info, err := h.sessions.Get(id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		category = info.Category
	}
	page, err := h.sessions.SwitchCategory(r.Context(), id, category)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, page)
		return
	}

	h.renderSession(w, r, page.Session, page.Thumbnails, nil)
}

// HandleAdjust handles POST /sessions/{id}/adjust: move one or more sliders.
func (h *Handlers) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	input, err := parseAdjustments(r.PostForm)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if input.IsEmpty() {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("at least one adjustment is required"))
		return
	}

	info, err := h.sessions.Adjust(r.Context(), r.PathValue("id"), input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.respondSession(w, r, info, nil)
}

// HandleEffect handles POST /sessions/{id}/effect: pick an effect.
func (h *Handlers) HandleEffect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	name := r.FormValue("effect")
	if name == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("effect is required"))
		return
	}

	result, err := h.sessions.SelectEffect(r.Context(), r.PathValue("id"), name)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	h.respondSession(w, r, result.Session, result.Reset)
}

// HandleOpacity handles POST /sessions/{id}/opacity: set the effect opacity.
func (h *Handlers) HandleOpacity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	percent, err := strconv.ParseFloat(r.FormValue("opacity"), 64)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("opacity must be a number"))
		return
	}

	info, err := h.sessions.SetOpacity(r.Context(), r.PathValue("id"), percent)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.respondSession(w, r, info, nil)
}

// HandleCategory handles POST /sessions/{id}/category: switch the gallery page.
func (h *Handlers) HandleCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	page, err := h.sessions.SwitchCategory(r.Context(), r.PathValue("id"), r.FormValue("category"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, page)
		return
	}
	h.respondSession(w, r, page.Session, nil)
}

// HandleAccept handles POST /sessions/{id}/accept: write the result and close.
func (h *Handlers) HandleAccept(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := h.sessions.Accept(r.Context(), r.PathValue("id"), ops.AcceptInput{Output: r.FormValue("output")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "accepted", AcceptedPageData{
		PageData: PageData{
			Title:   "Saved",
			Version: h.renderer.version,
			Nav:     "session",
		},
		Result: result,
	})
}

// HandleCancel handles POST /sessions/{id}/cancel: discard the session.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.Cancel(id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/effects")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"session_id": id,
			"cancelled":  true,
		})
		return
	}

	http.Redirect(w, r, "/effects", http.StatusFound)
}

// HandlePreview handles GET /sessions/{id}/preview.png.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	data, err := h.sessions.PreviewPNG(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderPNG(w, data)
}

// HandleThumbnail handles GET /sessions/{id}/thumbs/{category}/{effect}.png.
func (h *Handlers) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	name, ok := strings.CutSuffix(file, ".png")
	if !ok || name == "" {
		h.renderer.renderError(w, r, errors.NewNotFound("thumbnail", file))
		return
	}

	data, err := h.sessions.ThumbnailPNG(r.PathValue("id"), r.PathValue("category"), name)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderPNG(w, data)
}

// respondSession answers a session event: JSON clients get the session info,
// everyone else the refreshed session page.
func (h *Handlers) respondSession(w http.ResponseWriter, r *http.Request, info *ops.SessionInfo, reset []string) {
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, info)
		return
	}
	if !isHTMX(r) {
		h.redirectToSession(w, r, info.ID)
		return
	}

	page, err := h.sessions.SwitchCategory(r.Context(), info.ID, info.Category)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderSession(w, r, page.Session, page.Thumbnails, reset)
}

func (h *Handlers) redirectToSession(w http.ResponseWriter, r *http.Request, id string) {
	http.Redirect(w, r, "/sessions/"+url.PathEscape(id), http.StatusSeeOther)
}

func (h *Handlers) renderSession(w http.ResponseWriter, r *http.Request, info *ops.SessionInfo, thumbs []ops.SessionThumbnail, reset []string) {
	sliders, err := buildSliders(info.Adjustments)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "session", SessionPageData{
		PageData: PageData{
			Title:   "Session",
			Version: h.renderer.version,
			Nav:     "session",
		},
		Session:    info,
		Categories: categoryTabs(info.Category),
		Thumbnails: thumbs,
		Sliders:    sliders,
		Reset:      reset,
	})
}

// parseAdjustments reads slider fields from a form. Absent and empty fields
// are left unset.
func parseAdjustments(form url.Values) (ops.Adjustments, error) {
	var a ops.Adjustments
	for _, f := range adjust.Fields {
		s := form.Get(string(f))
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ops.Adjustments{}, errors.NewInvalidParameter(string(f), s)
		}
		a.Set(f, v)
	}
	return a, nil
}

func buildSliders(a ops.Adjustments) ([]Slider, error) {
	st, err := a.State()
	if err != nil {
		return nil, err
	}
	out := make([]Slider, 0, len(adjust.Fields))
	for _, f := range adjust.Fields {
		rng, _ := adjust.RangeOf(f)
		step := 0.1
		if rng.Integer {
			step = 1
		}
		out = append(out, Slider{
			Field: string(f),
			Label: sliderLabel(f),
			Min:   rng.Min,
			Max:   rng.Max,
			Step:  step,
			Value: st.Get(f),
		})
	}
	return out, nil
}

func sliderLabel(f adjust.Field) string {
	switch f {
	case adjust.CyanRed:
		return "Cyan / Red"
	case adjust.MagentaGreen:
		return "Magenta / Green"
	case adjust.YellowBlue:
		return "Yellow / Blue"
	}
	s := string(f)
	return strings.ToUpper(s[:1]) + s[1:]
}

func categoryTabs(active string) []CategoryTab {
	cats := effect.Categories()
	out := make([]CategoryTab, 0, len(cats))
	for _, c := range cats {
		title, _ := effect.CategoryTitle(c)
		out = append(out, CategoryTab{ID: string(c), Title: title, Active: string(c) == active})
	}
	return out
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
