package ops

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/db"
	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/host"
	"github.com/hpungsan/beautify/internal/raster"
	"github.com/hpungsan/beautify/internal/session"
	"github.com/hpungsan/beautify/internal/thumbs"
)

// Registry holds the interactive sessions opened through MCP or the web UI.
// Each session runs on its own raster host and handles one event at a time;
// different sessions proceed in parallel.
type Registry struct {
	database *sql.DB
	cfg      *config.Config
	wrapHost func(host.Host) host.Host

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	mu        sync.Mutex
	id        string
	source    string
	meta      *raster.Metadata
	raster    *raster.Host
	dest      host.Image
	s         *session.Session
	createdAt int64
	done      bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithHostWrapper routes every session's host calls through wrap.
func WithHostWrapper(wrap func(host.Host) host.Host) RegistryOption {
	return func(r *Registry) { r.wrapHost = wrap }
}

// NewRegistry creates an empty registry. database may be nil, in which case
// accepted sessions are not recorded.
func NewRegistry(database *sql.DB, cfg *config.Config, opts ...RegistryOption) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := &Registry{
		database: database,
		cfg:      cfg,
		sessions: make(map[string]*liveSession),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SessionInfo describes an open session.
type SessionInfo struct {
	ID          string      `json:"id"`
	Source      string      `json:"source"`
	State       string      `json:"state"`
	Category    string      `json:"category"`
	Effect      string      `json:"effect"`
	Opacity     float64     `json:"opacity"`
	Adjustments Adjustments `json:"adjustments"`
	Generation  uint64      `json:"generation"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	CreatedAt   int64       `json:"created_at"`
}

// SessionThumbnail is one gallery entry of a category page.
type SessionThumbnail struct {
	Effect string `json:"effect"`
	Name   string `json:"name"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Error  string `json:"error,omitempty"`
}

// OpenSessionInput contains parameters for Registry.Open.
type OpenSessionInput struct {
	Source string // required
}

// OpenSessionOutput contains the new session and its first gallery page.
type OpenSessionOutput struct {
	Session    *SessionInfo       `json:"session"`
	Thumbnails []SessionThumbnail `json:"thumbnails"`
}

// Open starts a session over a source image.
func (r *Registry) Open(ctx context.Context, input OpenSessionInput) (*OpenSessionOutput, error) {
	if input.Source == "" {
		return nil, errors.NewInvalidRequest("source is required")
	}
	if r.Len() >= r.cfg.MaxSessions {
		return nil, errors.NewTooManySessions(r.cfg.MaxSessions)
	}

	src, meta, err := loadSource(input.Source, r.cfg)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx, "session open"); err != nil {
		return nil, err
	}

	rh := raster.New()
	dest := rh.NewImage(src)
	var h host.Host = rh
	if r.wrapHost != nil {
		h = r.wrapHost(rh)
	}

	s, err := session.Open(h, dest, sessionOptions(r.cfg, false))
	if err != nil {
		rh.Delete(dest)
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		s.Cancel()
		rh.Delete(dest)
		return nil, errors.NewInternal(err)
	}
	ls := &liveSession{
		id:        id,
		source:    input.Source,
		meta:      meta,
		raster:    rh,
		dest:      dest,
		s:         s,
		createdAt: time.Now().Unix(),
	}

	// Held until the output is built: once published, Cancel and CloseAll
	// can reach ls.
	ls.mu.Lock()
	defer ls.mu.Unlock()

	r.mu.Lock()
	if len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		s.Cancel()
		rh.Delete(dest)
		return nil, errors.NewTooManySessions(r.cfg.MaxSessions)
	}
	r.sessions[id] = ls
	r.mu.Unlock()

	// The first page was rendered by session.Open; this is a cache hit.
	page, err := s.SwitchCategory(s.Category())
	if err != nil {
		r.release(ls)
		return nil, err
	}

	log.Info().Str("session", id).Str("source", input.Source).Msg("Session opened")
	return &OpenSessionOutput{Session: ls.info(), Thumbnails: sessionThumbnails(page)}, nil
}

// acquire returns the session locked for one event. The caller must unlock.
func (r *Registry) acquire(id string) (*liveSession, error) {
	r.mu.Lock()
	ls, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, errors.NewNotFound("session", id)
	}
	ls.mu.Lock()
	if ls.done {
		ls.mu.Unlock()
		return nil, errors.NewNotFound("session", id)
	}
	return ls, nil
}

// release removes a finished session and frees its destination image.
// Called with ls.mu held.
func (r *Registry) release(ls *liveSession) {
	ls.s.Cancel()
	ls.raster.Delete(ls.dest)
	ls.done = true
	r.mu.Lock()
	delete(r.sessions, ls.id)
	r.mu.Unlock()
}

// Get returns a session's current state.
func (r *Registry) Get(id string) (*SessionInfo, error) {
	ls, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()
	return ls.info(), nil
}

// Adjust sets the given sliders in field order. Values are clamped. If one
// fails, the sliders set before it keep their new values.
func (r *Registry) Adjust(ctx context.Context, id string, input Adjustments) (*SessionInfo, error) {
	ls, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()

	for _, fv := range input.fields() {
		if err := checkContext(ctx, "adjust"); err != nil {
			return nil, err
		}
		if err := ls.s.SetAdjustment(fv.field, fv.value); err != nil {
			return nil, err
		}
	}
	return ls.info(), nil
}

// SelectEffectOutput contains the session after an effect pick.
type SelectEffectOutput struct {
	Session *SessionInfo `json:"session"`
	Reset   []string     `json:"reset,omitempty"` // sliders returned to zero
}

// SelectEffect picks an effect by slug or name. "none" drops the active one.
func (r *Registry) SelectEffect(ctx context.Context, id, name string) (*SelectEffectOutput, error) {
	fx, err := resolveEffect(name)
	if err != nil {
		return nil, err
	}
	ls, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()
	if err := checkContext(ctx, "select effect"); err != nil {
		return nil, err
	}

	changed, err := ls.s.SelectEffect(fx)
	if err != nil {
		return nil, err
	}
	out := &SelectEffectOutput{Session: ls.info()}
	for _, f := range changed {
		out.Reset = append(out.Reset, string(f))
	}
	return out, nil
}

// SetOpacity changes the active effect's opacity.
func (r *Registry) SetOpacity(ctx context.Context, id string, percent float64) (*SessionInfo, error) {
	ls, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()
	if err := checkContext(ctx, "set opacity"); err != nil {
		return nil, err
	}

	if err := ls.s.SetOpacity(percent); err != nil {
		return nil, err
	}
	return ls.info(), nil
}

// CategoryOutput contains a category page of a session.
type CategoryOutput struct {
	Session    *SessionInfo       `json:"session"`
	Title      string             `json:"title"`
	Thumbnails []SessionThumbnail `json:"thumbnails"`
}

// SwitchCategory shows a gallery page, rendering it on first visit.
func (r *Registry) SwitchCategory(ctx context.Context, id, category string) (*CategoryOutput, error) {
	c, err := effect.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	title, err := effect.CategoryTitle(c)
	if err != nil {
		return nil, err
	}
	ls, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()
	if err := checkContext(ctx, "switch category"); err != nil {
		return nil, err
	}

	page, err := ls.s.SwitchCategory(c)
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Session: ls.info(), Title: title, Thumbnails: sessionThumbnails(page)}, nil
}

// Preview renders the displayed preview.
func (r *Registry) Preview(ctx context.Context, id string) (image.Image, error) {
	ls, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()
	if err := checkContext(ctx, "preview"); err != nil {
		return nil, err
	}
	return ls.s.CurrentPreview()
}

// PreviewPNG renders the displayed preview as PNG bytes.
func (r *Registry) PreviewPNG(ctx context.Context, id string) ([]byte, error) {
	img, err := r.Preview(ctx, id)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

// ThumbnailPNG returns a rendered gallery thumbnail as PNG bytes. Only
// categories already shown in the session have thumbnails.
func (r *Registry) ThumbnailPNG(id, category, effectName string) ([]byte, error) {
	c, err := effect.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	fx, err := effect.Lookup(effectName)
	if err != nil {
		return nil, err
	}
	ls, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()

	th, ok := ls.s.Thumbnail(c, fx)
	if !ok {
		return nil, errors.NewNotFound("thumbnail", string(c)+"/"+fx.String())
	}
	if th.Err != nil {
		return nil, th.Err
	}
	return encodePNG(th.Image)
}

// AcceptInput contains parameters for Registry.Accept.
type AcceptInput struct {
	Output string // optional, default: ~/.beautify/outputs/<source>-<effect>-<timestamp>.<ext>
}

// AcceptOutput contains the result of an accepted session.
type AcceptOutput struct {
	ID          string      `json:"id"` // history record id
	Session     string      `json:"session"`
	Output      string      `json:"output"`
	Effect      string      `json:"effect"`
	Opacity     float64     `json:"opacity"`
	Adjustments Adjustments `json:"adjustments"`
	Commits     uint64      `json:"commits"`
	Bytes       int64       `json:"bytes"`
	CreatedAt   int64       `json:"created_at"`
}

// Accept commits the session onto its image, writes it to the output path
// and closes the session. The session is closed even when accepting fails.
func (r *Registry) Accept(ctx context.Context, id string, input AcceptInput) (*AcceptOutput, error) {
	ls, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()
	if err := checkContext(ctx, "accept"); err != nil {
		return nil, err
	}

	now := time.Now()
	sel := ls.s.Selection()
	outPath := input.Output
	if outPath == "" {
		label := "adjusted"
		if sel.Active() {
			label = sel.Effect.String()
		}
		if outPath, err = defaultOutputPath(ls.source, label, now); err != nil {
			return nil, err
		}
	}
	// A bad path leaves the session open so the caller can retry.
	if err := ValidatePath(outPath, PathCheckWrite, r.cfg); err != nil {
		return nil, err
	}

	defer r.release(ls)
	res, err := ls.s.Accept()
	if err != nil {
		return nil, err
	}

	flat, err := ls.raster.Composite(ls.dest)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	size, err := writeImage(outPath, flat, outputQuality(r.cfg), r.cfg)
	if err != nil {
		return nil, err
	}

	recordID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	var effectSlug *string
	if res.Effect != effect.None {
		slug := res.Effect.String()
		effectSlug = &slug
	}
	if r.database != nil {
		err := recordAccept(r.database, &db.HistoryRecord{
			ID:          recordID,
			Mode:        db.ModeSession,
			SourcePath:  ls.source,
			OutputPath:  &outPath,
			Effect:      effectSlug,
			Opacity:     res.Opacity,
			Adjustments: res.Adjustments,
			Commits:     int64(res.Commits),
			Width:       ls.meta.Width,
			Height:      ls.meta.Height,
			CameraMake:  optionalString(ls.meta.CameraMake),
			CameraModel: optionalString(ls.meta.CameraModel),
			OutputBytes: size,
			CreatedAt:   now.Unix(),
		})
		if err != nil {
			return nil, err
		}
	}

	log.Info().Str("session", id).Str("output", outPath).Uint64("commits", res.Commits).Msg("Session accepted")
	return &AcceptOutput{
		ID:          recordID,
		Session:     id,
		Output:      outPath,
		Effect:      res.Effect.String(),
		Opacity:     res.Opacity,
		Adjustments: AdjustmentsFrom(res.Adjustments),
		Commits:     res.Commits,
		Bytes:       size,
		CreatedAt:   now.Unix(),
	}, nil
}

// Cancel discards a session without writing anything.
func (r *Registry) Cancel(id string) error {
	ls, err := r.acquire(id)
	if err != nil {
		return err
	}
	defer ls.mu.Unlock()
	r.release(ls)
	log.Info().Str("session", id).Msg("Session cancelled")
	return nil
}

// CloseAll cancels every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.Cancel(id)
	}
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (ls *liveSession) info() *SessionInfo {
	sel := ls.s.Selection()
	return &SessionInfo{
		ID:          ls.id,
		Source:      ls.source,
		State:       ls.s.State().String(),
		Category:    string(ls.s.Category()),
		Effect:      sel.Effect.String(),
		Opacity:     sel.Opacity,
		Adjustments: AdjustmentsFrom(ls.s.Adjustments()),
		Generation:  ls.s.Generation(),
		Width:       ls.meta.Width,
		Height:      ls.meta.Height,
		CreatedAt:   ls.createdAt,
	}
}

func sessionThumbnails(in []thumbs.Thumbnail) []SessionThumbnail {
	out := make([]SessionThumbnail, 0, len(in))
	for _, th := range in {
		st := SessionThumbnail{
			Effect: th.Effect.String(),
			Name:   th.Name,
			Row:    th.Row,
			Col:    th.Col,
		}
		if th.Err != nil {
			st.Error = th.Err.Error()
		}
		out = append(out, st)
	}
	return out
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.NewInternal(err)
	}
	return buf.Bytes(), nil
}
