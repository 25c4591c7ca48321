package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/beautify/internal/adjust"
	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/db"
	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/host"
	"github.com/hpungsan/beautify/internal/raster"
	"github.com/hpungsan/beautify/internal/session"
)

// ApplyInput contains parameters for the Apply operation.
type ApplyInput struct {
	Source      string      // required
	Output      string      // optional, default: ~/.beautify/outputs/<source>-<effect>-<timestamp>.<ext>
	Effect      string      // optional, slug or display name; "" or "none" for adjustments only
	Opacity     *float64    // optional, default: config default_opacity
	Adjustments Adjustments // optional, unset fields are zero
	UseLast     bool        // start from the last accepted values; explicit fields override
}

// ApplyOutput contains the result of the Apply operation.
type ApplyOutput struct {
	ID          string      `json:"id"`
	Output      string      `json:"output"`
	Effect      string      `json:"effect"`
	Opacity     float64     `json:"opacity"`
	Adjustments Adjustments `json:"adjustments"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Bytes       int64       `json:"bytes"`
	CreatedAt   int64       `json:"created_at"`
}

// applyPlan is an ApplyInput resolved against the catalog and last values.
type applyPlan struct {
	state   adjust.State
	effect  effect.ID
	opacity *float64
}

// Apply runs a non-interactive session over a source file: adjustments are
// applied and committed, the effect is composited on top at the given
// opacity, and the result is written to the output path.
func Apply(ctx context.Context, database *sql.DB, cfg *config.Config, input ApplyInput) (*ApplyOutput, error) {
	if input.Source == "" {
		return nil, errors.NewInvalidRequest("source is required")
	}

	plan, err := resolveApply(database, input)
	if err != nil {
		return nil, err
	}

	src, meta, err := loadSource(input.Source, cfg)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx, "apply"); err != nil {
		return nil, err
	}

	now := time.Now()
	outPath := input.Output
	if outPath == "" {
		label := "adjusted"
		if plan.effect != effect.None {
			label = plan.effect.String()
		}
		outPath, err = defaultOutputPath(input.Source, label, now)
		if err != nil {
			return nil, err
		}
	}
	// Fail on a bad output path before doing the pixel work.
	if err := ValidatePath(outPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	h := raster.New()
	dest := h.NewImage(src)
	defer h.Delete(dest)

	res, err := runPlan(ctx, h, dest, plan, sessionOptions(cfg, true))
	if err != nil {
		return nil, err
	}

	flat, err := h.Composite(dest)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	size, err := writeImage(outPath, flat, outputQuality(cfg), cfg)
	if err != nil {
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	opacity := 0.0
	var effectSlug *string
	if plan.effect != effect.None {
		slug := plan.effect.String()
		effectSlug = &slug
		opacity = res.Opacity
	}

	record := &db.HistoryRecord{
		ID:          id,
		Mode:        db.ModeApply,
		SourcePath:  input.Source,
		OutputPath:  &outPath,
		Effect:      effectSlug,
		Opacity:     opacity,
		Adjustments: plan.state,
		Commits:     int64(res.Commits),
		Width:       meta.Width,
		Height:      meta.Height,
		CameraMake:  optionalString(meta.CameraMake),
		CameraModel: optionalString(meta.CameraModel),
		OutputBytes: size,
		CreatedAt:   now.Unix(),
	}
	if database != nil {
		if err := recordAccept(database, record); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("source", input.Source).
		Str("output", outPath).
		Str("effect", plan.effect.String()).
		Float64("opacity", opacity).
		Msg("Applied")

	return &ApplyOutput{
		ID:          id,
		Output:      outPath,
		Effect:      plan.effect.String(),
		Opacity:     opacity,
		Adjustments: AdjustmentsFrom(plan.state),
		Width:       meta.Width,
		Height:      meta.Height,
		Bytes:       size,
		CreatedAt:   now.Unix(),
	}, nil
}

// resolveApply merges input over the last values (when requested) and
// resolves names against the catalog.
func resolveApply(database *sql.DB, input ApplyInput) (*applyPlan, error) {
	plan := &applyPlan{opacity: input.Opacity}
	effectName := input.Effect

	if input.UseLast {
		if database == nil {
			return nil, errors.NewInvalidRequest("last values need a database")
		}
		last, err := db.GetLastValues(database)
		if err != nil {
			return nil, err
		}
		plan.state = last.Adjustments.Normalized()
		if effectName == "" && last.Effect != nil {
			effectName = *last.Effect
		}
		if plan.opacity == nil && last.Effect != nil {
			op := last.Opacity
			plan.opacity = &op
		}
	}

	m := adjust.NewModel()
	m.Load(plan.state)
	for _, fv := range input.Adjustments.fields() {
		if _, err := m.Set(fv.field, fv.value); err != nil {
			return nil, err
		}
	}
	plan.state = m.State()

	id, err := resolveEffect(effectName)
	if err != nil {
		return nil, err
	}
	plan.effect = id
	return plan, nil
}

// runPlan drives a headless session over dest: adjustments, then the effect
// (which commits them underneath), then opacity, then accept.
func runPlan(ctx context.Context, h host.Host, dest host.Image, plan *applyPlan, opts session.Options) (session.Result, error) {
	s, err := session.Open(h, dest, opts)
	if err != nil {
		return session.Result{}, err
	}
	defer s.Cancel()

	for _, f := range adjust.Fields {
		v := plan.state.Get(f)
		if v == 0 {
			continue
		}
		if err := s.SetAdjustment(f, v); err != nil {
			return session.Result{}, err
		}
	}
	if err := checkContext(ctx, "apply"); err != nil {
		return session.Result{}, err
	}

	if plan.effect != effect.None {
		if _, err := s.SelectEffect(plan.effect); err != nil {
			return session.Result{}, err
		}
		if plan.opacity != nil {
			if err := s.SetOpacity(*plan.opacity); err != nil {
				return session.Result{}, err
			}
		}
	}
	if err := checkContext(ctx, "apply"); err != nil {
		return session.Result{}, err
	}

	return s.Accept()
}

// recordAccept stores the history record and remembers its values for
// the next --last run.
func recordAccept(database *sql.DB, r *db.HistoryRecord) error {
	if err := db.InsertHistory(database, r); err != nil {
		return err
	}
	return db.SaveLastValues(database, &db.LastValues{
		Effect:      r.Effect,
		Opacity:     r.Opacity,
		Adjustments: r.Adjustments,
		UpdatedAt:   r.CreatedAt,
	})
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
