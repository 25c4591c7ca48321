package ops

import (
	"database/sql"

	"github.com/hpungsan/beautify/internal/db"
	"github.com/hpungsan/beautify/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Effect string // optional filter by effect (slug or display name)
	Mode   string // optional filter: "apply" or "session"
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// HistoryItem is one accepted edit.
type HistoryItem struct {
	ID          string      `json:"id"`
	Mode        string      `json:"mode"`
	Source      string      `json:"source"`
	Output      *string     `json:"output,omitempty"`
	Effect      string      `json:"effect"`
	Opacity     float64     `json:"opacity"`
	Adjustments Adjustments `json:"adjustments"`
	Commits     int64       `json:"commits"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	CameraMake  *string     `json:"camera_make,omitempty"`
	CameraModel *string     `json:"camera_model,omitempty"`
	OutputBytes int64       `json:"output_bytes"`
	CreatedAt   int64       `json:"created_at"`
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []HistoryItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// History lists accepted edits, newest first.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	filter := db.HistoryFilter{}

	if input.Effect != "" {
		id, err := resolveEffect(input.Effect)
		if err != nil {
			return nil, err
		}
		slug := id.String()
		filter.Effect = &slug
	}
	if input.Mode != "" {
		if input.Mode != db.ModeApply && input.Mode != db.ModeSession {
			return nil, errors.NewInvalidRequest("mode must be \"apply\" or \"session\"")
		}
		filter.Mode = &input.Mode
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)
	filter.Limit = limit
	filter.Offset = offset

	records, total, err := db.ListHistory(database, filter)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, historyItem(r))
	}

	return &HistoryOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

func historyItem(r *db.HistoryRecord) HistoryItem {
	effectSlug := "none"
	if r.Effect != nil {
		effectSlug = *r.Effect
	}
	return HistoryItem{
		ID:          r.ID,
		Mode:        r.Mode,
		Source:      r.SourcePath,
		Output:      r.OutputPath,
		Effect:      effectSlug,
		Opacity:     r.Opacity,
		Adjustments: AdjustmentsFrom(r.Adjustments),
		Commits:     r.Commits,
		Width:       r.Width,
		Height:      r.Height,
		CameraMake:  r.CameraMake,
		CameraModel: r.CameraModel,
		OutputBytes: r.OutputBytes,
		CreatedAt:   r.CreatedAt,
	}
}

// LastValuesOutput contains the last accepted slider values and effect.
type LastValuesOutput struct {
	Effect      string      `json:"effect"`
	Opacity     float64     `json:"opacity"`
	Adjustments Adjustments `json:"adjustments"`
	UpdatedAt   int64       `json:"updated_at"`
}

// LastValues returns the values recorded by the most recent accept.
func LastValues(database *sql.DB) (*LastValuesOutput, error) {
	v, err := db.GetLastValues(database)
	if err != nil {
		return nil, err
	}
	out := &LastValuesOutput{
		Effect:      "none",
		Opacity:     v.Opacity,
		Adjustments: AdjustmentsFrom(v.Adjustments),
		UpdatedAt:   v.UpdatedAt,
	}
	if v.Effect != nil {
		out.Effect = *v.Effect
	}
	return out, nil
}
