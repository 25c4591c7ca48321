package ops

import (
	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/thumbs"
)

// EffectsInput contains parameters for the Effects operation.
type EffectsInput struct {
	Category string // optional, id or title; empty lists every category
}

// EffectSummary describes one catalog effect.
type EffectSummary struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Row         int    `json:"row"`
	Col         int    `json:"col"`
}

// CategorySummary is one gallery page.
type CategorySummary struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Effects []EffectSummary `json:"effects"`
}

// EffectsOutput contains the result of the Effects operation.
type EffectsOutput struct {
	Categories []CategorySummary `json:"categories"`
	Count      int               `json:"count"`
}

// Effects lists the catalog in gallery order.
func Effects(input EffectsInput) (*EffectsOutput, error) {
	cats := effect.Categories()
	if input.Category != "" {
		c, err := effect.ParseCategory(input.Category)
		if err != nil {
			return nil, err
		}
		cats = []effect.Category{c}
	}

	out := &EffectsOutput{Categories: make([]CategorySummary, 0, len(cats))}
	for _, c := range cats {
		title, err := effect.CategoryTitle(c)
		if err != nil {
			return nil, err
		}
		ids, err := effect.EffectsIn(c)
		if err != nil {
			return nil, err
		}
		summary := CategorySummary{ID: string(c), Title: title, Effects: make([]EffectSummary, 0, len(ids))}
		for i, id := range ids {
			e := effect.MustGet(id)
			summary.Effects = append(summary.Effects, EffectSummary{
				Slug:        e.Slug,
				Name:        e.Name,
				Category:    string(c),
				Description: e.Description,
				Row:         i / thumbs.GridColumns,
				Col:         i % thumbs.GridColumns,
			})
		}
		out.Count += len(summary.Effects)
		out.Categories = append(out.Categories, summary)
	}
	return out, nil
}
