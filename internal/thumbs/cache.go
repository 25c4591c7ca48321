// Package thumbs renders and memoizes per-category effect thumbnails.
//
// A category is rendered at most once per base generation. By default every
// generation maps to the same key, so thumbnails stay as first rendered for
// the whole session even after commits change the base. WithInvalidateOnCommit
// keys by the real generation instead.
package thumbs

import (
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/host"
)

// GridColumns is the number of thumbnails per row on a category page.
const GridColumns = 3

// Thumbnail is one rendered effect preview. Err is set when the effect
// failed to render; Image is nil in that case.
type Thumbnail struct {
	Effect effect.ID
	Name   string
	Row    int
	Col    int
	Image  image.Image
	Err    error
}

// Key identifies a rendered category.
type Key struct {
	Category   effect.Category
	Generation uint64
}

type entry struct {
	renderedAt time.Time
	thumbs     []Thumbnail
}

// Cache is a lazy per-category thumbnail renderer.
type Cache struct {
	host               host.Host
	size               int
	invalidateOnCommit bool
	now                func() time.Time

	entries map[Key]*entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithInvalidateOnCommit re-renders a category after the base changes.
func WithInvalidateOnCommit(on bool) Option {
	return func(c *Cache) { c.invalidateOnCommit = on }
}

// WithClock overrides the time source used for RenderedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache rendering thumbnails that fit size x size.
func New(h host.Host, size int, opts ...Option) *Cache {
	c := &Cache{
		host:    h,
		size:    size,
		now:     time.Now,
		entries: make(map[Key]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyFor returns the cache key for category at base generation.
func (c *Cache) KeyFor(category effect.Category, generation uint64) Key {
	if !c.invalidateOnCommit {
		generation = 0
	}
	return Key{Category: category, Generation: generation}
}

// RenderCategory returns one thumbnail per effect of category, in catalog
// order. The first call for a key renders every effect against base; later
// calls return the stored result without touching the host.
//
// An effect that fails yields an entry with Err set; the rest of the
// category still renders and the category is still marked rendered.
func (c *Cache) RenderCategory(category effect.Category, base host.Image, generation uint64) ([]Thumbnail, error) {
	ids, err := effect.EffectsIn(category)
	if err != nil {
		return nil, err
	}

	key := c.KeyFor(category, generation)
	if e, ok := c.entries[key]; ok {
		log.Debug().Str("category", string(category)).Uint64("generation", key.Generation).Msg("thumbnail cache hit")
		return e.thumbs, nil
	}

	thumbs := make([]Thumbnail, len(ids))
	for i, id := range ids {
		fx := effect.MustGet(id)
		thumbs[i] = Thumbnail{
			Effect: id,
			Name:   fx.Name,
			Row:    i / GridColumns,
			Col:    i % GridColumns,
		}
		img, err := c.renderOne(fx, base)
		if err != nil {
			log.Warn().Err(err).Str("effect", fx.Slug).Str("category", string(category)).Msg("thumbnail render failed")
			thumbs[i].Err = err
			continue
		}
		thumbs[i].Image = img
	}

	c.entries[key] = &entry{renderedAt: c.now(), thumbs: thumbs}
	log.Debug().Str("category", string(category)).Uint64("generation", key.Generation).Int("effects", len(ids)).Msg("thumbnail cache fill")
	return thumbs, nil
}

// renderOne runs fx on a scratch copy of base and extracts its thumbnail.
func (c *Cache) renderOne(fx *effect.Effect, base host.Image) (image.Image, error) {
	scratch, err := c.host.Duplicate(base)
	if err != nil {
		return nil, errors.NewHostOperationFailed("duplicate", err)
	}
	defer func() {
		if err := c.host.Delete(scratch); err != nil {
			log.Warn().Err(err).Int64("image", int64(scratch)).Msg("delete thumbnail scratch")
		}
	}()

	if err := fx.Transform(c.host, scratch); err != nil {
		return nil, errors.NewHostOperationFailed("effect "+fx.Slug, err)
	}
	img, err := c.host.Thumbnail(scratch, c.size, c.size)
	if err != nil {
		return nil, errors.NewHostOperationFailed("thumbnail", err)
	}
	return img, nil
}

// Lookup returns the cached thumbnail of id for category at generation.
func (c *Cache) Lookup(category effect.Category, generation uint64, id effect.ID) (Thumbnail, bool) {
	e, ok := c.entries[c.KeyFor(category, generation)]
	if !ok {
		return Thumbnail{}, false
	}
	for _, t := range e.thumbs {
		if t.Effect == id {
			return t, true
		}
	}
	return Thumbnail{}, false
}

// RenderedAt reports when category was rendered for generation.
func (c *Cache) RenderedAt(category effect.Category, generation uint64) (time.Time, bool) {
	e, ok := c.entries[c.KeyFor(category, generation)]
	if !ok {
		return time.Time{}, false
	}
	return e.renderedAt, true
}

// Clear drops every cached category.
func (c *Cache) Clear() {
	clear(c.entries)
}

// Len returns the number of cached categories.
func (c *Cache) Len() int {
	return len(c.entries)
}
