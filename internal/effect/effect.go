// Package effect is the static catalog of named stylistic effects. Every
// effect is registered once, with its display name, category and transform,
// in a fixed order that listings preserve.
package effect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/host"
)

// ID identifies a catalog effect. None means "no effect selected".
type ID int

const (
	None ID = iota
	SoftLight
	Warm
	Sharpen
	StrongContrast
	SmartColor
	Invert
	GothicStyle
	ClassicHDR
	Impression
	LittleFresh
	PinkLady
	ABao
	IceSpirit
	Japanese
	NewJapanese
	WarmYellow
	Blues
	PurpleFantasy
	BrightRed
	ChristmasEve
	Astral
	PickLight
)

// Category groups effects into gallery pages.
type Category string

const (
	Basic   Category = "basic"
	LOMO    Category = "lomo"
	Studio  Category = "studio"
	Fashion Category = "fashion"
)

// Transform renders an effect onto the active layer of img. The engine treats
// it as opaque.
type Transform func(h host.Host, img host.Image) error

// Effect is one catalog entry.
type Effect struct {
	ID          ID
	Slug        string
	Name        string
	Category    Category
	Description string // Markdown
	Aliases     []string
	Transform   Transform
}

type categoryEntry struct {
	id      Category
	title   string
	effects []ID
}

var (
	registry   = map[ID]*Effect{}
	bySlug     = map[string]ID{}
	categories []categoryEntry
)

// register adds an effect to the registry. Panics on duplicate ids or slugs.
func register(cat Category, e Effect) {
	if e.ID == None {
		panic("effect: cannot register None")
	}
	if _, dup := registry[e.ID]; dup {
		panic(fmt.Sprintf("effect: duplicate id %d", e.ID))
	}
	e.Category = cat
	e.Slug = slugify(e.Name)
	if _, dup := bySlug[e.Slug]; dup {
		panic(fmt.Sprintf("effect: duplicate slug %q", e.Slug))
	}
	registry[e.ID] = &e
	bySlug[e.Slug] = e.ID
	for _, alias := range e.Aliases {
		bySlug[slugify(alias)] = e.ID
	}

	for i := range categories {
		if categories[i].id == cat {
			categories[i].effects = append(categories[i].effects, e.ID)
			return
		}
	}
	panic(fmt.Sprintf("effect: category %q not declared", cat))
}

func declareCategory(id Category, title string) {
	categories = append(categories, categoryEntry{id: id, title: title})
}

// Categories returns every category in gallery order.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = c.id
	}
	return out
}

// CategoryTitle returns the page label of a category.
func CategoryTitle(c Category) (string, error) {
	for _, entry := range categories {
		if entry.id == c {
			return entry.title, nil
		}
	}
	return "", errors.NewUnknownCategory(string(c))
}

// ParseCategory resolves a category id or title, case-insensitively.
func ParseCategory(name string) (Category, error) {
	n := normalize(name)
	for _, entry := range categories {
		if string(entry.id) == n || normalize(entry.title) == n {
			return entry.id, nil
		}
	}
	return "", errors.NewUnknownCategory(name)
}

// EffectsIn returns the effects of a category in registration order.
func EffectsIn(c Category) ([]ID, error) {
	for _, entry := range categories {
		if entry.id == c {
			return append([]ID(nil), entry.effects...), nil
		}
	}
	return nil, errors.NewUnknownCategory(string(c))
}

// Get returns the catalog entry for id.
func Get(id ID) (*Effect, error) {
	e, ok := registry[id]
	if !ok {
		return nil, errors.NewUnknownEffect(fmt.Sprintf("#%d", int(id)))
	}
	return e, nil
}

// MustGet is Get for ids known at compile time. An unregistered id is a
// programming error.
func MustGet(id ID) *Effect {
	e, err := Get(id)
	if err != nil {
		panic(err)
	}
	return e
}

// DisplayName returns the gallery label of id.
func DisplayName(id ID) (string, error) {
	e, err := Get(id)
	if err != nil {
		return "", err
	}
	return e.Name, nil
}

// Lookup resolves a slug or display name ("gothic-style", "Gothic Style").
func Lookup(name string) (ID, error) {
	if id, ok := bySlug[slugify(name)]; ok {
		return id, nil
	}
	return None, errors.NewUnknownEffect(name)
}

// All returns every effect in gallery order.
func All() []*Effect {
	var out []*Effect
	for _, c := range categories {
		for _, id := range c.effects {
			out = append(out, registry[id])
		}
	}
	return out
}

// String returns the slug, or "none".
func (id ID) String() string {
	if e, ok := registry[id]; ok {
		return e.Slug
	}
	if id == None {
		return "none"
	}
	return fmt.Sprintf("effect(%d)", int(id))
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// normalize trims, lowercases and collapses internal whitespace.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRegex.ReplaceAllString(s, " ")
}

func slugify(s string) string {
	s = normalize(strings.ReplaceAll(strings.ReplaceAll(s, "-", " "), "_", " "))
	return strings.ReplaceAll(s, " ", "-")
}
