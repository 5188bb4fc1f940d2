package category

import (
	"strings"

	"github.com/wha7/wha7/pkg/types"
)

// DefaultCategory is returned when no mapping exists.
const DefaultCategory = "11450"

// Mode selects which lookup table a Resolver uses.
type Mode string

const (
	// ModeGendered keys the table by (gender, concept).
	ModeGendered Mode = "gendered"
	// ModeConcept ignores gender and keys the table by concept alone.
	ModeConcept Mode = "concept"
)

// Key is a normalized (gender, concept) pair.
type Key struct {
	Gender  types.Gender
	Concept string
}

// Resolver maps a (gender, concept) pair to a marketplace category id.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	mode     Mode
	table    map[Key]string
	concepts map[string]string
	fallback string
}

// New builds a resolver over the built-in eBay tables.
func New(mode Mode) *Resolver {
	return NewWithTable(mode, gendered, DefaultCategory)
}

// NewWithTable builds a resolver over a caller-supplied gendered table.
func NewWithTable(mode Mode, table map[Key]string, fallback string) *Resolver {
	if fallback == "" {
		fallback = DefaultCategory
	}
	if mode != ModeConcept {
		mode = ModeGendered
	}
	expanded := expandUnisex(table)
	return &Resolver{
		mode:     mode,
		table:    expanded,
		concepts: conceptOnly(table),
		fallback: fallback,
	}
}

// Mode reports the active lookup mode.
func (r *Resolver) Mode() Mode { return r.mode }

// Resolve returns the category id for the pair, or the default category. It never fails.
func (r *Resolver) Resolve(gender types.Gender, concept string) string {
	concept = Normalize(concept)

	var id string
	switch r.mode {
	case ModeConcept:
		id = r.concepts[concept]
	default:
		id = r.table[Key{Gender: gender, Concept: concept}]
	}
	if id == "" {
		return r.fallback
	}
	return id
}

// Lookup is Resolve that also reports whether a mapping existed.
func (r *Resolver) Lookup(gender types.Gender, concept string) (string, bool) {
	id := r.Resolve(gender, concept)
	if r.mode == ModeConcept {
		_, ok := r.concepts[Normalize(concept)]
		return id, ok
	}
	_, ok := r.table[Key{Gender: gender, Concept: Normalize(concept)}]
	return id, ok
}

// Normalize lowercases and trims a concept name.
func Normalize(concept string) string {
	return strings.ToLower(strings.TrimSpace(concept))
}

// expandUnisex copies every unisex row under men and women so that lookups
// stay a single probe. Explicit gendered rows win over the copies.
func expandUnisex(in map[Key]string) map[Key]string {
	out := make(map[Key]string, len(in)*2)
	for k, v := range in {
		out[Key{Gender: k.Gender, Concept: Normalize(k.Concept)}] = v
	}
	for k, v := range in {
		if k.Gender != types.Unisex {
			continue
		}
		for _, g := range []types.Gender{types.Men, types.Women} {
			key := Key{Gender: g, Concept: Normalize(k.Concept)}
			if _, exists := out[key]; !exists {
				out[key] = v
			}
		}
	}
	return out
}

// conceptOnly derives the legacy concept-keyed table, preferring the unisex,
// then the women's, then the men's row for each concept.
func conceptOnly(in map[Key]string) map[string]string {
	out := make(map[string]string)
	for _, g := range []types.Gender{types.Unisex, types.Women, types.Men} {
		for k, v := range in {
			if k.Gender != g {
				continue
			}
			c := Normalize(k.Concept)
			if _, exists := out[c]; !exists {
				out[c] = v
			}
		}
	}
	return out
}
