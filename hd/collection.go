package hd

import (
	"slices"
	"strings"

	"github.com/gogpu/hydra/instance"
	"github.com/gogpu/hydra/sdfpath"
)

// MaxTopologyReprs is the number of slots in a ReprSelector.
const MaxTopologyReprs = 3

// ReprSelector names the representation to draw for each kind of
// topology: slot 0 for refined surfaces (meshes), slot 1 for unrefined
// geometry (curves), slot 2 for points. An empty slot draws nothing.
type ReprSelector struct {
	tokens [MaxTopologyReprs]string
}

// NewReprSelector fills the selector slots in order. Extra tokens beyond
// MaxTopologyReprs are ignored. A single token is applied to every slot.
func NewReprSelector(tokens ...string) ReprSelector {
	var s ReprSelector
	if len(tokens) == 1 {
		for i := range s.tokens {
			s.tokens[i] = tokens[0]
		}
		return s
	}
	copy(s.tokens[:], tokens)
	return s
}

// At returns the token in slot i.
func (s ReprSelector) At(i int) string {
	if i < 0 || i >= MaxTopologyReprs {
		return ""
	}
	return s.tokens[i]
}

// Tokens returns the distinct non-empty tokens in slot order.
func (s ReprSelector) Tokens() []string {
	var out []string
	for _, t := range s.tokens {
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// IsEmpty reports whether every slot is empty.
func (s ReprSelector) IsEmpty() bool {
	return s.tokens == [MaxTopologyReprs]string{}
}

// Compose fills the empty slots of s from fallback.
func (s ReprSelector) Compose(fallback ReprSelector) ReprSelector {
	out := s
	for i, t := range out.tokens {
		if t == "" {
			out.tokens[i] = fallback.tokens[i]
		}
	}
	return out
}

// Equal reports whether every slot matches.
func (s ReprSelector) Equal(o ReprSelector) bool { return s.tokens == o.tokens }

func (s ReprSelector) String() string {
	return "(" + strings.Join(s.tokens[:], ", ") + ")"
}

// Collection is a named, immutable selection of rprims: the primitives at
// or below any root path and not at or below any exclude path, drawn with
// the given representation.
//
// Collections compare by content. Two render passes with equal collections
// share one dirty list.
type Collection struct {
	name        string
	repr        ReprSelector
	materialTag string
	roots       []sdfpath.Path
	excludes    []sdfpath.Path
}

// NewCollection creates a collection. With no roots the collection is
// empty and selects nothing.
func NewCollection(name string, repr ReprSelector, roots ...sdfpath.Path) Collection {
	return Collection{name: name, repr: repr, roots: normalizePaths(roots)}
}

// WithExcludes returns a copy of c with the given exclude paths.
func (c Collection) WithExcludes(excludes ...sdfpath.Path) Collection {
	c.excludes = normalizePaths(excludes)
	return c
}

// WithRoots returns a copy of c with the given root paths.
func (c Collection) WithRoots(roots ...sdfpath.Path) Collection {
	c.roots = normalizePaths(roots)
	return c
}

// WithReprSelector returns a copy of c drawing repr.
func (c Collection) WithReprSelector(repr ReprSelector) Collection {
	c.repr = repr
	return c
}

// WithMaterialTag returns a copy of c restricted to a material tag.
func (c Collection) WithMaterialTag(tag string) Collection {
	c.materialTag = tag
	return c
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// ReprSelector returns the representation selector.
func (c Collection) ReprSelector() ReprSelector { return c.repr }

// MaterialTag returns the material tag, "" for any.
func (c Collection) MaterialTag() string { return c.materialTag }

// RootPaths returns the sorted root paths. The slice must not be modified.
func (c Collection) RootPaths() []sdfpath.Path { return c.roots }

// ExcludePaths returns the sorted exclude paths. The slice must not be
// modified.
func (c Collection) ExcludePaths() []sdfpath.Path { return c.excludes }

// IsEmpty reports whether c has no root path.
func (c Collection) IsEmpty() bool { return len(c.roots) == 0 }

// Contains reports whether id is selected by c.
func (c Collection) Contains(id sdfpath.Path) bool {
	if c.IsExcluded(id) {
		return false
	}
	for _, r := range c.roots {
		if id.HasPrefix(r) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether id lies at or below an exclude path.
func (c Collection) IsExcluded(id sdfpath.Path) bool {
	for _, e := range c.excludes {
		if id.HasPrefix(e) {
			return true
		}
	}
	return false
}

// SameMembership reports whether c and o select the same primitives,
// whatever their names and representations.
func (c Collection) SameMembership(o Collection) bool {
	return slices.Equal(c.roots, o.roots) && slices.Equal(c.excludes, o.excludes) &&
		c.materialTag == o.materialTag
}

// Equal reports whether every field of c and o matches.
func (c Collection) Equal(o Collection) bool {
	return c.name == o.name && c.repr.Equal(o.repr) && c.SameMembership(o)
}

// Hash returns a content hash consistent with Equal.
func (c Collection) Hash() uint64 {
	h := instance.NewHasher().String(c.name).String(c.materialTag)
	for _, t := range c.repr.tokens {
		h.String(t)
	}
	h.Int(len(c.roots))
	for _, r := range c.roots {
		h.String(r.String())
	}
	h.Int(len(c.excludes))
	for _, e := range c.excludes {
		h.String(e.String())
	}
	return h.Sum64()
}

func (c Collection) String() string {
	var b strings.Builder
	b.WriteString(c.name)
	b.WriteString(c.repr.String())
	b.WriteString(" roots=")
	b.WriteString(joinPaths(c.roots))
	if len(c.excludes) > 0 {
		b.WriteString(" excludes=")
		b.WriteString(joinPaths(c.excludes))
	}
	return b.String()
}

// normalizePaths copies, drops empty entries, sorts and deduplicates.
func normalizePaths(in []sdfpath.Path) []sdfpath.Path {
	out := make([]sdfpath.Path, 0, len(in))
	for _, p := range in {
		if !p.IsEmpty() {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, sdfpath.Compare)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// disjointRoots drops roots that lie below another root.
func disjointRoots(roots []sdfpath.Path) []sdfpath.Path {
	out := make([]sdfpath.Path, 0, len(roots))
	for _, r := range roots {
		if n := len(out); n > 0 && r.HasPrefix(out[n-1]) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func joinPaths(ps []sdfpath.Path) string {
	s := make([]string, len(ps))
	for i, p := range ps {
		s[i] = p.String()
	}
	return "[" + strings.Join(s, ", ") + "]"
}
