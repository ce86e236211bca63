package sdfpath

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Separator separates name segments.
const Separator = '/'

var (
	// ErrNotAbsolute is returned when a path does not start with "/".
	ErrNotAbsolute = errors.New("sdfpath: path must be absolute")

	// ErrInvalidName is returned for an empty or malformed name segment.
	ErrInvalidName = errors.New("sdfpath: invalid name segment")
)

// Path is an absolute primitive identifier.
//
// The zero value is the empty path, which names nothing and is never a
// valid primitive id. AbsoluteRoot ("/") is a prefix of every path.
type Path struct {
	s string
}

// EmptyPath is the zero Path.
var EmptyPath = Path{}

// AbsoluteRoot returns the root path "/".
func AbsoluteRoot() Path {
	return Path{s: "/"}
}

// Parse validates and canonicalizes s.
//
// Segment names are NFC-normalized so that visually identical names compare
// and hash identically. Trailing separators are dropped; repeated separators
// are rejected.
func Parse(s string) (Path, error) {
	if s == "" {
		return EmptyPath, nil
	}
	if s[0] != Separator {
		return EmptyPath, fmt.Errorf("%w: %q", ErrNotAbsolute, s)
	}
	if s == "/" {
		return AbsoluteRoot(), nil
	}
	trimmed := strings.TrimSuffix(s[1:], "/")
	parts := strings.Split(trimmed, "/")
	var b strings.Builder
	b.Grow(len(s))
	for _, part := range parts {
		name, err := canonicalName(part)
		if err != nil {
			return EmptyPath, fmt.Errorf("%w in %q", err, s)
		}
		b.WriteByte(Separator)
		b.WriteString(name)
	}
	return Path{s: b.String()}, nil
}

// MustParse is like Parse but panics on error. Intended for literals.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// MustParseAll parses every string in ss.
func MustParseAll(ss ...string) []Path {
	out := make([]Path, len(ss))
	for i, s := range ss {
		out[i] = MustParse(s)
	}
	return out
}

func canonicalName(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if r == Separator || r == '.' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return norm.NFC.String(name), nil
}

// String returns the canonical text form.
func (p Path) String() string {
	return p.s
}

// IsEmpty reports whether p is the empty path.
func (p Path) IsEmpty() bool {
	return p.s == ""
}

// IsAbsoluteRoot reports whether p is "/".
func (p Path) IsAbsoluteRoot() bool {
	return p.s == "/"
}

// Name returns the last segment, or "" for the root and empty paths.
func (p Path) Name() string {
	if len(p.s) <= 1 {
		return ""
	}
	return p.s[strings.LastIndexByte(p.s, Separator)+1:]
}

// Parent returns the parent path. The parent of a top-level path is the
// absolute root; the root and empty paths have an empty parent.
func (p Path) Parent() Path {
	if len(p.s) <= 1 {
		return EmptyPath
	}
	i := strings.LastIndexByte(p.s, Separator)
	if i == 0 {
		return AbsoluteRoot()
	}
	return Path{s: p.s[:i]}
}

// AppendChild returns p/name.
func (p Path) AppendChild(name string) (Path, error) {
	if p.IsEmpty() {
		return EmptyPath, ErrNotAbsolute
	}
	n, err := canonicalName(name)
	if err != nil {
		return EmptyPath, err
	}
	if p.IsAbsoluteRoot() {
		return Path{s: "/" + n}, nil
	}
	return Path{s: p.s + "/" + n}, nil
}

// MustAppendChild is like AppendChild but panics on error.
func (p Path) MustAppendChild(name string) Path {
	c, err := p.AppendChild(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Depth returns the number of name segments; 0 for root and empty.
func (p Path) Depth() int {
	if len(p.s) <= 1 {
		return 0
	}
	return strings.Count(p.s, "/")
}

// Elements returns the name segments in order.
func (p Path) Elements() []string {
	if len(p.s) <= 1 {
		return nil
	}
	return strings.Split(p.s[1:], "/")
}

// HasPrefix reports whether prefix is p or an ancestor of p.
// Every non-empty path has the absolute root as a prefix; the empty path
// is a prefix of nothing.
func (p Path) HasPrefix(prefix Path) bool {
	if prefix.IsEmpty() || p.IsEmpty() {
		return false
	}
	if prefix.IsAbsoluteRoot() {
		return true
	}
	if !strings.HasPrefix(p.s, prefix.s) {
		return false
	}
	return len(p.s) == len(prefix.s) || p.s[len(prefix.s)] == Separator
}

// Hash returns an FNV-1a hash of the canonical form.
func (p Path) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(p.s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Compare orders paths element-wise. It returns -1, 0 or +1.
//
// The separator sorts before every other byte, which makes a plain byte
// scan equivalent to comparing segment lists.
func Compare(a, b Path) int {
	as, bs := a.s, b.s
	n := min(len(as), len(bs))
	for i := 0; i < n; i++ {
		ca, cb := as[i], bs[i]
		if ca == cb {
			continue
		}
		if ca == Separator {
			return -1
		}
		if cb == Separator {
			return 1
		}
		if ca < cb {
			return -1
		}
		return 1
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func Less(a, b Path) bool {
	return Compare(a, b) < 0
}
