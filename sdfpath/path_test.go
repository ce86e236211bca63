package sdfpath

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"empty", "", "", nil},
		{"root", "/", "/", nil},
		{"simple", "/World/a", "/World/a", nil},
		{"trailing separator", "/World/a/", "/World/a", nil},
		{"relative", "World", "", ErrNotAbsolute},
		{"double separator", "/World//a", "", ErrInvalidName},
		{"dot segment", "/World/./a", "", ErrInvalidName},
		{"property path", "/World/a.points", "", ErrInvalidName},
		{"space", "/World/a b", "", ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestParseNormalizesNames(t *testing.T) {
	// "\u00e9" as a single code point and as e + combining acute.
	composed := MustParse("/caf\u00e9")
	decomposed := MustParse("/cafe\u0301")
	assert.Equal(t, composed, decomposed)
	assert.Equal(t, composed.Hash(), decomposed.Hash())
}

func TestPathAccessors(t *testing.T) {
	p := MustParse("/World/Set/chair")
	assert.Equal(t, "chair", p.Name())
	assert.Equal(t, MustParse("/World/Set"), p.Parent())
	assert.Equal(t, AbsoluteRoot(), MustParse("/World").Parent())
	assert.True(t, AbsoluteRoot().Parent().IsEmpty())
	assert.Equal(t, 3, p.Depth())
	assert.Equal(t, []string{"World", "Set", "chair"}, p.Elements())
	assert.Equal(t, MustParse("/World/Set/chair/leg"), p.MustAppendChild("leg"))
	assert.Equal(t, MustParse("/World"), AbsoluteRoot().MustAppendChild("World"))

	_, err := EmptyPath.AppendChild("x")
	assert.ErrorIs(t, err, ErrNotAbsolute)
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		path, prefix string
		want         bool
	}{
		{"/World/a", "/World", true},
		{"/World", "/World", true},
		{"/Worldwide", "/World", false},
		{"/World/a", "/", true},
		{"/World", "/World/a", false},
	}
	for _, tt := range tests {
		got := MustParse(tt.path).HasPrefix(MustParse(tt.prefix))
		assert.Equal(t, tt.want, got, "%s HasPrefix %s", tt.path, tt.prefix)
	}
	assert.False(t, MustParse("/World").HasPrefix(EmptyPath))
}

func TestCompareKeepsSubtreesContiguous(t *testing.T) {
	ids := MustParseAll("/A-x", "/A/B/C", "/B", "/A", "/A/B", "/A/C", "/")
	slices.SortFunc(ids, Compare)

	want := MustParseAll("/", "/A", "/A/B", "/A/B/C", "/A/C", "/A-x", "/B")
	assert.Equal(t, want, ids)
	assert.Equal(t, 0, Compare(MustParse("/A"), MustParse("/A")))
	assert.True(t, Less(MustParse("/A"), MustParse("/A/B")))
}
