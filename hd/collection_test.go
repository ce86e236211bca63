package hd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/sdfpath"
)

func TestReprSelector(t *testing.T) {
	all := hd.NewReprSelector(hd.ReprWire)
	for i := range hd.MaxTopologyReprs {
		assert.Equal(t, hd.ReprWire, all.At(i))
	}
	assert.Equal(t, []string{hd.ReprWire}, all.Tokens())
	assert.Empty(t, all.At(hd.MaxTopologyReprs))

	partial := hd.NewReprSelector(hd.ReprRefined, "")
	assert.Equal(t, []string{hd.ReprRefined}, partial.Tokens())
	composed := partial.Compose(hd.NewReprSelector(hd.ReprHull, hd.ReprWire, hd.ReprPoints))
	assert.Equal(t, "(refined, wire, points)", composed.String())
	assert.True(t, hd.ReprSelector{}.IsEmpty())
}

func TestCollectionMembership(t *testing.T) {
	col := hd.NewCollection("geometry", hd.NewReprSelector(hd.ReprHull),
		p("/World/b"), p("/World/a"), p("/World/a")).WithExcludes(p("/World/a/hidden"))

	assert.Equal(t, []sdfpath.Path{p("/World/a"), p("/World/b")}, col.RootPaths())
	assert.True(t, col.Contains(p("/World/a")))
	assert.True(t, col.Contains(p("/World/b/x")))
	assert.False(t, col.Contains(p("/World/a/hidden")))
	assert.False(t, col.Contains(p("/World/a/hidden/x")))
	assert.False(t, col.Contains(p("/World/ab")))
	assert.False(t, col.Contains(p("/Other")))

	assert.True(t, hd.NewCollection("none", hd.NewReprSelector(hd.ReprHull)).IsEmpty())
}

func TestCollectionEquality(t *testing.T) {
	a := hd.NewCollection("geometry", hd.NewReprSelector(hd.ReprHull), p("/A"), p("/B"))
	b := hd.NewCollection("geometry", hd.NewReprSelector(hd.ReprHull), p("/B"), p("/A"))
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	wire := a.WithReprSelector(hd.NewReprSelector(hd.ReprWire))
	assert.False(t, a.Equal(wire))
	assert.True(t, a.SameMembership(wire))
	assert.NotEqual(t, a.Hash(), wire.Hash())

	excl := a.WithExcludes(p("/A/x"))
	assert.False(t, a.SameMembership(excl))
	assert.False(t, a.SameMembership(a.WithMaterialTag("translucent")))
	assert.NotEqual(t, a.Hash(), excl.Hash())
}
