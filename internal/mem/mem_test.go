package mem

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brilopt/internal/bril"
)

func parseFn(t *testing.T, src string) *bril.Function {
	t.Helper()
	prog, err := bril.Read(strings.NewReader(src))
	require.NoError(t, err)
	return prog.Functions[0]
}

func countOp(fn *bril.Function, op string) int {
	n := 0
	for _, in := range fn.Instrs {
		if in.Op == op {
			n++
		}
	}
	return n
}

func TestDeadStoreEliminated(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"n","type":"int","value":1},
		{"op":"alloc","dest":"p","type":{"ptr":"int"},"args":["n"]},
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"b","type":"int","value":2},
		{"op":"store","args":["p","a"]},
		{"op":"store","args":["p","b"]},
		{"op":"load","dest":"x","type":"int","args":["p"]},
		{"op":"ret","args":["x"]}]}]}`)
	require.NoError(t, Run(fn))

	require.Equal(t, 1, countOp(fn, bril.OpStore), "the overwritten store is dead")
	require.Equal(t, 1, countOp(fn, bril.OpLoad))
	for _, in := range fn.Instrs {
		if in.Op == bril.OpStore {
			assert.Equal(t, "b", in.Args[1], "the surviving store is the later one")
		}
	}
}

func TestInterveningLoadKeepsStore(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"n","type":"int","value":1},
		{"op":"alloc","dest":"p","type":{"ptr":"int"},"args":["n"]},
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"store","args":["p","a"]},
		{"op":"load","dest":"x","type":"int","args":["p"]},
		{"op":"const","dest":"b","type":"int","value":2},
		{"op":"store","args":["p","b"]},
		{"op":"ret","args":["x"]}]}]}`)
	require.NoError(t, Run(fn))
	assert.Equal(t, 2, countOp(fn, bril.OpStore))
}

func TestDistinctAllocationsDoNotAlias(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"n","type":"int","value":1},
		{"op":"alloc","dest":"p","type":{"ptr":"int"},"args":["n"]},
		{"op":"alloc","dest":"q","type":{"ptr":"int"},"args":["n"]},
		{"op":"store","args":["p","n"]},
		{"op":"load","dest":"x","type":"int","args":["q"]},
		{"op":"store","args":["p","n"]},
		{"op":"ret","args":["x"]}]}]}`)
	require.NoError(t, Run(fn))
	assert.Equal(t, 1, countOp(fn, bril.OpStore),
		"a load from a different allocation does not protect the earlier store")
}

func TestPointerArgumentAliasesEverything(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","args":[
		{"name":"q","type":{"ptr":"int"}}],"instrs":[
		{"op":"const","dest":"n","type":"int","value":1},
		{"op":"alloc","dest":"p","type":{"ptr":"int"},"args":["n"]},
		{"op":"store","args":["p","n"]},
		{"op":"load","dest":"x","type":"int","args":["q"]},
		{"op":"store","args":["p","n"]},
		{"op":"ret","args":["x"]}]}]}`)
	require.NoError(t, Run(fn))
	assert.Equal(t, 2, countOp(fn, bril.OpStore),
		"a load through an unknown pointer may read any location")
}

func TestAliasMap(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","args":[
		{"name":"r","type":{"ptr":"int"}}],"instrs":[
		{"op":"const","dest":"n","type":"int","value":1},
		{"op":"alloc","dest":"p","type":{"ptr":"int"},"args":["n"]},
		{"op":"ptradd","dest":"q","type":{"ptr":"int"},"args":["p","n"]},
		{"op":"id","dest":"c","type":{"ptr":"int"},"args":["p"]},
		{"op":"load","dest":"lp","type":{"ptr":"int"},"args":["r"]},
		{"op":"ret"}]}]}`)
	locs, err := Alias(fn)
	require.NoError(t, err)

	require.Contains(t, locs, "p")
	assert.True(t, locs["p"].Equal(locs["q"]), "ptradd inherits its base's locations")
	assert.True(t, locs["p"].Equal(locs["c"]), "pointer id copies locations")
	assert.True(t, locs["r"].Has(All), "pointer arguments point anywhere")
	assert.True(t, locs["lp"].Has(All), "a loaded pointer points anywhere")
	assert.False(t, locs["p"].Has(All))
}

func TestBranchStoresStayWhenOnlyOnePathOverwrites(t *testing.T) {
	// The first store is overwritten on the then-path only; the
	// must-intersection across successors keeps it.
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"n","type":"int","value":1},
		{"op":"alloc","dest":"p","type":{"ptr":"int"},"args":["n"]},
		{"op":"const","dest":"c","type":"bool","value":true},
		{"op":"store","args":["p","n"]},
		{"op":"br","args":["c"],"labels":["then","done"]},
		{"label":"then"},
		{"op":"store","args":["p","n"]},
		{"op":"jmp","labels":["done"]},
		{"label":"done"},
		{"op":"load","dest":"x","type":"int","args":["p"]},
		{"op":"print","args":["x"]},
		{"op":"ret"}]}]}`)
	require.NoError(t, Run(fn))
	assert.Equal(t, 2, countOp(fn, bril.OpStore))
}
