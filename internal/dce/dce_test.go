package dce

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

func ops(fn *bril.Function) []string {
	var out []string
	for _, in := range fn.Instrs {
		if !in.IsLabel() {
			out = append(out, in.Op)
		}
	}
	return out
}

func hasDest(fn *bril.Function, dest string) bool {
	for _, in := range fn.Instrs {
		if in.Dest == dest {
			return true
		}
	}
	return false
}

func TestDeadConstantRemoved(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"b","type":"int","value":2},
		{"op":"print","args":["a"]},
		{"op":"ret"}]}]}`)
	require.NoError(t, Run(fn))

	assert.True(t, hasDest(fn, "a"))
	assert.False(t, hasDest(fn, "b"))
	assert.Contains(t, ops(fn), bril.OpPrint)
	assert.Contains(t, ops(fn), bril.OpRet)
}

func TestSideEffectsSurvive(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"n","type":"int","value":1},
		{"op":"alloc","dest":"p","type":{"ptr":"int"},"args":["n"]},
		{"op":"store","args":["p","n"]},
		{"op":"call","dest":"unused","type":"int","funcs":["g"]},
		{"op":"ret"}]}]}`)
	require.NoError(t, Run(fn))

	got := ops(fn)
	assert.Contains(t, got, bril.OpStore)
	assert.Contains(t, got, bril.OpCall, "a call's side effects keep it alive even with a dead dest")
	assert.Contains(t, got, bril.OpRet)
}

func TestDeadChainCascades(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"id","dest":"b","type":"int","args":["a"]},
		{"op":"id","dest":"c","type":"int","args":["b"]},
		{"op":"ret"}]}]}`)
	require.NoError(t, Run(fn))

	assert.False(t, hasDest(fn, "a"))
	assert.False(t, hasDest(fn, "b"))
	assert.False(t, hasDest(fn, "c"))
}

func TestMonotonicity(t *testing.T) {
	src := `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"c","type":"bool","value":true},
		{"op":"br","args":["c"],"labels":["then","else"]},
		{"label":"then"},
		{"op":"const","dest":"x","type":"int","value":1},
		{"op":"jmp","labels":["join"]},
		{"label":"else"},
		{"op":"const","dest":"x","type":"int","value":2},
		{"op":"jmp","labels":["join"]},
		{"label":"join"},
		{"op":"print","args":["x"]},
		{"op":"ret"}]}]}`
	fn := parseFn(t, src)
	before := len(fn.Instrs)
	require.NoError(t, Run(fn))
	after := len(fn.Instrs)
	assert.LessOrEqual(t, after, before)
	assert.True(t, hasDest(fn, "x"), "x is live at the join on both paths")
}

func TestBranchLivenessKeepsBothPaths(t *testing.T) {
	// x assigned on both branches, used at the join: neither def is dead.
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"c","type":"bool","value":true},
		{"op":"br","args":["c"],"labels":["then","else"]},
		{"label":"then"},
		{"op":"const","dest":"x","type":"int","value":1},
		{"op":"jmp","labels":["join"]},
		{"label":"else"},
		{"op":"const","dest":"x","type":"int","value":2},
		{"op":"jmp","labels":["join"]},
		{"label":"join"},
		{"op":"ret","args":["x"]}]}]}`)
	require.NoError(t, Run(fn))

	count := 0
	for _, in := range fn.Instrs {
		if in.Dest == "x" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestTrivialGlobal(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"dead","type":"int","value":9},
		{"op":"print","args":["a"]}]}]}`)
	require.NoError(t, Trivial(fn))
	assert.False(t, hasDest(fn, "dead"))
	assert.True(t, hasDest(fn, "a"))
}

func TestTrivialLocalOverwrite(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"main","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"a","type":"int","value":2},
		{"op":"print","args":["a"]}]}]}`)
	require.NoError(t, Trivial(fn))

	count := 0
	for _, in := range fn.Instrs {
		if in.Dest == "a" {
			count++
			assert.Equal(t, int64(2), in.Value.Int, "the surviving definition is the later one")
		}
	}
	assert.Equal(t, 1, count)
}
