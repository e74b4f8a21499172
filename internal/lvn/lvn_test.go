package lvn

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

func findDest(fn *bril.Function, dest string) *bril.Instr {
	for ii := range fn.Instrs {
		if fn.Instrs[ii].Dest == dest {
			return &fn.Instrs[ii]
		}
	}
	return nil
}

func TestConstantFolding(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"f","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"b","type":"int","value":2},
		{"op":"add","dest":"c","type":"int","args":["a","b"]},
		{"op":"ret","args":["c"]}]}]}`)
	require.NoError(t, Run(fn))

	c := findDest(fn, "c")
	require.NotNil(t, c)
	assert.Equal(t, bril.OpConst, c.Op)
	assert.Nil(t, c.Args)
	require.NotNil(t, c.Value)
	assert.Equal(t, int64(3), c.Value.Int)

	ret := fn.Instrs[len(fn.Instrs)-1]
	assert.Equal(t, bril.OpRet, ret.Op)
	assert.Equal(t, []string{"c"}, ret.Args)
}

func TestCommutativityFoldsIntoOneClass(t *testing.T) {
	// Unknown operands: only canonicalization can merge a+b with b+a.
	fn := parseFn(t, `{"functions":[{"name":"f","args":[
		{"name":"a","type":"int"},{"name":"b","type":"int"}],"instrs":[
		{"op":"add","dest":"c","type":"int","args":["a","b"]},
		{"op":"add","dest":"d","type":"int","args":["b","a"]},
		{"op":"ret","args":["c"]}]}]}`)
	require.NoError(t, Run(fn))

	d := findDest(fn, "d")
	require.NotNil(t, d)
	assert.Equal(t, bril.OpID, d.Op)
	assert.Equal(t, []string{"c"}, d.Args)
}

func TestFoldedCommutativityReusesClass(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"f","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"b","type":"int","value":2},
		{"op":"add","dest":"c","type":"int","args":["a","b"]},
		{"op":"add","dest":"d","type":"int","args":["b","a"]},
		{"op":"ret","args":["c"]}]}]}`)
	require.NoError(t, Run(fn))

	d := findDest(fn, "d")
	require.NotNil(t, d)
	assert.Equal(t, bril.OpID, d.Op)
	assert.Equal(t, []string{"c"}, d.Args)
}

func TestIdempotence(t *testing.T) {
	src := `{"functions":[{"name":"f","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"b","type":"int","value":2},
		{"op":"add","dest":"c","type":"int","args":["a","b"]},
		{"op":"add","dest":"d","type":"int","args":["b","a"]},
		{"op":"ret","args":["d"]}]}]}`
	fn := parseFn(t, src)
	require.NoError(t, Run(fn))
	once, err := bril.Marshal(&bril.Program{Functions: []*bril.Function{fn}})
	require.NoError(t, err)

	require.NoError(t, Run(fn))
	twice, err := bril.Marshal(&bril.Program{Functions: []*bril.Function{fn}})
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestDivisionByZeroIsNotFolded(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"f","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"z","type":"int","value":0},
		{"op":"div","dest":"c","type":"int","args":["a","z"]},
		{"op":"ret","args":["c"]}]}]}`)
	require.NoError(t, Run(fn))

	c := findDest(fn, "c")
	require.NotNil(t, c)
	assert.Equal(t, bril.OpDiv, c.Op)
	assert.Equal(t, []string{"a", "z"}, c.Args)
}

func TestSameOperandComparisonIdentity(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"f","args":[{"name":"x","type":"int"}],"instrs":[
		{"op":"eq","dest":"e","type":"bool","args":["x","x"]},
		{"op":"lt","dest":"l","type":"bool","args":["x","x"]},
		{"op":"ret","args":["e"]}]}]}`)
	require.NoError(t, Run(fn))

	e := findDest(fn, "e")
	require.NotNil(t, e)
	assert.Equal(t, bril.OpConst, e.Op)
	assert.True(t, e.Value.Bool)

	l := findDest(fn, "l")
	require.NotNil(t, l)
	assert.Equal(t, bril.OpConst, l.Op)
	assert.False(t, l.Value.Bool)
}

func TestClobberRetiresOldValue(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"f","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"const","dest":"a","type":"int","value":2},
		{"op":"id","dest":"b","type":"int","args":["a"]},
		{"op":"ret","args":["b"]}]}]}`)
	require.NoError(t, Run(fn))

	b := findDest(fn, "b")
	require.NotNil(t, b)
	assert.Equal(t, bril.OpID, b.Op)
	assert.Equal(t, []string{"a"}, b.Args, "b copies the clobbered a, not the retired 1")
}

func TestFloatOpsPassThrough(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"f","instrs":[
		{"op":"const","dest":"a","type":"float","value":1.5},
		{"op":"const","dest":"b","type":"float","value":1.5},
		{"op":"fadd","dest":"c","type":"float","args":["a","b"]},
		{"op":"ret","args":["c"]}]}]}`)
	require.NoError(t, Run(fn))

	c := findDest(fn, "c")
	require.NotNil(t, c)
	assert.Equal(t, "fadd", c.Op)
	b := findDest(fn, "b")
	assert.Equal(t, bril.OpConst, b.Op, "float constants are not value-numbered")
}

func TestIdOfConstSubstitutes(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"f","instrs":[
		{"op":"const","dest":"a","type":"int","value":7},
		{"op":"id","dest":"b","type":"int","args":["a"]},
		{"op":"add","dest":"c","type":"int","args":["b","b"]},
		{"op":"ret","args":["c"]}]}]}`)
	require.NoError(t, Run(fn))

	b := findDest(fn, "b")
	require.NotNil(t, b)
	assert.Equal(t, bril.OpID, b.Op, "the folded copy joins the constant's class")
	assert.Equal(t, []string{"a"}, b.Args)

	c := findDest(fn, "c")
	require.NotNil(t, c)
	assert.Equal(t, bril.OpConst, c.Op)
	assert.Equal(t, int64(14), c.Value.Int)
}

func TestCallsAreNotNumbered(t *testing.T) {
	fn := parseFn(t, `{"functions":[{"name":"f","instrs":[
		{"op":"const","dest":"a","type":"int","value":1},
		{"op":"call","dest":"r1","type":"int","funcs":["g"],"args":["a"]},
		{"op":"call","dest":"r2","type":"int","funcs":["g"],"args":["a"]},
		{"op":"ret","args":["r2"]}]}]}`)
	require.NoError(t, Run(fn))

	r2 := findDest(fn, "r2")
	require.NotNil(t, r2)
	assert.Equal(t, bril.OpCall, r2.Op, "repeated calls must not collapse")
}
