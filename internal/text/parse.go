package text

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"brilopt/internal/bril"
)

// BrilLexer tokenizes the textual IR form.
var BrilLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `#[^\n]*`, nil},

		// Literals (order matters: floats before integers)
		{"Float", `-?[0-9]+\.[0-9]+`, nil},
		{"Integer", `-?[0-9]+`, nil},

		// Identifiers, including versioned SSA names like x.1
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.]*`, nil},

		// Punctuation
		{"Punct", `[@{}():,;=<>.]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

type document struct {
	Functions []*funcDecl `@@*`
}

type funcDecl struct {
	Name   string    `"@" @Ident`
	Params []*param  `("(" (@@ ("," @@)*)? ")")?`
	Ret    *typeRef  `(":" @@)?`
	Body   []*line   `"{" @@* "}"`
}

type param struct {
	Name string   `@Ident`
	Type *typeRef `":" @@`
}

type typeRef struct {
	Taint string   `(@("public" | "private"))?`
	Ptr   *typeRef `( "ptr" "<" @@ ">"`
	Prim  string   `| @Ident )`
}

type line struct {
	Label *labelDecl `  @@`
	Instr *instrDecl `| @@`
}

type labelDecl struct {
	Name string `"." @Ident ":"`
}

type instrDecl struct {
	Head     *assignHead `(@@ "=")?`
	Op       string      `@Ident`
	Operands []*operand  `@@* ";"`
}

type assignHead struct {
	Dest string   `@Ident`
	Type *typeRef `(":" @@)?`
}

type operand struct {
	Label *string  `  "." @Ident`
	Func  *string  `| "@" @Ident`
	Float *float64 `| @Float`
	Int   *int64   `| @Integer`
	Bool  *string  `| @("true" | "false")`
	Var   *string  `| @Ident`
}

var parser = participle.MustBuild[document](
	participle.Lexer(BrilLexer),
	participle.Elide("Whitespace", "Comment"),
	// Deciding whether a line opens with "dest: type =" needs to see past
	// a nested ptr<...> type.
	participle.UseLookahead(16),
)

// ParseString parses the textual IR form of a whole program.
func ParseString(filename, source string) (*bril.Program, error) {
	doc, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, err
	}
	prog := &bril.Program{}
	for _, fd := range doc.Functions {
		fn := &bril.Function{Name: fd.Name, Type: fd.Ret.toType()}
		for _, p := range fd.Params {
			fn.Args = append(fn.Args, bril.Arg{Name: p.Name, Type: p.Type.toType()})
		}
		for _, ln := range fd.Body {
			in, err := ln.toInstr()
			if err != nil {
				return nil, fmt.Errorf("%s: function @%s: %w", filename, fd.Name, err)
			}
			fn.Instrs = append(fn.Instrs, in)
		}
		prog.Functions = append(prog.Functions, fn)
	}
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

func (t *typeRef) toType() *bril.Type {
	if t == nil {
		return nil
	}
	var out *bril.Type
	if t.Ptr != nil {
		out = bril.NewPointer(t.Ptr.toType())
	} else {
		out = bril.NewPrim(t.Prim)
	}
	if t.Taint != "" {
		out.SetTaint(t.Taint)
	}
	return out
}

func (ln *line) toInstr() (bril.Instr, error) {
	if ln.Label != nil {
		return bril.Instr{Label: ln.Label.Name}, nil
	}
	id := ln.Instr
	in := bril.Instr{Op: id.Op}
	if id.Head != nil {
		in.Dest = id.Head.Dest
		in.Type = id.Head.Type.toType()
	}
	for _, op := range id.Operands {
		switch {
		case op.Label != nil:
			in.Labels = append(in.Labels, *op.Label)
		case op.Func != nil:
			in.Funcs = append(in.Funcs, *op.Func)
		case op.Float != nil:
			if in.Value != nil {
				return in, fmt.Errorf("instruction %s carries two literals", id.Op)
			}
			in.Value = bril.FloatVal(*op.Float)
		case op.Int != nil:
			if in.Value != nil {
				return in, fmt.Errorf("instruction %s carries two literals", id.Op)
			}
			in.Value = bril.IntVal(*op.Int)
		case op.Bool != nil:
			if in.Value != nil {
				return in, fmt.Errorf("instruction %s carries two literals", id.Op)
			}
			in.Value = bril.BoolVal(*op.Bool == "true")
		default:
			in.Args = append(in.Args, *op.Var)
		}
	}
	return in, nil
}
