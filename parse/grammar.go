// Package parse is the expression front end: it turns filter text such
// as "ether.type == 0x800 and ipv4.ver == 4" into calls against an
// ir.Context, using participle to declare the grammar as struct tags
// rather than a hand-rolled recursive-descent parser.
//
// Grammar (lowest to highest precedence):
//
//	Expr       = OrExpr
//	OrExpr     = AndExpr ("or" AndExpr)*
//	AndExpr    = NotExpr ("and" NotExpr)*
//	NotExpr    = "not"? Atom
//	Atom       = "(" OrExpr ")" | Comparison
//	Comparison = Arith (CmpOp Arith)?
//	Arith      = Term (ArithOp Term)*
//	Term       = "(" Arith ")" | Number | Field
//	Field      = Ident ("." Ident)*
//
// A Comparison with no operator is a bare scalar value, not a boolean
// test -- this is how "10 / 0" parses as a filter on its own, with no
// surrounding and/or/not. CmpOp includes "~", a bitwise-test operator
// so that ir.CmpSet (JSET) is reachable from filter text at all.
package parse

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\n\r]+`},
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `==|!=|>=|<=|<<|>>|[-+*/&|^~<>().]`},
})

// OrExpr is the grammar's start symbol.
type OrExpr struct {
	Left *AndExpr   `@@`
	Rest []*AndExpr `("or" @@)*`
}

type AndExpr struct {
	Left *NotExpr   `@@`
	Rest []*NotExpr `("and" @@)*`
}

type NotExpr struct {
	Not  bool  `@"not"?`
	Atom *Atom `@@`
}

type Atom struct {
	Group *OrExpr     `"(" @@ ")"`
	Cmp   *Comparison `| @@`
}

type Comparison struct {
	Left  *Arith  `@@`
	Op    *string `( @("=="|"!="|">="|"<="|">"|"<"|"~")`
	Right *Arith  `  @@ )?`
}

type Arith struct {
	Left *Term      `@@`
	Ops  []*ArithOp `@@*`
}

type ArithOp struct {
	Op    string `@("+"|"-"|"*"|"/"|"&"|"|"|"^"|"<<"|">>")`
	Right *Term  `@@`
}

type Term struct {
	SubArith *Arith  `  "(" @@ ")"`
	Number   *string `| @(Hex|Int)`
	Field    *Field  `| @@`
}

type Field struct {
	Parts []string `@Ident ("." @Ident)*`
}

var exprParser = participle.MustBuild[OrExpr](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse lexes and parses text into the grammar's AST, the input to
// Translate.
func Parse(text string) (*OrExpr, error) {
	ast, err := exprParser.ParseString("", text)
	if err != nil {
		return nil, &SyntaxError{Text: text, Err: err}
	}
	return ast, nil
}
