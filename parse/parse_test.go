package parse_test

import (
	"testing"

	"github.com/hpfc/hpfc/ir"
	"github.com/hpfc/hpfc/parse"
)

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := parse.Parse("ether.type ==="); err == nil {
		t.Fatal("expected a syntax error")
	}
}

func TestTranslateSimpleComparison(t *testing.T) {
	ast, err := parse.Parse("ether.type == 0x800")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := ir.NewContext()
	tr := parse.NewTranslator(ctx)
	idx, err := tr.Translate(ast)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	blk := ctx.Block(idx)
	if blk.Jmp == nil {
		t.Fatal("a field comparison must produce a block with a terminating jump")
	}
}

func TestTranslateBareArithmeticHasNoJump(t *testing.T) {
	ast, err := parse.Parse("10 / 0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := ir.NewContext()
	tr := parse.NewTranslator(ctx)
	idx, err := tr.Translate(ast)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if ctx.Block(idx).Jmp != nil {
		t.Fatal("a bare arithmetic expression should produce a block with no jump")
	}
}

func TestTranslateAndChainsTwoComparisons(t *testing.T) {
	ast, err := parse.Parse("ether.type == 0x800 and ipv4.ver == 4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := ir.NewContext()
	tr := parse.NewTranslator(ctx)
	idx, err := tr.Translate(ast)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if ctx.Block(idx).Jmp == nil {
		t.Fatal("combined 'and' block should have a terminating jump")
	}
}

func TestTranslateNotRequiresComparison(t *testing.T) {
	ast, err := parse.Parse("not (1 + 2)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := ir.NewContext()
	tr := parse.NewTranslator(ctx)
	if _, err := tr.Translate(ast); err == nil {
		t.Fatal("'not' over a bare arithmetic value should be a semantic error")
	}
}

func TestTranslateNotInvertsComparison(t *testing.T) {
	ast, err := parse.Parse("not (ether.type == 0x800)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := ir.NewContext()
	tr := parse.NewTranslator(ctx)
	idx, err := tr.Translate(ast)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !ctx.Block(idx).IsReversed {
		t.Fatal("'not' over a non-reversed comparison should toggle IsReversed")
	}
}

func TestTranslateUnknownFieldError(t *testing.T) {
	ast, err := parse.Parse("nope.nope == 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := ir.NewContext()
	tr := parse.NewTranslator(ctx)
	if _, err := tr.Translate(ast); err == nil {
		t.Fatal("expected an unknown field error")
	}
}
