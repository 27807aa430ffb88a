// Package hpfc wires the front end, IR, optimizer and layout passes
// into the single public entry point: compile filter text into a cBPF
// program.
package hpfc

import (
	"github.com/hpfc/hpfc/bpf"
	"github.com/hpfc/hpfc/ir"
	"github.com/hpfc/hpfc/layout"
	"github.com/hpfc/hpfc/optimize"
	"github.com/hpfc/hpfc/parse"
)

// Diagnostic is a non-fatal compile-time warning, surfaced alongside a
// still-valid program rather than aborting it -- constant division or
// modulus by zero is the only kind the optimizer currently produces.
type Diagnostic = error

// CompileError wraps a hard compile failure: a syntax error, an unknown
// field reference, or scratch-register exhaustion. Unlike a Diagnostic,
// its presence means no program was produced.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string { return e.Err.Error() }
func (e *CompileError) Unwrap() error { return e.Err }

// Result is the outcome of a successful Compile: the emitted program
// plus any non-fatal diagnostics the optimizer raised along the way.
type Result struct {
	Program     []bpf.RawInstruction
	Diagnostics []Diagnostic
}

// Compile parses exprText, lowers it to IR, optionally runs the
// constant-folding/dead-store optimizer, and lays out the result into a
// flat cBPF program. On a parse or build failure it returns a nil
// Result and a *CompileError; optimizer diagnostics (e.g. a constant
// division by zero) do not fail the compile -- the offending
// instruction is left in the returned program exactly as built, per the
// port's error-handling contract.
func Compile(exprText string, optimizeProgram bool) (*Result, error) {
	ast, err := parse.Parse(exprText)
	if err != nil {
		return nil, &CompileError{Err: err}
	}

	ctx := ir.NewContext()
	tr := parse.NewTranslator(ctx)
	blk, err := tr.Translate(ast)
	if err != nil {
		return nil, &CompileError{Err: err}
	}

	root, _, _ := ctx.Finalize(blk)

	var diags []Diagnostic
	if optimizeProgram {
		for _, d := range optimize.Optimize(ctx) {
			diags = append(diags, d)
		}
	}

	prog := layout.Layout(ctx, root)
	return &Result{Program: prog, Diagnostics: diags}, nil
}
