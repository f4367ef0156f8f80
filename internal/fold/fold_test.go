package fold

import (
	"strings"
	"testing"

	"github.com/aclements/sigilc/internal/cfgbuild"
	"github.com/aclements/sigilc/internal/ir"
	"github.com/aclements/sigilc/internal/parser"
	"github.com/aclements/sigilc/internal/typecheck"
)

func build(t *testing.T, src string) *ir.ProgramCFG {
	t.Helper()
	prog, err := parser.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := typecheck.Check(prog); err != nil {
		t.Fatalf("typecheck: %v", err)
	}
	cfg, err := cfgbuild.Build(prog)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return cfg
}

func primsOf(cfg *ir.ProgramCFG) []ir.Primitive {
	var out []ir.Primitive
	for _, b := range ir.AllBlocks(cfg.Main.Entry) {
		out = append(out, b.Primitives...)
	}
	return out
}

func TestArithFoldsToLiteralCopy(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = (1+2)\n")
	Build(cfg)
	for _, p := range primsOf(cfg) {
		if a, ok := p.(*ir.Arith); ok {
			t.Fatalf("arith should have been folded, still present: %v", a)
		}
	}
	var foundCopy bool
	for _, p := range primsOf(cfg) {
		if c, ok := p.(*ir.Copy); ok && c.Dst == "%x" && c.Src == "3" {
			foundCopy = true
		}
	}
	if !foundCopy {
		t.Errorf("expected x = 3 after folding, prims: %v", primsOf(cfg))
	}
}

func TestTemporaryEliminatedVariableKept(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = (1+2)\n")
	Build(cfg)
	// The destination x is a variable register, never elided even
	// though its value is now a literal.
	var sawX bool
	for _, p := range primsOf(cfg) {
		if d, ok := ir.Dst(p); ok && d == "%x" {
			sawX = true
		}
	}
	if !sawX {
		t.Errorf("assignment to variable x must survive folding")
	}
}

func TestDivisionByZeroNotFolded(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = (1/0)\n")
	Build(cfg)
	var sawArith bool
	for _, p := range primsOf(cfg) {
		if a, ok := p.(*ir.Arith); ok && a.Op == ir.Div {
			sawArith = true
		}
	}
	if !sawArith {
		t.Errorf("division by a literal zero must be left unfolded, prims: %v", primsOf(cfg))
	}
}

func TestNoPropagationIntoVariableRead(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = (1+2)\nprint(x)\n")
	Build(cfg)
	var sawPrintLiteral bool
	for _, p := range primsOf(cfg) {
		if pr, ok := p.(*ir.Print); ok && pr.Val == "3" {
			sawPrintLiteral = true
		}
	}
	// print(x) reads the variable x, not a temporary, so it is
	// unaffected by temp->const propagation; this asserts the
	// negative to document that variable reads are not substituted.
	if sawPrintLiteral {
		t.Errorf("print should still read the variable %%x, not a propagated literal")
	}
}
