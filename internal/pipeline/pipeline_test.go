package pipeline

import (
	"strings"
	"testing"

	"github.com/aclements/sigilc/internal/ir"
	"github.com/aclements/sigilc/internal/parser"
	"github.com/aclements/sigilc/internal/typecheck"
)

func build(t *testing.T, src string, opt Options) *ir.ProgramCFG {
	t.Helper()
	p, err := parser.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := typecheck.Check(p); err != nil {
		t.Fatalf("typecheck: %v", err)
	}
	cfg, err := Run(p, opt)
	if err != nil {
		t.Fatalf("Run: %v", err)
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

func TestDefaultPipelineFoldsAndValueNumbers(t *testing.T) {
	cfg := build(t, "main with x:int, y:int:\nx = (1+2)\ny = (x+0)\n", Options{})
	for _, p := range primsOf(cfg) {
		if a, ok := p.(*ir.Arith); ok {
			t.Errorf("default pipeline should fold and simplify every arith away, still present: %v", a)
		}
	}
}

func TestNoSSAImpliesNoGVN(t *testing.T) {
	// Without SSA form, registers are not versioned, so GVN's
	// dominator-scoped redundancy elimination across a branch (which
	// depends on SSA's single-definition property) cannot apply —
	// -noSSA must skip it even though NoVN is left false.
	cfg := build(t, "main with x:int, a:int, b:int:\nx = 1\na = (x+x)\nb = (x+x)\n", Options{NoSSA: true})
	var arithCount int
	for _, p := range primsOf(cfg) {
		if _, ok := p.(*ir.Arith); ok {
			arithCount++
		}
	}
	if arithCount == 0 {
		t.Errorf("expected -noSSA to leave plain (non-SSA) arith statements alone, none survived")
	}
}

func TestNoOptSkipsFolding(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = (1+2)\n", Options{NoOpt: true, NoSSA: true})
	var sawArith bool
	for _, p := range primsOf(cfg) {
		if _, ok := p.(*ir.Arith); ok {
			sawArith = true
		}
	}
	if !sawArith {
		t.Errorf("expected -noopt to leave the literal add unfolded")
	}
}

func TestVectorizeRunsJumpoptThenSLP(t *testing.T) {
	cfg := build(t, "main with x:int, y:int:\nx = 1\nif 0: {\ny = 1\n} else {\ny = 2\n}\nprint(y)\n", Options{Vectorize: true})
	for _, b := range ir.AllBlocks(cfg.Main.Entry) {
		if _, ok := b.Terminator.(*ir.IfElse); ok {
			t.Errorf("-vectorize runs jumpopt, which should have pruned the literal if_else, still present in %s", b.Label)
		}
	}
}
