package gvn

import (
	"strings"
	"testing"

	"github.com/aclements/sigilc/internal/cfgbuild"
	"github.com/aclements/sigilc/internal/ir"
	"github.com/aclements/sigilc/internal/parser"
	"github.com/aclements/sigilc/internal/ssa"
	"github.com/aclements/sigilc/internal/typecheck"
)

// build parses, typechecks, lowers and converts src to pruned SSA —
// gvn's input is always SSA form, same as a real pipeline run.
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
	ssa.Build(cfg, ssa.Pruned)
	return cfg
}

func primsOf(cfg *ir.ProgramCFG) []ir.Primitive {
	var out []ir.Primitive
	for _, b := range ir.AllBlocks(cfg.Main.Entry) {
		out = append(out, b.Primitives...)
	}
	return out
}

func TestRedundantArithEliminated(t *testing.T) {
	// Two reads of the same variable, added twice with no
	// intervening write: the second addition is a recomputation of
	// the first and should collapse to a copy of its result.
	cfg := build(t, "main with x:int, a:int, b:int:\nx = 1\na = (x+x)\nb = (x+x)\n")
	Build(cfg)
	var adds int
	for _, p := range primsOf(cfg) {
		if a, ok := p.(*ir.Arith); ok && a.Op == ir.Add {
			adds++
		}
	}
	if adds > 1 {
		t.Errorf("expected at most one surviving add, found %d: %v", adds, primsOf(cfg))
	}
}

func TestAlgebraicIdentityAddZero(t *testing.T) {
	cfg := build(t, "main with x:int, y:int:\nx = 1\ny = (x+0)\n")
	Build(cfg)
	for _, p := range primsOf(cfg) {
		if a, ok := p.(*ir.Arith); ok {
			t.Fatalf("x+0 should have simplified away, still present: %v", a)
		}
	}
}

func TestMulByTwoBecomesAdd(t *testing.T) {
	cfg := build(t, "main with x:int, y:int:\nx = 1\ny = (x*2)\n")
	Build(cfg)
	var sawAdd bool
	for _, p := range primsOf(cfg) {
		if a, ok := p.(*ir.Arith); ok {
			if a.Op == ir.Mul {
				t.Fatalf("x*2 should have rewritten to an add, still a mul: %v", a)
			}
			if a.Op == ir.Add {
				sawAdd = true
			}
		}
	}
	if !sawAdd {
		t.Errorf("expected x*2 to rewrite to x+x, prims: %v", primsOf(cfg))
	}
}

func TestDivisionByZeroStillNotFolded(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = (1/0)\n")
	Build(cfg)
	var sawDiv bool
	for _, p := range primsOf(cfg) {
		if a, ok := p.(*ir.Arith); ok && a.Op == ir.Div {
			sawDiv = true
		}
	}
	if !sawDiv {
		t.Errorf("division by a literal zero must survive gvn, prims: %v", primsOf(cfg))
	}
}

func TestLiteralBranchFoldsToJump(t *testing.T) {
	cfg := build(t, "main with x:int, y:int:\nx = 1\nif 0: {\ny = 1\n} else {\ny = 2\n}\nprint(y)\n")
	Build(cfg)
	for _, b := range ir.AllBlocks(cfg.Main.Entry) {
		if _, ok := b.Terminator.(*ir.IfElse); ok {
			t.Fatalf("a literal-0 condition should fold to a jump, still branching in block %s", b.Label)
		}
	}
}

func TestRepeatedNullCheckCollapses(t *testing.T) {
	src := "class A [\n" +
		"method m() returning int with:\nreturn 1\n" +
		"]\n" +
		"main with a:A, x:int, y:int:\na = @A\nx = ^a.m()\ny = ^a.m()\n"
	cfg := build(t, src)
	Build(cfg)
	var ifElses int
	for _, b := range ir.AllBlocks(cfg.Main.Entry) {
		if _, ok := b.Terminator.(*ir.IfElse); ok {
			ifElses++
		}
	}
	if ifElses > 1 {
		t.Errorf("expected the second null check on the same value to collapse, found %d surviving if_else terminators", ifElses)
	}
}

func TestPhiWithUniformValueCollapses(t *testing.T) {
	cfg := build(t, "main with x:int, y:int:\nx = 1\nif x: {\ny = 1\n} else {\ny = 1\n}\nprint(y)\n")
	Build(cfg)
	for _, p := range primsOf(cfg) {
		if ph, ok := p.(*ir.Phi); ok {
			t.Fatalf("a phi whose arms agree on value should collapse, still present: %v", ph)
		}
	}
}
