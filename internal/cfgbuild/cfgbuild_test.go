package cfgbuild

import (
	"strings"
	"testing"

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
	cfg, err := Build(prog)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return cfg
}

func textOf(t *testing.T, cfg *ir.ProgramCFG) string {
	t.Helper()
	var sb strings.Builder
	ir.FprintProgram(&sb, cfg)
	return sb.String()
}

func TestMainDefaultReturn(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = 1\n")
	if cfg.Main.Entry.Terminator == nil {
		t.Fatal("main entry has no terminator")
	}
	ret, ok := cfg.Main.Entry.Terminator.(*ir.Ret)
	if !ok {
		t.Fatalf("main should end with an implicit ret, got %T", cfg.Main.Entry.Terminator)
	}
	if ret.Val != "0" {
		t.Errorf("implicit main return should be 0, got %s", ret.Val)
	}
}

func TestArithLowered(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = (1+2)\n")
	prims := cfg.Main.Entry.Primitives
	if len(prims) != 2 {
		t.Fatalf("expected init-local copy + arith, got %d primitives: %v", len(prims), prims)
	}
	a, ok := prims[1].(*ir.Arith)
	if !ok {
		t.Fatalf("expected an Arith primitive, got %T", prims[1])
	}
	if a.Op1 != "1" || a.Op2 != "2" || a.Op != ir.Add {
		t.Errorf("unexpected arith operands: %+v", a)
	}
}

// Two-class dispatch: each class's vtable should hold exactly its own
// override of f, and the call site should look it up through a
// load+getelt pair gated by a null check, per spec.md's end-to-end
// scenario.
func TestTwoClassDispatch(t *testing.T) {
	src := "class A [\n" +
		"method f() returning int with:\nreturn 1\n" +
		"]\n" +
		"class B [\n" +
		"method f() returning int with:\nreturn 2\n" +
		"]\n" +
		"main with a:A:\na = @A\n_ = ^a.f()\n"
	cfg := build(t, src)

	a := cfg.Classes["A"]
	b := cfg.Classes["B"]
	if len(a.Vtable) != 1 || a.Vtable[0] != "fA" {
		t.Errorf("vtable for A = %v, want [fA]", a.Vtable)
	}
	if len(b.Vtable) != 1 || b.Vtable[0] != "fB" {
		t.Errorf("vtable for B = %v, want [fB]", b.Vtable)
	}

	var sawLoad, sawGetElt bool
	for _, blk := range ir.AllBlocks(cfg.Main.Entry) {
		for _, p := range blk.Primitives {
			switch p.(type) {
			case *ir.Load:
				sawLoad = true
			case *ir.GetElt:
				sawGetElt = true
			}
		}
	}
	if !sawLoad || !sawGetElt {
		t.Errorf("call site should load the vtable pointer and getelt the method slot")
	}

	// The call site's nonzero check on the receiver makes the entry
	// block's terminator an if_else whose failure side is a fail block.
	term, ok := cfg.Main.Entry.Terminator.(*ir.IfElse)
	if !ok {
		t.Fatalf("entry should end with the receiver's null check, got %T", cfg.Main.Entry.Terminator)
	}
	var failBlock *ir.BasicBlock
	for _, c := range cfg.Main.Entry.Owned {
		if c.Label == term.ElseLabel {
			failBlock = c
		}
	}
	if failBlock == nil {
		t.Fatal("could not find the null check's failure block among owned children")
	}
	if f, ok := failBlock.Terminator.(*ir.Fail); !ok || f.Kind != ir.NotAPointer {
		t.Errorf("failure block should fail NotAPointer, got %v", failBlock.Terminator)
	}
}

// Diamond merge: an if/else assigning the same variable on both arms
// produces two blocks that jump to a shared join block reached once
// by ownership and once by a back-edge.
func TestDiamondMerge(t *testing.T) {
	src := "main with x:int, y:int:\nx = 1\nif x: {\ny = 1\n} else {\ny = 2\n}\nprint(y)\n"
	cfg := build(t, src)

	term, ok := cfg.Main.Entry.Terminator.(*ir.IfElse)
	if !ok {
		t.Fatalf("expected if/else terminator, got %T", cfg.Main.Entry.Terminator)
	}
	if len(cfg.Main.Entry.Owned) != 2 {
		t.Fatalf("if/else block should own exactly its two arms, got %d", len(cfg.Main.Entry.Owned))
	}
	thenBlock, elseBlock := cfg.Main.Entry.Owned[0], cfg.Main.Entry.Owned[1]
	if thenBlock.Label != term.IfLabel || elseBlock.Label != term.ElseLabel {
		t.Fatal("owned children should match the if_else's labels in order")
	}

	joinViaOwned := len(thenBlock.Owned) == 1
	joinViaBackEdge := len(elseBlock.BackEdges) == 1 || len(thenBlock.BackEdges) == 1
	if !joinViaOwned && !joinViaBackEdge {
		t.Fatalf("expected a join block reached once by ownership and once by back-edge; then=%+v else=%+v", thenBlock, elseBlock)
	}
	// Exactly one of the two arms owns the join block; the other
	// reaches it via a non-owning back-edge.
	ownCount := 0
	if len(thenBlock.Owned) == 1 {
		ownCount++
	}
	if len(elseBlock.Owned) == 1 {
		ownCount++
	}
	if ownCount != 1 {
		t.Errorf("exactly one arm should own the join block, got %d", ownCount)
	}
}

func TestNullCheckOnFieldAccess(t *testing.T) {
	src := "class A [\nfields f:int;\nmethod get() returning int with:\nreturn &this.f\n]\n" +
		"main with a:A:\na = null:A\n_ = ^a.get()\n"
	cfg := build(t, src)
	m := cfg.Classes["A"].Methods["get"]
	term, ok := m.Entry.Terminator.(*ir.IfElse)
	if !ok {
		t.Fatalf("field read should begin with a null check, got %T", m.Entry.Terminator)
	}
	_ = term
}

func TestFprintProgramStable(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = 1\nprint(x)\n")
	out1 := textOf(t, cfg)
	out2 := textOf(t, cfg)
	if out1 != out2 {
		t.Errorf("serialization is not stable across calls")
	}
	if !strings.Contains(out1, "data:") || !strings.Contains(out1, "code:") {
		t.Errorf("missing data:/code: sections: %s", out1)
	}
}
