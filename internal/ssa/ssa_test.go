package ssa

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

func phisFor(blocks []*ir.BasicBlock, varPrefix string) []*ir.Phi {
	var out []*ir.Phi
	for _, b := range blocks {
		for _, p := range b.Primitives {
			if ph, ok := p.(*ir.Phi); ok && strings.HasPrefix(string(ph.Dst), varPrefix+".") {
				out = append(out, ph)
			}
		}
	}
	return out
}

func allPhis(blocks []*ir.BasicBlock) []*ir.Phi {
	var out []*ir.Phi
	for _, b := range blocks {
		for _, p := range b.Primitives {
			if ph, ok := p.(*ir.Phi); ok {
				out = append(out, ph)
			}
		}
	}
	return out
}

const diamondSrc = "main with x:int, y:int:\nx = 1\nif x: {\ny = 1\n} else {\ny = 2\n}\nprint(y)\n"

func TestDiamondPhiPruned(t *testing.T) {
	cfg := build(t, diamondSrc)
	Build(cfg, Pruned)

	blocks := ir.AllBlocks(cfg.Main.Entry)
	yPhis := phisFor(blocks, "%y")
	if len(yPhis) != 1 {
		t.Fatalf("expected exactly one phi for y, got %d: %v", len(yPhis), yPhis)
	}
	if len(yPhis[0].Args) != 2 {
		t.Fatalf("y's phi should have two args (one per predecessor), got %d", len(yPhis[0].Args))
	}
	if yPhis[0].Args[0].Val == yPhis[0].Args[1].Val {
		t.Errorf("the two arms should have assigned y distinct SSA versions, both resolved to %s", yPhis[0].Args[0].Val)
	}

	xPhis := phisFor(blocks, "%x")
	if len(xPhis) != 0 {
		t.Errorf("x is never reassigned divergently and should get no phi, got %v", xPhis)
	}
}

func TestDiamondPhiSimplePlacesEveryVariable(t *testing.T) {
	cfg := build(t, diamondSrc)
	Build(cfg, Simple)

	blocks := ir.AllBlocks(cfg.Main.Entry)
	phis := allPhis(blocks)
	if len(phis) < 2 {
		t.Fatalf("simple mode should place a phi for every variable (x and y) at the join, got %d: %v", len(phis), phis)
	}
	if len(phisFor(blocks, "%x")) == 0 {
		t.Errorf("simple mode should also phi x even though it's never reassigned divergently")
	}
	if len(phisFor(blocks, "%y")) == 0 {
		t.Errorf("simple mode should phi y")
	}
}

func TestWhileLoopHeaderPhi(t *testing.T) {
	src := "main with x:int, i:int:\ni = 0\nwhile i: {\nx = i\ni = 0\n}\nprint(x)\n"
	cfg := build(t, src)
	Build(cfg, Pruned)

	blocks := ir.AllBlocks(cfg.Main.Entry)
	iPhis := phisFor(blocks, "%i")
	if len(iPhis) != 1 {
		t.Fatalf("loop header should have exactly one phi for the loop-carried variable i, got %d", len(iPhis))
	}
	if len(iPhis[0].Args) != 2 {
		t.Errorf("loop header's phi for i should have two args (pre-loop value and back-edge value), got %d", len(iPhis[0].Args))
	}
}

func TestParamsGetVersionedAtEntry(t *testing.T) {
	src := "class A [\nfields f:int;\nmethod set(v:int) returning int with:\n!this.f = v\nreturn v\n]\n" +
		"main with a:A:\na = @A\n_ = ^a.set(1)\n"
	cfg := build(t, src)
	Build(cfg, Pruned)

	m := cfg.Classes["A"].Methods["set"]
	if len(m.Entry.Params) != 2 {
		t.Fatalf("expected [this, v], got %v", m.Entry.Params)
	}
	for _, p := range m.Entry.Params {
		if !strings.Contains(string(p), ".") {
			t.Errorf("entry param %s should have been renamed to a versioned SSA name", p)
		}
	}
}

func TestNoGlobalsNoPhis(t *testing.T) {
	cfg := build(t, "main with x:int:\nx = 1\nprint(x)\n")
	Build(cfg, Pruned)
	if phis := allPhis(ir.AllBlocks(cfg.Main.Entry)); len(phis) != 0 {
		t.Errorf("straight-line code should need no phis, got %v", phis)
	}
}
