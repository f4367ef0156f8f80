package jumpopt

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

// The while loop's pre-header always ends in an unconditional jump to
// the condition block; that block has two predecessors (pre-header and
// the loop back-edge) so it must never be merged away.
func TestLoopHeaderNeverMerged(t *testing.T) {
	cfg := build(t, "main with x:int, i:int:\ni = 0\nwhile i: {\nx = i\ni = 0\n}\nprint(x)\n")
	Build(cfg)
	var sawHeader bool
	for _, b := range ir.AllBlocks(cfg.Main.Entry) {
		if len(b.Preds) >= 2 {
			sawHeader = true
		}
	}
	if !sawHeader {
		t.Errorf("expected the loop header (2 preds) to survive merging")
	}
}

func TestLiteralIfElsePrunedWithoutGVN(t *testing.T) {
	cfg := build(t, "main with x:int, y:int:\nx = 1\nif 0: {\ny = 1\n} else {\ny = 2\n}\nprint(y)\n")
	Build(cfg)
	for _, b := range ir.AllBlocks(cfg.Main.Entry) {
		if _, ok := b.Terminator.(*ir.IfElse); ok {
			t.Fatalf("a literal-0 condition should have been pruned to a jump, still branching in %s", b.Label)
		}
	}
}

// Pruning a literal if/else leaves the entry block ending in an
// unconditional jump to the surviving arm, which now has exactly one
// predecessor (entry) — the merge step should immediately splice that
// arm's body into entry, shrinking the block count.
func TestPruneThenMergeShrinksBlockCount(t *testing.T) {
	cfg := build(t, "main with x:int, y:int:\nx = 1\nif 0: {\ny = 1\n} else {\ny = 2\n}\nprint(y)\n")
	before := len(ir.AllBlocks(cfg.Main.Entry))
	Build(cfg)
	after := len(ir.AllBlocks(cfg.Main.Entry))
	if after >= before {
		t.Errorf("expected prune+merge to reduce block count, before=%d after=%d", before, after)
	}
	var sawY2 bool
	for _, p := range cfg.Main.Entry.Primitives {
		if c, ok := p.(*ir.Copy); ok && c.Dst == "%y" && c.Src == "2" {
			sawY2 = true
		}
	}
	if !sawY2 {
		t.Errorf("expected the surviving else arm's assignment to be spliced into entry")
	}
}
