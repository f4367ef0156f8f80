package dom

import (
	"testing"

	"github.com/aclements/sigilc/internal/ir"
)

// diamond builds entry -> {left, right} -> end, with end reached as a
// back-edge from left (owned by right) — the same shape as the CS252
// "if" fixture internal/graph tests against, expressed as blocks.
func diamond() *ir.BasicBlock {
	entry := ir.NewBlock("entry")
	left := ir.NewBlock("left")
	right := ir.NewBlock("right")
	end := ir.NewBlock("end")

	entry.Terminator = &ir.IfElse{Cond: "%c", IfLabel: "left", ElseLabel: "right"}
	entry.AddOwnedChild(left)
	entry.AddOwnedChild(right)

	left.Terminator = &ir.Jump{Label: "end"}
	left.AddBackEdge(end)

	right.Terminator = &ir.Jump{Label: "end"}
	right.AddOwnedChild(end)

	end.Terminator = &ir.Ret{Val: "%x"}

	return entry
}

func TestBuildAgreesWithIDomOf(t *testing.T) {
	info := Build(diamond())

	for _, label := range info.Labels {
		want := info.IDomOf(label)
		got := info.IDom[idxOf(info, label)]
		if want != got {
			t.Errorf("label %s: IDomOf=%q, CHK IDom=%q", label, want, got)
		}
	}
}

func TestEndDominanceFrontierEmpty(t *testing.T) {
	info := Build(diamond())
	// end postdominates nothing here and is itself the join point;
	// its own dominance frontier must be empty since it has no
	// successors.
	for i, l := range info.Labels {
		if l == "end" {
			if len(info.DF[i]) != 0 {
				t.Errorf("end: want empty DF, got %v", info.DF[i])
			}
		}
	}
}

func TestLeftAndRightDominateOnlyThemselves(t *testing.T) {
	info := Build(diamond())
	if !info.Dominates("entry", "left") {
		t.Error("entry should dominate left")
	}
	if info.Dominates("left", "end") {
		t.Error("left should not dominate end: right also reaches it")
	}
	if !info.Dominates("entry", "end") {
		t.Error("entry should dominate end")
	}
}

func idxOf(info *Info, label string) int {
	for i, l := range info.Labels {
		if l == label {
			return i
		}
	}
	return -1
}
