package ir

import (
	"strings"
	"testing"
)

// buildDiamond returns a 4-block method: entry branches on %c into
// left/right, both of which join at end via a phi.
func buildDiamond() *MethodCFG {
	entry := NewBlock("entry")
	left := NewBlock("left")
	right := NewBlock("right")
	end := NewBlock("end")

	entry.Append(&Copy{Dst: ToRegister("1"), Src: "0"})
	entry.Terminator = &IfElse{Cond: ToRegister("c"), IfLabel: "left", ElseLabel: "right"}
	entry.AddOwnedChild(left)
	entry.AddOwnedChild(right)

	left.Append(&Arith{Dst: ToRegister("2"), Op1: ToRegister("1"), Op: Add, Op2: "1"})
	left.Terminator = &Jump{Label: "end"}
	left.AddBackEdge(end)

	right.Append(&Arith{Dst: ToRegister("3"), Op1: ToRegister("1"), Op: Sub, Op2: "1"})
	right.Terminator = &Jump{Label: "end"}
	right.AddOwnedChild(end)

	end.Append(&Phi{Dst: ToRegister("4"), Args: []PhiArg{
		{Pred: "left", Val: ToRegister("2")},
		{Pred: "right", Val: ToRegister("3")},
	}})
	end.Terminator = &Ret{Val: ToRegister("4")}

	return &MethodCFG{Name: "test", Entry: entry}
}

func printMethod(m *MethodCFG) string {
	var sb strings.Builder
	fprintMethod(&sb, m.Name, m)
	return sb.String()
}

func TestIdentityRoundTrip(t *testing.T) {
	m := buildDiamond()
	want := printMethod(m)

	d := &Driver{Rewriter: Identity{}}
	got := printMethod(d.Method(m))

	if got != want {
		t.Errorf("identity rewrite changed output:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestIdentityDeepCopiesSlices(t *testing.T) {
	m := buildDiamond()
	d := &Driver{Rewriter: Identity{}}
	copy := d.Method(m)

	// Mutating the copy's phi args must not affect the source.
	end := copy.Entry.Owned[0].BackEdges[0]
	if end.Label != "end" {
		t.Fatalf("unexpected block reached: %s", end.Label)
	}
	phi := end.Primitives[0].(*Phi)
	phi.Args[0].Val = "999"

	origEnd := m.Entry.Owned[0].BackEdges[0]
	origPhi := origEnd.Primitives[0].(*Phi)
	if origPhi.Args[0].Val == "999" {
		t.Errorf("mutating copy leaked into source")
	}
}
