package ir

import (
	"fmt"
	"strings"
)

func joinOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = string(o)
	}
	return strings.Join(parts, ", ")
}

func (p *Comment) String() string { return "# " + p.Text }
func (p *Copy) String() string    { return fmt.Sprintf("%s = %s", p.Dst, p.Src) }
func (p *Arith) String() string {
	return fmt.Sprintf("%s = %s %c %s", p.Dst, p.Op1, byte(p.Op), p.Op2)
}
func (p *Call) String() string {
	return fmt.Sprintf("%s = call(%s)", p.Dst, joinOperands(append([]Operand{p.Code, p.Recv}, p.Args...)))
}
func (p *Phi) String() string {
	parts := make([]string, 0, len(p.Args)*2)
	for _, a := range p.Args {
		parts = append(parts, a.Pred, string(a.Val))
	}
	return fmt.Sprintf("%s = phi(%s)", p.Dst, strings.Join(parts, ", "))
}
func (p *Alloc) String() string { return fmt.Sprintf("%s = alloc(%s)", p.Dst, p.Size) }
func (p *Print) String() string { return fmt.Sprintf("print(%s)", p.Val) }
func (p *GetElt) String() string {
	return fmt.Sprintf("%s = getelt(%s, %s)", p.Dst, p.Base, p.Index)
}
func (p *SetElt) String() string { return fmt.Sprintf("setelt(%s, %s, %s)", p.Base, p.Index, p.Val) }
func (p *Load) String() string   { return fmt.Sprintf("%s = load(%s)", p.Dst, p.Addr) }
func (p *Store) String() string  { return fmt.Sprintf("store(%s, %s)", p.Addr, p.Val) }
func (p *LoadVec) String() string {
	return fmt.Sprintf("%s = load_vec(%s)", p.Dst, joinOperands(p.Vals))
}
func (p *StoreVec) String() string {
	return fmt.Sprintf("store_vec(%s, %s)", joinOperands(p.Dsts), p.Vec)
}
func (p *AddVec) String() string { return vecString(p.Dst, "add_vec", p.Op1s, p.Op2s) }
func (p *SubVec) String() string { return vecString(p.Dst, "sub_vec", p.Op1s, p.Op2s) }
func (p *MulVec) String() string { return vecString(p.Dst, "mul_vec", p.Op1s, p.Op2s) }
func (p *DivVec) String() string { return vecString(p.Dst, "div_vec", p.Op1s, p.Op2s) }

func vecString(dst Operand, name string, op1s, op2s []Operand) string {
	return fmt.Sprintf("%s = %s(%s, %s)", dst, name, joinOperands(op1s), joinOperands(op2s))
}

func (t *Ret) String() string  { return fmt.Sprintf("ret %s", t.Val) }
func (t *Jump) String() string { return fmt.Sprintf("jump %s", t.Label) }
func (t *IfElse) String() string {
	return fmt.Sprintf("if %s then %s else %s", t.Cond, t.IfLabel, t.ElseLabel)
}
func (t *Fail) String() string { return fmt.Sprintf("fail %s", t.Kind) }

// FprintProgram writes p in the textual form described by §6.1: a
// data: section listing every class's vtable array, then a code:
// section listing every class's methods in owned-subtree order,
// followed last by main.
func FprintProgram(w *strings.Builder, p *ProgramCFG) {
	w.WriteString("data:\n")
	for _, name := range p.ClassOrder {
		c := p.Classes[name]
		fmt.Fprintf(w, "  global array %s: { %s }\n", ToVtableName(c.Name), strings.Join(c.Vtable, ", "))
	}
	w.WriteString("code:\n")
	for _, name := range p.ClassOrder {
		c := p.Classes[name]
		for _, mname := range c.MethodOrder {
			fprintMethod(w, ToMethodName(name, mname), c.Methods[mname])
		}
	}
	if p.Main != nil {
		fprintMethod(w, "main", p.Main)
	}
}

func fprintMethod(w *strings.Builder, name string, m *MethodCFG) {
	fmt.Fprintf(w, "%s(%s):\n", name, joinOperands(m.Params))
	WalkOwned(m.Entry, func(b *BasicBlock) {
		fprintBlock(w, b)
	})
}

func fprintBlock(w *strings.Builder, b *BasicBlock) {
	fmt.Fprintf(w, "%s(%s):\n", b.Label, joinOperands(b.Params))
	for _, p := range b.Primitives {
		fmt.Fprintf(w, "  %s\n", p)
	}
	if b.Terminator != nil {
		fmt.Fprintf(w, "  %s\n", b.Terminator)
	}
}
