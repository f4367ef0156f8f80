// Package fold implements the constant/arithmetic folder (spec.md
// §4.6), grounded on the original compiler's ArithmeticOptimizer.h: a
// structure-preserving pass that substitutes any operand already known
// to be a folded literal ("adjustTemp" in the original), evaluates
// arith primitives whose operands are both numeric literals, and — the
// one place a statement disappears — elides an assignment to a
// temporary register once its value is known to be a literal,
// recording the substitution for every later read of that temporary.
// Variable-register destinations are never elided, since they may
// still be observed through SSA versioning at a later phi.
package fold

import (
	"strconv"

	"github.com/aclements/sigilc/internal/ir"
)

// Build folds every method of prog in place.
func Build(prog *ir.ProgramCFG) {
	for _, m := range prog.Methods() {
		if m.Entry == nil {
			continue
		}
		f := &folder{tempToConst: map[ir.Operand]ir.Operand{}}
		d := &ir.Driver{Rewriter: f}
		rebuilt := d.Method(m)
		m.Entry = rebuilt.Entry
		m.Params = rebuilt.Params
	}
}

// folder carries one method's temp->literal substitution map. A fresh
// folder is used per method (see Build), matching the original's
// "wipe the map on each method" MethodCFG visit.
type folder struct {
	ir.Identity
	tempToConst map[ir.Operand]ir.Operand
}

// subst replaces op with its known literal value if op is a temporary
// this pass has already folded to a constant; otherwise op passes
// through unchanged.
func (f *folder) subst(op ir.Operand) ir.Operand {
	if lit, ok := f.tempToConst[op]; ok {
		return lit
	}
	return op
}

func (f *folder) substAll(ops []ir.Operand) []ir.Operand {
	out := make([]ir.Operand, len(ops))
	for i, o := range ops {
		out[i] = f.subst(o)
	}
	return out
}

// record decides whether dst = rhs can be elided: if dst is a compiler
// temporary and rhs is now a numeric literal, the value is remembered
// for later reads and the statement disappears; otherwise prim is
// kept (including every assignment to a variable register, which must
// survive so SSA versions of it remain observable).
func (f *folder) record(dst, rhs ir.Operand, prim ir.Primitive) ir.Primitive {
	if ir.IsTemporary(dst) && ir.IsNumber(rhs) {
		f.tempToConst[dst] = rhs
		return nil
	}
	return prim
}

func (f *folder) RewriteCopy(p *ir.Copy) ir.Primitive {
	src := f.subst(p.Src)
	return f.record(p.Dst, src, &ir.Copy{Dst: p.Dst, Src: src})
}

// RewriteArith evaluates p under 32-bit unsigned wraparound semantics
// when both operands are numeric literals, except division by a
// literal zero: that is kept as a live arith statement so the runtime
// trap it would cause is preserved, per spec.md §4.6's explicit
// carve-out over the original's unconditional fold.
func (f *folder) RewriteArith(p *ir.Arith) ir.Primitive {
	op1, op2 := f.subst(p.Op1), f.subst(p.Op2)
	if ir.IsNumber(op1) && ir.IsNumber(op2) && !(p.Op == ir.Div && op2 == "0") {
		a, _ := strconv.ParseUint(string(op1), 10, 32)
		b, _ := strconv.ParseUint(string(op2), 10, 32)
		result := p.Op.Eval(uint32(a), uint32(b))
		lit := ir.Operand(strconv.FormatUint(uint64(result), 10))
		return f.record(p.Dst, lit, &ir.Copy{Dst: p.Dst, Src: lit})
	}
	return &ir.Arith{Dst: p.Dst, Op1: op1, Op: p.Op, Op2: op2}
}

func (f *folder) RewriteCall(p *ir.Call) ir.Primitive {
	return &ir.Call{
		Dst:  p.Dst,
		Code: f.subst(p.Code),
		Recv: f.subst(p.Recv),
		Args: f.substAll(p.Args),
	}
}

func (f *folder) RewritePhi(p *ir.Phi) ir.Primitive {
	args := make([]ir.PhiArg, len(p.Args))
	for i, a := range p.Args {
		args[i] = ir.PhiArg{Pred: a.Pred, Val: f.subst(a.Val)}
	}
	return &ir.Phi{Dst: p.Dst, Args: args}
}

func (f *folder) RewritePrint(p *ir.Print) ir.Primitive {
	return &ir.Print{Val: f.subst(p.Val)}
}

func (f *folder) RewriteGetElt(p *ir.GetElt) ir.Primitive {
	return &ir.GetElt{Dst: p.Dst, Base: f.subst(p.Base), Index: f.subst(p.Index)}
}

func (f *folder) RewriteSetElt(p *ir.SetElt) ir.Primitive {
	return &ir.SetElt{Base: f.subst(p.Base), Index: f.subst(p.Index), Val: f.subst(p.Val)}
}

func (f *folder) RewriteLoad(p *ir.Load) ir.Primitive {
	return &ir.Load{Dst: p.Dst, Addr: f.subst(p.Addr)}
}

func (f *folder) RewriteStore(p *ir.Store) ir.Primitive {
	return &ir.Store{Addr: f.subst(p.Addr), Val: f.subst(p.Val)}
}

func (f *folder) RewriteLoadVec(p *ir.LoadVec) ir.Primitive {
	return &ir.LoadVec{Dst: p.Dst, Vals: f.substAll(p.Vals)}
}

func (f *folder) RewriteStoreVec(p *ir.StoreVec) ir.Primitive {
	return &ir.StoreVec{Dsts: append([]ir.Operand(nil), p.Dsts...), Vec: f.subst(p.Vec)}
}

func (f *folder) RewriteAddVec(p *ir.AddVec) ir.Primitive {
	return &ir.AddVec{Dst: p.Dst, Op1s: f.substAll(p.Op1s), Op2s: f.substAll(p.Op2s)}
}

func (f *folder) RewriteSubVec(p *ir.SubVec) ir.Primitive {
	return &ir.SubVec{Dst: p.Dst, Op1s: f.substAll(p.Op1s), Op2s: f.substAll(p.Op2s)}
}

func (f *folder) RewriteMulVec(p *ir.MulVec) ir.Primitive {
	return &ir.MulVec{Dst: p.Dst, Op1s: f.substAll(p.Op1s), Op2s: f.substAll(p.Op2s)}
}

func (f *folder) RewriteDivVec(p *ir.DivVec) ir.Primitive {
	return &ir.DivVec{Dst: p.Dst, Op1s: f.substAll(p.Op1s), Op2s: f.substAll(p.Op2s)}
}

func (f *folder) RewriteTerminator(t ir.Terminator) ir.Terminator {
	switch t := t.(type) {
	case *ir.Ret:
		return &ir.Ret{Val: f.subst(t.Val)}
	case *ir.Jump:
		c := *t
		return &c
	case *ir.IfElse:
		return &ir.IfElse{Cond: f.subst(t.Cond), IfLabel: t.IfLabel, ElseLabel: t.ElseLabel}
	case *ir.Fail:
		c := *t
		return &c
	}
	panic("fold: unhandled terminator")
}
