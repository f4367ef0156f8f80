package ir

import "fmt"

// Primitive is one non-terminating IR statement. Every concrete type
// in this file implements it; the set is closed, so callers are
// expected to type-switch rather than add new implementations.
type Primitive interface {
	fmt.Stringer
	isPrimitive()
}

// Comment is a no-op annotation carried through every pass unchanged.
// CFGBuilder does not emit any; passes leave existing comments alone.
type Comment struct{ Text string }

// Copy assigns Src to Dst without transformation.
type Copy struct{ Dst, Src Operand }

// Arith computes Dst = Op1 Op Op2 under wraparound 32-bit arithmetic.
type Arith struct {
	Dst, Op1, Op2 Operand
	Op            ArithOp
}

// Call invokes the method whose code address is held in Code, passing
// Recv as the implicit receiver and Args as the explicit arguments,
// and binds the result to Dst.
type Call struct {
	Dst, Code, Recv Operand
	Args            []Operand
}

// PhiArg is one (predecessor label, value) pair of a Phi.
type PhiArg struct {
	Pred string
	Val  Operand
}

// Phi binds Dst to whichever PhiArg.Val corresponds to the block
// control actually arrived from.
type Phi struct {
	Dst  Operand
	Args []PhiArg
}

// Alloc binds Dst to a freshly allocated heap object of Size words
// (the vtable slot plus one word per field of Class).
type Alloc struct {
	Dst   Operand
	Class string
	Size  Operand
}

// Print writes Val, a number, to standard output followed by a
// newline.
type Print struct{ Val Operand }

// GetElt reads the field at Index (a field-table slot number,
// possibly stored as a constant or a register holding one) out of the
// object referenced by Base, and binds it to Dst.
type GetElt struct{ Dst, Base, Index Operand }

// SetElt writes Val into the field at Index of the object referenced
// by Base.
type SetElt struct{ Base, Index, Val Operand }

// Load reads the word at Addr (typically a vtable pointer read out of
// an object's slot 0) and binds it to Dst.
type Load struct{ Dst, Addr Operand }

// Store writes Val to the word at Addr. CFGBuilder emits this only
// while initializing an object's vtable slot during `new`.
type Store struct{ Addr, Val Operand }

// LoadVec packs the scalar operands Vals into the vector register
// Dst, one lane per value. Introduced only by internal/slp.
type LoadVec struct {
	Dst  Operand
	Vals []Operand
}

// StoreVec is LoadVec's write counterpart.
type StoreVec struct {
	Dsts []Operand
	Vec  Operand
}

// AddVec, SubVec, MulVec, DivVec are the vectorized forms of Arith,
// operating lane-wise across the packed operands. Kept as distinct
// types (mirroring Arith's single Op field would also work, but the
// original vectorizer this package is adapted from gives each its own
// node so a pass can type-switch on "is this vector arithmetic" without
// inspecting an operator byte).
type AddVec struct {
	Dst  Operand
	Op1s []Operand
	Op2s []Operand
}
type SubVec struct {
	Dst  Operand
	Op1s []Operand
	Op2s []Operand
}
type MulVec struct {
	Dst  Operand
	Op1s []Operand
	Op2s []Operand
}
type DivVec struct {
	Dst  Operand
	Op1s []Operand
	Op2s []Operand
}

func (*Comment) isPrimitive()  {}
func (*Copy) isPrimitive()     {}
func (*Arith) isPrimitive()    {}
func (*Call) isPrimitive()     {}
func (*Phi) isPrimitive()      {}
func (*Alloc) isPrimitive()    {}
func (*Print) isPrimitive()    {}
func (*GetElt) isPrimitive()   {}
func (*SetElt) isPrimitive()   {}
func (*Load) isPrimitive()     {}
func (*Store) isPrimitive()    {}
func (*LoadVec) isPrimitive()  {}
func (*StoreVec) isPrimitive() {}
func (*AddVec) isPrimitive()   {}
func (*SubVec) isPrimitive()   {}
func (*MulVec) isPrimitive()   {}
func (*DivVec) isPrimitive()   {}

// Dst returns the destination operand of primitives that bind one, and
// ("", false) for those that don't (Print, SetElt, Store, StoreVec,
// Comment).
func Dst(p Primitive) (Operand, bool) {
	switch p := p.(type) {
	case *Copy:
		return p.Dst, true
	case *Arith:
		return p.Dst, true
	case *Call:
		return p.Dst, true
	case *Phi:
		return p.Dst, true
	case *Alloc:
		return p.Dst, true
	case *GetElt:
		return p.Dst, true
	case *Load:
		return p.Dst, true
	case *LoadVec:
		return p.Dst, true
	case *AddVec:
		return p.Dst, true
	case *SubVec:
		return p.Dst, true
	case *MulVec:
		return p.Dst, true
	case *DivVec:
		return p.Dst, true
	default:
		return "", false
	}
}

// Terminator is the single control-transferring statement that closes
// every BasicBlock.
type Terminator interface {
	fmt.Stringer
	isTerminator()
	// Targets returns the labels this terminator may transfer
	// control to, in a stable order.
	Targets() []string
}

// Ret returns Val from the enclosing method.
type Ret struct{ Val Operand }

// Jump transfers control unconditionally to Label.
type Jump struct{ Label string }

// IfElse transfers control to IfLabel when Cond is non-zero, and to
// ElseLabel otherwise. CFGBuilder always builds checks with the
// success path as IfLabel and the failure path as ElseLabel; GVN's
// tag-check memoization relies on that convention.
type IfElse struct {
	Cond               Operand
	IfLabel, ElseLabel string
}

// Fail terminates the program with a runtime error of the given kind.
type Fail struct{ Kind FailKind }

func (*Ret) isTerminator()    {}
func (*Jump) isTerminator()   {}
func (*IfElse) isTerminator() {}
func (*Fail) isTerminator()   {}

func (t *Ret) Targets() []string    { return nil }
func (t *Jump) Targets() []string   { return []string{t.Label} }
func (t *IfElse) Targets() []string { return []string{t.IfLabel, t.ElseLabel} }
func (t *Fail) Targets() []string   { return nil }
