// Package cfgbuild lowers a type-checked internal/ast.Program into an
// internal/ir.ProgramCFG, grounded on the original compiler's
// CFGBuilder visitor: an input stack carrying the destination each
// expression should bind its result to (or a "fresh temporary"
// sentinel), and null/tag checks lowered as a two-successor split of
// the current block. Go has no visitor double-dispatch, so the
// traversal here is ordinary recursion over ast.Expr/ast.Stmt, with
// the destination threaded as a parameter instead of an explicit
// stack.
package cfgbuild

import (
	"fmt"

	"github.com/aclements/sigilc/internal/ast"
	"github.com/aclements/sigilc/internal/ir"
	"github.com/aclements/sigilc/internal/symtab"
)

// freshTemp is the destination sentinel meaning "synthesize a new
// temporary register for this value."
const freshTemp ir.Operand = ""

type value struct {
	op  ir.Operand
	typ string
}

// builder lowers one program. Offsets (vtable slots, field slots) are
// computed once up front over the whole class set; everything else is
// a single deterministic pass over each method body in turn.
type builder struct {
	prog *ir.ProgramCFG

	vtableSlot *symtab.OffsetTable // method name -> global slot, first-seen order

	counters map[string]int
	curBlock *ir.BasicBlock
	curClass string // "" while lowering main
}

// Build lowers p, which must already have passed internal/typecheck.Check,
// into its control-flow-graph form.
func Build(p *ast.Program) (*ir.ProgramCFG, error) {
	b := &builder{
		prog:       ir.NewProgramCFG(),
		vtableSlot: symtab.NewOffsetTable(),
		counters:   map[string]int{},
	}
	b.assignVtableSlots(p)

	for _, c := range p.Classes {
		cfg := ir.NewClassCFG(c.Name, "")
		for _, f := range c.Fields {
			cfg.AddField(f.Name, f.Type)
		}
		b.prog.AddClass(cfg)
	}
	for _, c := range p.Classes {
		if err := b.buildClass(c); err != nil {
			return nil, err
		}
	}
	b.buildMain(p)
	return b.prog, nil
}

// assignVtableSlots assigns every method name a vtable slot in
// first-seen order across all classes (spec.md §4.2): two classes
// that both declare a method of the same name share its slot.
func (b *builder) assignVtableSlots(p *ast.Program) {
	for _, c := range p.Classes {
		for _, m := range c.Methods {
			b.vtableSlot.Slot(m.Name)
		}
	}
}

func (b *builder) resetMethod() { b.counters = map[string]int{} }

// createName returns prefix followed by a counter that starts at 1
// and increments every call, independently per prefix. Label
// generation uses prefix "l"; temporaries use "". Counters are reset
// at the start of every method (spec.md §5's "rebased at method
// entry" correction of the original's program-global counters).
func (b *builder) createName(prefix string) string {
	n := b.counters[prefix]
	if n == 0 {
		n = 1
	}
	b.counters[prefix] = n + 1
	return fmt.Sprintf("%s%d", prefix, n)
}

func (b *builder) createTemp() ir.Operand { return ir.ToRegister(b.createName("")) }
func (b *builder) createLabel() string    { return b.createName("l") }

func numOperand(n int) ir.Operand { return ir.Operand(fmt.Sprintf("%d", n)) }

// failLabel returns the block-label prefix a check failing with kind
// is named from.
func failLabel(kind ir.FailKind) string {
	switch kind {
	case ir.NotAPointer:
		return "badpointer"
	case ir.NotANumber:
		return "badnumber"
	case ir.NoSuchField:
		return "badfield"
	case ir.NoSuchMethod:
		return "badmethod"
	}
	panic("cfgbuild: bad fail kind " + string(kind))
}

// nonzeroCheck lowers a null/tag check on reg (spec.md §4.2): it
// splits the current block into a fresh failure block (terminated by
// fail(kind)) and a fresh success block, both owned by the current
// block, then makes the success block current.
func (b *builder) nonzeroCheck(reg ir.Operand, kind ir.FailKind) {
	failBlock := ir.NewBlock(b.createName(failLabel(kind)))
	failBlock.Terminator = &ir.Fail{Kind: kind}
	okBlock := ir.NewBlock(b.createLabel())
	b.curBlock.AddOwnedChild(okBlock)
	b.curBlock.AddOwnedChild(failBlock)
	b.curBlock.Terminator = &ir.IfElse{Cond: reg, IfLabel: okBlock.Label, ElseLabel: failBlock.Label}
	b.curBlock = okBlock
}

// field returns field's slot within class (fields occupy slots 1.., slot
// 0 is always the vtable pointer) and its declared type.
func (b *builder) field(class, field string) (int, string) {
	cfg := b.prog.Classes[class]
	return cfg.FieldIndex[field] + 1, cfg.FieldType[field]
}

func (b *builder) numFields(class string) int {
	return len(b.prog.Classes[class].FieldOrder)
}

// satisfy returns the register an expression should bind its result
// to: dst if the caller requested one, otherwise a fresh temporary.
func (b *builder) satisfy(dst ir.Operand) ir.Operand {
	if dst == freshTemp {
		return b.createTemp()
	}
	return dst
}

// lowerExpr lowers e, emitting primitives into b.curBlock, and returns
// the operand holding its value together with its static type. dst
// requests a destination register for expressions that bind a result
// (freshTemp lets the expression pick); expressions that merely stand
// for an existing value (literals, variables, this, null) ignore dst,
// matching the original's "retValue != destRegister" convention that
// leaves assignment to the caller.
func (b *builder) lowerExpr(e ast.Expr, dst ir.Operand) value {
	switch e := e.(type) {
	case *ast.IntLit:
		return value{numOperand(int(e.Val)), "int"}

	case *ast.Ident:
		return value{ir.ToRegister(e.Name), e.Type()}

	case *ast.This:
		return value{ir.ToRegister("this"), b.curClass}

	case *ast.Null:
		return value{ir.Operand("0"), e.Class}

	case *ast.Arith:
		v1 := b.lowerExpr(e.X, freshTemp)
		v2 := b.lowerExpr(e.Y, freshTemp)
		out := b.satisfy(dst)
		b.curBlock.Append(&ir.Arith{Dst: out, Op1: v1.op, Op: ir.ArithOp(e.Op), Op2: v2.op})
		return value{out, "int"}

	case *ast.Call:
		args := make([]ir.Operand, len(e.Args))
		for i, a := range e.Args {
			args[i] = b.lowerExpr(a, freshTemp).op
		}
		recv := b.lowerExpr(e.Recv, freshTemp)
		b.nonzeroCheck(recv.op, ir.NotAPointer)
		vtbl := b.createTemp()
		b.curBlock.Append(&ir.Load{Dst: vtbl, Addr: recv.op})
		methodAddr := b.createTemp()
		b.curBlock.Append(&ir.GetElt{Dst: methodAddr, Base: vtbl, Index: numOperand(b.vtableSlot.Slot(e.Method))})
		out := b.satisfy(dst)
		b.curBlock.Append(&ir.Call{Dst: out, Code: methodAddr, Recv: recv.op, Args: args})
		return value{out, e.Type()}

	case *ast.FieldRead:
		base := b.lowerExpr(e.Recv, freshTemp)
		b.nonzeroCheck(base.op, ir.NotAPointer)
		idx, _ := b.field(base.typ, e.Field)
		out := b.satisfy(dst)
		b.curBlock.Append(&ir.GetElt{Dst: out, Base: base.op, Index: numOperand(idx)})
		return value{out, e.Type()}

	case *ast.New:
		out := b.satisfy(dst)
		b.curBlock.Append(&ir.Alloc{Dst: out, Class: e.Class, Size: numOperand(1 + b.numFields(e.Class))})
		b.curBlock.Append(&ir.Store{Addr: out, Val: ir.ToGlobal(ir.ToVtableName(e.Class))})
		for i := 0; i < b.numFields(e.Class); i++ {
			b.curBlock.Append(&ir.SetElt{Base: out, Index: numOperand(i + 1), Val: ir.Operand("0")})
		}
		return value{out, e.Class}
	}
	panic(fmt.Sprintf("cfgbuild: unhandled expression %T", e))
}

// stmts lowers a statement list, stopping early once the current
// block has been marked unreachable (a return, or an exhausted
// if/else, already closed it).
func (b *builder) stmts(list []ast.Stmt) {
	for _, s := range list {
		if b.curBlock.Unreachable {
			break
		}
		b.stmt(s)
	}
}

func (b *builder) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Assign:
		destReg := ir.ToRegister(s.Var)
		v := b.lowerExpr(s.Val, destReg)
		if v.op != destReg {
			b.curBlock.Append(&ir.Copy{Dst: destReg, Src: v.op})
		}

	case *ast.DontCare:
		b.lowerExpr(s.Val, freshTemp)

	case *ast.FieldUpdate:
		base := b.lowerExpr(s.Recv, freshTemp)
		b.nonzeroCheck(base.op, ir.NotAPointer)
		idx, _ := b.field(base.typ, s.Field)
		val := b.lowerExpr(s.Val, freshTemp)
		b.curBlock.Append(&ir.SetElt{Base: base.op, Index: numOperand(idx), Val: val.op})

	case *ast.IfElse:
		b.ifElse(s)

	case *ast.IfOnly:
		b.ifOnly(s)

	case *ast.While:
		b.while(s)

	case *ast.Return:
		v := b.lowerExpr(s.Val, freshTemp)
		b.curBlock.Terminator = &ir.Ret{Val: v.op}
		next := ir.NewBlock("unreachable")
		next.Unreachable = true
		b.curBlock = next

	case *ast.Print:
		v := b.lowerExpr(s.Val, freshTemp)
		b.curBlock.Append(&ir.Print{Val: v.op})

	default:
		panic(fmt.Sprintf("cfgbuild: unhandled statement %T", s))
	}
}

// ifElse lowers `if cond: then else: else`. Both arms are lowered into
// their own owned block; a join block is created and owned by
// whichever arm falls through first, with the other arm linked to it
// by a non-owning back-edge. If both arms end unreachable (each ends
// in a return), the join block itself is marked unreachable and owned
// by no one.
func (b *builder) ifElse(s *ast.IfElse) {
	cond := b.lowerExpr(s.Cond, freshTemp)
	trueBlock := ir.NewBlock(b.createLabel())
	falseBlock := ir.NewBlock(b.createLabel())
	start := b.curBlock
	start.AddOwnedChild(trueBlock)
	start.AddOwnedChild(falseBlock)
	start.Terminator = &ir.IfElse{Cond: cond.op, IfLabel: trueBlock.Label, ElseLabel: falseBlock.Label}

	b.curBlock = trueBlock
	b.stmts(s.Then)
	lastTrue := b.curBlock

	b.curBlock = falseBlock
	b.stmts(s.Else)
	lastFalse := b.curBlock

	final := ir.NewBlock(b.createLabel())
	finalOwned := false
	if !lastFalse.Unreachable {
		lastFalse.AddOwnedChild(final)
		finalOwned = true
		lastFalse.Terminator = &ir.Jump{Label: final.Label}
	}
	if !lastTrue.Unreachable {
		if finalOwned {
			lastTrue.AddBackEdge(final)
		} else {
			lastTrue.AddOwnedChild(final)
			finalOwned = true
		}
		lastTrue.Terminator = &ir.Jump{Label: final.Label}
	}
	b.curBlock = final
	if !finalOwned {
		final.Unreachable = true
	}
}

// ifOnly lowers `ifonly cond: body`. The join point is the existing
// false-label block, the straight-line continuation; the body block
// reaches it (when reachable) through a non-owning back-edge, since
// the current block already owns it as the if/else's false successor.
func (b *builder) ifOnly(s *ast.IfOnly) {
	cond := b.lowerExpr(s.Cond, freshTemp)
	trueBlock := ir.NewBlock(b.createLabel())
	falseBlock := ir.NewBlock(b.createLabel())
	start := b.curBlock
	start.AddOwnedChild(trueBlock)
	start.AddOwnedChild(falseBlock)
	start.Terminator = &ir.IfElse{Cond: cond.op, IfLabel: trueBlock.Label, ElseLabel: falseBlock.Label}

	b.curBlock = trueBlock
	b.stmts(s.Body)
	if !b.curBlock.Unreachable {
		b.curBlock.Terminator = &ir.Jump{Label: falseBlock.Label}
		b.curBlock.AddBackEdge(falseBlock)
	}
	b.curBlock = falseBlock
}

// while lowers `while cond: body` as a jump to a dedicated condition
// block (so the loop can be re-entered), an if/else on cond, and a
// back-edge from the body's fallthrough to the condition block.
func (b *builder) while(s *ast.While) {
	condBlock := ir.NewBlock(b.createLabel())
	b.curBlock.AddOwnedChild(condBlock)
	b.curBlock.Terminator = &ir.Jump{Label: condBlock.Label}
	b.curBlock = condBlock

	cond := b.lowerExpr(s.Cond, freshTemp)
	trueBlock := ir.NewBlock(b.createLabel())
	falseBlock := ir.NewBlock(b.createLabel())
	condBlock.AddOwnedChild(trueBlock)
	condBlock.AddOwnedChild(falseBlock)
	condBlock.Terminator = &ir.IfElse{Cond: cond.op, IfLabel: trueBlock.Label, ElseLabel: falseBlock.Label}

	b.curBlock = trueBlock
	b.stmts(s.Body)
	if !b.curBlock.Unreachable {
		b.curBlock.Terminator = &ir.Jump{Label: condBlock.Label}
		b.curBlock.AddBackEdge(condBlock)
	}
	b.curBlock = falseBlock
}

func (b *builder) buildClass(c *ast.Class) error {
	b.curClass = c.Name
	cfg := b.prog.Classes[c.Name]
	for _, m := range c.Methods {
		mcfg := b.buildMethod(c, m)
		cfg.AddMethod(m.Name, b.vtableSlot.Slot(m.Name), mcfg)
	}
	return nil
}

func (b *builder) buildMethod(c *ast.Class, m *ast.Method) *ir.MethodCFG {
	b.resetMethod()
	entry := ir.NewBlock(ir.ToMethodName(c.Name, m.Name))
	params := make([]ir.Operand, 0, len(m.Params)+1)
	params = append(params, ir.ToRegister("this"))
	for _, p := range m.Params {
		params = append(params, ir.ToRegister(p.Name))
	}
	entry.Params = params
	b.curBlock = entry

	for _, l := range m.Locals {
		b.curBlock.Append(&ir.Copy{Dst: ir.ToRegister(l.Name), Src: ir.Operand("0")})
	}
	b.stmts(m.Body)

	return &ir.MethodCFG{
		Name:    ir.ToMethodName(c.Name, m.Name),
		Params:  params,
		Entry:   entry,
		RetType: m.ReturnType,
	}
}

// buildMain lowers the program's main block. Unlike a class method,
// main has no receiver and, if every statement falls through, returns
// 0 by default.
func (b *builder) buildMain(p *ast.Program) {
	b.curClass = ""
	b.resetMethod()
	entry := ir.NewBlock("main")
	b.curBlock = entry

	for _, l := range p.MainLocals {
		b.curBlock.Append(&ir.Copy{Dst: ir.ToRegister(l.Name), Src: ir.Operand("0")})
	}
	b.stmts(p.MainBody)
	if b.curBlock.Terminator == nil {
		b.curBlock.Terminator = &ir.Ret{Val: ir.Operand("0")}
	}

	b.prog.Main = &ir.MethodCFG{Name: "main", Entry: entry, IsMain: true, RetType: "int"}
}
