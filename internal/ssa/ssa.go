// Package ssa converts a method's control-flow graph into static
// single assignment form: every user/local variable register is
// split into a family of versioned names ("%x.0", "%x.1", ...), one
// per definition site, with phi primitives synthesized at the blocks
// where control flow reconverges.
//
// Two placement strategies are supported, both grounded on the
// original compiler's SSA optimizers:
//
//   - Pruned (the default) places a phi for a variable only at blocks
//     in the iterated dominance frontier of that variable's
//     assignment sites, adapted from BetterSSAOptimizer.h's
//     Globals/var-to-blocks analysis and DF-driven worklist.
//   - Simple places a phi for every method variable at every block
//     with more than one predecessor, regardless of liveness,
//     adapted from the legacy HW1/src/SSAOptimizer.h. It exists only
//     to back the -simpleSSA compatibility flag; it does strictly
//     more work than Pruned for the same program.
//
// Renaming (Phase B) is shared by both modes: a dominator-tree-ordered
// walk threads a per-variable "current name" table downward, cloning
// it at every recursion so a block's renames are visible to everything
// it dominates and invisible to everything else. Phi arguments are
// filled in as a post-pass, once every block's post-rename state has
// been recorded, by reading each predecessor's final name for the
// variable in question.
package ssa

import (
	"fmt"
	"sort"

	"github.com/aclements/sigilc/internal/dom"
	"github.com/aclements/sigilc/internal/ir"
)

// Mode selects a phi-placement strategy.
type Mode int

const (
	// Pruned places phis only where the dominance frontier requires
	// them (semi-pruned SSA).
	Pruned Mode = iota
	// Simple places a phi for every variable at every join block,
	// matching the -simpleSSA flag's legacy behavior.
	Simple
)

// Build converts every method in prog to SSA form in place.
func Build(prog *ir.ProgramCFG, mode Mode) {
	for _, m := range prog.Methods() {
		Convert(m, mode)
	}
}

// Convert rewrites m's blocks into SSA form in place.
func Convert(m *ir.MethodCFG, mode Mode) {
	if m.Entry == nil {
		return
	}
	blocks := ir.AllBlocks(m.Entry)
	blockMap := make(map[string]*ir.BasicBlock, len(blocks))
	for _, b := range blocks {
		blockMap[b.Label] = b
	}

	info := dom.Build(m.Entry)
	mi := analyze(m, blocks)

	var labelToPhi map[string][]ir.Operand
	switch mode {
	case Simple:
		labelToPhi = placeSimple(blocks, mi)
	default:
		labelToPhi = placePruned(info, mi)
	}

	r := &renamer{
		info:       info,
		blocks:     blockMap,
		labelToPhi: labelToPhi,
		counter:    map[ir.Operand]int{},
		post:       map[string]map[ir.Operand]ir.Operand{},
	}
	r.renameBlock(m.Entry.Label, map[ir.Operand]ir.Operand{})
	r.fillPhiArgs()

	m.Params = m.Entry.Params
}

// methodInfo holds Phase A's results: the method's variable set, the
// blocks that assign each variable, and which variables are "global"
// (read in some block before being locally killed there, i.e. live
// across a block boundary and therefore in need of phi placement).
type methodInfo struct {
	vars        []ir.Operand
	varToBlocks map[ir.Operand]map[string]bool
	globals     map[ir.Operand]bool
}

func analyze(m *ir.MethodCFG, blocks []*ir.BasicBlock) *methodInfo {
	mi := &methodInfo{varToBlocks: map[ir.Operand]map[string]bool{}, globals: map[ir.Operand]bool{}}

	varSet := map[ir.Operand]bool{}
	addVar := func(op ir.Operand) {
		if ir.IsVariable(op) {
			varSet[op] = true
		}
	}
	for _, p := range m.Entry.Params {
		addVar(p)
	}
	for _, b := range blocks {
		for _, p := range b.Primitives {
			if d, ok := ir.Dst(p); ok {
				addVar(d)
			}
			for _, rd := range reads(p) {
				addVar(rd)
			}
		}
		if b.Terminator != nil {
			for _, rd := range termReads(b.Terminator) {
				addVar(rd)
			}
		}
	}
	for v := range varSet {
		mi.vars = append(mi.vars, v)
	}
	sort.Slice(mi.vars, func(i, j int) bool { return mi.vars[i] < mi.vars[j] })

	def := func(v ir.Operand, label string) {
		if mi.varToBlocks[v] == nil {
			mi.varToBlocks[v] = map[string]bool{}
		}
		mi.varToBlocks[v][label] = true
	}
	for _, p := range m.Entry.Params {
		if ir.IsVariable(p) {
			def(p, m.Entry.Label)
		}
	}
	for _, b := range blocks {
		killed := map[ir.Operand]bool{}
		if b.Label == m.Entry.Label {
			for _, p := range m.Entry.Params {
				if ir.IsVariable(p) {
					killed[p] = true
				}
			}
		}
		use := func(v ir.Operand) {
			if !ir.IsVariable(v) {
				return
			}
			if !killed[v] {
				mi.globals[v] = true
			}
		}
		for _, p := range b.Primitives {
			for _, rd := range reads(p) {
				use(rd)
			}
			if d, ok := ir.Dst(p); ok && ir.IsVariable(d) {
				killed[d] = true
				def(d, b.Label)
			}
		}
		if b.Terminator != nil {
			for _, rd := range termReads(b.Terminator) {
				use(rd)
			}
		}
	}
	return mi
}

// placePruned runs the iterated dominance frontier worklist algorithm
// for every global variable: seed the worklist with that variable's
// assignment blocks, and for each block popped, add a phi at every
// block in its dominance frontier that doesn't already have one for
// this variable, pushing newly phi'd blocks back onto the worklist.
func placePruned(info *dom.Info, mi *methodInfo) map[string][]ir.Operand {
	labelToPhi := map[string][]ir.Operand{}
	for _, v := range mi.vars {
		if !mi.globals[v] {
			continue
		}
		placed := map[string]bool{}
		everOn := map[string]bool{}
		var worklist []string
		var seeds []string
		for b := range mi.varToBlocks[v] {
			seeds = append(seeds, b)
		}
		sort.Strings(seeds)
		for _, b := range seeds {
			worklist = append(worklist, b)
			everOn[b] = true
		}
		for len(worklist) > 0 {
			b := worklist[0]
			worklist = worklist[1:]
			for _, d := range info.DFOf(b) {
				if placed[d] {
					continue
				}
				placed[d] = true
				labelToPhi[d] = append(labelToPhi[d], v)
				if !everOn[d] {
					everOn[d] = true
					worklist = append(worklist, d)
				}
			}
		}
	}
	for label := range labelToPhi {
		vs := labelToPhi[label]
		sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	}
	return labelToPhi
}

// placeSimple places a phi for every method variable at every block
// with more than one predecessor, ignoring liveness entirely.
func placeSimple(blocks []*ir.BasicBlock, mi *methodInfo) map[string][]ir.Operand {
	labelToPhi := map[string][]ir.Operand{}
	for _, b := range blocks {
		if len(b.Preds) > 1 {
			labelToPhi[b.Label] = append([]ir.Operand(nil), mi.vars...)
		}
	}
	return labelToPhi
}

// phiPlaceholder records a synthesized phi awaiting its argument list,
// filled in once every block's post-rename state is known.
type phiPlaceholder struct {
	label string
	v     ir.Operand
	node  *ir.Phi
}

type renamer struct {
	info       *dom.Info
	blocks     map[string]*ir.BasicBlock
	labelToPhi map[string][]ir.Operand

	counter map[ir.Operand]int // next version number to hand out, per variable

	// post[label] is the variable->current-name table as it stood
	// immediately after label's own primitives (and any phis placed
	// at label) were renamed, before descending into dominator
	// children. It is what predecessors' phi arguments are resolved
	// against.
	post map[string]map[ir.Operand]ir.Operand

	placeholders []phiPlaceholder
}

func (r *renamer) newName(v ir.Operand) ir.Operand {
	n := r.counter[v]
	r.counter[v] = n + 1
	return ir.Operand(fmt.Sprintf("%s.%d", v, n))
}

func (r *renamer) def(cur map[ir.Operand]ir.Operand, v ir.Operand) ir.Operand {
	nn := r.newName(v)
	cur[v] = nn
	return nn
}

// renameBlock renames label's own statements using a clone of
// inherited (so siblings in the dominator tree never see each
// other's renames), records the resulting state in post, then
// recurses to label's dominator-tree children with that state.
func (r *renamer) renameBlock(label string, inherited map[ir.Operand]ir.Operand) {
	cur := make(map[ir.Operand]ir.Operand, len(inherited))
	for k, v := range inherited {
		cur[k] = v
	}
	b := r.blocks[label]

	if len(b.Preds) == 0 {
		renamed := make([]ir.Operand, len(b.Params))
		for i, p := range b.Params {
			if ir.IsVariable(p) {
				renamed[i] = r.def(cur, p)
			} else {
				renamed[i] = p
			}
		}
		b.Params = renamed
	}

	phiVars := r.labelToPhi[label]
	newPhis := make([]ir.Primitive, 0, len(phiVars))
	for _, v := range phiVars {
		node := &ir.Phi{Dst: r.def(cur, v)}
		r.placeholders = append(r.placeholders, phiPlaceholder{label: label, v: v, node: node})
		newPhis = append(newPhis, node)
	}

	rewritten := make([]ir.Primitive, 0, len(newPhis)+len(b.Primitives))
	rewritten = append(rewritten, newPhis...)
	for _, p := range b.Primitives {
		rewritten = append(rewritten, r.renamePrimitive(p, cur))
	}
	b.Primitives = rewritten
	if b.Terminator != nil {
		b.Terminator = renameTerminator(b.Terminator, cur)
	}

	r.post[label] = cur

	for _, child := range r.info.Children(label) {
		r.renameBlock(child, cur)
	}
}

func (r *renamer) fillPhiArgs() {
	for _, ph := range r.placeholders {
		b := r.blocks[ph.label]
		args := make([]ir.PhiArg, 0, len(b.Preds))
		for _, pred := range b.Preds {
			val, ok := r.post[pred.Label][ph.v]
			if !ok {
				val = ph.v
			}
			args = append(args, ir.PhiArg{Pred: pred.Label, Val: val})
		}
		ph.node.Args = args
	}
}

func lookup(cur map[ir.Operand]ir.Operand, op ir.Operand) ir.Operand {
	if !ir.IsVariable(op) {
		return op
	}
	if nn, ok := cur[op]; ok {
		return nn
	}
	return op
}

func (r *renamer) renamePrimitive(p ir.Primitive, cur map[ir.Operand]ir.Operand) ir.Primitive {
	switch p := p.(type) {
	case *ir.Comment:
		c := *p
		return &c
	case *ir.Copy:
		c := *p
		c.Src = lookup(cur, p.Src)
		if ir.IsVariable(c.Dst) {
			c.Dst = r.def(cur, p.Dst)
		}
		return &c
	case *ir.Arith:
		c := *p
		c.Op1 = lookup(cur, p.Op1)
		c.Op2 = lookup(cur, p.Op2)
		if ir.IsVariable(c.Dst) {
			c.Dst = r.def(cur, p.Dst)
		}
		return &c
	case *ir.Call:
		c := *p
		c.Code = lookup(cur, p.Code)
		c.Recv = lookup(cur, p.Recv)
		args := make([]ir.Operand, len(p.Args))
		for i, a := range p.Args {
			args[i] = lookup(cur, a)
		}
		c.Args = args
		if ir.IsVariable(c.Dst) {
			c.Dst = r.def(cur, p.Dst)
		}
		return &c
	case *ir.Phi:
		c := *p
		args := make([]ir.PhiArg, len(p.Args))
		for i, a := range p.Args {
			args[i] = ir.PhiArg{Pred: a.Pred, Val: lookup(cur, a.Val)}
		}
		c.Args = args
		if ir.IsVariable(c.Dst) {
			c.Dst = r.def(cur, p.Dst)
		}
		return &c
	case *ir.Alloc:
		c := *p
		if ir.IsVariable(c.Dst) {
			c.Dst = r.def(cur, p.Dst)
		}
		return &c
	case *ir.Print:
		c := *p
		c.Val = lookup(cur, p.Val)
		return &c
	case *ir.GetElt:
		c := *p
		c.Base = lookup(cur, p.Base)
		c.Index = lookup(cur, p.Index)
		if ir.IsVariable(c.Dst) {
			c.Dst = r.def(cur, p.Dst)
		}
		return &c
	case *ir.SetElt:
		c := *p
		c.Base = lookup(cur, p.Base)
		c.Index = lookup(cur, p.Index)
		c.Val = lookup(cur, p.Val)
		return &c
	case *ir.Load:
		c := *p
		c.Addr = lookup(cur, p.Addr)
		if ir.IsVariable(c.Dst) {
			c.Dst = r.def(cur, p.Dst)
		}
		return &c
	case *ir.Store:
		c := *p
		c.Addr = lookup(cur, p.Addr)
		c.Val = lookup(cur, p.Val)
		return &c
	case *ir.LoadVec, *ir.StoreVec, *ir.AddVec, *ir.SubVec, *ir.MulVec, *ir.DivVec:
		// Only introduced by internal/slp, which runs after SSA has
		// already been built and its variables long since renamed.
		return p
	}
	panic(fmt.Sprintf("ssa: unhandled primitive %T", p))
}

func renameTerminator(t ir.Terminator, cur map[ir.Operand]ir.Operand) ir.Terminator {
	switch t := t.(type) {
	case *ir.Ret:
		c := *t
		c.Val = lookup(cur, t.Val)
		return &c
	case *ir.Jump:
		c := *t
		return &c
	case *ir.IfElse:
		c := *t
		c.Cond = lookup(cur, t.Cond)
		return &c
	case *ir.Fail:
		c := *t
		return &c
	}
	panic(fmt.Sprintf("ssa: unhandled terminator %T", t))
}

// reads returns every operand p reads, excluding its own destination.
func reads(p ir.Primitive) []ir.Operand {
	switch p := p.(type) {
	case *ir.Comment:
		return nil
	case *ir.Copy:
		return []ir.Operand{p.Src}
	case *ir.Arith:
		return []ir.Operand{p.Op1, p.Op2}
	case *ir.Call:
		out := make([]ir.Operand, 0, len(p.Args)+2)
		out = append(out, p.Code, p.Recv)
		return append(out, p.Args...)
	case *ir.Phi:
		out := make([]ir.Operand, len(p.Args))
		for i, a := range p.Args {
			out[i] = a.Val
		}
		return out
	case *ir.Alloc:
		return nil
	case *ir.Print:
		return []ir.Operand{p.Val}
	case *ir.GetElt:
		return []ir.Operand{p.Base, p.Index}
	case *ir.SetElt:
		return []ir.Operand{p.Base, p.Index, p.Val}
	case *ir.Load:
		return []ir.Operand{p.Addr}
	case *ir.Store:
		return []ir.Operand{p.Addr, p.Val}
	case *ir.LoadVec:
		return append([]ir.Operand(nil), p.Vals...)
	case *ir.StoreVec:
		return []ir.Operand{p.Vec}
	case *ir.AddVec:
		return append(append([]ir.Operand(nil), p.Op1s...), p.Op2s...)
	case *ir.SubVec:
		return append(append([]ir.Operand(nil), p.Op1s...), p.Op2s...)
	case *ir.MulVec:
		return append(append([]ir.Operand(nil), p.Op1s...), p.Op2s...)
	case *ir.DivVec:
		return append(append([]ir.Operand(nil), p.Op1s...), p.Op2s...)
	}
	panic(fmt.Sprintf("ssa: unhandled primitive %T", p))
}

func termReads(t ir.Terminator) []ir.Operand {
	switch t := t.(type) {
	case *ir.Ret:
		return []ir.Operand{t.Val}
	case *ir.Jump:
		return nil
	case *ir.IfElse:
		return []ir.Operand{t.Cond}
	case *ir.Fail:
		return nil
	}
	panic(fmt.Sprintf("ssa: unhandled terminator %T", t))
}
