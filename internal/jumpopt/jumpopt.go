// Package jumpopt implements the jump optimizer (spec.md §4.8),
// grounded on the original compiler's JumpOptimizer.h: two purely
// structural peephole rewrites applied across the whole CFG, assuming
// SSA consistency is already established.
//
//   - Merge: a block ending in an unconditional jump to a block with
//     exactly one predecessor is spliced together with it — the target's
//     primitives and terminator become the source's, and the target's
//     successors become the source's successors. Applied postorder, so
//     a chain of single-predecessor jumps collapses in one pass (the
//     original's visit(BasicBlock&) does the same bottom-up merge).
//   - Prune: an if_else whose condition is a literal that internal/gvn
//     either didn't run or didn't see (for example because -noVN
//     skipped it) still needs folding to an unconditional jump, with
//     the dead arm dropped from the method if it has no other
//     predecessor.
package jumpopt

import (
	"github.com/aclements/sigilc/internal/ir"
)

// Build merges and prunes every method of prog in place.
func Build(prog *ir.ProgramCFG) {
	for _, m := range prog.Methods() {
		convert(m)
	}
}

func convert(m *ir.MethodCFG) {
	if m.Entry == nil {
		return
	}
	prune(m)
	merge(m)
}

// prune folds any if_else terminator whose condition is already a
// literal to an unconditional jump, then rebuilds ownership so the
// dead arm drops out of the method if nothing else reaches it. This
// is internal/gvn's branch-folding step, repeated here as a backstop
// for whatever GVN left behind or never ran over.
func prune(m *ir.MethodCFG) {
	blocks := ir.AllBlocks(m.Entry)
	blockMap := make(map[string]*ir.BasicBlock, len(blocks))
	for _, b := range blocks {
		blockMap[b.Label] = b
	}

	changed := false
	for _, b := range blocks {
		ie, ok := b.Terminator.(*ir.IfElse)
		if !ok || !ir.IsNumber(ie.Cond) {
			continue
		}
		live := ie.IfLabel
		if ie.Cond == "0" {
			live = ie.ElseLabel
		}
		b.Terminator = &ir.Jump{Label: live}
		changed = true
	}
	if changed {
		ir.RebuildOwnership(m.Entry, blockMap)
	}
}

// merge splices a block ending in "jump L" together with L when L has
// exactly one predecessor, in postorder (successors processed before
// their predecessors) so that a chain of such jumps collapses into one
// block in a single walk.
func merge(m *ir.MethodCFG) {
	var order []*ir.BasicBlock
	visited := map[string]bool{}
	var postorder func(b *ir.BasicBlock)
	postorder = func(b *ir.BasicBlock) {
		if visited[b.Label] {
			return
		}
		visited[b.Label] = true
		for _, c := range b.Successors() {
			postorder(c)
		}
		order = append(order, b)
	}
	postorder(m.Entry)

	for _, b := range order {
		jmp, ok := b.Terminator.(*ir.Jump)
		if !ok {
			continue
		}
		target := findChild(b, jmp.Label)
		if target == nil || target == b || len(target.Preds) != 1 {
			continue
		}
		spliceInto(b, target)
	}
}

// findChild returns b's direct successor labeled label, whether it is
// owned or reached by a back-edge.
func findChild(b *ir.BasicBlock, label string) *ir.BasicBlock {
	for _, c := range b.Successors() {
		if c.Label == label {
			return c
		}
	}
	return nil
}

// spliceInto absorbs target into b: target's primitives are appended,
// its terminator replaces b's, and its successors become b's
// successors. target itself becomes unreachable, since its one
// predecessor (b) no longer points to it.
func spliceInto(b, target *ir.BasicBlock) {
	b.Owned = removeBlock(b.Owned, target)
	b.BackEdges = removeBlock(b.BackEdges, target)

	b.Primitives = append(b.Primitives, target.Primitives...)
	b.Terminator = target.Terminator

	for _, c := range target.Owned {
		redirectPred(c, target, b)
		b.Owned = append(b.Owned, c)
	}
	for _, c := range target.BackEdges {
		redirectPred(c, target, b)
		b.BackEdges = append(b.BackEdges, c)
	}
}

func removeBlock(list []*ir.BasicBlock, target *ir.BasicBlock) []*ir.BasicBlock {
	out := list[:0]
	for _, b := range list {
		if b != target {
			out = append(out, b)
		}
	}
	return out
}

// redirectPred rewrites child's predecessor entry for old to new, in
// place, and relabels any phi argument in child that still names old
// as its incoming edge — the edge now arrives from new instead, since
// old was absorbed into it.
func redirectPred(child, old, repl *ir.BasicBlock) {
	for i, p := range child.Preds {
		if p == old {
			child.Preds[i] = repl
		}
	}
	for _, p := range child.Primitives {
		phi, ok := p.(*ir.Phi)
		if !ok {
			continue
		}
		for i, a := range phi.Args {
			if a.Pred == old.Label {
				phi.Args[i].Pred = repl.Label
			}
		}
	}
}
