// Package slp implements the superword-level-parallelism vectorizer
// (spec.md §4.9). original_source/HW4/src/VectorOptimizer.h, the file
// this package would otherwise be grounded on, is an empty stub in the
// retrieved source, so this is built directly from spec.md's algorithm
// description: the classical Larsen/Amarasinghe SLP pass — seed pack
// pairs from adjacent memory references, extend the pack list along
// def-use and use-def chains, combine overlapping packs into longer
// chains, then schedule, emitting vector code for whatever finalized.
//
// Operates one basic block at a time; there is no cross-block SLP.
//
// Vector-memory emission scope: LoadVec/StoreVec have no field for a
// shared base address (see internal/ir's GetElt/SetElt, which carry
// Base separately from Dst/Index/Val), so a getelt/setelt pack cannot
// be turned into a single vector memory op without either inventing a
// new IR shape or silently dropping addressing information. This
// implementation seeds and extends packs across all three permitted
// kinds exactly as spec.md describes (so a getelt pack can still pull
// in the arithmetic pack that consumes it), but only ever emits vector
// code for an arithmetic pack; a getelt/setelt pack that never gets
// folded into a consuming/producing arithmetic pack is simply
// scheduled member-by-member in its original scalar form, which
// schedule's own "statement's dependencies are ready" fallback path
// already supports losslessly.
package slp

import (
	"github.com/aclements/sigilc/internal/ir"
)

// DefaultWidth is the vectorizer's unroll width W.
const DefaultWidth = 4

// Build vectorizes every block of every method of prog in place, using
// width as W.
func Build(prog *ir.ProgramCFG, width int) {
	for _, m := range prog.Methods() {
		if m.Entry == nil {
			continue
		}
		for _, b := range ir.AllBlocks(m.Entry) {
			vectorizeBlock(b, width)
		}
	}
}

// pack is an ordered sequence of statement indices (into the block's
// original Primitives slice) that isomorphism/independence/adjacency
// has grouped together.
type pack []int

func vectorizeBlock(b *ir.BasicBlock, width int) {
	stmts := b.Primitives
	if len(stmts) < 2 {
		return
	}

	defOf, usesOf := buildDefUse(stmts)

	packs := findAdjacentRefs(stmts)
	packs = extendPacklist(packs, stmts, defOf, usesOf)
	packs = combinePacks(packs, width)

	b.Primitives = schedule(stmts, packs, defOf, width)
}

// isomorphic reports whether s1 and s2 are the same statement kind,
// and for arith, the same operator — spec.md §4.9's definition.
func isomorphic(s1, s2 ir.Primitive) bool {
	switch a := s1.(type) {
	case *ir.Arith:
		b, ok := s2.(*ir.Arith)
		return ok && a.Op == b.Op
	case *ir.GetElt:
		_, ok := s2.(*ir.GetElt)
		return ok
	case *ir.SetElt:
		_, ok := s2.(*ir.SetElt)
		return ok
	}
	return false
}

// reads returns every operand s reads, for the statement kinds
// eligible for packing (arith, getelt, setelt).
func reads(s ir.Primitive) []ir.Operand {
	switch s := s.(type) {
	case *ir.Arith:
		return []ir.Operand{s.Op1, s.Op2}
	case *ir.GetElt:
		return []ir.Operand{s.Base, s.Index}
	case *ir.SetElt:
		return []ir.Operand{s.Base, s.Index, s.Val}
	}
	return nil
}

// independent reports whether neither statement's destination appears
// in the other's operand list.
func independent(s1, s2 ir.Primitive) bool {
	if d1, ok := ir.Dst(s1); ok {
		for _, r := range reads(s2) {
			if r == d1 {
				return false
			}
		}
	}
	if d2, ok := ir.Dst(s2); ok {
		for _, r := range reads(s1) {
			if r == d2 {
				return false
			}
		}
	}
	return true
}

// canPack reports whether s1 and s2 may ever occupy the same pack.
func canPack(s1, s2 ir.Primitive) bool {
	return isomorphic(s1, s2) && independent(s1, s2)
}

// adjacent reports whether s1 and s2 are adjacent memory references:
// a getelt or setelt pair sharing the same base with literal indices
// exactly 1 apart.
func adjacent(s1, s2 ir.Primitive) bool {
	base1, idx1, ok1 := baseIndex(s1)
	base2, idx2, ok2 := baseIndex(s2)
	if !ok1 || !ok2 || base1 != base2 {
		return false
	}
	if !ir.IsNumber(idx1) || !ir.IsNumber(idx2) {
		return false
	}
	return numDiff(idx1, idx2) == 1
}

func baseIndex(s ir.Primitive) (base, index ir.Operand, ok bool) {
	switch s := s.(type) {
	case *ir.GetElt:
		return s.Base, s.Index, true
	case *ir.SetElt:
		return s.Base, s.Index, true
	}
	return "", "", false
}

func numDiff(a, b ir.Operand) int {
	x, y := atoiOrZero(string(a)), atoiOrZero(string(b))
	d := x - y
	if d < 0 {
		d = -d
	}
	return d
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// defUse maps an operand to the index of the single statement (within
// this block) that defines it, and to the indices of every statement
// in this block that reads it.
func buildDefUse(stmts []ir.Primitive) (defOf map[ir.Operand]int, usesOf map[ir.Operand][]int) {
	defOf = map[ir.Operand]int{}
	usesOf = map[ir.Operand][]int{}
	for i, s := range stmts {
		if d, ok := ir.Dst(s); ok {
			defOf[d] = i
		}
		for _, r := range reads(s) {
			usesOf[r] = append(usesOf[r], i)
		}
	}
	return defOf, usesOf
}

// findAdjacentRefs seeds the pack list from every ordered pair of
// distinct, adjacent, packable memory statements — spec.md §4.9 step
// 1. Pairs are canonicalized (lower index first) and deduplicated.
func findAdjacentRefs(stmts []ir.Primitive) []pack {
	seen := map[[2]int]bool{}
	var packs []pack
	for i := range stmts {
		_, _, ok := baseIndex(stmts[i])
		if !ok {
			continue
		}
		for j := range stmts {
			if i == j {
				continue
			}
			_, _, ok := baseIndex(stmts[j])
			if !ok || !canPack(stmts[i], stmts[j]) || !adjacent(stmts[i], stmts[j]) {
				continue
			}
			a, b := i, j
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			if seen[key] {
				continue
			}
			seen[key] = true
			packs = append(packs, pack{a, b})
		}
	}
	return packs
}

// extendPacklist follows producers of corresponding RHS operands and
// consumers of each LHS outward from every pack's first and last
// member, iterating to a fixed point — spec.md §4.9 step 2.
func extendPacklist(packs []pack, stmts []ir.Primitive, defOf map[ir.Operand]int, usesOf map[ir.Operand][]int) []pack {
	have := map[[2]int]bool{}
	for _, p := range packs {
		have[[2]int{p[0], p[len(p)-1]}] = true
	}

	add := func(a, b int) bool {
		if a == b || !canPack(stmts[a], stmts[b]) {
			return false
		}
		lo, hi := a, b
		if lo > hi {
			lo, hi = hi, lo
		}
		key := [2]int{lo, hi}
		if have[key] {
			return false
		}
		have[key] = true
		packs = append(packs, pack{lo, hi})
		return true
	}

	for changed := true; changed; {
		changed = false
		for _, p := range packs {
			a, b := p[0], p[len(p)-1]

			ra, rb := reads(stmts[a]), reads(stmts[b])
			for k := 0; k < len(ra) && k < len(rb); k++ {
				pa, okA := defOf[ra[k]]
				pb, okB := defOf[rb[k]]
				if okA && okB && add(pa, pb) {
					changed = true
				}
			}

			if da, ok := ir.Dst(stmts[a]); ok {
				if db, ok2 := ir.Dst(stmts[b]); ok2 {
					ua, ub := usesOf[da], usesOf[db]
					if len(ua) == 1 && len(ub) == 1 && add(ua[0], ub[0]) {
						changed = true
					}
				}
			}
		}
	}
	return packs
}

// combinePacks splices pack q onto pack p whenever p's last statement
// equals q's first, iterating to a fixed point — spec.md §4.9 step 3.
// A merge that would grow a pack past width is skipped: §8.8 requires
// no vector primitive to exceed W lanes, and emitPack vectorizes a
// whole pack as one primitive, so width is a hard cap here rather than
// something to split after the fact. In place of a skipped merge, q's
// first statement (already p's last) is removed from q, and q is
// removed once a single statement is left, so no statement ends up in
// two packs.
func combinePacks(packs []pack, width int) []pack {
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(packs); i++ {
			for j := 0; j < len(packs); j++ {
				if i == j {
					continue
				}
				p, q := packs[i], packs[j]
				if p[len(p)-1] == q[0] {
					if len(p)+len(q)-1 <= width {
						packs[i] = append(append(pack{}, p...), q[1:]...)
						packs = append(packs[:j], packs[j+1:]...)
					} else if len(q) > 2 {
						packs[j] = append(pack{}, q[1:]...)
					} else {
						packs = append(packs[:j], packs[j+1:]...)
					}
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
	}
	return packs
}

// schedule walks the block in source order, emitting a whole pack as
// soon as every member's read dependencies are satisfied, a lone
// statement as soon as its own dependencies are satisfied, and
// otherwise drops the earliest pending pack to guarantee progress —
// spec.md §4.9 step 4.
func schedule(stmts []ir.Primitive, packs []pack, defOf map[ir.Operand]int, width int) []ir.Primitive {
	packOf := map[int]int{}
	for id, p := range packs {
		for _, i := range p {
			packOf[i] = id
		}
	}
	dropped := map[int]bool{}
	scheduled := map[int]bool{}
	var out []ir.Primitive

	ready := func(i int) bool {
		for _, r := range reads(stmts[i]) {
			if d, ok := defOf[r]; ok && !scheduled[d] {
				return false
			}
		}
		return true
	}
	packReady := func(id int) bool {
		for _, i := range packs[id] {
			if !ready(i) {
				return false
			}
		}
		return true
	}

	remaining := len(stmts)
	for remaining > 0 {
		progressed := false
		for i := range stmts {
			if scheduled[i] {
				continue
			}
			if id, inPack := packOf[i]; inPack && !dropped[id] {
				if i != packs[id][0] {
					// Not this pack's first statement in source
					// order; wait for the pack to be emitted as a
					// unit when we reach its head.
					continue
				}
				if !packReady(id) {
					continue
				}
				emitted := emitPack(stmts, packs[id], width)
				out = append(out, emitted...)
				for _, m := range packs[id] {
					scheduled[m] = true
					remaining--
				}
				progressed = true
				break
			}
			if !ready(i) {
				continue
			}
			out = append(out, stmts[i])
			scheduled[i] = true
			remaining--
			progressed = true
			break
		}
		if !progressed {
			// Nothing is ready: some pack is stuck on a dependency
			// outside its own members (or on another not-yet-ready
			// pack). Drop the earliest undropped pack by source
			// position so its members fall back to individual
			// scheduling, guaranteeing the walk makes progress.
			earliest := -1
			for id, p := range packs {
				if dropped[id] {
					continue
				}
				allPending := true
				for _, i := range p {
					if scheduled[i] {
						allPending = false
					}
				}
				if !allPending {
					continue
				}
				if earliest == -1 || p[0] < packs[earliest][0] {
					earliest = id
				}
			}
			if earliest == -1 {
				// No pack left to drop but nothing scheduled: a
				// dependency cycle would be a builder bug, not an
				// SLP one. Fail loudly rather than loop forever.
				panic("slp: schedule made no progress and no pack remains to drop")
			}
			dropped[earliest] = true
		}
	}
	return out
}

// emitPack turns a finalized pack into its scheduled form: vector
// primitives for an arithmetic pack, or the original statements in
// pack order for anything this implementation doesn't vectorize (see
// the package doc's vector-memory emission scope note).
func emitPack(stmts []ir.Primitive, p pack, width int) []ir.Primitive {
	members := make([]*ir.Arith, 0, len(p))
	for _, i := range p {
		a, ok := stmts[i].(*ir.Arith)
		if !ok {
			// Not a uniform arithmetic pack: schedule members
			// individually in pack order.
			out := make([]ir.Primitive, len(p))
			for k, i := range p {
				out[k] = stmts[i]
			}
			return out
		}
		members = append(members, a)
	}

	op1s := make([]ir.Operand, 0, width)
	op2s := make([]ir.Operand, 0, width)
	dsts := make([]ir.Operand, 0, len(members))
	for _, a := range members {
		op1s = append(op1s, a.Op1)
		op2s = append(op2s, a.Op2)
		dsts = append(dsts, a.Dst)
	}
	for len(op1s) < width {
		op1s = append(op1s, ir.Operand("0"))
		op2s = append(op2s, ir.Operand("0"))
	}

	op1Vec := freshVecName(members[0].Dst, "l")
	op2Vec := freshVecName(members[0].Dst, "r")
	resVec := freshVecName(members[0].Dst, "v")

	out := []ir.Primitive{
		&ir.LoadVec{Dst: op1Vec, Vals: op1s},
		&ir.LoadVec{Dst: op2Vec, Vals: op2s},
	}
	out = append(out, vectorArith(members[0].Op, resVec, op1Vec, op2Vec))
	out = append(out, &ir.StoreVec{Dsts: dsts, Vec: resVec})
	return out
}

func vectorArith(op ir.ArithOp, dst, op1, op2 ir.Operand) ir.Primitive {
	switch op {
	case ir.Add:
		return &ir.AddVec{Dst: dst, Op1s: []ir.Operand{op1}, Op2s: []ir.Operand{op2}}
	case ir.Sub:
		return &ir.SubVec{Dst: dst, Op1s: []ir.Operand{op1}, Op2s: []ir.Operand{op2}}
	case ir.Mul:
		return &ir.MulVec{Dst: dst, Op1s: []ir.Operand{op1}, Op2s: []ir.Operand{op2}}
	case ir.Div:
		return &ir.DivVec{Dst: dst, Op1s: []ir.Operand{op1}, Op2s: []ir.Operand{op2}}
	}
	panic("slp: unvectorizable arith operator")
}

// freshVecName derives a deterministic, collision-free vector register
// name from one of the pack's own destination names plus a role tag —
// the block never had a register shaped like this before SLP ran.
func freshVecName(from ir.Operand, role string) ir.Operand {
	return ir.Operand(string(from) + ".vec." + role)
}
