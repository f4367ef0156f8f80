// Package dom computes dominance information for a method's control
// flow graph. It layers two things from two different sources on top
// of internal/ir.BasicBlock:
//
//   - the classic iterative dataflow definition of dom[b] (the full
//     set of blocks dominating b), adapted from this compiler's
//     original DominatorSolver: init dom[entry]={entry}, dom[b]=all
//     blocks otherwise, then repeatedly intersect until a fixed
//     point, per spec.md §4.3.
//   - the Cooper-Harvey-Kennedy engineered algorithm for idom and the
//     dominance frontier, reused from internal/graph (itself adapted
//     from the same algorithm in this module's teacher package).
//
// Both are computed and cross-checked against each other in this
// package's tests: idom derived from the full dominator sets (the
// unique member of dom[b]\{b} that dominates no other member) must
// agree with internal/graph.IDom's direct computation.
package dom

import "github.com/aclements/sigilc/internal/graph"
import "github.com/aclements/sigilc/internal/ir"

// Info holds every piece of dominance information computed for one
// method.
type Info struct {
	Labels []string      // dense index -> label, in discovery order
	index  map[string]int // label -> dense index

	// Dom[b] is the full set of labels dominating block b (including
	// b itself), per the iterative dataflow definition.
	Dom []map[string]bool

	// IDom[b] is the label of b's immediate dominator, or "" for the
	// entry block.
	IDom []string

	// DF[b] lists the labels in b's dominance frontier.
	DF [][]string

	tree *graph.DomTree
}

// Build computes dominance information for the method rooted at
// entry.
func Build(entry *ir.BasicBlock) *Info {
	blocks := ir.AllBlocks(entry)
	index := make(map[string]int, len(blocks))
	for i, b := range blocks {
		index[b.Label] = i
	}

	succs := make([][]int, len(blocks))
	preds := make([][]int, len(blocks))
	for i, b := range blocks {
		for _, s := range b.Successors() {
			succs[i] = append(succs[i], index[s.Label])
		}
		for _, p := range b.Preds {
			if j, ok := index[p.Label]; ok {
				preds[i] = append(preds[i], j)
			}
		}
	}
	g := &graph.Edges{Succs: succs, Preds: preds}

	idomIdx := graph.IDom(g, 0)
	dfIdx := graph.DomFrontier(g, 0, idomIdx)
	tree := graph.Dom(idomIdx)

	info := &Info{
		Labels: make([]string, len(blocks)),
		index:  index,
		IDom:   make([]string, len(blocks)),
		DF:     make([][]string, len(blocks)),
		tree:   tree,
	}
	for i, b := range blocks {
		info.Labels[i] = b.Label
	}
	for i, d := range idomIdx {
		if d == -1 {
			info.IDom[i] = ""
		} else {
			info.IDom[i] = blocks[d].Label
		}
	}
	for i, df := range dfIdx {
		for _, j := range df {
			info.DF[i] = append(info.DF[i], blocks[j].Label)
		}
	}

	info.Dom = solveDom(blocks, index, preds)

	return info
}

// solveDom computes the classic iterative-dataflow full dominator
// sets: dom[entry] = {entry}; dom[b] = universe for every other b;
// then repeat dom[b] = {b} ∪ (intersection over preds p of dom[p])
// until nothing changes. This is the direct adaptation of
// DominatorSolver::solveDom from the original compiler, translated
// from std::set intersection to Go map intersection.
func solveDom(blocks []*ir.BasicBlock, index map[string]int, preds [][]int) []map[string]bool {
	n := len(blocks)
	dom := make([]map[string]bool, n)
	universe := make(map[string]bool, n)
	for _, b := range blocks {
		universe[b.Label] = true
	}
	for i := range dom {
		dom[i] = map[string]bool{}
		for k := range universe {
			dom[i][k] = true
		}
	}
	dom[0] = map[string]bool{blocks[0].Label: true}

	changed := true
	for changed {
		changed = false
		for i := 1; i < n; i++ {
			var next map[string]bool
			for _, p := range preds[i] {
				if next == nil {
					next = copySet(dom[p])
					continue
				}
				next = intersectSet(next, dom[p])
			}
			if next == nil {
				next = map[string]bool{}
			}
			next[blocks[i].Label] = true

			if !setsEqual(next, dom[i]) {
				dom[i] = next
				changed = true
			}
		}
	}
	return dom
}

func copySet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func intersectSet(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// IDomOf derives the immediate dominator of label directly from the
// full Dom sets, independent of the Cooper-Harvey-Kennedy computation
// stored in IDom — the member of Dom[label]\{label} that does not
// dominate any other member.
func (info *Info) IDomOf(label string) string {
	i, ok := info.index[label]
	if !ok || len(info.Dom[i]) <= 1 {
		return ""
	}
	candidates := make([]string, 0, len(info.Dom[i])-1)
	for l := range info.Dom[i] {
		if l != label {
			candidates = append(candidates, l)
		}
	}
	for _, c := range candidates {
		dominatesOther := false
		for _, other := range candidates {
			if other == c {
				continue
			}
			if info.Dom[info.index[other]][c] {
				dominatesOther = true
				break
			}
		}
		if !dominatesOther {
			return c
		}
	}
	return ""
}

// DFOf returns label's dominance frontier.
func (info *Info) DFOf(label string) []string {
	i, ok := info.index[label]
	if !ok {
		return nil
	}
	return info.DF[i]
}

// Dominates reports whether a dominates b (a == b counts).
func (info *Info) Dominates(a, b string) bool {
	i, ok := info.index[b]
	if !ok {
		return false
	}
	return info.Dom[i][a]
}

// Children returns the immediate dominator tree children of label, in
// the dense discovery order used by Build.
func (info *Info) Children(label string) []string {
	i, ok := info.index[label]
	if !ok {
		return nil
	}
	var out []string
	for _, c := range info.tree.Out(i) {
		out = append(out, info.Labels[c])
	}
	return out
}
