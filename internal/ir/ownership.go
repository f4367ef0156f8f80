package ir

// RebuildOwnership recomputes every block's Owned/BackEdges/Preds from
// scratch by following each block's current terminator targets in a
// depth-first walk from entry: whichever edge reaches a block first
// owns it, subsequent edges to the same block become back-edges —
// spec.md's successor-ownership-reassignment rule. blockMap must map
// every label a surviving terminator might still target to its block,
// typically built by the caller via AllBlocks(entry) before any
// terminator rewriting that might orphan a block. A block nothing
// reaches anymore is simply never visited, which is how a pass that
// folds a branch to an unconditional jump prunes the dead arm from the
// method.
//
// Shared by internal/gvn (branch folding, tag-check collapsing) and
// internal/jumpopt (merge, prune), the two passes that restructure the
// CFG after SSA construction.
func RebuildOwnership(entry *BasicBlock, blockMap map[string]*BasicBlock) {
	for _, b := range blockMap {
		b.Owned = nil
		b.BackEdges = nil
		b.Preds = nil
	}

	visited := map[string]bool{}
	var walk func(label string)
	walk = func(label string) {
		if visited[label] {
			return
		}
		visited[label] = true
		b := blockMap[label]
		if b == nil || b.Terminator == nil {
			return
		}
		for _, succLabel := range b.Terminator.Targets() {
			child := blockMap[succLabel]
			if child == nil {
				continue
			}
			if len(child.Preds) == 0 {
				b.AddOwnedChild(child)
			} else {
				b.AddBackEdge(child)
			}
			walk(succLabel)
		}
	}
	walk(entry.Label)
}
