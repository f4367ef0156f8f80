// Package symtab provides name-to-slot offset tables, adapted from
// the teacher package's obj/internal/symtab.Table: that type indexes
// object-file symbols by address and by name for a disassembly
// browser. There are no runtime addresses at compile time, so the
// address side (the sorted-by-address slice and binary search) has no
// analog here and is dropped; what's kept is the by-name index
// assigned in first-seen order, which is exactly what spec.md's
// two-pass offset assignment needs for vtable method slots and
// per-class field slots.
package symtab

// OffsetTable assigns each distinct name a dense index, in the order
// names are first seen.
type OffsetTable struct {
	index map[string]int
	names []string
}

// NewOffsetTable returns an empty table.
func NewOffsetTable() *OffsetTable {
	return &OffsetTable{index: map[string]int{}}
}

// Slot returns name's slot, assigning it the next free index the
// first time name is seen.
func (t *OffsetTable) Slot(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	i := len(t.names)
	t.index[name] = i
	t.names = append(t.names, name)
	return i
}

// Lookup returns name's slot without assigning one.
func (t *OffsetTable) Lookup(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Len returns the number of distinct names assigned so far.
func (t *OffsetTable) Len() int { return len(t.names) }

// Names returns every assigned name in slot order. The caller must
// not modify the returned slice.
func (t *OffsetTable) Names() []string { return t.names }
