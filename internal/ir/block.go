package ir

// BasicBlock is one node of a method's control-flow graph. Owned
// describes the spanning tree CFGBuilder grows as it visits the AST:
// each block in Owned is reachable only by first passing through this
// block in the builder's traversal, and this block is the sole owner
// responsible for it. BackEdges lists every other successor — a loop
// continuation, an if-join, anything the traversal reaches a second
// time — recorded here without transferring ownership. Preds is the
// flattened union of both, kept for O(1) predecessor queries by
// internal/dom and internal/gvn.
type BasicBlock struct {
	Label      string
	Params     []Operand
	Primitives []Primitive
	Terminator Terminator

	Owned     []*BasicBlock
	BackEdges []*BasicBlock
	Preds     []*BasicBlock

	// Unreachable marks a block CFGBuilder synthesized as a landing
	// pad after a terminator that can't fall through (a return, or
	// both arms of an if/else returning). No one owns such a block;
	// it exists only so the builder always has a "current block" to
	// append to. It carries no meaning past CFG construction and is
	// never serialized.
	Unreachable bool
}

// NewBlock allocates an empty block with the given label.
func NewBlock(label string) *BasicBlock {
	return &BasicBlock{Label: label}
}

// Append adds a primitive to the end of the block's statement list.
func (b *BasicBlock) Append(p Primitive) { b.Primitives = append(b.Primitives, p) }

// AddOwnedChild records child as a spanning-tree successor of b.
func (b *BasicBlock) AddOwnedChild(child *BasicBlock) {
	b.Owned = append(b.Owned, child)
	child.Preds = append(child.Preds, b)
}

// AddBackEdge records child as a non-owning successor of b — a
// re-join or loop-continuation target that some other block already
// owns.
func (b *BasicBlock) AddBackEdge(child *BasicBlock) {
	b.BackEdges = append(b.BackEdges, child)
	child.Preds = append(child.Preds, b)
}

// Successors returns every direct CFG successor of b, owned children
// first, in the order CFGBuilder recorded them.
func (b *BasicBlock) Successors() []*BasicBlock {
	out := make([]*BasicBlock, 0, len(b.Owned)+len(b.BackEdges))
	out = append(out, b.Owned...)
	out = append(out, b.BackEdges...)
	return out
}

// WalkOwned visits root and every block reachable through Owned
// edges, in preorder, exactly once. It does not follow BackEdges,
// which is what makes this the stable "spanning tree" visitation
// order used for printing and for any pass (identity, fold, jumpopt)
// that rebuilds a method block by block.
func WalkOwned(root *BasicBlock, visit func(*BasicBlock)) {
	if root == nil {
		return
	}
	visit(root)
	for _, c := range root.Owned {
		WalkOwned(c, visit)
	}
}

// AllBlocks returns every block of the method reachable from entry,
// each exactly once, in depth-first preorder over Successors (owned
// children before back-edge targets), so a block first reached through
// a back-edge comes before later owned siblings of its predecessor.
func AllBlocks(entry *BasicBlock) []*BasicBlock {
	var out []*BasicBlock
	seen := map[string]bool{}
	var walk func(b *BasicBlock)
	walk = func(b *BasicBlock) {
		if seen[b.Label] {
			return
		}
		seen[b.Label] = true
		out = append(out, b)
		for _, c := range b.Successors() {
			walk(c)
		}
	}
	walk(entry)
	return out
}

// MethodCFG is one method's (or the program's main block's) control
// flow graph.
type MethodCFG struct {
	Name    string
	Params  []Operand
	Entry   *BasicBlock
	IsMain  bool
	RetType string
}

// ClassCFG is one class's vtable, field layout, and method bodies.
type ClassCFG struct {
	Name   string
	Parent string

	// Vtable maps method-table slot index to the mangled symbol of
	// this class's method assigned that slot by AddMethod. Slots no
	// method of this class was assigned hold "".
	Vtable []string

	// FieldIndex maps a field name to its 0-based declaration index
	// (the object slot is one higher, slot 0 being the vtable
	// pointer); FieldOrder
	// lists field names in first-declared order for deterministic
	// iteration (serialization, FprintProgram).
	FieldIndex map[string]int
	FieldOrder []string
	FieldType  map[string]string

	Methods     map[string]*MethodCFG
	MethodOrder []string
}

// NewClassCFG returns an empty class record ready for CFGBuilder to
// populate via AddMethod/AddField.
func NewClassCFG(name, parent string) *ClassCFG {
	return &ClassCFG{
		Name:       name,
		Parent:     parent,
		FieldIndex: map[string]int{},
		FieldType:  map[string]string{},
		Methods:    map[string]*MethodCFG{},
	}
}

// AddField appends a newly declared field, assigning it the next free
// slot index.
func (c *ClassCFG) AddField(name, typ string) int {
	if _, ok := c.FieldIndex[name]; ok {
		return c.FieldIndex[name]
	}
	idx := len(c.FieldOrder)
	c.FieldIndex[name] = idx
	c.FieldOrder = append(c.FieldOrder, name)
	c.FieldType[name] = typ
	return idx
}

// AddMethod registers m under name and writes its symbol into the
// vtable slot at the index given by the caller, growing Vtable with ""
// holes as needed.
func (c *ClassCFG) AddMethod(name string, slot int, m *MethodCFG) {
	if _, ok := c.Methods[name]; !ok {
		c.MethodOrder = append(c.MethodOrder, name)
	}
	c.Methods[name] = m
	for len(c.Vtable) <= slot {
		c.Vtable = append(c.Vtable, "")
	}
	c.Vtable[slot] = ToMethodName(c.Name, name)
}

// ProgramCFG is the whole compiled program: its main block and every
// class's CFG, in first-declared order.
type ProgramCFG struct {
	Main       *MethodCFG
	Classes    map[string]*ClassCFG
	ClassOrder []string
}

// NewProgramCFG returns an empty program record.
func NewProgramCFG() *ProgramCFG {
	return &ProgramCFG{Classes: map[string]*ClassCFG{}}
}

// AddClass registers c, recording its name in ClassOrder the first
// time it's seen.
func (p *ProgramCFG) AddClass(c *ClassCFG) {
	if _, ok := p.Classes[c.Name]; !ok {
		p.ClassOrder = append(p.ClassOrder, c.Name)
	}
	p.Classes[c.Name] = c
}

// Methods returns every MethodCFG in the program (main plus every
// class method), in deterministic order: main first, then classes in
// ClassOrder, then each class's methods in MethodOrder.
func (p *ProgramCFG) Methods() []*MethodCFG {
	var out []*MethodCFG
	if p.Main != nil {
		out = append(out, p.Main)
	}
	for _, cname := range p.ClassOrder {
		c := p.Classes[cname]
		for _, mname := range c.MethodOrder {
			out = append(out, c.Methods[mname])
		}
	}
	return out
}
