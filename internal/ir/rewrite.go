package ir

// Rewriter is the reusable traversal skeleton every structure-
// preserving pass specializes, adapted from the original compiler's
// IdentityOptimizer: a visitor that by default copies every node
// unchanged, and that concrete passes customize by overriding just
// the node kinds they care about. Go has no virtual dispatch, so a
// Rewriter implementation supplies every method itself; Identity below
// is the all-nodes-unchanged implementation a pass embeds and
// overrides.
//
// A Rewrite method returning nil elides the statement entirely (used
// by internal/fold to drop a statement once it is known redundant).
type Rewriter interface {
	RewriteComment(*Comment) Primitive
	RewriteCopy(*Copy) Primitive
	RewriteArith(*Arith) Primitive
	RewriteCall(*Call) Primitive
	RewritePhi(*Phi) Primitive
	RewriteAlloc(*Alloc) Primitive
	RewritePrint(*Print) Primitive
	RewriteGetElt(*GetElt) Primitive
	RewriteSetElt(*SetElt) Primitive
	RewriteLoad(*Load) Primitive
	RewriteStore(*Store) Primitive
	RewriteLoadVec(*LoadVec) Primitive
	RewriteStoreVec(*StoreVec) Primitive
	RewriteAddVec(*AddVec) Primitive
	RewriteSubVec(*SubVec) Primitive
	RewriteMulVec(*MulVec) Primitive
	RewriteDivVec(*DivVec) Primitive

	RewriteTerminator(Terminator) Terminator

	// AfterBlock runs once built has received its full rewritten
	// primitive and terminator list and the driver has rebuilt its
	// owned children and back-edge targets. Identity's default does
	// nothing, and no pass in this module overrides it.
	AfterBlock(orig, built *BasicBlock)
}

// RewritePrimitive dispatches p to the matching Rewrite method of r.
func RewritePrimitive(r Rewriter, p Primitive) Primitive {
	switch p := p.(type) {
	case *Comment:
		return r.RewriteComment(p)
	case *Copy:
		return r.RewriteCopy(p)
	case *Arith:
		return r.RewriteArith(p)
	case *Call:
		return r.RewriteCall(p)
	case *Phi:
		return r.RewritePhi(p)
	case *Alloc:
		return r.RewriteAlloc(p)
	case *Print:
		return r.RewritePrint(p)
	case *GetElt:
		return r.RewriteGetElt(p)
	case *SetElt:
		return r.RewriteSetElt(p)
	case *Load:
		return r.RewriteLoad(p)
	case *Store:
		return r.RewriteStore(p)
	case *LoadVec:
		return r.RewriteLoadVec(p)
	case *StoreVec:
		return r.RewriteStoreVec(p)
	case *AddVec:
		return r.RewriteAddVec(p)
	case *SubVec:
		return r.RewriteSubVec(p)
	case *MulVec:
		return r.RewriteMulVec(p)
	case *DivVec:
		return r.RewriteDivVec(p)
	default:
		panic("ir: unhandled primitive in RewritePrimitive")
	}
}

// Identity is the passthrough Rewriter: every method returns an
// unchanged copy of its argument. Passes embed Identity and override
// only the handful of methods their transformation touches.
type Identity struct{}

func (Identity) RewriteComment(p *Comment) Primitive   { c := *p; return &c }
func (Identity) RewriteCopy(p *Copy) Primitive         { c := *p; return &c }
func (Identity) RewriteArith(p *Arith) Primitive       { c := *p; return &c }
func (Identity) RewriteCall(p *Call) Primitive {
	c := *p
	c.Args = append([]Operand(nil), p.Args...)
	return &c
}
func (Identity) RewritePhi(p *Phi) Primitive {
	c := *p
	c.Args = append([]PhiArg(nil), p.Args...)
	return &c
}
func (Identity) RewriteAlloc(p *Alloc) Primitive   { c := *p; return &c }
func (Identity) RewritePrint(p *Print) Primitive   { c := *p; return &c }
func (Identity) RewriteGetElt(p *GetElt) Primitive { c := *p; return &c }
func (Identity) RewriteSetElt(p *SetElt) Primitive { c := *p; return &c }
func (Identity) RewriteLoad(p *Load) Primitive     { c := *p; return &c }
func (Identity) RewriteStore(p *Store) Primitive   { c := *p; return &c }
func (Identity) RewriteLoadVec(p *LoadVec) Primitive {
	c := *p
	c.Vals = append([]Operand(nil), p.Vals...)
	return &c
}
func (Identity) RewriteStoreVec(p *StoreVec) Primitive {
	c := *p
	c.Dsts = append([]Operand(nil), p.Dsts...)
	return &c
}
func (Identity) RewriteAddVec(p *AddVec) Primitive { return copyVecArith(p) }
func (Identity) RewriteSubVec(p *SubVec) Primitive { return copyVecArith(p) }
func (Identity) RewriteMulVec(p *MulVec) Primitive { return copyVecArith(p) }
func (Identity) RewriteDivVec(p *DivVec) Primitive { return copyVecArith(p) }

func copyVecArith(p Primitive) Primitive {
	switch p := p.(type) {
	case *AddVec:
		c := *p
		c.Op1s, c.Op2s = append([]Operand(nil), p.Op1s...), append([]Operand(nil), p.Op2s...)
		return &c
	case *SubVec:
		c := *p
		c.Op1s, c.Op2s = append([]Operand(nil), p.Op1s...), append([]Operand(nil), p.Op2s...)
		return &c
	case *MulVec:
		c := *p
		c.Op1s, c.Op2s = append([]Operand(nil), p.Op1s...), append([]Operand(nil), p.Op2s...)
		return &c
	case *DivVec:
		c := *p
		c.Op1s, c.Op2s = append([]Operand(nil), p.Op1s...), append([]Operand(nil), p.Op2s...)
		return &c
	}
	panic("ir: copyVecArith on non-vector-arith primitive")
}

func (Identity) RewriteTerminator(t Terminator) Terminator {
	switch t := t.(type) {
	case *Ret:
		c := *t
		return &c
	case *Jump:
		c := *t
		return &c
	case *IfElse:
		c := *t
		return &c
	case *Fail:
		c := *t
		return &c
	}
	panic("ir: unhandled terminator in Identity.RewriteTerminator")
}

func (Identity) AfterBlock(orig, built *BasicBlock) {}

// Driver walks a method's owned-subtree and rebuilds it block by
// block, dispatching every primitive and terminator through Rewriter.
// It is the traversal half of the original IdentityOptimizer; the
// per-node behavior half is whatever Rewriter the caller supplies.
type Driver struct {
	Rewriter Rewriter

	built map[string]*BasicBlock
}

// Method rebuilds src entirely, returning the new MethodCFG.
func (d *Driver) Method(src *MethodCFG) *MethodCFG {
	d.built = map[string]*BasicBlock{}
	dst := &MethodCFG{Name: src.Name, Params: src.Params, IsMain: src.IsMain, RetType: src.RetType}
	dst.Entry = d.block(src.Entry)
	return dst
}

func (d *Driver) block(src *BasicBlock) *BasicBlock {
	if b, ok := d.built[src.Label]; ok {
		return b
	}
	dst := NewBlock(src.Label)
	dst.Params = append([]Operand(nil), src.Params...)
	d.built[src.Label] = dst

	for _, p := range src.Primitives {
		if np := RewritePrimitive(d.Rewriter, p); np != nil {
			dst.Append(np)
		}
	}
	if src.Terminator != nil {
		dst.Terminator = d.Rewriter.RewriteTerminator(src.Terminator)
	}

	for _, c := range src.Owned {
		dst.AddOwnedChild(d.block(c))
	}
	for _, c := range src.BackEdges {
		dst.AddBackEdge(d.block(c))
	}

	d.Rewriter.AfterBlock(src, dst)
	return dst
}

// RewriteProgram rebuilds every method of src through r, returning a
// fresh ProgramCFG with the same class/field/vtable metadata.
func RewriteProgram(r Rewriter, src *ProgramCFG) *ProgramCFG {
	dst := NewProgramCFG()
	d := &Driver{Rewriter: r}
	if src.Main != nil {
		dst.Main = d.Method(src.Main)
	}
	for _, cname := range src.ClassOrder {
		sc := src.Classes[cname]
		dc := NewClassCFG(sc.Name, sc.Parent)
		dc.Vtable = append([]string(nil), sc.Vtable...)
		dc.FieldOrder = append([]string(nil), sc.FieldOrder...)
		for k, v := range sc.FieldIndex {
			dc.FieldIndex[k] = v
		}
		for k, v := range sc.FieldType {
			dc.FieldType[k] = v
		}
		for _, mname := range sc.MethodOrder {
			d2 := &Driver{Rewriter: r}
			dc.MethodOrder = append(dc.MethodOrder, mname)
			dc.Methods[mname] = d2.Method(sc.Methods[mname])
		}
		dst.AddClass(dc)
	}
	return dst
}
