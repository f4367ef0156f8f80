// Package pipeline wires the middle-end passes together in the order
// spec.md §6.2 names, gated by the same flags cmd/sigilc exposes:
// cfgbuild → (ssa, unless -noSSA) → (fold, unless -noopt) → (gvn,
// unless -noSSA or -noVN) → (jumpopt, slp; only under -vectorize).
package pipeline

import (
	"github.com/aclements/sigilc/internal/ast"
	"github.com/aclements/sigilc/internal/cfgbuild"
	"github.com/aclements/sigilc/internal/fold"
	"github.com/aclements/sigilc/internal/gvn"
	"github.com/aclements/sigilc/internal/ir"
	"github.com/aclements/sigilc/internal/jumpopt"
	"github.com/aclements/sigilc/internal/slp"
	"github.com/aclements/sigilc/internal/ssa"
)

// Options selects which stages run, mirroring cmd/sigilc's flags
// one-to-one so the driver can pass its flag.Bool values straight
// through.
type Options struct {
	NoSSA       bool
	SimpleSSA   bool
	NoOpt       bool
	NoVN        bool
	Vectorize   bool
	VectorWidth int
}

// DefaultVectorWidth is used when Vectorize is set but VectorWidth is
// left at its zero value.
const DefaultVectorWidth = slp.DefaultWidth

// Run lowers p to a CFG and applies every enabled pass in sequence,
// returning the final program ready for ir.FprintProgram.
func Run(p *ast.Program, opt Options) (*ir.ProgramCFG, error) {
	prog, err := cfgbuild.Build(p)
	if err != nil {
		return nil, err
	}

	if !opt.NoSSA {
		mode := ssa.Pruned
		if opt.SimpleSSA {
			mode = ssa.Simple
		}
		ssa.Build(prog, mode)

		if !opt.NoOpt {
			fold.Build(prog)
		}
		if !opt.NoVN {
			gvn.Build(prog)
		}
	} else if !opt.NoOpt {
		fold.Build(prog)
	}

	if opt.Vectorize {
		jumpopt.Build(prog)
		width := opt.VectorWidth
		if width == 0 {
			width = DefaultVectorWidth
		}
		slp.Build(prog, width)
	}

	return prog, nil
}
