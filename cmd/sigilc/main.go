// Command sigilc compiles a sigil-language source program to its
// textual intermediate representation, per spec.md §6.2: program
// source on stdin, IR text on stdout, a pure filter with no persisted
// state. Flags select which middle-end passes run.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aclements/sigilc/internal/ir"
	"github.com/aclements/sigilc/internal/parser"
	"github.com/aclements/sigilc/internal/pipeline"
	"github.com/aclements/sigilc/internal/typecheck"
)

var (
	printASTFlag  = flag.Bool("printAST", false, "serialize the typed AST as JSON and exit")
	noSSAFlag     = flag.Bool("noSSA", false, "skip SSA construction (also skips value numbering)")
	simpleSSAFlag = flag.Bool("simpleSSA", false, "use legacy \"phi everywhere\" placement instead of DF-driven")
	noOptFlag     = flag.Bool("noopt", false, "skip constant/arithmetic folding")
	noVNFlag      = flag.Bool("noVN", false, "skip value numbering")
	vectorizeFlag = flag.Bool("vectorize", false, "run the jump optimizer then SLP vectorizer at the end")
	widthFlag     = flag.Int("width", pipeline.DefaultVectorWidth, "SLP unroll width (only meaningful with -vectorize)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] < source\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	prog, err := parser.Parse(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parser error: %s\n", err)
		os.Exit(1)
	}

	if err := typecheck.Check(prog); err != nil {
		fmt.Fprintf(os.Stderr, "Type checker error: %s\n", err)
		os.Exit(1)
	}

	if *printASTFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(prog); err != nil {
			panic(fmt.Sprintf("sigilc: encoding typed AST: %v", err))
		}
		return
	}

	cfg, err := pipeline.Run(prog, pipeline.Options{
		NoSSA:       *noSSAFlag,
		SimpleSSA:   *simpleSSAFlag,
		NoOpt:       *noOptFlag,
		NoVN:        *noVNFlag,
		Vectorize:   *vectorizeFlag,
		VectorWidth: *widthFlag,
	})
	if err != nil {
		panic(fmt.Sprintf("sigilc: building CFG from type-checked program: %v", err))
	}

	var out strings.Builder
	ir.FprintProgram(&out, cfg)
	os.Stdout.WriteString(out.String())
}
