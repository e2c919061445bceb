package main

import (
	"fmt"
	"os"

	"vslc64/src/backend"
	"vslc64/src/frontend"
	"vslc64/src/ir"
	"vslc64/src/ir/llvm"
	"vslc64/src/util"
)

// run begins reading source code and executes compiler stages.
// Behaviour is defined by the util.Options structure.
func run(opt util.Options) error {
	// Read source code.
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %s", err)
	}

	// If -ts flag was passed: output token stream and exit.
	if opt.TokenStream {
		if err := frontend.TokenStream(src); err != nil {
			return fmt.Errorf("syntax error: %s", err)
		}
		return nil
	}

	// Generate syntax tree by lexing and parsing source code.
	if err := frontend.Parse(src); err != nil {
		return fmt.Errorf("parse error: %s", err)
	}

	// Generate symbol table and bind identifiers.
	if err = ir.GenerateSymTab(opt); err != nil {
		return err
	}

	// Validate source code.
	if err = ir.ValidateTree(opt); err != nil {
		return err
	}

	if opt.Verbose {
		ir.Root.Print(0, true)
	}

	// Gen LLVM and exit, if flag is passed.
	if opt.LLVM {
		if err = llvm.GenLLVM(opt, ir.Root); err != nil {
			return fmt.Errorf("error reported by LLVM: %s", err)
		}
		return nil
	}

	// Generate output assembler.
	if err = backend.GenerateAssembler(opt); err != nil {
		return fmt.Errorf("code generation error: %s", err)
	}
	return nil
}

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Command line argument error: %s\n", err)
		os.Exit(1)
	}

	// Initiate output writer.
	var out *os.File
	if len(opt.Out) > 0 {
		// Attempt to open output file. Create new file if necessary.
		if f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			defer func(f *os.File) {
				if err := f.Close(); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}(f)
			out = f
		} else {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		// Write results to stdout.
		out = os.Stdout
	}
	util.ListenWrite(out)

	status := 0
	if err := run(opt); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		status = 1
	}

	// Wait for code generation output to drain.
	if err := util.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		status = 1
	}
	os.Exit(status)
}
