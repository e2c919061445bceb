package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vslc64/src/backend"
	"vslc64/src/frontend"
	"vslc64/src/ir"
	"vslc64/src/util"
)

// -----------------------------
// ----- Type definitions ------
// -----------------------------

// benchType defines a benchmark with pre-defined benchmark parameters.
type benchType struct {
	name string // Informative name of benchmark.
	src  string // The VSL source as a string.
}

// --------------------
// ----- Globals ------
// --------------------

// programs holds the bundled VSL sources compiled by the end-to-end tests and benchmarks.
var programs = []benchType{
	{name: "identity", src: `func f(x) { return x }`},
	{name: "arithmetic", src: `func g(a, b) { return a*b + (a-b) }`},
	{name: "printing", src: `func main() { var x; x := 7; print "answer", x, x*6 }`},
	{name: "euclid", src: `
func gcd(a, b) {
	while b > 0 {
		var t
		t := b
		b := a - (a / b) * b
		a := t
	}
	return a
}
`},
	{name: "fibonacci", src: `
func fib(n) {
	if n < 2 return n
	return fib(n - 1) + fib(n - 2)
}
`},
}

// ----------------------
// ----- Functions ------
// ----------------------

// benchRun runs the compiler stages, exactly like the run function, but on an
// in-memory source string.
func benchRun(src string, opt util.Options) error {
	if err := frontend.Parse(src); err != nil {
		return fmt.Errorf("parse error: %s", err)
	}
	if err := ir.GenerateSymTab(opt); err != nil {
		return err
	}
	if err := ir.ValidateTree(opt); err != nil {
		return err
	}
	if err := backend.GenerateAssembler(opt); err != nil {
		return err
	}
	return nil
}

// TestCompilePrograms compiles every bundled program through the full pipeline
// and verifies that non-empty, deterministic assembly is produced.
func TestCompilePrograms(t *testing.T) {
	opt := util.Options{Threads: 1, TargetArch: util.X86_64}
	for _, e1 := range programs {
		t.Run(e1.name, func(t *testing.T) {
			out := make([]string, 2)
			for i1 := range out {
				buf := bytes.Buffer{}
				util.ListenWrite(&buf)
				if err := benchRun(e1.src, opt); err != nil {
					t.Fatalf("compiler error: %s", err)
				}
				if err := util.Close(); err != nil {
					t.Fatal(err)
				}
				out[i1] = buf.String()
			}
			if len(out[0]) == 0 {
				t.Fatal("no assembly produced")
			}
			if out[0] != out[1] {
				t.Error("two runs over the same source produced different output")
			}
			for _, section := range []string{".section .rodata", ".section .bss", ".section .text", ".globl main"} {
				if !strings.Contains(out[0], section) {
					t.Errorf("output is missing %q", section)
				}
			}
		})
	}
}

// TestRun exercises the run function against a source file on disk, writing
// the assembly to an output file.
func TestRun(t *testing.T) {
	dir := t.TempDir()
	srcp := filepath.Join(dir, "identity.vsl")
	dstp := filepath.Join(dir, "identity.s")
	if err := ioutil.WriteFile(srcp, []byte(programs[0].src), 0644); err != nil {
		t.Fatal(err)
	}

	opt := util.Options{Threads: 1, TargetArch: util.X86_64, Src: srcp, Out: dstp}
	f, err := os.OpenFile(dstp, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	util.ListenWrite(f)
	if err := run(opt); err != nil {
		t.Fatalf("compiler error: %s", err)
	}
	if err := util.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := ioutil.ReadFile(dstp)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), ".globl _func_f") {
		t.Error("output file is missing the compiled function")
	}
}

// TestRunErrors verifies that source errors surface as errors from run.
func TestRunErrors(t *testing.T) {
	sources := []string{
		`func f( { return 0 }`,           // Syntax error.
		`func f() { return x }`,          // Undeclared identifier.
		`func f(a) { return f(1, 2) }`,   // Arity mismatch.
		`func f() { continue return 0 }`, // Continue outside loop.
	}
	opt := util.Options{Threads: 1, TargetArch: util.X86_64}
	for i1, e1 := range sources {
		buf := bytes.Buffer{}
		util.ListenWrite(&buf)
		if err := benchRun(e1, opt); err == nil {
			t.Errorf("(source %d): expected compiler error, got none", i1)
		}
		if err := util.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

// BenchmarkX86 benchmarks compiling the bundled programs into x86-64 assembler.
func BenchmarkX86(b *testing.B) {
	opt := util.Options{Threads: 1, TargetArch: util.X86_64}
	for _, e1 := range programs {
		b.Run(e1.name, func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				buf := bytes.Buffer{}
				util.ListenWrite(&buf)
				if err := benchRun(e1.src, opt); err != nil {
					b.Fatalf("compiler error: %s", err)
				}
				if err := util.Close(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
