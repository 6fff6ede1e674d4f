// Command dxcc compiles HLSL from the command line through a DXC guest
// module. The guest wasm is not bundled; point -wasm (or DXC_WASM) at a
// dxcompiler.wasm build.
//
// Usage:
//
//	dxcc -wasm dxcompiler.wasm [-o out.dxil] [-I dir]... shader.hlsl [compiler args...]
//
// Arguments after the source file are passed to the compiler untouched,
// so the usual DXC flags work:
//
//	dxcc -wasm dxcompiler.wasm shader.hlsl -T ps_6_0 -E main -HV 2021
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/machlibs/dxc/compiler"
	"github.com/machlibs/dxc/include"
)

type dirList []string

func (d *dirList) String() string { return strings.Join(*d, ",") }

func (d *dirList) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func main() {
	var includeDirs dirList
	var (
		wasmFile = flag.String("wasm", os.Getenv("DXC_WASM"), "Path to dxcompiler.wasm (or set DXC_WASM)")
		outFile  = flag.String("o", "", "Output file (default: source name with .dxil)")
		quiet    = flag.Bool("q", false, "Suppress warnings")
	)
	flag.Var(&includeDirs, "I", "Include search directory (repeatable)")
	flag.Parse()

	if *wasmFile == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: dxcc -wasm <dxcompiler.wasm> [-o out.dxil] [-I dir]... <shader.hlsl> [compiler args...]")
		os.Exit(2)
	}

	source := flag.Arg(0)
	compileArgs := flag.Args()[1:]

	if err := run(*wasmFile, source, *outFile, includeDirs, compileArgs, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", sty().errLabel, err)
		os.Exit(1)
	}
}

func run(wasmFile, source, outFile string, includeDirs []string, args []string, quiet bool) error {
	ctx := context.Background()
	s := sty()

	wasm, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	src, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	c, err := compiler.New(ctx, compiler.Options{Module: wasm})
	if err != nil {
		return fmt.Errorf("start compiler: %w", err)
	}
	defer c.Close(ctx)

	// Resolve includes against -I dirs and the source file's directory.
	search := append([]string{filepath.Dir(source)}, includeDirs...)
	cb := &include.Callbacks{
		Resolve: func(_ any, filename string) *include.Result {
			for _, dir := range search {
				data, err := os.ReadFile(filepath.Join(dir, filename))
				if err == nil {
					return &include.Result{Content: data}
				}
			}
			return nil
		},
		Release: func(any, *include.Result) {},
	}

	res, err := c.Compile(ctx, src, args, cb)
	if err != nil {
		return err
	}
	defer res.Close(ctx)

	diag, err := res.Error(ctx)
	if err != nil {
		return err
	}
	var diagText string
	if diag != nil {
		diagText, err = diag.String(ctx)
		diag.Close(ctx)
		if err != nil {
			return err
		}
	}

	obj, err := res.Object(ctx)
	if err != nil {
		return err
	}
	if obj == nil {
		fmt.Fprint(os.Stderr, s.paintDiagnostics(diagText))
		return fmt.Errorf("compilation of %s failed", source)
	}
	defer obj.Close(ctx)

	if diagText != "" && !quiet {
		fmt.Fprint(os.Stderr, s.paintDiagnostics(diagText))
	}

	data, err := obj.Bytes(ctx)
	if err != nil {
		return err
	}

	if outFile == "" {
		base := strings.TrimSuffix(source, filepath.Ext(source))
		outFile = base + ".dxil"
	}
	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%s %s (%d bytes)\n", s.okLabel, outFile, len(data))
	return nil
}
