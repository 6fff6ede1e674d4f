// Package dxc provides Go bindings for the DXC HLSL shader compiler,
// delivered as a WebAssembly (WASI reactor) module and executed with wazero.
//
// The compiler itself is an opaque external collaborator: this library is
// purely the boundary layer around it. It manages opaque handle lifecycles,
// converts between UTF-8 and the compiler's wide-character strings,
// marshals command-line arguments into guest memory, and bridges the
// compiler's #include resolution to caller-supplied Go callbacks.
//
// # Architecture Overview
//
//	dxc/            Root package with the Memory and Allocator interfaces
//	├── compiler/   High-level API: Compiler, Result, error/object handles
//	├── engine/     wazero integration, guest exports, lifecycle gating
//	├── marshal/    Wide-string encoding and argument vector marshaling
//	├── include/    Include-resolution host bridge
//	├── resource/   Reference-counted handle table
//	└── errors/     Structured error types for debugging
//
// # Quick Start
//
// Compile an HLSL pixel shader:
//
//	wasm, _ := os.ReadFile("dxcompiler.wasm")
//
//	c, err := compiler.New(ctx, compiler.Options{Module: wasm})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	res, err := c.Compile(ctx, source, []string{"-T", "ps_6_0", "-E", "main"}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer res.Close(ctx)
//
//	if obj, _ := res.Object(ctx); obj != nil {
//	    defer obj.Close(ctx)
//	    bytecode, _ := obj.Bytes(ctx)
//	    // ...
//	}
//
// # Handle Lifecycle
//
// Every handle (Compiler, Result, CompileError, CompileObject) wraps one
// reference to a guest-side object and must be closed exactly once.
// Extracted handles are independent of their parent: closing a Result does
// not invalidate a CompileError or CompileObject obtained from it.
// Operations on a closed handle return a structured closed-handle error.
//
// # Thread Safety
//
// Distinct Compilers may be used concurrently. A single Compiler serializes
// its Compile calls internally; the underlying compiler service is not
// reentrant per instance.
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. Compiled bytecode and
// diagnostic text are copied out of guest memory on access, so returned
// slices and strings stay valid after the owning handle is closed.
package dxc
