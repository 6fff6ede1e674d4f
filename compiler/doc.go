// Package compiler is the high-level API for compiling HLSL with the
// wasm-hosted DXC toolchain.
//
// The shape mirrors the underlying object model: a Compiler produces
// Results, a Result yields at most one CompileError and one CompileObject,
// and every handle is closed exactly once by its owner. See the root
// package documentation for a usage example.
//
// Compiler flags passed to Compile are opaque pass-through strings: they
// are converted to the compiler's wide encoding and forwarded verbatim,
// never parsed or validated by this layer.
package compiler
