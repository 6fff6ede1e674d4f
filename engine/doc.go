// Package engine integrates the guest compiler module with wazero.
//
// An Engine owns the wazero runtime: it instantiates WASI and the
// mach_dxc host module (include dispatch), compiles the guest's wasm
// bytes once, and stamps out Instances. An Instance is one live guest
// with its exports resolved; it exposes typed methods over the raw
// reactor ABI (see names.go) and serializes all guest invocations,
// because a wasm instance is single-threaded.
//
// The module-lifecycle gate lives here too: the guest's dxc_initialize
// and dxc_shutdown exports stand in for the load/unload hooks a shared
// library would run automatically, and Instance reference-counts live
// compiler handles so setup runs only on the 0->1 transition and
// teardown only on 1->0. Handles on distinct Instances are fully
// isolated from each other.
package engine
