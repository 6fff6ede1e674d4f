// Package resource implements the reference-counted handle table backing
// the library's opaque handles.
//
// Every guest-side object the host holds a reference to (a compiler
// service, a compile result, an extracted error or object blob) is
// registered here. The table pairs each acquisition with exactly one
// release: Insert and Retain acquire, Release releases, and the final
// Release forwards to the value's Releaser so the guest reference is
// dropped exactly once. Double-release and use-after-release surface as
// ErrInvalidHandle instead of corrupting guest state.
//
// Observers can subscribe to lifecycle events, which is how leak checks
// in tests and debug tooling count live handles.
package resource
