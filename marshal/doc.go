// Package marshal converts text between the host's UTF-8 strings and the
// guest compiler's wide (UTF-16LE) representation, and lowers compiler
// argument lists into guest memory.
//
// Two conventions apply throughout:
//
//   - Wide strings written into guest memory are null-terminated; lengths
//     exchanged across the boundary are byte counts, not code units.
//   - Every guest allocation made on behalf of one compile call is recorded
//     in an AllocList so the caller can free them uniformly on all exit
//     paths.
//
// Argument vectors are a single exact-sized allocation holding the pointer
// table and the string payloads back to back; the consuming guest copies
// what it keeps, so the block is freed as soon as the call returns.
package marshal
