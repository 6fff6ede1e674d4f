package compiler

import (
	"context"

	"github.com/machlibs/dxc/errors"
	"github.com/machlibs/dxc/resource"
)

// Result is an opaque handle to one compilation's full output.
//
// Extraction is repeatable: every Error or Object call returns a fresh,
// independently owned handle backed by its own guest reference, so a
// Result may be closed while extracted handles stay valid, and vice
// versa. A nil extracted handle means that output does not exist.
//
// "Object is nil" is the authoritative failure signal; a non-nil Error
// alongside a non-nil Object carries warnings only.
type Result struct {
	c      *Compiler
	handle resource.Handle
	ref    uint32
}

// Error extracts the diagnostic text handle, or nil on a clean compile.
func (r *Result) Error(ctx context.Context) (*CompileError, error) {
	if _, ok := r.c.table.Get(r.handle, resource.TypeResult); !ok {
		return nil, errors.ClosedHandle(errors.PhaseExtract, "result")
	}

	blobRef, err := r.c.guest.ResultGetError(ctx, r.ref)
	if err != nil {
		return nil, err
	}
	if blobRef == 0 {
		return nil, nil
	}

	h, err := r.c.table.Insert(resource.TypeErrorBlob, &guestRef{ref: blobRef, release: r.c.guest.BlobRelease})
	if err != nil {
		_ = r.c.guest.BlobRelease(ctx, blobRef)
		return nil, err
	}
	return &CompileError{c: r.c, handle: h, ref: blobRef}, nil
}

// Object extracts the compiled bytecode handle, or nil when compilation
// failed.
func (r *Result) Object(ctx context.Context) (*CompileObject, error) {
	if _, ok := r.c.table.Get(r.handle, resource.TypeResult); !ok {
		return nil, errors.ClosedHandle(errors.PhaseExtract, "result")
	}

	blobRef, err := r.c.guest.ResultGetObject(ctx, r.ref)
	if err != nil {
		return nil, err
	}
	if blobRef == 0 {
		return nil, nil
	}

	h, err := r.c.table.Insert(resource.TypeObjectBlob, &guestRef{ref: blobRef, release: r.c.guest.BlobRelease})
	if err != nil {
		_ = r.c.guest.BlobRelease(ctx, blobRef)
		return nil, err
	}
	return &CompileObject{c: r.c, handle: h, ref: blobRef}, nil
}

// Close releases the result. Must be called exactly once.
func (r *Result) Close(ctx context.Context) error {
	if err := r.c.table.Release(ctx, r.handle); err != nil {
		return errors.ClosedHandle(errors.PhaseShutdown, "result")
	}
	return nil
}

// CompileObject is an opaque handle to compiled bytecode.
type CompileObject struct {
	c      *Compiler
	handle resource.Handle
	ref    uint32
}

// Bytes returns a copy of the compiled payload.
func (o *CompileObject) Bytes(ctx context.Context) ([]byte, error) {
	if _, ok := o.c.table.Get(o.handle, resource.TypeObjectBlob); !ok {
		return nil, errors.ClosedHandle(errors.PhaseExtract, "object")
	}
	return o.c.guest.BlobBytes(ctx, o.ref)
}

// Len returns the payload byte length.
func (o *CompileObject) Len(ctx context.Context) (uint32, error) {
	if _, ok := o.c.table.Get(o.handle, resource.TypeObjectBlob); !ok {
		return 0, errors.ClosedHandle(errors.PhaseExtract, "object")
	}
	return o.c.guest.BlobLen(ctx, o.ref)
}

// Close releases the object. Must be called exactly once.
func (o *CompileObject) Close(ctx context.Context) error {
	if err := o.c.table.Release(ctx, o.handle); err != nil {
		return errors.ClosedHandle(errors.PhaseShutdown, "object")
	}
	return nil
}

// CompileError is an opaque handle to a compile's diagnostic text.
// The text includes compiler warnings unless they were suppressed in the
// compile arguments; that is the compiler's behavior, not this layer's.
type CompileError struct {
	c      *Compiler
	handle resource.Handle
	ref    uint32
}

// String returns the UTF-8 diagnostic text.
func (e *CompileError) String(ctx context.Context) (string, error) {
	if _, ok := e.c.table.Get(e.handle, resource.TypeErrorBlob); !ok {
		return "", errors.ClosedHandle(errors.PhaseExtract, "error")
	}
	b, err := e.c.guest.BlobBytes(ctx, e.ref)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Len returns the diagnostic text byte length.
func (e *CompileError) Len(ctx context.Context) (uint32, error) {
	if _, ok := e.c.table.Get(e.handle, resource.TypeErrorBlob); !ok {
		return 0, errors.ClosedHandle(errors.PhaseExtract, "error")
	}
	return e.c.guest.BlobLen(ctx, e.ref)
}

// Close releases the error. Must be called exactly once.
func (e *CompileError) Close(ctx context.Context) error {
	if err := e.c.table.Release(ctx, e.handle); err != nil {
		return errors.ClosedHandle(errors.PhaseShutdown, "error")
	}
	return nil
}
