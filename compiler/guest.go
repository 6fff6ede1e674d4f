package compiler

import (
	"context"

	"github.com/machlibs/dxc/include"
)

// Guest is the surface of one live compiler instance that the handle API
// consumes. engine.Instance implements it; tests substitute fakes.
//
// References returned by Create/Compile/Get methods are guest-side object
// references. Every non-zero reference must be released exactly once
// through its matching release method.
type Guest interface {
	AcquireLifecycle(ctx context.Context) error
	ReleaseLifecycle(ctx context.Context) error

	CreateCompiler(ctx context.Context) (uint32, error)
	ReleaseCompiler(ctx context.Context, ref uint32) error

	Compile(ctx context.Context, compilerRef uint32, source []byte, args []string, cb *include.Callbacks) (uint32, error)

	ResultGetError(ctx context.Context, resultRef uint32) (uint32, error)
	ResultGetObject(ctx context.Context, resultRef uint32) (uint32, error)
	ResultRelease(ctx context.Context, resultRef uint32) error

	BlobLen(ctx context.Context, blobRef uint32) (uint32, error)
	BlobBytes(ctx context.Context, blobRef uint32) ([]byte, error)
	BlobRelease(ctx context.Context, blobRef uint32) error
}

// guestRef ties a guest reference to its release export so the resource
// table can drop it exactly once, on final release.
type guestRef struct {
	release func(ctx context.Context, ref uint32) error
	ref     uint32
}

func (g *guestRef) ReleaseRef(ctx context.Context) {
	_ = g.release(ctx, g.ref)
}
