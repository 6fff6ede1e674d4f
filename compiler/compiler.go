package compiler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/machlibs/dxc/engine"
	"github.com/machlibs/dxc/errors"
	"github.com/machlibs/dxc/include"
	"github.com/machlibs/dxc/resource"
)

// Options configures compiler construction.
type Options struct {
	// Module holds the guest compiler's wasm bytes (a WASI reactor
	// build of the DXC toolchain). Required for New.
	Module []byte

	// MemoryLimitPages caps guest memory in 64KB pages. 0 = default.
	MemoryLimitPages uint32

	// Logger enables boundary-layer tracing. Nil keeps the no-op default.
	Logger *zap.Logger
}

// Compiler is an opaque handle to a live compiler service instance.
//
// A Compiler created with New owns its engine and guest instance;
// handles created with NewShared share a caller-managed instance and
// only the module-lifecycle gate distinguishes first from last.
type Compiler struct {
	guest  Guest
	table  *resource.Table
	handle resource.Handle
	ref    uint32

	// Owned infrastructure; nil for shared handles.
	engine *engine.Engine
	inst   *engine.Instance

	mu sync.Mutex // serializes Compile; the service is not reentrant
}

// New loads the guest compiler module and returns a ready Compiler.
func New(ctx context.Context, opts Options) (*Compiler, error) {
	if opts.Logger != nil {
		engine.SetLogger(opts.Logger)
	}

	eng, err := engine.New(ctx, opts.Module, &engine.Config{MemoryLimitPages: opts.MemoryLimitPages})
	if err != nil {
		return nil, err
	}

	inst, err := eng.Instantiate(ctx)
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}

	c, err := attach(ctx, inst)
	if err != nil {
		_ = inst.Close(ctx)
		_ = eng.Close(ctx)
		return nil, err
	}
	c.engine = eng
	c.inst = inst
	return c, nil
}

// NewShared binds another Compiler handle to an existing guest instance.
// The instance's lifecycle gate ensures module setup ran when the first
// handle appeared and teardown waits for the last one.
func NewShared(ctx context.Context, g Guest) (*Compiler, error) {
	return attach(ctx, g)
}

func attach(ctx context.Context, g Guest) (*Compiler, error) {
	if err := g.AcquireLifecycle(ctx); err != nil {
		return nil, err
	}

	ref, err := g.CreateCompiler(ctx)
	if err != nil {
		_ = g.ReleaseLifecycle(ctx)
		return nil, err
	}

	c := &Compiler{
		guest: g,
		table: resource.NewTable(),
		ref:   ref,
	}
	c.handle, err = c.table.Insert(resource.TypeCompiler, &guestRef{ref: ref, release: g.ReleaseCompiler})
	if err != nil {
		_ = g.ReleaseCompiler(ctx, ref)
		_ = g.ReleaseLifecycle(ctx)
		return nil, err
	}
	return c, nil
}

// Compile runs one compilation and returns its result handle. The call
// blocks until the guest returns; include callbacks, when given, are
// invoked synchronously from inside it.
//
// A compile that fails with diagnostics still returns a valid *Result
// whose Object is nil; a non-nil error here means the boundary itself
// failed (bad arguments, closed handle, guest trap).
func (c *Compiler) Compile(ctx context.Context, source []byte, args []string, cb *include.Callbacks) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.table.Get(c.handle, resource.TypeCompiler); !ok {
		return nil, errors.ClosedHandle(errors.PhaseCompile, "compiler")
	}

	resRef, err := c.guest.Compile(ctx, c.ref, source, args, cb)
	if err != nil {
		return nil, err
	}

	h, err := c.table.Insert(resource.TypeResult, &guestRef{ref: resRef, release: c.guest.ResultRelease})
	if err != nil {
		_ = c.guest.ResultRelease(ctx, resRef)
		return nil, err
	}
	return &Result{c: c, handle: h, ref: resRef}, nil
}

// LiveHandles reports handles (results and extracted blobs included)
// this Compiler still tracks. Useful as a leak check before Close.
func (c *Compiler) LiveHandles() int {
	return c.table.Len()
}

// Close releases the compiler service reference and runs lifecycle
// teardown. Results and blobs extracted from this Compiler should be
// closed first: a Compiler that owns its instance takes the guest down
// with it. Close is not idempotent; a second call fails.
func (c *Compiler) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.table.Release(ctx, c.handle); err != nil {
		return errors.ClosedHandle(errors.PhaseShutdown, "compiler")
	}

	err := c.guest.ReleaseLifecycle(ctx)

	if c.inst != nil {
		if cerr := c.inst.Close(ctx); err == nil {
			err = cerr
		}
	}
	if c.engine != nil {
		if cerr := c.engine.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}
