package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/machlibs/dxc"
	"github.com/machlibs/dxc/errors"
	"github.com/machlibs/dxc/include"
	"github.com/machlibs/dxc/marshal"
)

// Instance is a live guest compiler module. Guest references (compiler
// services, results, blobs) returned by its methods are plain uint32
// values inside this instance; each non-zero reference must be released
// through the corresponding Release method exactly once.
//
// Guest invocations are serialized on an internal mutex: the wasm instance
// is single-threaded, and the compile path additionally owns the include
// slot for its whole duration.
type Instance struct {
	engine *Engine
	mod    api.Module
	fns    map[string]api.Function
	slot   include.Slot

	mu     sync.Mutex
	closed bool

	lifeMu sync.Mutex
	live   int
}

// call invokes a guest export under the instance lock.
func (i *Instance) call(ctx context.Context, name string, params ...uint64) (uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.callLocked(ctx, name, params...)
}

// callLocked invokes a guest export; i.mu must be held.
func (i *Instance) callLocked(ctx context.Context, name string, params ...uint64) (uint64, error) {
	if i.closed {
		return 0, errors.ClosedHandle(errors.PhaseRuntime, "instance")
	}
	results, err := i.fns[name].Call(ctx, params...)
	if err != nil {
		return 0, errors.GuestTrap(name, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

// AcquireLifecycle registers one live compiler handle. The guest's
// module-lifecycle setup runs only on the 0->1 transition, so overlapping
// handles on a shared instance cannot double-initialize shared state.
func (i *Instance) AcquireLifecycle(ctx context.Context) error {
	i.lifeMu.Lock()
	defer i.lifeMu.Unlock()

	if i.live == 0 {
		ret, err := i.call(ctx, ExportInitialize)
		if err != nil {
			return err
		}
		if ret != 0 {
			return errors.New(errors.PhaseInit, errors.KindInstantiation).
				Export(ExportInitialize).
				Value(uint32(ret)).
				Detail("module lifecycle setup failed with code %d", uint32(ret)).
				Build()
		}
		Logger().Debug("module lifecycle initialized")
	}
	i.live++
	return nil
}

// ReleaseLifecycle unregisters one live compiler handle; teardown runs
// only on the 1->0 transition.
func (i *Instance) ReleaseLifecycle(ctx context.Context) error {
	i.lifeMu.Lock()
	defer i.lifeMu.Unlock()

	if i.live == 0 {
		return errors.InvalidInput(errors.PhaseShutdown, "lifecycle release without matching acquire")
	}
	i.live--
	if i.live == 0 {
		if _, err := i.call(ctx, ExportShutdown); err != nil {
			return err
		}
		Logger().Debug("module lifecycle shut down")
	}
	return nil
}

// LiveHandles reports the number of acquired compiler handles.
func (i *Instance) LiveHandles() int {
	i.lifeMu.Lock()
	defer i.lifeMu.Unlock()
	return i.live
}

// CreateCompiler constructs a guest compiler service.
func (i *Instance) CreateCompiler(ctx context.Context) (uint32, error) {
	ref, err := i.call(ctx, ExportCompilerCreate)
	if err != nil {
		return 0, err
	}
	if ref == 0 {
		return 0, errors.New(errors.PhaseInit, errors.KindInstantiation).
			Export(ExportCompilerCreate).
			Detail("guest failed to construct compiler service").
			Build()
	}
	return uint32(ref), nil
}

// ReleaseCompiler releases a compiler service reference.
func (i *Instance) ReleaseCompiler(ctx context.Context, ref uint32) error {
	_, err := i.call(ctx, ExportCompilerRelease, uint64(ref))
	return err
}

// Compile runs one compilation: marshals source and arguments into guest
// memory, installs the include bridge for the duration of the guest call,
// and frees every marshaling allocation on all exit paths. Returns the
// guest result reference.
func (i *Instance) Compile(ctx context.Context, compilerRef uint32, source []byte, args []string, cb *include.Callbacks) (uint32, error) {
	if err := cb.Validate(); err != nil {
		return 0, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return 0, errors.ClosedHandle(errors.PhaseCompile, "instance")
	}

	mem := WrapMemory(i.mod.Memory())
	alloc := WrapAllocator(ctx, i.fns[ExportMalloc], i.fns[ExportFree])
	allocs := marshal.NewAllocList()
	defer allocs.FreeAndRelease(alloc)

	var srcPtr uint32
	if len(source) > 0 {
		var err error
		srcPtr, err = alloc.Alloc(uint32(len(source)))
		if err != nil || srcPtr == 0 {
			return 0, errors.AllocationFailed(errors.PhaseMarshal, uint32(len(source)))
		}
		allocs.Add(srcPtr, uint32(len(source)))
		if err := mem.Write(srcPtr, source); err != nil {
			return 0, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write source")
		}
	}

	argvPtr, err := marshal.MarshalArgs(mem, alloc, allocs, args)
	if err != nil {
		return 0, err
	}

	var flags uint64
	if cb != nil {
		// The bridge lives exactly as long as this guest call.
		i.slot.Set(include.NewBridge(cb))
		defer i.slot.Clear()
		flags = 1
	}

	ref, err := i.callLocked(ctx, ExportCompile,
		uint64(compilerRef),
		uint64(srcPtr), uint64(len(source)),
		uint64(argvPtr), uint64(len(args)),
		flags)
	if err != nil {
		return 0, err
	}
	if ref == 0 {
		return 0, errors.New(errors.PhaseCompile, errors.KindInvalidInput).
			Export(ExportCompile).
			Detail("guest returned a null compile result").
			Build()
	}

	Logger().Debug("compile finished",
		zap.Int("source_bytes", len(source)),
		zap.Int("args", len(args)),
		zap.Bool("include_bridge", cb != nil))
	return uint32(ref), nil
}

// ResultGetError extracts an addref'd diagnostic blob; 0 means none.
func (i *Instance) ResultGetError(ctx context.Context, resultRef uint32) (uint32, error) {
	ref, err := i.call(ctx, ExportResultGetError, uint64(resultRef))
	return uint32(ref), err
}

// ResultGetObject extracts an addref'd object blob; 0 means none.
func (i *Instance) ResultGetObject(ctx context.Context, resultRef uint32) (uint32, error) {
	ref, err := i.call(ctx, ExportResultGetObject, uint64(resultRef))
	return uint32(ref), err
}

// ResultRelease releases a result reference.
func (i *Instance) ResultRelease(ctx context.Context, resultRef uint32) error {
	_, err := i.call(ctx, ExportResultRelease, uint64(resultRef))
	return err
}

// BlobLen returns a blob's payload byte length.
func (i *Instance) BlobLen(ctx context.Context, blobRef uint32) (uint32, error) {
	n, err := i.call(ctx, ExportBlobLen, uint64(blobRef))
	return uint32(n), err
}

// BlobBytes copies a blob's payload out of guest memory.
func (i *Instance) BlobBytes(ctx context.Context, blobRef uint32) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	ptr, err := i.callLocked(ctx, ExportBlobPtr, uint64(blobRef))
	if err != nil {
		return nil, err
	}
	length, err := i.callLocked(ctx, ExportBlobLen, uint64(blobRef))
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	view, ok := i.mod.Memory().Read(uint32(ptr), uint32(length))
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseExtract, []string{"blob"}, uint32(ptr), uint32(length))
	}
	// The view aliases linear memory; copy so the payload survives both
	// memory growth and the blob's release.
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// BlobRelease releases a blob reference.
func (i *Instance) BlobRelease(ctx context.Context, blobRef uint32) error {
	_, err := i.call(ctx, ExportBlobRelease, uint64(blobRef))
	return err
}

// Memory exposes the guest linear memory.
func (i *Instance) Memory() dxc.Memory {
	return WrapMemory(i.mod.Memory())
}

// Close tears the instance down. Outstanding guest references become
// invalid; the engine's include dispatch entry is removed.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return errors.ClosedHandle(errors.PhaseShutdown, "instance")
	}
	i.closed = true
	i.mu.Unlock()

	i.engine.slots.Delete(i.mod.Name())
	return i.mod.Close(ctx)
}
