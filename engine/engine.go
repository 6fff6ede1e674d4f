package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/machlibs/dxc/errors"
	"github.com/machlibs/dxc/include"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// Engine owns the wazero runtime, the compiled guest compiler module, and
// the host-side include dispatch. One Engine can back several Instances,
// though a single shared Instance is the common arrangement.
type Engine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	slots    sync.Map // instance module name -> *include.Slot
	nameSeq  atomic.Uint64
}

// New creates an engine for the given guest compiler module bytes.
func New(ctx context.Context, wasmBytes []byte, cfg *Config) (*Engine, error) {
	if len(wasmBytes) == 0 {
		return nil, errors.InvalidInput(errors.PhaseInit, "guest compiler module bytes are empty")
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	e := &Engine{runtime: runtime}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseInit, errors.KindInstantiation, err, "instantiate WASI")
	}

	if err := e.instantiateHostModule(ctx); err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseInit, errors.KindInstantiation, err, "instantiate include host module")
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseInit, errors.KindInvalidInput, err, "compile guest module")
	}
	e.compiled = compiled

	Logger().Debug("engine created", zap.Int("module_bytes", len(wasmBytes)))
	return e, nil
}

// Close releases the runtime and everything instantiated in it.
// All instances must be closed before calling this.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func (e *Engine) instantiateHostModule(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.includeResolve),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32}).
		Export(HostIncludeResolve).
		Instantiate(ctx)
	return err
}

// includeResolve is the host function behind mach_dxc.include_resolve.
// It runs on the guest's stack in the middle of a compile call, so it must
// not touch any instance-level lock; the bridge works directly against the
// calling module's memory and malloc/free exports.
func (e *Engine) includeResolve(ctx context.Context, mod api.Module, stack []uint64) {
	outPtr := api.DecodeU32(stack[0])
	filenamePtr := api.DecodeU32(stack[1])
	filenameLen := api.DecodeU32(stack[2])

	status := include.StatusPassThrough
	if v, ok := e.slots.Load(mod.Name()); ok {
		if bridge := v.(*include.Slot).Current(); bridge != nil {
			mem := WrapMemory(mod.Memory())
			alloc := WrapAllocator(ctx, mod.ExportedFunction(ExportMalloc), mod.ExportedFunction(ExportFree))
			status = bridge.Serve(mem, alloc, outPtr, filenamePtr, filenameLen)
		}
	}
	stack[0] = uint64(status)
}

// Instantiate creates a live guest instance and resolves its exports.
func (e *Engine) Instantiate(ctx context.Context) (*Instance, error) {
	name := fmt.Sprintf("dxc-%d", e.nameSeq.Add(1))

	// Reactor convention: run _initialize (when present), never _start.
	modCfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize")

	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, modCfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInit, errors.KindInstantiation, err, "instantiate guest module")
	}

	fns := make(map[string]api.Function, len(requiredExports))
	for _, exportName := range requiredExports {
		fn := mod.ExportedFunction(exportName)
		if fn == nil {
			_ = mod.Close(ctx)
			return nil, errors.MissingExport(exportName)
		}
		fns[exportName] = fn
	}

	inst := &Instance{
		engine: e,
		mod:    mod,
		fns:    fns,
	}
	e.slots.Store(name, &inst.slot)

	Logger().Debug("guest instantiated", zap.String("name", name))
	return inst, nil
}
