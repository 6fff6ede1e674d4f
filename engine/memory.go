package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/machlibs/dxc"
)

// WrapMemory adapts wazero api.Memory to the dxc.Memory interface.
func WrapMemory(mem api.Memory) dxc.Memory {
	if mem == nil {
		return nil
	}
	return &memoryWrapper{mem: mem}
}

type memoryWrapper struct {
	mem api.Memory
}

func (m *memoryWrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *memoryWrapper) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *memoryWrapper) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *memoryWrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *memoryWrapper) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *memoryWrapper) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WrapAllocator adapts the guest's malloc/free exports to dxc.Allocator.
// Calls run on the caller's goroutine; the instance-level lock must already
// be held, or the call must originate inside a guest invocation (host
// functions re-entering the guest on the same stack are safe).
func WrapAllocator(ctx context.Context, malloc, free api.Function) dxc.Allocator {
	if malloc == nil || free == nil {
		return nil
	}
	return &allocatorWrapper{ctx: ctx, malloc: malloc, free: free}
}

type allocatorWrapper struct {
	ctx    context.Context
	malloc api.Function
	free   api.Function
}

func (a *allocatorWrapper) Alloc(size uint32) (uint32, error) {
	results, err := a.malloc.Call(a.ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("guest malloc failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("guest malloc returned no result")
	}
	return uint32(results[0]), nil
}

func (a *allocatorWrapper) Free(ptr uint32) {
	_, _ = a.free.Call(a.ctx, uint64(ptr))
}
