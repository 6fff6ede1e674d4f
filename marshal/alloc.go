package marshal

import "sync"

type allocation struct {
	ptr  uint32
	size uint32
}

// AllocList collects the guest allocations made for one compile call so
// they can be freed together on every exit path, success or failure.
type AllocList struct {
	allocations []allocation
}

var allocListPool = sync.Pool{
	New: func() any {
		return &AllocList{allocations: make([]allocation, 0, 8)}
	},
}

func NewAllocList() *AllocList {
	return allocListPool.Get().(*AllocList)
}

const maxPooledAllocCapacity = 64

// Release returns to pool. Must call after Free(); list invalid after Release.
func (al *AllocList) Release() {
	if cap(al.allocations) > maxPooledAllocCapacity {
		return
	}
	al.Reset()
	allocListPool.Put(al)
}

func (al *AllocList) FreeAndRelease(alloc Allocator) {
	al.Free(alloc)
	al.Release()
}

func (al *AllocList) Add(ptr, size uint32) {
	al.allocations = append(al.allocations, allocation{ptr: ptr, size: size})
}

func (al *AllocList) Free(alloc Allocator) {
	if alloc == nil {
		return
	}
	for _, a := range al.allocations {
		if a.ptr != 0 {
			alloc.Free(a.ptr)
		}
	}
}

func (al *AllocList) Reset() {
	al.allocations = al.allocations[:0]
}

func (al *AllocList) Count() int {
	return len(al.allocations)
}
