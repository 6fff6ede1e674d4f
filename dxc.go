package dxc

// Memory represents the guest compiler's linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
}

// Allocator allocates memory on the guest compiler's heap.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32)
}
