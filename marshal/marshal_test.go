package marshal

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	dxcerrors "github.com/machlibs/dxc/errors"
)

// mockMemory implements Memory for testing
type mockMemory struct {
	data []byte
}

func newMockMemory(size int) *mockMemory {
	return &mockMemory{data: make([]byte, size)}
}

func (m *mockMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if int(offset)+int(length) > len(m.data) {
		return nil, errors.New("out of bounds")
	}
	return m.data[offset : offset+length], nil
}

func (m *mockMemory) Write(offset uint32, data []byte) error {
	if int(offset)+len(data) > len(m.data) {
		return errors.New("out of bounds")
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *mockMemory) ReadU16(offset uint32) (uint16, error) {
	if int(offset)+2 > len(m.data) {
		return 0, errors.New("out of bounds")
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *mockMemory) ReadU32(offset uint32) (uint32, error) {
	if int(offset)+4 > len(m.data) {
		return 0, errors.New("out of bounds")
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *mockMemory) WriteU16(offset uint32, value uint16) error {
	if int(offset)+2 > len(m.data) {
		return errors.New("out of bounds")
	}
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *mockMemory) WriteU32(offset uint32, value uint32) error {
	if int(offset)+4 > len(m.data) {
		return errors.New("out of bounds")
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

// mockAllocator implements Allocator for testing
type mockAllocator struct {
	mem    *mockMemory
	offset uint32
	allocs int
	frees  []uint32
	fail   bool
}

func newMockAllocator(mem *mockMemory) *mockAllocator {
	return &mockAllocator{offset: 1024, mem: mem} // start at 1024 to test non-zero offsets
}

func (a *mockAllocator) Alloc(size uint32) (uint32, error) {
	if a.fail {
		return 0, errors.New("guest heap exhausted")
	}
	ptr := a.offset
	a.offset += size
	a.allocs++
	if int(a.offset) > len(a.mem.data) {
		return 0, errors.New("guest heap exhausted")
	}
	return ptr, nil
}

func (a *mockAllocator) Free(ptr uint32) {
	a.frees = append(a.frees, ptr)
}

func TestWideRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"ascii", "-T ps_6_0"},
		{"latin", "données"},
		{"cjk", "着色器"},
		{"surrogate pair", "shader \U0001F600.hlsl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wide, err := EncodeWide(tt.in)
			if err != nil {
				t.Fatalf("EncodeWide: %v", err)
			}
			out, err := DecodeWide(wide)
			if err != nil {
				t.Fatalf("DecodeWide: %v", err)
			}
			if out != tt.in {
				t.Errorf("round trip = %q, want %q", out, tt.in)
			}
		})
	}
}

func TestEncodeWideInvalidUTF8(t *testing.T) {
	_, err := EncodeWide(string([]byte{0xff, 0xfe, 0xfd}))
	if err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
	if !errors.Is(err, &dxcerrors.Error{Phase: dxcerrors.PhaseMarshal, Kind: dxcerrors.KindEncoding}) {
		t.Errorf("err = %v, want marshal/encoding", err)
	}
}

func TestDecodeWideOddLength(t *testing.T) {
	if _, err := DecodeWide([]byte{0x61, 0x00, 0x62}); err == nil {
		t.Fatal("expected error for odd byte length")
	}
}

func TestWriteReadWideString(t *testing.T) {
	mem := newMockMemory(64 * 1024)
	alloc := newMockAllocator(mem)
	allocs := NewAllocList()
	defer allocs.FreeAndRelease(alloc)

	ptr, err := WriteWideString(mem, alloc, allocs, "float4 main()")
	if err != nil {
		t.Fatalf("WriteWideString: %v", err)
	}
	if allocs.Count() != 1 {
		t.Errorf("allocations recorded = %d, want 1", allocs.Count())
	}

	got, err := ReadWideString(mem, ptr)
	if err != nil {
		t.Fatalf("ReadWideString: %v", err)
	}
	if got != "float4 main()" {
		t.Errorf("read back %q", got)
	}
}

func TestReadWideStringLen(t *testing.T) {
	mem := newMockMemory(4096)
	wide, _ := EncodeWide("foo.h")
	if err := mem.Write(100, wide); err != nil {
		t.Fatal(err)
	}

	got, err := ReadWideStringLen(mem, 100, uint32(len(wide)))
	if err != nil {
		t.Fatalf("ReadWideStringLen: %v", err)
	}
	if got != "foo.h" {
		t.Errorf("got %q", got)
	}

	empty, err := ReadWideStringLen(mem, 100, 0)
	if err != nil || empty != "" {
		t.Errorf("zero length read = %q, %v", empty, err)
	}
}

func TestMarshalArgsRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"none", nil},
		{"single", []string{"-Zi"}},
		{"typical", []string{"-T", "ps_6_0", "-E", "main"}},
		{"mixed width", []string{"-D", "NAME=着色器", "-I", "wide \U0001F600"}},
		{"empty strings", []string{"", "-Od", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newMockMemory(64 * 1024)
			alloc := newMockAllocator(mem)
			allocs := NewAllocList()
			defer allocs.FreeAndRelease(alloc)

			argv, err := MarshalArgs(mem, alloc, allocs, tt.args)
			if err != nil {
				t.Fatalf("MarshalArgs: %v", err)
			}

			if len(tt.args) == 0 {
				if argv != 0 {
					t.Errorf("argv = %d, want 0 for empty args", argv)
				}
				if alloc.allocs != 0 {
					t.Error("empty args must not allocate")
				}
				return
			}

			// The whole vector lives in one allocation.
			if alloc.allocs != 1 {
				t.Errorf("allocations = %d, want 1", alloc.allocs)
			}

			for i, want := range tt.args {
				ptr, err := mem.ReadU32(argv + uint32(i)*4)
				if err != nil {
					t.Fatalf("read argv[%d]: %v", i, err)
				}
				got, err := ReadWideString(mem, ptr)
				if err != nil {
					t.Fatalf("decode argv[%d]: %v", i, err)
				}
				if got != want {
					t.Errorf("argv[%d] = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestMarshalArgsDistinctRegions(t *testing.T) {
	mem := newMockMemory(64 * 1024)
	alloc := newMockAllocator(mem)
	allocs := NewAllocList()
	defer allocs.FreeAndRelease(alloc)

	args := []string{"-T", "ps_6_0", "-T"}
	argv, err := MarshalArgs(mem, alloc, allocs, args)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[uint32]bool{}
	for i := range args {
		ptr, _ := mem.ReadU32(argv + uint32(i)*4)
		if seen[ptr] {
			t.Errorf("argv[%d] aliases another argument at %d", i, ptr)
		}
		seen[ptr] = true
	}
}

func TestMarshalArgsInvalidArgument(t *testing.T) {
	mem := newMockMemory(4096)
	alloc := newMockAllocator(mem)
	allocs := NewAllocList()
	defer allocs.FreeAndRelease(alloc)

	_, err := MarshalArgs(mem, alloc, allocs, []string{"-T", string([]byte{0x80})})
	if err == nil {
		t.Fatal("expected encoding error")
	}
	var serr *dxcerrors.Error
	if !errors.As(err, &serr) {
		t.Fatalf("err type %T", err)
	}
	if serr.Kind != dxcerrors.KindEncoding {
		t.Errorf("Kind = %q", serr.Kind)
	}
	// Failure happens before any guest allocation.
	if alloc.allocs != 0 {
		t.Errorf("allocations = %d, want 0", alloc.allocs)
	}
	if !strings.Contains(err.Error(), "args.1") {
		t.Errorf("error does not name the argument index: %v", err)
	}
}

func TestMarshalArgsAllocFailure(t *testing.T) {
	mem := newMockMemory(4096)
	alloc := newMockAllocator(mem)
	alloc.fail = true
	allocs := NewAllocList()
	defer allocs.Release()

	_, err := MarshalArgs(mem, alloc, allocs, []string{"-Zi"})
	if !errors.Is(err, &dxcerrors.Error{Phase: dxcerrors.PhaseMarshal, Kind: dxcerrors.KindAllocation}) {
		t.Errorf("err = %v, want allocation failure", err)
	}
	if allocs.Count() != 0 {
		t.Error("failed allocation recorded")
	}
}

func TestAllocListFreesEverything(t *testing.T) {
	mem := newMockMemory(64 * 1024)
	alloc := newMockAllocator(mem)
	allocs := NewAllocList()

	p1, _ := WriteWideString(mem, alloc, allocs, "a")
	p2, _ := WriteWideString(mem, alloc, allocs, "b")

	allocs.FreeAndRelease(alloc)

	if len(alloc.frees) != 2 {
		t.Fatalf("frees = %d, want 2", len(alloc.frees))
	}
	if alloc.frees[0] != p1 || alloc.frees[1] != p2 {
		t.Errorf("freed %v, want [%d %d]", alloc.frees, p1, p2)
	}
}
