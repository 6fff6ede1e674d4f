package include

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/machlibs/dxc/marshal"
)

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
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *mockMemory) ReadU32(offset uint32) (uint32, error) {
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *mockMemory) WriteU16(offset uint32, value uint16) error {
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *mockMemory) WriteU32(offset uint32, value uint32) error {
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

type mockAllocator struct {
	mem    *mockMemory
	offset uint32
	fail   bool
	frees  []uint32
}

func (a *mockAllocator) Alloc(size uint32) (uint32, error) {
	if a.fail {
		return 0, errors.New("guest heap exhausted")
	}
	if a.offset == 0 {
		a.offset = 4096
	}
	ptr := a.offset
	a.offset += size
	return ptr, nil
}

func (a *mockAllocator) Free(ptr uint32) {
	a.frees = append(a.frees, ptr)
}

// writeWideName places a wide filename into guest memory and returns its
// pointer and byte length.
func writeWideName(t *testing.T, mem *mockMemory, name string) (uint32, uint32) {
	t.Helper()
	wide, err := marshal.EncodeWide(name)
	if err != nil {
		t.Fatal(err)
	}
	const ptr = 512
	if err := mem.Write(ptr, wide); err != nil {
		t.Fatal(err)
	}
	return ptr, uint32(len(wide))
}

type recorder struct {
	names    []string
	releases []*Result
	content  map[string][]byte
}

func (r *recorder) callbacks() *Callbacks {
	return &Callbacks{
		Context: r,
		Resolve: func(ctx any, filename string) *Result {
			rec := ctx.(*recorder)
			rec.names = append(rec.names, filename)
			data, ok := rec.content[filename]
			if !ok {
				return nil
			}
			return &Result{Content: data}
		},
		Release: func(ctx any, result *Result) {
			rec := ctx.(*recorder)
			rec.releases = append(rec.releases, result)
		},
	}
}

func TestServeResolved(t *testing.T) {
	mem := newMockMemory(64 * 1024)
	alloc := &mockAllocator{mem: mem}
	rec := &recorder{content: map[string][]byte{"foo.h": []byte("#define X 1")}}
	b := NewBridge(rec.callbacks())

	namePtr, nameLen := writeWideName(t, mem, "foo.h")
	const out = 64

	status := b.Serve(mem, alloc, out, namePtr, nameLen)
	if status != StatusResolved {
		t.Fatalf("status = %d, want resolved", status)
	}
	if len(rec.names) != 1 || rec.names[0] != "foo.h" {
		t.Errorf("resolver saw %v", rec.names)
	}

	contentPtr, _ := mem.ReadU32(out)
	contentLen, _ := mem.ReadU32(out + 4)
	if contentLen != uint32(len("#define X 1")) {
		t.Errorf("content length = %d", contentLen)
	}
	got, _ := mem.Read(contentPtr, contentLen)
	if string(got) != "#define X 1" {
		t.Errorf("content = %q", got)
	}

	if len(rec.releases) != 1 {
		t.Fatalf("release called %d times, want 1", len(rec.releases))
	}
	if rec.releases[0] == nil || string(rec.releases[0].Content) != "#define X 1" {
		t.Error("release did not receive the resolved result")
	}
	if b.Requests() != 1 {
		t.Errorf("Requests = %d", b.Requests())
	}
}

func TestServeNotFound(t *testing.T) {
	mem := newMockMemory(64 * 1024)
	alloc := &mockAllocator{mem: mem}
	rec := &recorder{} // resolver always returns nil
	b := NewBridge(rec.callbacks())

	namePtr, nameLen := writeWideName(t, mem, "missing.h")
	const out = 64

	status := b.Serve(mem, alloc, out, namePtr, nameLen)
	if status != StatusResolved {
		t.Fatalf("status = %d, want resolved (empty content)", status)
	}

	contentPtr, _ := mem.ReadU32(out)
	contentLen, _ := mem.ReadU32(out + 4)
	if contentPtr != 0 || contentLen != 0 {
		t.Errorf("empty result = (%d, %d), want (0, 0)", contentPtr, contentLen)
	}

	// Release still fires exactly once, with the nil result.
	if len(rec.releases) != 1 || rec.releases[0] != nil {
		t.Errorf("releases = %v", rec.releases)
	}
}

func TestServeFilenameDecodeFailure(t *testing.T) {
	mem := newMockMemory(64 * 1024)
	alloc := &mockAllocator{mem: mem}
	rec := &recorder{}
	b := NewBridge(rec.callbacks())

	// Odd byte length cannot be valid UTF-16; the resolver must still be
	// called, with the empty string substituted.
	status := b.Serve(mem, alloc, 64, 512, 3)
	if status != StatusResolved {
		t.Fatalf("status = %d", status)
	}
	if len(rec.names) != 1 || rec.names[0] != "" {
		t.Errorf("resolver saw %v, want [\"\"]", rec.names)
	}
	if len(rec.releases) != 1 {
		t.Errorf("release called %d times, want 1", len(rec.releases))
	}
}

func TestServeAllocFailure(t *testing.T) {
	mem := newMockMemory(64 * 1024)
	alloc := &mockAllocator{mem: mem, fail: true}
	rec := &recorder{content: map[string][]byte{"foo.h": []byte("x")}}
	b := NewBridge(rec.callbacks())

	namePtr, nameLen := writeWideName(t, mem, "foo.h")
	status := b.Serve(mem, alloc, 64, namePtr, nameLen)
	if status != StatusContract {
		t.Fatalf("status = %d, want contract error", status)
	}
	// Release still fires exactly once on the failure path.
	if len(rec.releases) != 1 {
		t.Errorf("release called %d times, want 1", len(rec.releases))
	}
}

func TestServeMalformedCallbacks(t *testing.T) {
	mem := newMockMemory(1024)
	alloc := &mockAllocator{mem: mem}

	b := NewBridge(&Callbacks{Resolve: nil, Release: nil})
	if status := b.Serve(mem, alloc, 64, 0, 0); status != StatusContract {
		t.Errorf("status = %d, want contract error", status)
	}
}

func TestCallbacksValidate(t *testing.T) {
	var nilCB *Callbacks
	if err := nilCB.Validate(); err != nil {
		t.Errorf("nil callbacks should be valid (default resolution): %v", err)
	}

	resolve := func(any, string) *Result { return nil }
	release := func(any, *Result) {}

	if err := (&Callbacks{Resolve: resolve, Release: release}).Validate(); err != nil {
		t.Errorf("complete callbacks rejected: %v", err)
	}
	if err := (&Callbacks{Release: release}).Validate(); err == nil {
		t.Error("nil Resolve accepted")
	}
	if err := (&Callbacks{Resolve: resolve}).Validate(); err == nil {
		t.Error("nil Release accepted")
	}
}

func TestSlot(t *testing.T) {
	var s Slot
	if s.Current() != nil {
		t.Error("fresh slot not empty")
	}

	b := NewBridge(&Callbacks{
		Resolve: func(any, string) *Result { return nil },
		Release: func(any, *Result) {},
	})
	s.Set(b)
	if s.Current() != b {
		t.Error("Set did not install bridge")
	}
	s.Clear()
	if s.Current() != nil {
		t.Error("Clear left bridge installed")
	}
}

func TestServeReentrant(t *testing.T) {
	// Nested include: resolving "a.h" triggers a second request for "b.h"
	// from inside the resolver, the way the guest walks nested directives.
	mem := newMockMemory(64 * 1024)
	alloc := &mockAllocator{mem: mem}

	var b *Bridge
	releases := 0
	cb := &Callbacks{
		Resolve: func(ctx any, filename string) *Result {
			if filename == "a.h" {
				namePtr, nameLen := writeWideName(t, mem, "b.h")
				if status := b.Serve(mem, alloc, 128, namePtr, nameLen); status != StatusResolved {
					t.Errorf("nested status = %d", status)
				}
				return &Result{Content: []byte(`#include "b.h"`)}
			}
			return &Result{Content: []byte("int x;")}
		},
		Release: func(ctx any, result *Result) { releases++ },
	}
	b = NewBridge(cb)

	namePtr, nameLen := writeWideName(t, mem, "a.h")
	if status := b.Serve(mem, alloc, 64, namePtr, nameLen); status != StatusResolved {
		t.Fatalf("status = %d", status)
	}
	if releases != 2 {
		t.Errorf("releases = %d, want 2", releases)
	}
	if b.Requests() != 2 {
		t.Errorf("Requests = %d, want 2", b.Requests())
	}
}
