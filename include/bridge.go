package include

import (
	"sync"

	"github.com/machlibs/dxc"
	"github.com/machlibs/dxc/errors"
	"github.com/machlibs/dxc/marshal"
)

// Status codes reported to the guest's include handler shim.
const (
	StatusResolved    uint32 = 0 // out struct filled, content ownership passed to guest
	StatusPassThrough uint32 = 1 // no callbacks installed, use the guest's default resolver
	StatusContract    uint32 = 2 // callback contract violated
)

// Result is what a resolution callback returns: the file content for an
// include request. A nil Result or nil Content stands for "not found" and
// is surfaced to the compiler as an empty file.
type Result struct {
	Content []byte
}

// Callbacks supplies caller logic for resolving #include directives.
// Context is an opaque value passed through to both functions untouched.
// Release is invoked exactly once per Resolve call, with whatever Resolve
// returned (possibly nil), so the caller can reclaim anything it allocated.
//
// Callbacks are never retained past the Compile call they are passed to.
type Callbacks struct {
	Context any
	Resolve func(ctx any, filename string) *Result
	Release func(ctx any, result *Result)
}

// Validate checks the function-pointer contract up front.
func (c *Callbacks) Validate() error {
	if c == nil {
		return nil
	}
	if c.Resolve == nil {
		return errors.NilPointer(errors.PhaseInclude, []string{"callbacks"}, "Resolve function is nil")
	}
	if c.Release == nil {
		return errors.NilPointer(errors.PhaseInclude, []string{"callbacks"}, "Release function is nil")
	}
	return nil
}

// Bridge services include requests for exactly one compile call. It is
// constructed immediately before the call, installed in a Slot, and
// discarded right after; nothing about it is reference counted because its
// lifetime is bounded by the call structure.
type Bridge struct {
	cb       *Callbacks
	requests int
}

// NewBridge wraps validated callbacks. cb must be non-nil.
func NewBridge(cb *Callbacks) *Bridge {
	return &Bridge{cb: cb}
}

// Requests reports how many include requests were serviced.
func (b *Bridge) Requests() int {
	return b.requests
}

// Serve handles one include request from the guest.
//
// filenamePtr/filenameLen locate the requested name as a wide string in
// guest memory. On StatusResolved, an 8-byte {contentPtr, contentLen}
// struct is written at outPtr; the content buffer is allocated with the
// guest allocator and ownership passes to the guest.
func (b *Bridge) Serve(mem dxc.Memory, alloc dxc.Allocator, outPtr, filenamePtr, filenameLen uint32) uint32 {
	if b.cb == nil || b.cb.Resolve == nil || b.cb.Release == nil {
		return StatusContract
	}

	// A filename that cannot be decoded becomes the empty string; the
	// callback always receives a valid name.
	name, err := marshal.ReadWideStringLen(mem, filenamePtr, filenameLen)
	if err != nil {
		name = ""
	}

	res := b.cb.Resolve(b.cb.Context, name)
	b.requests++
	defer b.cb.Release(b.cb.Context, res)

	var content []byte
	if res != nil {
		content = res.Content
	}

	var dst uint32
	n := uint32(len(content))
	if n > 0 {
		dst, err = alloc.Alloc(n)
		if err != nil || dst == 0 {
			return StatusContract
		}
		if err := mem.Write(dst, content); err != nil {
			alloc.Free(dst)
			return StatusContract
		}
	}

	if err := mem.WriteU32(outPtr, dst); err != nil {
		return StatusContract
	}
	if err := mem.WriteU32(outPtr+4, n); err != nil {
		return StatusContract
	}
	return StatusResolved
}

// Slot holds the bridge active for the current compile call, if any.
// The engine's host function dispatches through it; Compile sets it for
// the duration of one guest invocation and clears it before returning.
type Slot struct {
	mu sync.Mutex
	b  *Bridge
}

func (s *Slot) Set(b *Bridge) {
	s.mu.Lock()
	s.b = b
	s.mu.Unlock()
}

func (s *Slot) Clear() {
	s.Set(nil)
}

// Current returns the active bridge, or nil when include requests should
// pass through to the guest's default resolver.
func (s *Slot) Current() *Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b
}
