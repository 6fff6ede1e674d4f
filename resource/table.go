package resource

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed        = errors.New("resource table closed")
	ErrInvalidHandle = errors.New("invalid or already released handle")
)

// Table tracks live guest-side references held by the host.
//
// Each entry carries a host reference count: Insert starts it at one,
// Retain increments it, Release decrements it. When the count reaches
// zero the entry is removed and, if the value implements Releaser, the
// guest-side reference is released exactly once. A second Release of the
// same handle fails with ErrInvalidHandle, which is how double-close of
// an opaque handle is detected.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value    any
	typeID   uint32
	refCount uint32
	valid    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 8),
	}
}

// Insert stores a value with a reference count of one and returns its handle.
func (t *Table) Insert(typeID uint32, value any) (Handle, error) {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	e := entry{
		typeID:   typeID,
		value:    value,
		refCount: 1,
		valid:    true,
	}

	var handle Handle
	if n := len(t.freeList); n > 0 {
		handle = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[handle-1] = e
	} else {
		t.entries = append(t.entries, e)
		handle = Handle(len(t.entries)) // 1-based, 0 stays invalid
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: handle, TypeID: typeID, Value: value})
	return handle, nil
}

// Get retrieves a live value, checking its type.
func (t *Table) Get(handle Handle, typeID uint32) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.lookup(handle)
	if !ok || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// Retain increments the host reference count.
func (t *Table) Retain(handle Handle) bool {
	t.mu.Lock()

	e, ok := t.lookup(handle)
	if !ok {
		t.mu.Unlock()
		return false
	}
	e.refCount++
	typeID, value := e.typeID, e.value
	t.mu.Unlock()

	t.notify(Event{Type: EventRetained, Handle: handle, TypeID: typeID, Value: value})
	return true
}

// Release decrements the host reference count. On the final release the
// entry is removed and the value's guest reference is released.
func (t *Table) Release(ctx context.Context, handle Handle) error {
	t.mu.Lock()

	e, ok := t.lookup(handle)
	if !ok {
		t.mu.Unlock()
		return ErrInvalidHandle
	}

	e.refCount--
	if e.refCount > 0 {
		t.mu.Unlock()
		return nil
	}

	typeID, value := e.typeID, e.value
	e.valid = false
	e.value = nil
	t.freeList = append(t.freeList, handle)
	t.mu.Unlock()

	if r, ok := value.(Releaser); ok {
		r.ReleaseRef(ctx)
	}

	t.notify(Event{Type: EventReleased, Handle: handle, TypeID: typeID, Value: value})
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if e.valid {
			n++
		}
	}
	return n
}

// Close releases every remaining entry regardless of reference count and
// stops accepting operations. Useful as a leak backstop at engine teardown.
func (t *Table) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true

	var leaked []any
	for i := range t.entries {
		if t.entries[i].valid {
			t.entries[i].valid = false
			leaked = append(leaked, t.entries[i].value)
			t.entries[i].value = nil
		}
	}
	t.mu.Unlock()

	for _, v := range leaked {
		if r, ok := v.(Releaser); ok {
			r.ReleaseRef(ctx)
		}
	}
	return nil
}

// lookup returns a pointer into entries; caller must hold t.mu.
func (t *Table) lookup(handle Handle) (*entry, bool) {
	if t.closed || handle == 0 || int(handle) > len(t.entries) {
		return nil, false
	}
	e := &t.entries[handle-1]
	if !e.valid {
		return nil, false
	}
	return e, true
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
