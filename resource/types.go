package resource

import "context"

// Handle is an opaque reference to a resource in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Type identifiers for the guest objects tracked by the boundary layer.
const (
	TypeCompiler uint32 = iota + 1
	TypeResult
	TypeErrorBlob
	TypeObjectBlob
)

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventRetained
	EventReleased
)

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Releaser is implemented by values that hold a guest-side reference.
// The table invokes it once, when the last host reference is released.
type Releaser interface {
	ReleaseRef(ctx context.Context)
}
