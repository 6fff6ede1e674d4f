package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the compile pipeline the error occurred
type Phase string

const (
	PhaseInit     Phase = "init"     // engine/guest construction
	PhaseMarshal  Phase = "marshal"  // host to guest memory
	PhaseInclude  Phase = "include"  // include resolution bridge
	PhaseCompile  Phase = "compile"  // guest compile invocation
	PhaseExtract  Phase = "extract"  // result/blob extraction
	PhaseShutdown Phase = "shutdown" // lifecycle teardown
	PhaseRuntime  Phase = "runtime"  // everything else at runtime
)

// Kind categorizes the error
type Kind string

const (
	KindEncoding      Kind = "encoding"
	KindCapacity      Kind = "capacity"
	KindAllocation    Kind = "allocation"
	KindMissingExport Kind = "missing_export"
	KindInstantiation Kind = "instantiation"
	KindClosedHandle  Kind = "closed_handle"
	KindNilPointer    Kind = "nil_pointer"
	KindInvalidInput  Kind = "invalid_input"
	KindGuestTrap     Kind = "guest_trap"
	KindNotFound      Kind = "not_found"
	KindOutOfBounds   Kind = "out_of_bounds"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Export string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Export != "" {
		b.WriteString(": export ")
		b.WriteString(e.Export)
	}

	if e.Detail != "" {
		if e.Export != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the context path (e.g. handle type, argument index)
func (b *Builder) Path(elems ...string) *Builder {
	b.err.Path = elems
	return b
}

// Export sets the guest export name involved
func (b *Builder) Export(name string) *Builder {
	b.err.Export = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Encoding creates a string-encoding conversion error
func Encoding(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEncoding,
		Path:   path,
		Detail: detail,
	}
}

// AllocationFailed creates a guest allocation failure error
func AllocationFailed(phase Phase, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes in guest memory", size),
	}
}

// MissingExport creates an error for an absent guest export
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindMissingExport,
		Export: name,
		Detail: "guest module does not export required function",
	}
}

// ClosedHandle creates a use-after-close error
func ClosedHandle(phase Phase, handleType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosedHandle,
		Path:   []string{handleType},
		Detail: "handle already closed",
	}
}

// NilPointer creates a nil pointer contract error
func NilPointer(phase Phase, path []string, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// GuestTrap wraps a trap raised while executing a guest export
func GuestTrap(export string, cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindGuestTrap,
		Export: export,
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("guest memory access out of bounds (offset %d, length %d)", offset, length),
		Value:  offset,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
