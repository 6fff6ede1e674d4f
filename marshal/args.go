package marshal

import (
	"strconv"

	"github.com/machlibs/dxc/errors"
)

// MarshalArgs lowers a narrow-string argument list into guest memory as a
// flat wide-string argument vector: a pointer table of len(args) entries,
// each pointing at a distinct null-terminated UTF-16LE region.
//
// The table and the string regions live in one allocation, sized exactly
// from the encoded lengths, so argument count and length carry no hidden
// capacity ceiling. The allocation is recorded in allocs; the guest must
// copy anything it wants to retain past the call.
//
// Returns the guest pointer to the table, or 0 when args is empty.
func MarshalArgs(mem Memory, alloc Allocator, allocs *AllocList, args []string) (uint32, error) {
	if len(args) == 0 {
		return 0, nil
	}

	// Encode everything up front so sizing is exact and a bad argument
	// fails before any guest memory is touched.
	encoded := make([][]byte, len(args))
	total := uint32(len(args)) * 4 // pointer table
	for i, a := range args {
		wide, err := EncodeWide(a)
		if err != nil {
			return 0, errors.New(errors.PhaseMarshal, errors.KindEncoding).
				Path("args", strconv.Itoa(i)).
				Value(a).
				Cause(err).
				Detail("argument cannot be converted to a wide string").
				Build()
		}
		encoded[i] = wide
		total += uint32(len(wide)) + 2
	}

	block, err := alloc.Alloc(total)
	if err != nil || block == 0 {
		return 0, errors.AllocationFailed(errors.PhaseMarshal, total)
	}
	allocs.Add(block, total)

	strPtr := block + uint32(len(args))*4
	for i, wide := range encoded {
		if err := mem.WriteU32(block+uint32(i)*4, strPtr); err != nil {
			return 0, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write argv entry")
		}
		if err := mem.Write(strPtr, wide); err != nil {
			return 0, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write argument")
		}
		if err := mem.WriteU16(strPtr+uint32(len(wide)), 0); err != nil {
			return 0, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write argument terminator")
		}
		strPtr += uint32(len(wide)) + 2
	}

	return block, nil
}
