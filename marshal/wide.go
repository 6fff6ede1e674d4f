package marshal

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/machlibs/dxc"
	"github.com/machlibs/dxc/errors"
)

type Memory = dxc.Memory
type Allocator = dxc.Allocator

// The guest compiler is built with 2-byte wchar_t, little-endian.
var wideCodec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeWide converts a UTF-8 string to UTF-16LE bytes, without terminator.
// Invalid UTF-8 input is rejected rather than silently replaced.
func EncodeWide(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, errors.Encoding(errors.PhaseMarshal, nil, "input is not valid UTF-8")
	}
	out, err := wideCodec.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMarshal, errors.KindEncoding, err, "UTF-16 encode failed")
	}
	return out, nil
}

// DecodeWide converts UTF-16LE bytes (no terminator) to a UTF-8 string.
func DecodeWide(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errors.Encoding(errors.PhaseMarshal, nil, "wide string has odd byte length")
	}
	out, err := wideCodec.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(errors.PhaseMarshal, errors.KindEncoding, err, "UTF-16 decode failed")
	}
	return string(out), nil
}

// WriteWideString allocates a null-terminated UTF-16LE copy of s in guest
// memory and records the allocation in allocs. Returns the guest pointer.
func WriteWideString(mem Memory, alloc Allocator, allocs *AllocList, s string) (uint32, error) {
	wide, err := EncodeWide(s)
	if err != nil {
		return 0, err
	}

	size := uint32(len(wide)) + 2 // 16-bit terminator
	ptr, err := alloc.Alloc(size)
	if err != nil || ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseMarshal, size)
	}
	allocs.Add(ptr, size)

	if err := mem.Write(ptr, wide); err != nil {
		return 0, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write wide string")
	}
	if err := mem.WriteU16(ptr+uint32(len(wide)), 0); err != nil {
		return 0, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write wide terminator")
	}
	return ptr, nil
}

// ReadWideString reads a null-terminated UTF-16LE string from guest memory.
func ReadWideString(mem Memory, ptr uint32) (string, error) {
	var raw []byte
	for off := ptr; ; off += 2 {
		u, err := mem.ReadU16(off)
		if err != nil {
			return "", errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "read wide string")
		}
		if u == 0 {
			break
		}
		raw = append(raw, byte(u), byte(u>>8))
	}
	return DecodeWide(raw)
}

// ReadWideStringLen reads an UTF-16LE string of byteLen bytes from guest memory.
func ReadWideStringLen(mem Memory, ptr, byteLen uint32) (string, error) {
	if byteLen == 0 {
		return "", nil
	}
	raw, err := mem.Read(ptr, byteLen)
	if err != nil {
		return "", errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "read wide string")
	}
	return DecodeWide(raw)
}
