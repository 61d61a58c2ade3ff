// Package nla implements the netlink attribute (TLV) codec: iterating
// a buffer of attributes, parsing individual attribute values, and
// emitting attributes back to a buffer with correct alignment. It sits
// directly on top of package nlbuf's TLV cursor (§4.2 of the design).
package nla

import (
	"errors"
	"fmt"

	"github.com/m-lab/tcp-info/nlbuf"
)

// Error kinds from this layer. Truncated/Malformed come straight from
// nlbuf; InvalidValue is specific to semantic parse failures (bad
// UTF-8, wrong byte count for an address, an out-of-range enum).
var (
	ErrTruncated = nlbuf.ErrTruncated
	ErrMalformed = nlbuf.ErrMalformed
)

// InvalidValueError records which attribute field failed to parse and
// the raw bytes that failed, so callers can log or surface the
// original data.
type InvalidValueError struct {
	Field string
	Bytes []byte
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("nla: invalid value for %s: %x", e.Field, e.Bytes)
}

// Exhausted is returned by EmitMany when the destination buffer is too
// small to hold every attribute's aligned stride.
var Exhausted = errors.New("nla: destination buffer exhausted")

// Attr is anything that can report how many bytes it needs on the wire
// (header + value, unaligned) and write itself into a buffer of at
// least that many bytes. Family packages implement this once per
// attribute variant.
type Attr interface {
	// Kind returns the raw 16 bit kind field (attribute number plus
	// any NESTED/NET_BYTEORDER flags already folded in).
	Kind() uint16
	// ValueLen returns the length of the value alone, not including
	// the 4 byte TLV header.
	ValueLen() int
	// PutValue writes ValueLen() bytes of value into buf.
	PutValue(buf []byte)
}

// BufferLen returns the unaligned wire length of a, header included.
func BufferLen(a Attr) int { return nlbuf.TLVHeaderLen + a.ValueLen() }

// Emit writes a's header and value into buf, which must be at least
// nlbuf.Align4(BufferLen(a)) bytes: the caller reserves the aligned
// stride, per §4.2's emit contract. Returns the unaligned number of
// bytes written (BufferLen(a)); any padding bytes up to the aligned
// stride are zeroed but not counted.
func Emit(a Attr, buf []byte) int {
	n := BufferLen(a)
	nlbuf.EncodeTLVHeader(buf, uint16(n), a.Kind())
	a.PutValue(buf[nlbuf.TLVHeaderLen:n])
	for i := n; i < nlbuf.Align4(n); i++ {
		buf[i] = 0
	}
	return n
}

// EmitMany writes a contiguous list of attributes into buf, respecting
// alignment between items, and returns the total aligned bytes
// written. If buf is too small to hold every attribute it returns
// Exhausted; callers should size buf with TotalAlignedLen first.
func EmitMany(attrs []Attr, buf []byte) (int, error) {
	off := 0
	for _, a := range attrs {
		stride := nlbuf.Align4(BufferLen(a))
		if off+stride > len(buf) {
			return off, Exhausted
		}
		Emit(a, buf[off:])
		off += stride
	}
	return off, nil
}

// TotalAlignedLen sums the aligned wire stride of every attribute,
// which is exactly how many bytes EmitMany needs.
func TotalAlignedLen(attrs []Attr) int {
	total := 0
	for _, a := range attrs {
		total += nlbuf.Align4(BufferLen(a))
	}
	return total
}

// Iterator walks a buffer of attributes one TLV at a time. The
// sequence ends at buffer exhaustion or at the first malformed
// header; callers must check Err after Next returns false rather than
// assuming end-of-buffer.
type Iterator struct {
	buf []byte
	err error
}

// Iterate returns an Iterator over buf. Per §4.2, downstream consumers
// must propagate errors rather than silently skip malformed
// attributes.
func Iterate(buf []byte) *Iterator {
	return &Iterator{buf: buf}
}

// Next advances to the next attribute and returns it, or false when
// the buffer is exhausted or a header failed to parse (check Err in
// that case).
func (it *Iterator) Next() (nlbuf.TLV, bool) {
	if it.err != nil || len(it.buf) == 0 {
		return nlbuf.TLV{}, false
	}
	t, err := nlbuf.NewTLVChecked(it.buf)
	if err != nil {
		it.err = err
		return nlbuf.TLV{}, false
	}
	stride := t.Stride()
	if stride >= len(it.buf) {
		it.buf = nil
	} else {
		it.buf = it.buf[stride:]
	}
	return t, true
}

// Err returns the error that stopped iteration, if any. nil means the
// buffer was fully and cleanly consumed.
func (it *Iterator) Err() error { return it.err }

// All drains the iterator into a slice, for callers that don't need
// streaming semantics. Returns the iteration error, if any, alongside
// whatever attributes were parsed before it occurred.
func All(buf []byte) ([]nlbuf.TLV, error) {
	it := Iterate(buf)
	var out []nlbuf.TLV
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out, it.Err()
}
