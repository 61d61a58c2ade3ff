package nlbuf

// TLVHeaderLen is the fixed size of an attribute (NLA) header: a 16 bit
// length and a 16 bit kind.
const TLVHeaderLen = 4

// nestedFlag and netByteOrderFlag are the two high bits of the kind
// field (§3). The design treats NESTED as informational only (the
// kernel sets it inconsistently); NET_BYTEORDER tells a value parser
// which endianness to use for an otherwise ambiguous scalar.
const (
	nestedFlag       uint16 = 1 << 15
	netByteOrderFlag uint16 = 1 << 14
	kindMask         uint16 = (1 << 14) - 1
)

// TLV is a borrowed view over a single attribute header plus its
// value. Length() is the wire length (header + value, excluding
// trailing alignment padding); Value() is exactly Length()-4 bytes.
type TLV struct {
	buf []byte // header + value, NOT including alignment padding
}

// NewTLV borrows buf without validation.
func NewTLV(buf []byte) TLV { return TLV{buf: buf} }

// NewTLVChecked borrows the next attribute out of buf. It fails with
// ErrTruncated if buf is shorter than TLVHeaderLen, and with
// ErrMalformed if the header's Length is less than TLVHeaderLen (an
// attribute must at least cover its own header) or greater than
// len(buf) (it cannot claim more than the buffer actually holds).
func NewTLVChecked(buf []byte) (TLV, error) {
	if len(buf) < TLVHeaderLen {
		return TLV{}, ErrTruncated
	}
	length := nativeUint16(buf[0:2])
	if int(length) < TLVHeaderLen || int(length) > len(buf) {
		return TLV{}, ErrMalformed
	}
	return TLV{buf: buf[:length]}, nil
}

// Length is the wire length field: header plus value, no padding.
func (t TLV) Length() uint16 { return nativeUint16(t.buf[0:2]) }

// RawKind is the full 16 bit kind field, flag bits included.
func (t TLV) RawKind() uint16 { return nativeUint16(t.buf[2:4]) }

// Kind is the attribute number: the low 14 bits of RawKind.
func (t TLV) Kind() uint16 { return t.RawKind() & kindMask }

// Nested reports whether the kernel set the NESTED bit. Per §9 this is
// informational only; a parent attribute being a nested set is
// determined by the family's attribute table, not by this bit.
func (t TLV) Nested() bool { return t.RawKind()&nestedFlag != 0 }

// NetByteOrder reports whether the NET_BYTEORDER bit is set.
func (t TLV) NetByteOrder() bool { return t.RawKind()&netByteOrderFlag != 0 }

// Value returns the attribute's value bytes: Length()-4 of them.
func (t TLV) Value() []byte { return t.buf[TLVHeaderLen:] }

// Stride is the number of bytes to advance to reach the next
// attribute: the wire length rounded up to a 4 byte boundary. The
// padding itself is never part of Value() or included in Length().
func (t TLV) Stride() int { return Align4(int(t.Length())) }

// EncodeTLVHeader writes a TLV header (length, kind) into the first
// TLVHeaderLen bytes of buf. kind should already have NESTED/
// NET_BYTEORDER folded in if applicable.
func EncodeTLVHeader(buf []byte, length uint16, kind uint16) {
	putNativeUint16(buf[0:2], length)
	putNativeUint16(buf[2:4], kind)
}

// MakeNestedKind ORs the NESTED flag into an attribute number.
func MakeNestedKind(kind uint16) uint16 { return kind | nestedFlag }

// MakeNetByteOrderKind ORs the NET_BYTEORDER flag into an attribute
// number.
func MakeNetByteOrderKind(kind uint16) uint16 { return kind | netByteOrderFlag }
