package nla

import (
	"net"

	"github.com/m-lab/tcp-info/nlbuf"
)

// The parsers below implement the exact value semantics §4.2 demands.
// Every one takes the raw value bytes of a single TLV (nlbuf.TLV.Value(),
// i.e. with the header already stripped and trailing padding already
// excluded) and returns either a typed value or an *InvalidValueError.

// U8 parses a single byte value.
func U8(field string, b []byte) (uint8, error) {
	if len(b) != 1 {
		return 0, &InvalidValueError{Field: field, Bytes: b}
	}
	return b[0], nil
}

// U16 parses a native-endian uint16. The family packages that store
// big-endian scalars (socket-diag ports, netfilter res-id) decode
// those fields directly with nlbuf.BigEndianUint16 instead of calling
// this helper.
func U16(field string, b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, &InvalidValueError{Field: field, Bytes: b}
	}
	return nlbuf.NativeUint16(b), nil
}

// U32 parses a native-endian uint32.
func U32(field string, b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, &InvalidValueError{Field: field, Bytes: b}
	}
	return nlbuf.NativeUint32(b), nil
}

// I32 parses a native-endian int32 (used by a handful of rtnetlink and
// xfrm fields that are signed, e.g. priorities).
func I32(field string, b []byte) (int32, error) {
	v, err := U32(field, b)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// U64 parses a native-endian uint64.
func U64(field string, b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, &InvalidValueError{Field: field, Bytes: b}
	}
	return nlbuf.NativeUint64(b), nil
}

// String parses a NUL-terminated string attribute. The payload
// includes the trailing NUL; the returned string excludes it. An empty
// payload yields an empty string, matching netlink-packet's String NLA
// semantics.
func String(field string, b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if b[len(b)-1] != 0 {
		return "", &InvalidValueError{Field: field, Bytes: b}
	}
	return string(b[:len(b)-1]), nil
}

// IPv4 parses a 4 byte IPv4 address attribute.
func IPv4(field string, b []byte) (net.IP, error) {
	if len(b) != net.IPv4len {
		return nil, &InvalidValueError{Field: field, Bytes: b}
	}
	ip := make(net.IP, net.IPv4len)
	copy(ip, b)
	return ip, nil
}

// IPv6 parses a 16 byte IPv6 address attribute.
func IPv6(field string, b []byte) (net.IP, error) {
	if len(b) != net.IPv6len {
		return nil, &InvalidValueError{Field: field, Bytes: b}
	}
	ip := make(net.IP, net.IPv6len)
	copy(ip, b)
	return ip, nil
}

// HardwareAddr parses a fixed-width link layer address (6 bytes for
// Ethernet/MAC, but the family decides the expected width, e.g.
// InfiniBand uses 20).
func HardwareAddr(field string, b []byte, width int) (net.HardwareAddr, error) {
	if len(b) != width {
		return nil, &InvalidValueError{Field: field, Bytes: b}
	}
	out := make(net.HardwareAddr, width)
	copy(out, b)
	return out, nil
}

// Bytes copies the value payload verbatim. Used for opaque blobs:
// crypto keys, cookies, raw catch-all attribute values.
func Bytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Bitmask parses a multi-word bitmask attribute (e.g. the audit
// syscall mask: 64 x uint32, 2048 bits). Word ordering is native; bit
// n lives in word n/32, bit n%32 of that word, per §4.2.
func Bitmask(field string, b []byte, words int) ([]uint32, error) {
	if len(b) != words*4 {
		return nil, &InvalidValueError{Field: field, Bytes: b}
	}
	out := make([]uint32, words)
	for i := range out {
		out[i] = nlbuf.NativeUint32(b[i*4 : i*4+4])
	}
	return out, nil
}

// BitmaskTestBit reports whether bit n is set in a word array produced
// by Bitmask.
func BitmaskTestBit(mask []uint32, n int) bool {
	word, bit := n/32, n%32
	if word >= len(mask) {
		return false
	}
	return mask[word]&(1<<uint(bit)) != 0
}

// BitmaskSetBit sets bit n in a word array sized by Bitmask's words
// parameter; used when building a request (e.g. an audit rule's
// syscall filter) programmatically. The array is not grown: n must
// fall within len(mask)*32 bits, otherwise the call panics.
func BitmaskSetBit(mask []uint32, n int) {
	word, bit := n/32, n%32
	mask[word] |= 1 << uint(bit)
}

// PutBitmask encodes a word array back into wire bytes, native order,
// the inverse of Bitmask.
func PutBitmask(mask []uint32) []byte {
	out := make([]byte, len(mask)*4)
	for i, w := range mask {
		nlbuf.PutNativeUint32(out[i*4:i*4+4], w)
	}
	return out
}
