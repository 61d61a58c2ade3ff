package nlbuf

import (
	"encoding/binary"
	"unsafe"
)

// native is the byte order netlink itself, and most rtnetlink
// attributes, are encoded in: whatever the host uses. Socket-id ports
// and addresses, netfilter res-id, nflog fields, wireguard timespecs,
// and nl80211 queue stats are explicit big-endian instead (§6.2); those
// use the BigEndian* accessors below rather than the native ones.
//
// Determined the same way github.com/vishvananda/netlink/nl.NativeEndian
// does: probe the host's actual byte order once at init time rather
// than assuming little-endian.
var native = hostByteOrder()

func hostByteOrder() binary.ByteOrder {
	var x uint16 = 1
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func nativeUint16(b []byte) uint16 { return native.Uint16(b) }
func nativeUint32(b []byte) uint32 { return native.Uint32(b) }
func nativeUint64(b []byte) uint64 { return native.Uint64(b) }

func putNativeUint16(b []byte, v uint16) { native.PutUint16(b, v) }
func putNativeUint32(b []byte, v uint32) { native.PutUint32(b, v) }
func putNativeUint64(b []byte, v uint64) { native.PutUint64(b, v) }

// BigEndianUint16/32/64 and PutBigEndianUint16/32/64 are re-exported so
// family packages never need to import encoding/binary themselves just
// to read a single big-endian field (socket-diag cookies, netfilter
// res-id, ...); it keeps byte-order choices visible in one place.
func BigEndianUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func BigEndianUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func BigEndianUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func PutBigEndianUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func PutBigEndianUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func PutBigEndianUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

// NativeUint16/32/64 and PutNativeUint16/32/64 expose the native
// accessors to other packages in this module (nla, nlmsg/...) so they
// share the exact same definition of "native" as the header does.
func NativeUint16(b []byte) uint16 { return nativeUint16(b) }
func NativeUint32(b []byte) uint32 { return nativeUint32(b) }
func NativeUint64(b []byte) uint64 { return nativeUint64(b) }

func PutNativeUint16(b []byte, v uint16) { putNativeUint16(b, v) }
func PutNativeUint32(b []byte, v uint32) { putNativeUint32(b, v) }
func PutNativeUint64(b []byte, v uint64) { putNativeUint64(b, v) }
