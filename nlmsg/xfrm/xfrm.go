// Package xfrm implements the IPsec policy/security-association
// family: selectors, lifetimes, and the user_sa_info record exchanged
// by XFRM_MSG_NEWSA/GETSA/DELSA. Grounded on
// original_source/netlink-packet-xfrm/src/{selector,lifetime,user_sa_info,message}.rs.
// The shared Address/Id/Stats sub-records are not in the retrieved
// source tree; their layout follows the stable linux/xfrm.h uapi
// (XFRM_ADDRESS_LEN=16, xfrm_id daddr+spi+proto, xfrm_stats three
// u32 counters), which every xfrm implementation, including this
// package's source, builds on unchanged.
package xfrm

import (
	"net"

	"github.com/m-lab/tcp-info/nlbuf"
)

// XFRM_INF marks a lifetime limit as unbounded.
const XFRM_INF uint64 = ^uint64(0)

// Message types (linux/xfrm.h), the subset this package round-trips.
const (
	XFRM_MSG_NEWSA uint16 = 16
	XFRM_MSG_DELSA uint16 = 17
	XFRM_MSG_GETSA uint16 = 18

	XFRM_MSG_NEWPOLICY uint16 = 19
	XFRM_MSG_DELPOLICY uint16 = 20
	XFRM_MSG_GETPOLICY uint16 = 21

	XFRM_MSG_FLUSHSA     uint16 = 28
	XFRM_MSG_FLUSHPOLICY uint16 = 29
)

const addressLen = 16

// decodeAddress reads a family-tagged xfrm address: 4 bytes for
// AF_INET, 16 for AF_INET6, always occupying a fixed 16 byte slot with
// the tail zero-padded for IPv4 (same layout discipline as
// nlmsg/sockdiag's socket addresses).
func decodeAddress(family uint16, b []byte) net.IP {
	if family == 10 { // AF_INET6
		ip := make(net.IP, net.IPv6len)
		copy(ip, b[:net.IPv6len])
		return ip
	}
	ip := make(net.IP, net.IPv4len)
	copy(ip, b[:net.IPv4len])
	return ip
}

func encodeAddress(ip net.IP, b []byte) {
	for i := range b {
		b[i] = 0
	}
	if ip4 := ip.To4(); ip4 != nil {
		copy(b, ip4)
		return
	}
	if ip16 := ip.To16(); ip16 != nil {
		copy(b, ip16)
	}
}

const idLen = 24

// ID identifies a security association: destination address, SPI, and
// protocol (xfrm_id, linux/xfrm.h).
type ID struct {
	Daddr net.IP
	Spi   uint32 // big-endian on the wire
	Proto uint8
}

func decodeID(family uint16, b []byte) ID {
	return ID{
		Daddr: decodeAddress(family, b[0:addressLen]),
		Spi:   nlbuf.BigEndianUint32(b[addressLen : addressLen+4]),
		Proto: b[addressLen+4],
	}
}

func (id ID) encode(b []byte) {
	encodeAddress(id.Daddr, b[0:addressLen])
	nlbuf.PutBigEndianUint32(b[addressLen:addressLen+4], id.Spi)
	b[addressLen+4] = id.Proto
	for i := addressLen + 5; i < idLen; i++ {
		b[i] = 0
	}
}

const statsLen = 12

// Stats is xfrm_stats: per-SA replay and integrity counters.
type Stats struct {
	ReplayWindow   uint32
	Replay         uint32
	IntegrityFailed uint32
}

func decodeStats(b []byte) Stats {
	return Stats{
		ReplayWindow:    nlbuf.NativeUint32(b[0:4]),
		Replay:          nlbuf.NativeUint32(b[4:8]),
		IntegrityFailed: nlbuf.NativeUint32(b[8:12]),
	}
}

func (s Stats) encode(b []byte) {
	nlbuf.PutNativeUint32(b[0:4], s.ReplayWindow)
	nlbuf.PutNativeUint32(b[4:8], s.Replay)
	nlbuf.PutNativeUint32(b[8:12], s.IntegrityFailed)
}

const selectorLen = 56

// Selector is xfrm_selector: the traffic selector a policy or SA
// matches against. Ports are big-endian; everything else native.
type Selector struct {
	Daddr      net.IP
	Saddr      net.IP
	Dport      uint16
	DportMask  uint16
	Sport      uint16
	SportMask  uint16
	Family     uint16
	PrefixlenD uint8
	PrefixlenS uint8
	Proto      uint8
	IfIndex    int32
	User       uint32
}

func decodeSelector(b []byte) Selector {
	family := nlbuf.NativeUint16(b[40:42])
	return Selector{
		Daddr:      decodeAddress(family, b[0:16]),
		Saddr:      decodeAddress(family, b[16:32]),
		Dport:      nlbuf.BigEndianUint16(b[32:34]),
		DportMask:  nlbuf.BigEndianUint16(b[34:36]),
		Sport:      nlbuf.BigEndianUint16(b[36:38]),
		SportMask:  nlbuf.BigEndianUint16(b[38:40]),
		Family:     family,
		PrefixlenD: b[42],
		PrefixlenS: b[43],
		Proto:      b[44],
		IfIndex:    int32(nlbuf.NativeUint32(b[48:52])),
		User:       nlbuf.NativeUint32(b[52:56]),
	}
}

func (s Selector) encode(b []byte) {
	encodeAddress(s.Daddr, b[0:16])
	encodeAddress(s.Saddr, b[16:32])
	nlbuf.PutBigEndianUint16(b[32:34], s.Dport)
	nlbuf.PutBigEndianUint16(b[34:36], s.DportMask)
	nlbuf.PutBigEndianUint16(b[36:38], s.Sport)
	nlbuf.PutBigEndianUint16(b[38:40], s.SportMask)
	nlbuf.PutNativeUint16(b[40:42], s.Family)
	b[42] = s.PrefixlenD
	b[43] = s.PrefixlenS
	b[44] = s.Proto
	b[45], b[46], b[47] = 0, 0, 0
	nlbuf.PutNativeUint32(b[48:52], uint32(s.IfIndex))
	nlbuf.PutNativeUint32(b[52:56], s.User)
}
