// Package nfnl implements the netlink-netfilter family: the 4 byte
// nfgenmsg header shared by every netfilter subsystem, and the nflog
// (ULOG-replacement packet logging) subsystem's config and packet
// messages. Grounded on
// original_source/netlink-packet-netfilter/src/{message.rs,constants.rs,nflog/*}.
package nfnl

import (
	"github.com/m-lab/tcp-info/nlbuf"
)

// Address families nfnetlink headers carry (linux/socket.h subset the
// original source re-exports).
const (
	AF_UNSPEC uint8 = 0
	AF_INET   uint8 = 2
	AF_INET6  uint8 = 10
)

// NFNETLINK_V0 is the only nfgenmsg version the kernel defines.
const NFNETLINK_V0 uint8 = 0

// Netfilter subsystem ids (linux/netfilter/nfnetlink.h), encoded into
// the high byte of the netlink message type (§3, "nfnl" row).
const (
	NFNL_SUBSYS_NONE    uint8 = 0
	NFNL_SUBSYS_CTNETLINK uint8 = 1
	NFNL_SUBSYS_QUEUE   uint8 = 3
	NFNL_SUBSYS_ULOG    uint8 = 4
)

const headerLen = 4

// Header is nfgenmsg: family, version, and a subsystem-defined res_id
// (for nflog, the multicast group number), immediately following the
// netlink header (§3's nfnl row). res_id is big-endian on the wire.
type Header struct {
	Family uint8
	Version uint8
	ResID   uint16
}

func decodeHeader(b []byte) Header {
	return Header{
		Family:  b[0],
		Version: b[1],
		ResID:   nlbuf.BigEndianUint16(b[2:4]),
	}
}

func (h Header) encode(b []byte) {
	b[0] = h.Family
	b[1] = h.Version
	nlbuf.PutBigEndianUint16(b[2:4], h.ResID)
}

// MessageType packs subsys/cmd into the netlink header's Type() field,
// the way every nfnl subsystem multiplexes on one message-type space.
func MessageType(subsys, cmd uint8) uint16 {
	return uint16(subsys)<<8 | uint16(cmd)
}

// Subsys and Command unpack a netlink Type() field built by MessageType.
func Subsys(msgType uint16) uint8  { return uint8(msgType >> 8) }
func Command(msgType uint16) uint8 { return uint8(msgType) }
