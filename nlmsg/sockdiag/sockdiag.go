// Package sockdiag implements the sock-diag family (§3's "sock-diag
// inet"/"sock-diag unix" rows): SOCK_DIAG_BY_FAMILY requests and
// responses for AF_UNIX and AF_INET/AF_INET6 sockets. Grounded on
// original_source/netlink-packet-sock-diag/src/{unix,inet}/*.rs, kept
// in the same split-by-address-family shape but rewritten onto this
// module's nlbuf/nla cursor and attribute codec instead of that
// crate's buffer! macro and bitflags! types.
package sockdiag

import (
	"github.com/m-lab/tcp-info/nlbuf"
	"github.com/m-lab/tcp-info/nlmsg"
)

// SOCK_DIAG_BY_FAMILY is the single netlink message type both the unix
// and inet sub-families multiplex onto; only the header layout and
// attribute table differ.
const SOCK_DIAG_BY_FAMILY uint16 = 20

// Address family numbers sock-diag requests and responses carry.
const (
	AF_UNIX  uint8 = 1
	AF_INET  uint8 = 2
	AF_INET6 uint8 = 10
)

// Parse decodes a SOCK_DIAG_BY_FAMILY payload, dispatching on the
// leading family byte every inet_diag_msg/unix_diag_msg carries in
// the same position: AF_UNIX decodes as a UnixResponse, AF_INET/
// AF_INET6 as an InetResponse. It implements nlproto.ParseInner so a
// single engine handle can drive both sub-families.
func Parse(msgType uint16, buf []byte) (nlmsg.FamilyMessage, error) {
	if len(buf) < 1 {
		return nil, nlbuf.ErrTruncated
	}
	if buf[0] == AF_UNIX {
		return ParseUnixResponse(buf)
	}
	return ParseInetResponse(buf)
}

// Socket kind, shared by both sub-families (linux/net.h SOCK_*).
const (
	SOCK_STREAM    uint8 = 1
	SOCK_DGRAM     uint8 = 2
	SOCK_SEQPACKET uint8 = 5
)

// TCP state numbers both sub-families reuse to describe non-TCP
// sockets by analogy (linux/tcp_states.h). UNIX domain sockets only
// ever report ESTABLISHED or LISTEN; inet sockets use the full set.
const (
	TCP_ESTABLISHED uint8 = 1
	TCP_SYN_SENT    uint8 = 2
	TCP_SYN_RECV    uint8 = 3
	TCP_FIN_WAIT1   uint8 = 4
	TCP_FIN_WAIT2   uint8 = 5
	TCP_TIME_WAIT   uint8 = 6
	TCP_CLOSE       uint8 = 7
	TCP_CLOSE_WAIT  uint8 = 8
	TCP_LAST_ACK    uint8 = 9
	TCP_LISTEN      uint8 = 10
	TCP_CLOSING     uint8 = 11
)
