// Package nlmsg implements the message algebra (L3): the payload
// tagged union shared by every family, the netlink flag bitfields, and
// the FamilyMessage interface family packages (nlmsg/rtnl,
// nlmsg/sockdiag, nlmsg/audit, nlmsg/nfnl, nlmsg/xfrm, nlmsg/genl)
// implement to plug into the framed codec and engine.
package nlmsg

// Flags is the raw 16 bit netlink flags field. The same bits mean
// different things depending on message class (§3); the two
// interpretations below are kept separate rather than folded into one
// enum, so callers must know which table applies to the message they
// are building or inspecting.
type Flags uint16

// Get-style flags, used on GET/DUMP requests and their replies.
const (
	Request      Flags = 1
	Multipart    Flags = 2
	Ack          Flags = 4
	Echo         Flags = 8
	DumpIntr     Flags = 16
	DumpFiltered Flags = 32
	Root         Flags = 256
	Match        Flags = 512
	Atomic       Flags = 1024
	Dump         Flags = Root | Match // 768
)

// New-style flags, used on NEW/SET requests. Same numeric space as the
// get-style flags above; context (the message type) decides which
// table a given header's Flags() should be read against.
const (
	Replace Flags = 256
	Excl    Flags = 512
	Create  Flags = 1024
	Append  Flags = 2048
)

// Has reports whether every bit in mask is set in f.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Netlink control message types (RFC-less, from linux/netlink.h).
const (
	NLMSG_NOOP    uint16 = 1
	NLMSG_ERROR   uint16 = 2
	NLMSG_DONE    uint16 = 3
	NLMSG_OVERRUN uint16 = 4
)
