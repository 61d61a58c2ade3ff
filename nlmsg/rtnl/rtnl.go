// Package rtnl implements the rtnetlink family: link, address, route,
// neighbour, traffic-control, and network-namespace-id messages, with
// their attribute sets and the iproute2 truncated-header compatibility
// quirk (§4.3).
package rtnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
	"github.com/m-lab/tcp-info/nlmsg"
)

// Message types, from linux/rtnetlink.h. Only the ones this family
// dispatches on are listed; §4.3's family selection table.
const (
	RTM_NEWLINK  uint16 = 16
	RTM_DELLINK  uint16 = 17
	RTM_GETLINK  uint16 = 18
	RTM_SETLINK  uint16 = 19
	RTM_NEWADDR  uint16 = 20
	RTM_DELADDR  uint16 = 21
	RTM_GETADDR  uint16 = 22
	RTM_NEWROUTE uint16 = 24
	RTM_DELROUTE uint16 = 25
	RTM_GETROUTE uint16 = 26
	RTM_NEWNEIGH uint16 = 28
	RTM_DELNEIGH uint16 = 29
	RTM_GETNEIGH uint16 = 30

	RTM_NEWQDISC   uint16 = 36
	RTM_DELQDISC   uint16 = 37
	RTM_GETQDISC   uint16 = 38
	RTM_NEWTCLASS  uint16 = 40
	RTM_DELTCLASS  uint16 = 41
	RTM_GETTCLASS  uint16 = 42
	RTM_NEWTFILTER uint16 = 44
	RTM_DELTFILTER uint16 = 45
	RTM_GETTFILTER uint16 = 46

	RTM_NEWNSID uint16 = 88
	RTM_DELNSID uint16 = 89
	RTM_GETNSID uint16 = 90

	RTM_GETNEIGHTBL uint16 = 66
)

// Parse decodes a rtnetlink family message. msgType is the netlink
// header's Type() field, which is the only signal (besides the
// message's own family byte) distinguishing, say, RTM_NEWLINK from
// RTM_DELLINK; both decode identically but callers branch on msgType
// to know which operation occurred.
//
// Reproduces the iproute2 compatibility quirk (§4.3): when buf is
// truncated to just the leading family byte (+3 pad, 4 bytes total)
// for a GETLINK/GETADDR/GETROUTE request, this does not fail - it
// synthesises a header whose family byte is buf[0] and every other
// field zero. RTM_GETROUTE additionally accepts a bare 1-byte payload
// with no padding at all.
func Parse(msgType uint16, buf []byte) (nlmsg.FamilyMessage, error) {
	switch msgType {
	case RTM_NEWLINK, RTM_DELLINK, RTM_GETLINK, RTM_SETLINK:
		return parseLink(msgType, buf)
	case RTM_NEWADDR, RTM_DELADDR, RTM_GETADDR:
		return parseAddress(msgType, buf)
	case RTM_NEWROUTE, RTM_DELROUTE, RTM_GETROUTE:
		return parseRoute(msgType, buf)
	case RTM_NEWNEIGH, RTM_DELNEIGH, RTM_GETNEIGH:
		return parseNeighbour(msgType, buf)
	case RTM_NEWQDISC, RTM_DELQDISC, RTM_GETQDISC,
		RTM_NEWTCLASS, RTM_DELTCLASS, RTM_GETTCLASS,
		RTM_NEWTFILTER, RTM_DELTFILTER, RTM_GETTFILTER:
		return parseTc(msgType, buf)
	case RTM_NEWNSID, RTM_DELNSID, RTM_GETNSID:
		return parseNsId(msgType, buf)
	case RTM_GETNEIGHTBL:
		return parseNeighbourTable(msgType, buf)
	}
	return nil, &nlmsg.UnknownMessageTypeError{Type: msgType}
}

// isGetType reports whether t is one of the three GET requests the
// iproute2 truncated-header quirk applies to.
func isGetType(t uint16) bool {
	return t == RTM_GETLINK || t == RTM_GETADDR || t == RTM_GETROUTE
}

// iterateAttrs parses the remaining buffer into a raw-attribute slice
// via nla.Iterate, used by family parsers as the fallback once their
// own fixed header has been consumed. Returns the parsed TLVs; family
// code maps each into its closed attribute enum, falling back to
// RawAttr for anything it doesn't recognise (§4.2, §9).
func iterateAttrs(buf []byte) ([]nlbuf.TLV, error) {
	return nla.All(buf)
}
