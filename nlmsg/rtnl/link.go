package rtnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

const linkHeaderLen = 16 // family(1) pad(1) type(2) index(4) flags(4) change(4)

// LinkHeader is the fixed header of RTM_{NEW,DEL,GET,SET}LINK.
type LinkHeader struct {
	Family uint8
	Type   uint16
	Index  int32
	Flags  uint32
	Change uint32
}

func decodeLinkHeader(b []byte) LinkHeader {
	return LinkHeader{
		Family: b[0],
		Type:   nlbuf.NativeUint16(b[2:4]),
		Index:  int32(nlbuf.NativeUint32(b[4:8])),
		Flags:  nlbuf.NativeUint32(b[8:12]),
		Change: nlbuf.NativeUint32(b[12:16]),
	}
}

func (h LinkHeader) encode(b []byte) {
	b[0] = h.Family
	b[1] = 0
	nlbuf.PutNativeUint16(b[2:4], h.Type)
	nlbuf.PutNativeUint32(b[4:8], uint32(h.Index))
	nlbuf.PutNativeUint32(b[8:12], h.Flags)
	nlbuf.PutNativeUint32(b[12:16], h.Change)
}

// Link attribute kinds, from linux/if_link.h (the subset this codec
// recognises by name; everything else round-trips through Other).
const (
	IFLA_UNSPEC uint16 = iota
	IFLA_ADDRESS
	IFLA_BROADCAST
	IFLA_IFNAME
	IFLA_MTU
	IFLA_LINK
	IFLA_QDISC
	IFLA_STATS
	IFLA_COST
	IFLA_PRIORITY
	IFLA_MASTER
	IFLA_WIRELESS
	IFLA_PROTINFO
	IFLA_TXQLEN
	IFLA_MAP
	IFLA_WEIGHT
	IFLA_OPERSTATE
	IFLA_LINKMODE
	IFLA_LINKINFO
	IFLA_NET_NS_PID
	IFLA_IFALIAS
)

// LinkAttr is the closed attribute enum for LinkMessage, plus the
// Other catch-all (§4.2/§9: unknown attribute numbers are not errors).
type LinkAttr interface {
	nla.Attr
	isLinkAttr()
}

// IfName is IFLA_IFNAME: the interface name string.
type IfName string

func (IfName) isLinkAttr()      {}
func (a IfName) Kind() uint16   { return IFLA_IFNAME }
func (a IfName) ValueLen() int  { return len(a) + 1 }
func (a IfName) PutValue(b []byte) {
	copy(b, a)
	b[len(a)] = 0
}

// Address is IFLA_ADDRESS: the link layer address.
type Address []byte

func (Address) isLinkAttr()     {}
func (a Address) Kind() uint16  { return IFLA_ADDRESS }
func (a Address) ValueLen() int { return len(a) }
func (a Address) PutValue(b []byte) { copy(b, a) }

// MTU is IFLA_MTU.
type MTU uint32

func (MTU) isLinkAttr()          {}
func (a MTU) Kind() uint16       { return IFLA_MTU }
func (a MTU) ValueLen() int      { return 4 }
func (a MTU) PutValue(b []byte)  { nlbuf.PutNativeUint32(b, uint32(a)) }

// OperState is IFLA_OPERSTATE.
type OperState uint8

func (OperState) isLinkAttr()         {}
func (a OperState) Kind() uint16      { return IFLA_OPERSTATE }
func (a OperState) ValueLen() int     { return 1 }
func (a OperState) PutValue(b []byte) { b[0] = uint8(a) }

// Master is IFLA_MASTER: the ifindex of a bonding/bridge master.
type Master int32

func (Master) isLinkAttr()         {}
func (a Master) Kind() uint16      { return IFLA_MASTER }
func (a Master) ValueLen() int     { return 4 }
func (a Master) PutValue(b []byte) { nlbuf.PutNativeUint32(b, uint32(a)) }

// OtherLinkAttr is the forward-compatibility catch-all: any attribute
// kind this table doesn't name, round-tripped byte for byte.
type OtherLinkAttr struct {
	nla.RawAttr
}

func (OtherLinkAttr) isLinkAttr() {}

func parseLinkAttr(t nlbuf.TLV) LinkAttr {
	switch t.Kind() {
	case IFLA_IFNAME:
		if s, err := nla.String("IFLA_IFNAME", t.Value()); err == nil {
			return IfName(s)
		}
	case IFLA_ADDRESS:
		return Address(nla.Bytes(t.Value()))
	case IFLA_MTU:
		if v, err := nla.U32("IFLA_MTU", t.Value()); err == nil {
			return MTU(v)
		}
	case IFLA_OPERSTATE:
		if v, err := nla.U8("IFLA_OPERSTATE", t.Value()); err == nil {
			return OperState(v)
		}
	case IFLA_MASTER:
		if v, err := nla.I32("IFLA_MASTER", t.Value()); err == nil {
			return Master(v)
		}
	}
	return OtherLinkAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// LinkMessage is the decoded form of RTM_{NEW,DEL,GET,SET}LINK.
type LinkMessage struct {
	msgType uint16
	Header  LinkHeader
	Attrs   []LinkAttr
}

// NewLinkMessage builds a link message of the given message type
// (RTM_GETLINK for a dump request, RTM_NEWLINK/DELLINK/SETLINK for the
// corresponding kernel notifications and requests).
func NewLinkMessage(msgType uint16, header LinkHeader, attrs ...LinkAttr) *LinkMessage {
	return &LinkMessage{msgType: msgType, Header: header, Attrs: attrs}
}

func (m *LinkMessage) Type() uint16 { return m.msgType }

func (m *LinkMessage) BufferLen() int {
	total := linkHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *LinkMessage) Emit(buf []byte) {
	m.Header.encode(buf[:linkHeaderLen])
	off := linkHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

func parseLink(msgType uint16, buf []byte) (*LinkMessage, error) {
	hdr, rest, ok := synthesizeTruncatedHeader(msgType, buf, linkHeaderLen)
	if !ok {
		return nil, nlbuf.ErrTruncated
	}
	m := &LinkMessage{msgType: msgType, Header: decodeLinkHeader(hdr)}
	tlvs, err := iterateAttrs(rest)
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseLinkAttr(t))
	}
	return m, nil
}
