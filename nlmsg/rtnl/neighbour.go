package rtnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

const neighbourHeaderLen = 12 // family(1) pad(3) ifindex(4) state(2) flags(1) ntype(1)

// NeighbourHeader is the fixed header of RTM_{NEW,DEL,GET}NEIGH.
type NeighbourHeader struct {
	Family  uint8
	Ifindex int32
	State   uint16
	Flags   uint8
	NType   uint8
}

func decodeNeighbourHeader(b []byte) NeighbourHeader {
	return NeighbourHeader{
		Family:  b[0],
		Ifindex: int32(nlbuf.NativeUint32(b[4:8])),
		State:   nlbuf.NativeUint16(b[8:10]),
		Flags:   b[10],
		NType:   b[11],
	}
}

func (h NeighbourHeader) encode(b []byte) {
	b[0], b[1], b[2], b[3] = h.Family, 0, 0, 0
	nlbuf.PutNativeUint32(b[4:8], uint32(h.Ifindex))
	nlbuf.PutNativeUint16(b[8:10], h.State)
	b[10], b[11] = h.Flags, h.NType
}

// Neighbour attribute kinds, from linux/neighbour.h.
const (
	NDA_UNSPEC uint16 = iota
	NDA_DST
	NDA_LLADDR
	NDA_CACHEINFO
	NDA_PROBES
	NDA_VLAN
	NDA_PORT
	NDA_VNI
	NDA_IFINDEX
	NDA_MASTER
)

// NeighAttr is the closed attribute enum for NeighbourMessage.
type NeighAttr interface {
	nla.Attr
	isNeighAttr()
}

// Dst is NDA_DST: the protocol address of the neighbour.
type Dst []byte

func (Dst) isNeighAttr()      {}
func (a Dst) Kind() uint16    { return NDA_DST }
func (a Dst) ValueLen() int   { return len(a) }
func (a Dst) PutValue(b []byte) { copy(b, a) }

// LLAddr is NDA_LLADDR: the link layer address.
type LLAddr []byte

func (LLAddr) isNeighAttr()      {}
func (a LLAddr) Kind() uint16    { return NDA_LLADDR }
func (a LLAddr) ValueLen() int   { return len(a) }
func (a LLAddr) PutValue(b []byte) { copy(b, a) }

// Probes is NDA_PROBES.
type Probes uint32

func (Probes) isNeighAttr()         {}
func (a Probes) Kind() uint16       { return NDA_PROBES }
func (a Probes) ValueLen() int      { return 4 }
func (a Probes) PutValue(b []byte)  { nlbuf.PutNativeUint32(b, uint32(a)) }

// OtherNeighAttr is the forward-compatibility catch-all.
type OtherNeighAttr struct{ nla.RawAttr }

func (OtherNeighAttr) isNeighAttr() {}

func parseNeighAttr(t nlbuf.TLV) NeighAttr {
	switch t.Kind() {
	case NDA_DST:
		return Dst(nla.Bytes(t.Value()))
	case NDA_LLADDR:
		return LLAddr(nla.Bytes(t.Value()))
	case NDA_PROBES:
		if v, err := nla.U32("NDA_PROBES", t.Value()); err == nil {
			return Probes(v)
		}
	}
	return OtherNeighAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// NeighbourMessage is the decoded form of RTM_{NEW,DEL,GET}NEIGH.
type NeighbourMessage struct {
	msgType uint16
	Header  NeighbourHeader
	Attrs   []NeighAttr
}

func (m *NeighbourMessage) Type() uint16 { return m.msgType }

func (m *NeighbourMessage) BufferLen() int {
	total := neighbourHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *NeighbourMessage) Emit(buf []byte) {
	m.Header.encode(buf[:neighbourHeaderLen])
	off := neighbourHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

func parseNeighbour(msgType uint16, buf []byte) (*NeighbourMessage, error) {
	if len(buf) < neighbourHeaderLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &NeighbourMessage{msgType: msgType, Header: decodeNeighbourHeader(buf)}
	tlvs, err := iterateAttrs(buf[neighbourHeaderLen:])
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseNeighAttr(t))
	}
	return m, nil
}

const neighbourTableHeaderLen = 4 // family(1) pad(3)

// NeighbourTableHeader is the fixed header of RTM_GETNEIGHTBL -
// supplemented per SPEC_FULL.md §4 from
// netlink-packet-route/src/rtnl/neighbour_table/nlas.
type NeighbourTableHeader struct {
	Family uint8
}

// Neighbour table attribute kinds, from linux/neighbour.h.
const (
	NDTA_UNSPEC uint16 = iota
	NDTA_NAME
	NDTA_THRESH1
	NDTA_THRESH2
	NDTA_THRESH3
	NDTA_CONFIG
	NDTA_PARMS
	NDTA_STATS
	NDTA_GC_INTERVAL
)

// NeighTableAttr is the closed attribute enum for
// NeighbourTableMessage.
type NeighTableAttr interface {
	nla.Attr
	isNeighTableAttr()
}

// TableName is NDTA_NAME.
type TableName string

func (TableName) isNeighTableAttr() {}
func (a TableName) Kind() uint16    { return NDTA_NAME }
func (a TableName) ValueLen() int   { return len(a) + 1 }
func (a TableName) PutValue(b []byte) {
	copy(b, a)
	b[len(a)] = 0
}

// GCInterval is NDTA_GC_INTERVAL.
type GCInterval uint64

func (GCInterval) isNeighTableAttr()     {}
func (a GCInterval) Kind() uint16        { return NDTA_GC_INTERVAL }
func (a GCInterval) ValueLen() int       { return 8 }
func (a GCInterval) PutValue(b []byte)   { nlbuf.PutNativeUint64(b, uint64(a)) }

// OtherNeighTableAttr is the forward-compatibility catch-all.
type OtherNeighTableAttr struct{ nla.RawAttr }

func (OtherNeighTableAttr) isNeighTableAttr() {}

func parseNeighTableAttr(t nlbuf.TLV) NeighTableAttr {
	switch t.Kind() {
	case NDTA_NAME:
		if s, err := nla.String("NDTA_NAME", t.Value()); err == nil {
			return TableName(s)
		}
	case NDTA_GC_INTERVAL:
		if v, err := nla.U64("NDTA_GC_INTERVAL", t.Value()); err == nil {
			return GCInterval(v)
		}
	}
	return OtherNeighTableAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// NeighbourTableMessage is the decoded form of RTM_GETNEIGHTBL.
type NeighbourTableMessage struct {
	msgType uint16
	Header  NeighbourTableHeader
	Attrs   []NeighTableAttr
}

func (m *NeighbourTableMessage) Type() uint16 { return m.msgType }

func (m *NeighbourTableMessage) BufferLen() int {
	total := neighbourTableHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *NeighbourTableMessage) Emit(buf []byte) {
	buf[0], buf[1], buf[2], buf[3] = m.Header.Family, 0, 0, 0
	off := neighbourTableHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

func parseNeighbourTable(msgType uint16, buf []byte) (*NeighbourTableMessage, error) {
	if len(buf) < neighbourTableHeaderLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &NeighbourTableMessage{msgType: msgType, Header: NeighbourTableHeader{Family: buf[0]}}
	tlvs, err := iterateAttrs(buf[neighbourTableHeaderLen:])
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseNeighTableAttr(t))
	}
	return m, nil
}
