package nfnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// nflog packet-delivery attribute kinds, linux/netfilter/nfnetlink_log.h.
// Grounded on original_source/netlink-packet-netfilter/src/nflog/packet.rs.
const (
	NFULA_PACKET_HDR         uint16 = 1
	NFULA_MARK               uint16 = 2
	NFULA_TIMESTAMP          uint16 = 3
	NFULA_IFINDEX_INDEV      uint16 = 4
	NFULA_IFINDEX_OUTDEV     uint16 = 5
	NFULA_IFINDEX_PHYSINDEV  uint16 = 6
	NFULA_IFINDEX_PHYSOUTDEV uint16 = 7
	NFULA_HWADDR             uint16 = 8
	NFULA_PAYLOAD            uint16 = 9
	NFULA_PREFIX             uint16 = 10
	NFULA_UID                uint16 = 11
	NFULA_SEQ                uint16 = 12
	NFULA_SEQ_GLOBAL         uint16 = 13
	NFULA_GID                uint16 = 14
	NFULA_HWTYPE             uint16 = 15
	NFULA_HWHEADER           uint16 = 16
	NFULA_HWLEN              uint16 = 17
)

// packetHdrLen is NFULA_PACKET_HDR's fixed payload: hw_protocol (be
// u16), hook (u8), one pad byte.
const packetHdrLen = 4

// PacketHdr is the NFULA_PACKET_HDR attribute value.
type PacketHdr struct {
	HwProtocol uint16
	Hook       uint8
}

func parsePacketHdr(b []byte) (PacketHdr, error) {
	if len(b) != packetHdrLen {
		return PacketHdr{}, &nla.InvalidValueError{Field: "NFULA_PACKET_HDR", Bytes: b}
	}
	return PacketHdr{HwProtocol: nlbuf.BigEndianUint16(b[0:2]), Hook: b[2]}, nil
}

func (h PacketHdr) putValue(b []byte) {
	nlbuf.PutBigEndianUint16(b[0:2], h.HwProtocol)
	b[2] = h.Hook
	b[3] = 0
}

// timestampLen is NFULA_TIMESTAMP's fixed payload: sec and usec, each a
// big-endian u64.
const timestampLen = 16

// Timestamp is the NFULA_TIMESTAMP attribute value.
type Timestamp struct {
	Sec  uint64
	Usec uint64
}

func parseTimestamp(b []byte) (Timestamp, error) {
	if len(b) != timestampLen {
		return Timestamp{}, &nla.InvalidValueError{Field: "NFULA_TIMESTAMP", Bytes: b}
	}
	return Timestamp{Sec: nlbuf.BigEndianUint64(b[0:8]), Usec: nlbuf.BigEndianUint64(b[8:16])}, nil
}

func (t Timestamp) putValue(b []byte) {
	nlbuf.PutBigEndianUint64(b[0:8], t.Sec)
	nlbuf.PutBigEndianUint64(b[8:16], t.Usec)
}

// PacketAttr is the closed set of attributes an NFULNL_MSG_PACKET
// message carries. Only the fields most consumers read are modeled as
// typed variants; everything else (conntrack, VLAN, L2 header) decodes
// as OtherPacketAttr, matching the original source's own TODO there.
type PacketAttr interface {
	nla.Attr
	isPacketAttr()
}

type Hdr PacketHdr

func (Hdr) isPacketAttr()   {}
func (h Hdr) Kind() uint16  { return NFULA_PACKET_HDR }
func (h Hdr) ValueLen() int { return packetHdrLen }
func (h Hdr) PutValue(b []byte) { PacketHdr(h).putValue(b) }

type Mark uint32

func (Mark) isPacketAttr()       {}
func (m Mark) Kind() uint16      { return NFULA_MARK }
func (m Mark) ValueLen() int     { return 4 }
func (m Mark) PutValue(b []byte) { nlbuf.PutBigEndianUint32(b, uint32(m)) }

type Stamp Timestamp

func (Stamp) isPacketAttr()   {}
func (s Stamp) Kind() uint16  { return NFULA_TIMESTAMP }
func (s Stamp) ValueLen() int { return timestampLen }
func (s Stamp) PutValue(b []byte) { Timestamp(s).putValue(b) }

type IfIndexInDev uint32

func (IfIndexInDev) isPacketAttr()       {}
func (v IfIndexInDev) Kind() uint16      { return NFULA_IFINDEX_INDEV }
func (v IfIndexInDev) ValueLen() int     { return 4 }
func (v IfIndexInDev) PutValue(b []byte) { nlbuf.PutBigEndianUint32(b, uint32(v)) }

type IfIndexOutDev uint32

func (IfIndexOutDev) isPacketAttr()       {}
func (v IfIndexOutDev) Kind() uint16      { return NFULA_IFINDEX_OUTDEV }
func (v IfIndexOutDev) ValueLen() int     { return 4 }
func (v IfIndexOutDev) PutValue(b []byte) { nlbuf.PutBigEndianUint32(b, uint32(v)) }

type Payload []byte

func (Payload) isPacketAttr()       {}
func (p Payload) Kind() uint16      { return NFULA_PAYLOAD }
func (p Payload) ValueLen() int     { return len(p) }
func (p Payload) PutValue(b []byte) { copy(b, p) }

type Prefix string

func (Prefix) isPacketAttr()       {}
func (p Prefix) Kind() uint16      { return NFULA_PREFIX }
func (p Prefix) ValueLen() int     { return len(p) + 1 }
func (p Prefix) PutValue(b []byte) { copy(b, p); b[len(p)] = 0 }

type Uid uint32

func (Uid) isPacketAttr()       {}
func (u Uid) Kind() uint16      { return NFULA_UID }
func (u Uid) ValueLen() int     { return 4 }
func (u Uid) PutValue(b []byte) { nlbuf.PutBigEndianUint32(b, uint32(u)) }

type Seq uint32

func (Seq) isPacketAttr()       {}
func (s Seq) Kind() uint16      { return NFULA_SEQ }
func (s Seq) ValueLen() int     { return 4 }
func (s Seq) PutValue(b []byte) { nlbuf.PutBigEndianUint32(b, uint32(s)) }

// OtherPacketAttr carries an attribute this package does not recognise.
type OtherPacketAttr struct{ nla.RawAttr }

func (OtherPacketAttr) isPacketAttr() {}

func parsePacketAttr(t nlbuf.TLV) (PacketAttr, error) {
	switch t.Kind() {
	case NFULA_PACKET_HDR:
		h, err := parsePacketHdr(t.Value())
		if err != nil {
			return nil, err
		}
		return Hdr(h), nil
	case NFULA_MARK:
		v, err := beU32("NFULA_MARK", t.Value())
		if err != nil {
			return nil, err
		}
		return Mark(v), nil
	case NFULA_TIMESTAMP:
		ts, err := parseTimestamp(t.Value())
		if err != nil {
			return nil, err
		}
		return Stamp(ts), nil
	case NFULA_IFINDEX_INDEV:
		v, err := beU32("NFULA_IFINDEX_INDEV", t.Value())
		if err != nil {
			return nil, err
		}
		return IfIndexInDev(v), nil
	case NFULA_IFINDEX_OUTDEV:
		v, err := beU32("NFULA_IFINDEX_OUTDEV", t.Value())
		if err != nil {
			return nil, err
		}
		return IfIndexOutDev(v), nil
	case NFULA_PAYLOAD:
		return Payload(nla.Bytes(t.Value())), nil
	case NFULA_PREFIX:
		s, err := nla.String("NFULA_PREFIX", t.Value())
		if err != nil {
			return nil, err
		}
		return Prefix(s), nil
	case NFULA_UID:
		v, err := beU32("NFULA_UID", t.Value())
		if err != nil {
			return nil, err
		}
		return Uid(v), nil
	case NFULA_SEQ:
		v, err := beU32("NFULA_SEQ", t.Value())
		if err != nil {
			return nil, err
		}
		return Seq(v), nil
	default:
		return OtherPacketAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}, nil
	}
}

// PacketMessage is an NFULNL_MSG_PACKET message: a logged packet
// delivered to userspace, one per nflog group subscriber.
type PacketMessage struct {
	msgType uint16
	Header  Header
	Attrs   []PacketAttr
}

func (m *PacketMessage) Type() uint16 { return m.msgType }

func (m *PacketMessage) BufferLen() int {
	total := headerLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *PacketMessage) Emit(buf []byte) {
	m.Header.encode(buf[:headerLen])
	off := headerLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

// ParsePacketMessage decodes an nflog packet-delivery message payload
// (after the netlink header).
func ParsePacketMessage(msgType uint16, buf []byte) (*PacketMessage, error) {
	if len(buf) < headerLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &PacketMessage{msgType: msgType, Header: decodeHeader(buf)}
	off := headerLen
	for off < len(buf) {
		t, err := nlbuf.NewTLVChecked(buf[off:])
		if err != nil {
			return nil, err
		}
		a, err := parsePacketAttr(t)
		if err != nil {
			return nil, err
		}
		m.Attrs = append(m.Attrs, a)
		off += nlbuf.Align4(t.Stride())
	}
	return m, nil
}

// Payload returns the packet bytes carried by NFULA_PAYLOAD, or nil if
// the group was configured with CopyModeNone/CopyModeMeta.
func (m *PacketMessage) Payload() []byte {
	for _, a := range m.Attrs {
		if p, ok := a.(Payload); ok {
			return p
		}
	}
	return nil
}
