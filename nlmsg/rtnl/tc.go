package rtnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

const tcHeaderLen = 20 // family(1) pad(3) ifindex(4) handle(4) parent(4) info(4)

// TcHeader is the fixed header of RTM_{NEW,DEL,GET}{QDISC,TCLASS,TFILTER}.
type TcHeader struct {
	Family  uint8
	Ifindex int32
	Handle  uint32
	Parent  uint32
	Info    uint32
}

func decodeTcHeader(b []byte) TcHeader {
	return TcHeader{
		Family:  b[0],
		Ifindex: int32(nlbuf.NativeUint32(b[4:8])),
		Handle:  nlbuf.NativeUint32(b[8:12]),
		Parent:  nlbuf.NativeUint32(b[12:16]),
		Info:    nlbuf.NativeUint32(b[16:20]),
	}
}

func (h TcHeader) encode(b []byte) {
	b[0], b[1], b[2], b[3] = h.Family, 0, 0, 0
	nlbuf.PutNativeUint32(b[4:8], uint32(h.Ifindex))
	nlbuf.PutNativeUint32(b[8:12], h.Handle)
	nlbuf.PutNativeUint32(b[12:16], h.Parent)
	nlbuf.PutNativeUint32(b[16:20], h.Info)
}

// Tc attribute kinds, from linux/pkt_sched.h.
const (
	TCA_UNSPEC uint16 = iota
	TCA_KIND
	TCA_OPTIONS
	TCA_STATS
	TCA_XSTATS
	TCA_RATE
)

// TcAttr is the closed attribute enum for TcMessage.
type TcAttr interface {
	nla.Attr
	isTcAttr()
}

// Kind is TCA_KIND: the qdisc/class/filter kind string (e.g. "htb").
type Kind string

func (Kind) isTcAttr()      {}
func (a Kind) Kind() uint16  { return TCA_KIND }
func (a Kind) ValueLen() int { return len(a) + 1 }
func (a Kind) PutValue(b []byte) {
	copy(b, a)
	b[len(a)] = 0
}

// Options is TCA_OPTIONS: a kind-specific nested option set.
// Supplemented per SPEC_FULL.md §4 from
// netlink-packet-route/src/rtnl/tc/nlas/options.rs with the minimal
// htb-style rate/ceil fields spec.md's family table names but does not
// detail.
type Options struct {
	Rate uint32
	Ceil uint32
}

func (Options) isTcAttr()  {}
func (Options) Kind() uint16 { return nlbuf.MakeNestedKind(TCA_OPTIONS) }

const (
	tcaHtbRate uint16 = 1
	tcaHtbCeil uint16 = 2
)

func (o Options) children() []nla.Attr {
	return []nla.Attr{
		nla.U32Attr{K: tcaHtbRate, V: o.Rate},
		nla.U32Attr{K: tcaHtbCeil, V: o.Ceil},
	}
}
func (o Options) ValueLen() int     { return nla.TotalAlignedLen(o.children()) }
func (o Options) PutValue(b []byte) {
	off := 0
	for _, c := range o.children() {
		n := nla.Emit(c, b[off:])
		off += nlbuf.Align4(n)
	}
}

func parseOptions(value []byte) Options {
	var o Options
	tlvs, err := iterateAttrs(value)
	if err != nil {
		return o
	}
	for _, t := range tlvs {
		switch t.Kind() {
		case tcaHtbRate:
			if v, err := nla.U32("rate", t.Value()); err == nil {
				o.Rate = v
			}
		case tcaHtbCeil:
			if v, err := nla.U32("ceil", t.Value()); err == nil {
				o.Ceil = v
			}
		}
	}
	return o
}

// OtherTcAttr is the forward-compatibility catch-all.
type OtherTcAttr struct{ nla.RawAttr }

func (OtherTcAttr) isTcAttr() {}

func parseTcAttr(t nlbuf.TLV) TcAttr {
	switch t.Kind() {
	case TCA_KIND:
		if s, err := nla.String("TCA_KIND", t.Value()); err == nil {
			return Kind(s)
		}
	case TCA_OPTIONS:
		return parseOptions(t.Value())
	}
	return OtherTcAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// TcMessage is the decoded form of RTM_{NEW,DEL,GET}{QDISC,TCLASS,TFILTER}.
type TcMessage struct {
	msgType uint16
	Header  TcHeader
	Attrs   []TcAttr
}

func (m *TcMessage) Type() uint16 { return m.msgType }

func (m *TcMessage) BufferLen() int {
	total := tcHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *TcMessage) Emit(buf []byte) {
	m.Header.encode(buf[:tcHeaderLen])
	off := tcHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

func parseTc(msgType uint16, buf []byte) (*TcMessage, error) {
	if len(buf) < tcHeaderLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &TcMessage{msgType: msgType, Header: decodeTcHeader(buf)}
	tlvs, err := iterateAttrs(buf[tcHeaderLen:])
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseTcAttr(t))
	}
	return m, nil
}
