package rtnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

const routeHeaderLen = 12

// RouteHeader is the fixed header of RTM_{NEW,DEL,GET}ROUTE.
type RouteHeader struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	Tos      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Kind     uint8
	Flags    uint32
}

func decodeRouteHeader(b []byte) RouteHeader {
	return RouteHeader{
		Family: b[0], DstLen: b[1], SrcLen: b[2], Tos: b[3],
		Table: b[4], Protocol: b[5], Scope: b[6], Kind: b[7],
		Flags: nlbuf.NativeUint32(b[8:12]),
	}
}

func (h RouteHeader) encode(b []byte) {
	b[0], b[1], b[2], b[3] = h.Family, h.DstLen, h.SrcLen, h.Tos
	b[4], b[5], b[6], b[7] = h.Table, h.Protocol, h.Scope, h.Kind
	nlbuf.PutNativeUint32(b[8:12], h.Flags)
}

// Route attribute kinds, from linux/rtnetlink.h.
const (
	RTA_UNSPEC uint16 = iota
	RTA_DST
	RTA_SRC
	RTA_IIF
	RTA_OIF
	RTA_GATEWAY
	RTA_PRIORITY
	RTA_PREFSRC
	RTA_METRICS
	RTA_MULTIPATH
	RTA_PROTOINFO
	RTA_FLOW
	RTA_CACHEINFO
	RTA_SESSION
	RTA_MP_ALGO
	RTA_TABLE
	RTA_MARK
)

// Route metrics (RTAX_*), nested inside RTA_METRICS - supplemented per
// SPEC_FULL.md from netlink-packet-route/src/rtnl/route/nlas/metrics.rs,
// which spec.md's family table names but does not detail.
const (
	RTAX_UNSPEC uint16 = iota
	RTAX_LOCK
	RTAX_MTU
	RTAX_WINDOW
	RTAX_RTT
	RTAX_RTTVAR
	RTAX_SSTHRESH
	RTAX_CWND
	RTAX_ADVMSS
)

// RouteAttr is the closed attribute enum for RouteMessage.
type RouteAttr interface {
	nla.Attr
	isRouteAttr()
}

// RouteIP covers RTA_DST/RTA_SRC/RTA_GATEWAY/RTA_PREFSRC: plain
// address values differing only in kind.
type RouteIP struct {
	K  uint16
	IP []byte
}

func (RouteIP) isRouteAttr()       {}
func (a RouteIP) Kind() uint16     { return a.K }
func (a RouteIP) ValueLen() int    { return len(a.IP) }
func (a RouteIP) PutValue(b []byte) { copy(b, a.IP) }

// OifIndex is RTA_OIF / RTA_IIF.
type OifIndex struct {
	K     uint16
	Index int32
}

func (OifIndex) isRouteAttr()         {}
func (a OifIndex) Kind() uint16       { return a.K }
func (a OifIndex) ValueLen() int      { return 4 }
func (a OifIndex) PutValue(b []byte)  { nlbuf.PutNativeUint32(b, uint32(a.Index)) }

// Priority is RTA_PRIORITY.
type Priority uint32

func (Priority) isRouteAttr()         {}
func (a Priority) Kind() uint16       { return RTA_PRIORITY }
func (a Priority) ValueLen() int      { return 4 }
func (a Priority) PutValue(b []byte)  { nlbuf.PutNativeUint32(b, uint32(a)) }

// Table is RTA_TABLE (the 32 bit table id, when it overflows the
// header's 8 bit Table field).
type Table uint32

func (Table) isRouteAttr()        {}
func (a Table) Kind() uint16      { return RTA_TABLE }
func (a Table) ValueLen() int     { return 4 }
func (a Table) PutValue(b []byte) { nlbuf.PutNativeUint32(b, uint32(a)) }

// Metrics is RTA_METRICS: a nested attribute set of route metrics
// (mtu/window/rtt/...). Supplemented per SPEC_FULL.md §4.
type Metrics struct {
	Mtu    *uint32
	Window *uint32
	Rtt    *uint32
}

func (Metrics) isRouteAttr()   {}
func (Metrics) Kind() uint16   { return nlbuf.MakeNestedKind(RTA_METRICS) }
func (m Metrics) children() []nla.Attr {
	var out []nla.Attr
	if m.Mtu != nil {
		out = append(out, nla.U32Attr{K: RTAX_MTU, V: *m.Mtu})
	}
	if m.Window != nil {
		out = append(out, nla.U32Attr{K: RTAX_WINDOW, V: *m.Window})
	}
	if m.Rtt != nil {
		out = append(out, nla.U32Attr{K: RTAX_RTT, V: *m.Rtt})
	}
	return out
}
func (m Metrics) ValueLen() int     { return nla.TotalAlignedLen(m.children()) }
func (m Metrics) PutValue(b []byte) {
	off := 0
	for _, c := range m.children() {
		n := nla.Emit(c, b[off:])
		off += nlbuf.Align4(n)
	}
}

func parseMetrics(value []byte) Metrics {
	var m Metrics
	tlvs, err := iterateAttrs(value)
	if err != nil {
		return m
	}
	for _, t := range tlvs {
		switch t.Kind() {
		case RTAX_MTU:
			if v, err := nla.U32("RTAX_MTU", t.Value()); err == nil {
				m.Mtu = &v
			}
		case RTAX_WINDOW:
			if v, err := nla.U32("RTAX_WINDOW", t.Value()); err == nil {
				m.Window = &v
			}
		case RTAX_RTT:
			if v, err := nla.U32("RTAX_RTT", t.Value()); err == nil {
				m.Rtt = &v
			}
		}
	}
	return m
}

// OtherRouteAttr is the forward-compatibility catch-all.
type OtherRouteAttr struct{ nla.RawAttr }

func (OtherRouteAttr) isRouteAttr() {}

func parseRouteAttr(t nlbuf.TLV) RouteAttr {
	switch t.Kind() {
	case RTA_DST, RTA_SRC, RTA_GATEWAY, RTA_PREFSRC:
		return RouteIP{K: t.Kind(), IP: nla.Bytes(t.Value())}
	case RTA_OIF, RTA_IIF:
		if v, err := nla.I32("RTA_OIF", t.Value()); err == nil {
			return OifIndex{K: t.Kind(), Index: v}
		}
	case RTA_PRIORITY:
		if v, err := nla.U32("RTA_PRIORITY", t.Value()); err == nil {
			return Priority(v)
		}
	case RTA_TABLE:
		if v, err := nla.U32("RTA_TABLE", t.Value()); err == nil {
			return Table(v)
		}
	case RTA_METRICS:
		return parseMetrics(t.Value())
	}
	return OtherRouteAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// RouteMessage is the decoded form of RTM_{NEW,DEL,GET}ROUTE.
type RouteMessage struct {
	msgType uint16
	Header  RouteHeader
	Attrs   []RouteAttr
}

func (m *RouteMessage) Type() uint16 { return m.msgType }

func (m *RouteMessage) BufferLen() int {
	total := routeHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *RouteMessage) Emit(buf []byte) {
	m.Header.encode(buf[:routeHeaderLen])
	off := routeHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

func parseRoute(msgType uint16, buf []byte) (*RouteMessage, error) {
	// RTM_GETROUTE additionally admits a bare 1 byte payload (family
	// only, no padding at all) per §4.3.
	hdr, rest, ok := synthesizeTruncatedHeader(msgType, buf, routeHeaderLen)
	if !ok {
		return nil, nlbuf.ErrTruncated
	}
	m := &RouteMessage{msgType: msgType, Header: decodeRouteHeader(hdr)}
	tlvs, err := iterateAttrs(rest)
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseRouteAttr(t))
	}
	return m, nil
}
