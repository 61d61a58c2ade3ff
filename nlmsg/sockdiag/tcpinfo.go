package sockdiag

import "github.com/m-lab/tcp-info/nlbuf"

// TCPState mirrors linux/tcp_states.h's TCP_* enum as reported by
// struct tcp_info's tcpi_state field. It reuses the same numbering as
// the package's TCP_ESTABLISHED family of constants.
type TCPState uint8

const (
	TCPEstablished TCPState = iota + 1
	TCPSynSent
	TCPSynRecv
	TCPFinWait1
	TCPFinWait2
	TCPTimeWait
	TCPClose
	TCPCloseWait
	TCPLastAck
	TCPListen
	TCPClosing
)

var tcpStateName = map[TCPState]string{
	TCPEstablished: "ESTABLISHED",
	TCPSynSent:     "SYN_SENT",
	TCPSynRecv:     "SYN_RECV",
	TCPFinWait1:    "FIN_WAIT1",
	TCPFinWait2:    "FIN_WAIT2",
	TCPTimeWait:    "TIME_WAIT",
	TCPClose:       "CLOSE",
	TCPCloseWait:   "CLOSE_WAIT",
	TCPLastAck:     "LAST_ACK",
	TCPListen:      "LISTEN",
	TCPClosing:     "CLOSING",
}

func (s TCPState) String() string {
	if n, ok := tcpStateName[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// TCPInfo is the decoded form of struct tcp_info (linux/tcp.h), the
// payload of an INET_DIAG_INFO attribute when InetRequest.Protocol is
// IPPROTO_TCP. Field order follows the kernel struct exactly, since
// decode walks the buffer sequentially rather than by fixed offset;
// kernels vary in how many trailing fields they report, so decode
// stops at whatever the buffer actually holds instead of erroring.
//
// Grounded on the teacher's tcp/tcpinfo.go (struct layout and csv
// tags, reused verbatim so cmd/nlcat's gocsv dump mode needs no
// translation layer) and tcp/state.go's State enum, folded in here as
// the sibling decoder the package doc comment on Info promised.
type TCPInfo struct {
	State       TCPState `csv:"TCP.State"`
	CAState     uint8    `csv:"TCP.CAState"`
	Retransmits uint8    `csv:"TCP.Retransmits"`
	Probes      uint8    `csv:"TCP.Probes"`
	Backoff     uint8    `csv:"TCP.Backoff"`
	Options     uint8    `csv:"TCP.Options"`
	WScale      uint8    `csv:"TCP.WScale"`
	AppLimited  uint8    `csv:"TCP.AppLimited"`

	RTO           uint32 `csv:"TCP.RTO"`
	ATO           uint32 `csv:"TCP.ATO"`
	SndMSS        uint32 `csv:"TCP.SndMSS"`
	RcvMSS        uint32 `csv:"TCP.RcvMSS"`
	Unacked       uint32 `csv:"TCP.Unacked"`
	Sacked        uint32 `csv:"TCP.Sacked"`
	Lost          uint32 `csv:"TCP.Lost"`
	Retrans       uint32 `csv:"TCP.Retrans"`
	Fackets       uint32 `csv:"TCP.Fackets"`
	LastDataSent  uint32 `csv:"TCP.LastDataSent"`
	LastAckSent   uint32 `csv:"TCP.LastAckSent"`
	LastDataRecv  uint32 `csv:"TCP.LastDataRecv"`
	LastAckRecv   uint32 `csv:"TCP.LastAckRecv"`
	PMTU          uint32 `csv:"TCP.PMTU"`
	RcvSsThresh   uint32 `csv:"TCP.RcvSsThresh"`
	RTT           uint32 `csv:"TCP.RTT"`
	RTTVar        uint32 `csv:"TCP.RTTVar"`
	SndSsThresh   uint32 `csv:"TCP.SndSsThresh"`
	SndCwnd       uint32 `csv:"TCP.SndCwnd"`
	AdvMSS        uint32 `csv:"TCP.AdvMSS"`
	Reordering    uint32 `csv:"TCP.Reordering"`
	RcvRTT        uint32 `csv:"TCP.RcvRTT"`
	RcvSpace      uint32 `csv:"TCP.RcvSpace"`
	TotalRetrans  uint32 `csv:"TCP.TotalRetrans"`

	PacingRate    int64 `csv:"TCP.PacingRate"`
	MaxPacingRate int64 `csv:"TCP.MaxPacingRate"`
	BytesAcked    int64 `csv:"TCP.BytesAcked"`
	BytesReceived int64 `csv:"TCP.BytesReceived"`

	SegsOut int32 `csv:"TCP.SegsOut"`
	SegsIn  int32 `csv:"TCP.SegsIn"`

	NotsentBytes uint32 `csv:"TCP.NotsentBytes"`
	MinRTT       uint32 `csv:"TCP.MinRTT"`
	DataSegsIn   uint32 `csv:"TCP.DataSegsIn"`
	DataSegsOut  uint32 `csv:"TCP.DataSegsOut"`

	DeliveryRate int64 `csv:"TCP.DeliveryRate"`

	BusyTime      int64 `csv:"TCP.BusyTime"`
	RWndLimited   int64 `csv:"TCP.RWndLimited"`
	SndBufLimited int64 `csv:"TCP.SndBufLimited"`

	Delivered   uint32 `csv:"TCP.Delivered"`
	DeliveredCE uint32 `csv:"TCP.DeliveredCE"`

	BytesSent   int64 `csv:"TCP.BytesSent"`
	BytesRetrans int64 `csv:"TCP.BytesRetrans"`

	DSackDups  uint32 `csv:"TCP.DSackDups"`
	ReordSeen  uint32 `csv:"TCP.ReordSeen"`
	RcvOooPack uint32 `csv:"TCP.RcvOooPack"`
	SndWnd     uint32 `csv:"TCP.SndWnd"`
}

// tcpInfoCursor walks buf sequentially, tracking how much of it a
// partial (older-kernel) tcp_info payload actually covers.
type tcpInfoCursor struct {
	buf []byte
	off int
}

func (c *tcpInfoCursor) u8() (uint8, bool) {
	if c.off+1 > len(c.buf) {
		return 0, false
	}
	v := c.buf[c.off]
	c.off++
	return v, true
}

func (c *tcpInfoCursor) u32() (uint32, bool) {
	if c.off+4 > len(c.buf) {
		return 0, false
	}
	v := nlbuf.NativeUint32(c.buf[c.off : c.off+4])
	c.off += 4
	return v, true
}

func (c *tcpInfoCursor) i64() (int64, bool) {
	if c.off+8 > len(c.buf) {
		return 0, false
	}
	lo := nlbuf.NativeUint32(c.buf[c.off : c.off+4])
	hi := nlbuf.NativeUint32(c.buf[c.off+4 : c.off+8])
	c.off += 8
	return int64(uint64(hi)<<32 | uint64(lo)), true
}

// Decode parses a as struct tcp_info. Older kernels report a shorter
// struct than this package knows about; Decode fills what the buffer
// covers and leaves the remaining fields zero rather than failing.
func (a Info) Decode() TCPInfo {
	c := &tcpInfoCursor{buf: a}
	var t TCPInfo
	if v, ok := c.u8(); ok {
		t.State = TCPState(v)
	}
	fieldsU8 := []*uint8{&t.CAState, &t.Retransmits, &t.Probes, &t.Backoff, &t.Options, &t.WScale, &t.AppLimited}
	for _, f := range fieldsU8 {
		v, ok := c.u8()
		if !ok {
			return t
		}
		*f = v
	}
	fieldsU32 := []*uint32{
		&t.RTO, &t.ATO, &t.SndMSS, &t.RcvMSS, &t.Unacked, &t.Sacked, &t.Lost, &t.Retrans,
		&t.Fackets, &t.LastDataSent, &t.LastAckSent, &t.LastDataRecv, &t.LastAckRecv, &t.PMTU,
		&t.RcvSsThresh, &t.RTT, &t.RTTVar, &t.SndSsThresh, &t.SndCwnd, &t.AdvMSS, &t.Reordering,
		&t.RcvRTT, &t.RcvSpace, &t.TotalRetrans,
	}
	for _, f := range fieldsU32 {
		v, ok := c.u32()
		if !ok {
			return t
		}
		*f = v
	}
	fieldsI64 := []*int64{&t.PacingRate, &t.MaxPacingRate, &t.BytesAcked, &t.BytesReceived}
	for _, f := range fieldsI64 {
		v, ok := c.i64()
		if !ok {
			return t
		}
		*f = v
	}
	if v, ok := c.u32(); ok {
		t.SegsOut = int32(v)
	} else {
		return t
	}
	if v, ok := c.u32(); ok {
		t.SegsIn = int32(v)
	} else {
		return t
	}
	fieldsU32b := []*uint32{&t.NotsentBytes, &t.MinRTT, &t.DataSegsIn, &t.DataSegsOut}
	for _, f := range fieldsU32b {
		v, ok := c.u32()
		if !ok {
			return t
		}
		*f = v
	}
	if v, ok := c.i64(); ok {
		t.DeliveryRate = v
	} else {
		return t
	}
	fieldsI64b := []*int64{&t.BusyTime, &t.RWndLimited, &t.SndBufLimited}
	for _, f := range fieldsI64b {
		v, ok := c.i64()
		if !ok {
			return t
		}
		*f = v
	}
	fieldsU32c := []*uint32{&t.Delivered, &t.DeliveredCE}
	for _, f := range fieldsU32c {
		v, ok := c.u32()
		if !ok {
			return t
		}
		*f = v
	}
	fieldsI64c := []*int64{&t.BytesSent, &t.BytesRetrans}
	for _, f := range fieldsI64c {
		v, ok := c.i64()
		if !ok {
			return t
		}
		*f = v
	}
	fieldsU32d := []*uint32{&t.DSackDups, &t.ReordSeen, &t.RcvOooPack, &t.SndWnd}
	for _, f := range fieldsU32d {
		v, ok := c.u32()
		if !ok {
			return t
		}
		*f = v
	}
	return t
}
