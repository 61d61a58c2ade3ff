package sockdiag

import (
	"net"

	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// IPPROTO_* values an InetRequest can filter on.
const (
	IPPROTO_TCP uint8 = 6
	IPPROTO_UDP uint8 = 17
)

// Extension-information flags (linux/inet_diag.h INET_DIAG_*, encoded
// as a bit index one less than the attribute number).
const (
	ExtMemInfo   uint8 = 1 << 0
	ExtInfo      uint8 = 1 << 1
	ExtVegasInfo uint8 = 1 << 2
	ExtCong      uint8 = 1 << 3
	ExtTos       uint8 = 1 << 4
	ExtTClass    uint8 = 1 << 5
	ExtSkMemInfo uint8 = 1 << 6
	ExtShutdown  uint8 = 1 << 7
)

// TCP state filter bits an InetRequest's States field combines; bit n
// corresponds to TCP state n, same numbering as the State returned in
// an InetResponse header.
const (
	StateEstablished uint32 = 1 << TCP_ESTABLISHED
	StateSynSent     uint32 = 1 << TCP_SYN_SENT
	StateSynRecv     uint32 = 1 << TCP_SYN_RECV
	StateFinWait1    uint32 = 1 << TCP_FIN_WAIT1
	StateFinWait2    uint32 = 1 << TCP_FIN_WAIT2
	StateTimeWait    uint32 = 1 << TCP_TIME_WAIT
	StateClose       uint32 = 1 << TCP_CLOSE
	StateCloseWait   uint32 = 1 << TCP_CLOSE_WAIT
	StateLastAck     uint32 = 1 << TCP_LAST_ACK
	StateListen      uint32 = 1 << TCP_LISTEN
	StateClosing     uint32 = 1 << TCP_CLOSING
)

const socketIDLen = 48

// SocketID is inet_diag_sockid: the 4-tuple (plus interface and an
// opaque cookie) identifying one inet socket. Ports and addresses are
// big-endian on the wire (§6.2); addresses are always stored in the 16
// byte field regardless of family, with IPv4 addresses left-justified
// and zero-padded, per socket_id.rs.
type SocketID struct {
	SourcePort      uint16
	DestinationPort uint16
	SourceAddress   net.IP
	DestAddress     net.IP
	InterfaceID     uint32
	Cookie          [8]byte
}

func (s SocketID) emit(family uint8, buf []byte) {
	nlbuf.PutBigEndianUint16(buf[0:2], s.SourcePort)
	nlbuf.PutBigEndianUint16(buf[2:4], s.DestinationPort)
	putAddr(buf[4:20], family, s.SourceAddress)
	putAddr(buf[20:36], family, s.DestAddress)
	nlbuf.PutNativeUint32(buf[36:40], s.InterfaceID)
	copy(buf[40:48], s.Cookie[:])
}

func putAddr(dst []byte, family uint8, ip net.IP) {
	for i := range dst {
		dst[i] = 0
	}
	if ip == nil {
		return
	}
	if family == AF_INET {
		copy(dst[0:4], ip.To4())
		return
	}
	copy(dst[0:16], ip.To16())
}

func parseSocketID(family uint8, buf []byte) SocketID {
	var s SocketID
	s.SourcePort = nlbuf.BigEndianUint16(buf[0:2])
	s.DestinationPort = nlbuf.BigEndianUint16(buf[2:4])
	if family == AF_INET {
		ip := make(net.IP, net.IPv4len)
		copy(ip, buf[4:8])
		s.SourceAddress = ip
		ip = make(net.IP, net.IPv4len)
		copy(ip, buf[20:24])
		s.DestAddress = ip
	} else {
		ip := make(net.IP, net.IPv6len)
		copy(ip, buf[4:20])
		s.SourceAddress = ip
		ip = make(net.IP, net.IPv6len)
		copy(ip, buf[20:36])
		s.DestAddress = ip
	}
	s.InterfaceID = nlbuf.NativeUint32(buf[36:40])
	copy(s.Cookie[:], buf[40:48])
	return s
}

const inetRequestLen = 56

// InetRequest is the fixed-layout request sent to query AF_INET or
// AF_INET6 sockets (56 octets, no NLAs): family, protocol, an
// extension-info bitmask, a TCP-state filter bitmask, and a socket id.
type InetRequest struct {
	Family     uint8
	Protocol   uint8
	Extensions uint8
	States     uint32
	SocketID   SocketID
}

func (InetRequest) Type() uint16   { return SOCK_DIAG_BY_FAMILY }
func (InetRequest) BufferLen() int { return inetRequestLen }

func (r InetRequest) Emit(buf []byte) {
	buf[0] = r.Family
	buf[1] = r.Protocol
	buf[2] = r.Extensions
	buf[3] = 0
	nlbuf.PutNativeUint32(buf[4:8], r.States)
	r.SocketID.emit(r.Family, buf[8:56])
}

// ParseInetRequest decodes an inet_diag_req_v2 buffer.
func ParseInetRequest(buf []byte) (InetRequest, error) {
	if len(buf) < inetRequestLen {
		return InetRequest{}, nlbuf.ErrTruncated
	}
	r := InetRequest{
		Family:     buf[0],
		Protocol:   buf[1],
		Extensions: buf[2],
		States:     nlbuf.NativeUint32(buf[4:8]),
	}
	r.SocketID = parseSocketID(r.Family, buf[8:56])
	return r, nil
}

// TimerKind distinguishes the active retransmission/keepalive timer an
// InetResponse reports, mirroring inet/response.rs's Timer enum.
type TimerKind uint8

const (
	TimerNone TimerKind = iota
	TimerRetransmit
	TimerKeepAlive
	TimerTimeWait
	TimerProbe
)

// Timer is the decoded (kind, expires, retransmits) triple from an
// InetResponse's timer/retransmits/expires wire fields. Retransmits is
// only meaningful for TimerRetransmit.
type Timer struct {
	Kind        TimerKind
	ExpiresMS   uint32
	Retransmits uint8
}

const inetResponseHeaderLen = 72

// InetResponseHeader is the fixed-layout part of an inet_diag_msg.
type InetResponseHeader struct {
	Family   uint8
	State    uint8
	Timer    Timer
	SocketID SocketID
	RecvQ    uint32
	SendQ    uint32
	UID      uint32
	Inode    uint32
}

// Inet attribute kinds (linux/inet_diag.h INET_DIAG_*).
const (
	INET_DIAG_NONE uint16 = iota
	INET_DIAG_MEMINFO
	INET_DIAG_INFO
	INET_DIAG_VEGASINFO
	INET_DIAG_CONG
	INET_DIAG_TOS
	INET_DIAG_TCLASS
	INET_DIAG_SKMEMINFO
	INET_DIAG_SHUTDOWN
)

// InetAttr is the closed attribute enum for InetResponse.
type InetAttr interface {
	nla.Attr
	isInetAttr()
}

// Shutdown is INET_DIAG_SHUTDOWN: the SHUT_RD/SHUT_WR bitmask.
type Shutdown uint8

func (Shutdown) isInetAttr()      {}
func (a Shutdown) Kind() uint16    { return INET_DIAG_SHUTDOWN }
func (a Shutdown) ValueLen() int   { return 1 }
func (a Shutdown) PutValue(b []byte) { b[0] = uint8(a) }

// Congestion is INET_DIAG_CONG: the congestion-control algorithm name.
type Congestion string

func (Congestion) isInetAttr()  {}
func (a Congestion) Kind() uint16  { return INET_DIAG_CONG }
func (a Congestion) ValueLen() int { return len(a) + 1 }
func (a Congestion) PutValue(b []byte) {
	copy(b, a)
	b[len(a)] = 0
}

// Info is INET_DIAG_INFO: the raw tcp_info/tcpvegas_info payload. For
// a TCP socket, Info.Decode (tcpinfo.go) decodes it further into
// TCPInfo.
type Info []byte

func (Info) isInetAttr()      {}
func (a Info) Kind() uint16    { return INET_DIAG_INFO }
func (a Info) ValueLen() int   { return len(a) }
func (a Info) PutValue(b []byte) { copy(b, a) }

// OtherInetAttr is the forward-compatibility catch-all.
type OtherInetAttr struct{ nla.RawAttr }

func (OtherInetAttr) isInetAttr() {}

func parseInetAttr(t nlbuf.TLV) InetAttr {
	switch t.Kind() {
	case INET_DIAG_SHUTDOWN:
		if v, err := nla.U8("INET_DIAG_SHUTDOWN", t.Value()); err == nil {
			return Shutdown(v)
		}
	case INET_DIAG_CONG:
		if s, err := nla.String("INET_DIAG_CONG", t.Value()); err == nil {
			return Congestion(s)
		}
	case INET_DIAG_INFO:
		return Info(nla.Bytes(t.Value()))
	}
	return OtherInetAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// InetResponse is the decoded form of an inet_diag_msg: the fixed
// header plus its trailing NLAs.
type InetResponse struct {
	Header InetResponseHeader
	Attrs  []InetAttr
}

func (InetResponse) Type() uint16 { return SOCK_DIAG_BY_FAMILY }

func (m InetResponse) BufferLen() int {
	total := inetResponseHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m InetResponse) Emit(buf []byte) {
	buf[0] = m.Header.Family
	buf[1] = m.Header.State
	switch m.Header.Timer.Kind {
	case TimerRetransmit:
		buf[2] = 1
		nlbuf.PutNativeUint32(buf[52:56], m.Header.Timer.ExpiresMS)
		buf[3] = m.Header.Timer.Retransmits
	case TimerKeepAlive:
		buf[2] = 2
		nlbuf.PutNativeUint32(buf[52:56], m.Header.Timer.ExpiresMS)
		buf[3] = 0
	case TimerTimeWait:
		buf[2] = 3
		nlbuf.PutNativeUint32(buf[52:56], 0)
		buf[3] = 0
	case TimerProbe:
		buf[2] = 4
		nlbuf.PutNativeUint32(buf[52:56], m.Header.Timer.ExpiresMS)
		buf[3] = 0
	default:
		buf[2] = 0
		nlbuf.PutNativeUint32(buf[52:56], 0)
		buf[3] = 0
	}
	m.Header.SocketID.emit(m.Header.Family, buf[4:52])
	nlbuf.PutNativeUint32(buf[56:60], m.Header.RecvQ)
	nlbuf.PutNativeUint32(buf[60:64], m.Header.SendQ)
	nlbuf.PutNativeUint32(buf[64:68], m.Header.UID)
	nlbuf.PutNativeUint32(buf[68:72], m.Header.Inode)
	off := inetResponseHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

// ParseInetResponse decodes an inet_diag_msg buffer (the payload of a
// SOCK_DIAG_BY_FAMILY/AF_INET(6) reply datagram).
func ParseInetResponse(buf []byte) (*InetResponse, error) {
	if len(buf) < inetResponseHeaderLen {
		return nil, nlbuf.ErrTruncated
	}
	family := buf[0]
	var timer Timer
	expires := nlbuf.NativeUint32(buf[52:56])
	switch buf[2] {
	case 1:
		timer = Timer{Kind: TimerRetransmit, ExpiresMS: expires, Retransmits: buf[3]}
	case 2:
		timer = Timer{Kind: TimerKeepAlive, ExpiresMS: expires}
	case 3:
		timer = Timer{Kind: TimerTimeWait}
	case 4:
		timer = Timer{Kind: TimerProbe, ExpiresMS: expires}
	default:
		timer = Timer{Kind: TimerNone}
	}
	m := &InetResponse{Header: InetResponseHeader{
		Family:   family,
		State:    buf[1],
		Timer:    timer,
		SocketID: parseSocketID(family, buf[4:52]),
		RecvQ:    nlbuf.NativeUint32(buf[56:60]),
		SendQ:    nlbuf.NativeUint32(buf[60:64]),
		UID:      nlbuf.NativeUint32(buf[64:68]),
		Inode:    nlbuf.NativeUint32(buf[68:72]),
	}}
	tlvs, err := nla.All(buf[inetResponseHeaderLen:])
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseInetAttr(t))
	}
	return m, nil
}
