package sockdiag

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// UNIX_DIAG show-flag bits (linux/unix_diag.h UDIAG_SHOW_*), set in a
// UnixRequest to select which NLAs the kernel includes in its reply.
const (
	UDIAG_SHOW_NAME uint32 = 1 << iota
	UDIAG_SHOW_VFS
	UDIAG_SHOW_PEER
	UDIAG_SHOW_ICONS
	UDIAG_SHOW_RQLEN
	UDIAG_SHOW_MEMINFO
)

// UNIX domain sockets only ever report TCP_ESTABLISHED or TCP_LISTEN
// (datagram sockets report neither); the request's state filter is
// correspondingly narrower than inet's. UnixStateAll is the "ALL" value
// named in S2, matching this crate's own UNIX-specific StateFlags::all
// rather than the full TCP state enum inet uses.
const (
	UnixStateEstablished uint32 = 1 << TCP_ESTABLISHED
	UnixStateListen      uint32 = 1 << TCP_LISTEN
	UnixStateAll         uint32 = UnixStateEstablished | UnixStateListen
)

const unixRequestLen = 24

// UnixRequest is the fixed-layout request sent to query AF_UNIX
// sockets (24 octets, no NLAs): family, protocol, pad, a state-flags
// bitmask, the inode to match on (0 for a dump), show-flags, and an
// 8 byte cookie (0xff-filled means "don't match on cookie").
type UnixRequest struct {
	Protocol   uint8
	StateFlags uint32
	Inode      uint32
	ShowFlags  uint32
	Cookie     [8]byte
}

func (UnixRequest) Type() uint16   { return SOCK_DIAG_BY_FAMILY }
func (UnixRequest) BufferLen() int { return unixRequestLen }

// Emit writes the request per linux/unix_diag.h's unix_diag_req.
func (r UnixRequest) Emit(buf []byte) {
	buf[0] = AF_UNIX
	buf[1] = r.Protocol
	buf[2], buf[3] = 0, 0
	nlbuf.PutNativeUint32(buf[4:8], r.StateFlags)
	nlbuf.PutNativeUint32(buf[8:12], r.Inode)
	nlbuf.PutNativeUint32(buf[12:16], r.ShowFlags)
	copy(buf[16:24], r.Cookie[:])
}

// ParseUnixRequest decodes a unix_diag_req buffer; used by servers
// that need to inspect an inbound query, and by tests that round-trip
// UnixRequest.Emit.
func ParseUnixRequest(buf []byte) (UnixRequest, error) {
	if len(buf) < unixRequestLen {
		return UnixRequest{}, nlbuf.ErrTruncated
	}
	r := UnixRequest{
		Protocol:   buf[1],
		StateFlags: nlbuf.NativeUint32(buf[4:8]),
		Inode:      nlbuf.NativeUint32(buf[8:12]),
		ShowFlags:  nlbuf.NativeUint32(buf[12:16]),
	}
	copy(r.Cookie[:], buf[16:24])
	return r, nil
}

const unixResponseHeaderLen = 16

// UnixResponseHeader is the fixed-layout part of a unix_diag_msg:
// family, socket kind, TCP-state analogue, a pad byte, the socket's
// inode and an 8 byte cookie.
type UnixResponseHeader struct {
	Kind   uint8
	State  uint8
	Inode  uint32
	Cookie [8]byte
}

// Unix attribute kinds (linux/unix_diag.h UNIX_DIAG_*).
const (
	UNIX_DIAG_NAME uint16 = iota
	UNIX_DIAG_VFS
	UNIX_DIAG_PEER
	UNIX_DIAG_ICONS
	UNIX_DIAG_RQLEN
	UNIX_DIAG_MEMINFO
	UNIX_DIAG_SHUTDOWN
	UNIX_DIAG_UID
)

// UnixAttr is the closed attribute enum for UnixResponse.
type UnixAttr interface {
	nla.Attr
	isUnixAttr()
}

// Name is UNIX_DIAG_NAME: the bind path, with a trailing NUL removed.
// An abstract-namespace name keeps its leading NUL byte.
type Name string

func (Name) isUnixAttr()  {}
func (a Name) Kind() uint16  { return UNIX_DIAG_NAME }
func (a Name) ValueLen() int { return len(a) }
func (a Name) PutValue(b []byte) { copy(b, a) }

// Peer is UNIX_DIAG_PEER: the inode of the connected peer socket.
type Peer uint32

func (Peer) isUnixAttr()      {}
func (a Peer) Kind() uint16    { return UNIX_DIAG_PEER }
func (a Peer) ValueLen() int   { return 4 }
func (a Peer) PutValue(b []byte) { nlbuf.PutNativeUint32(b, uint32(a)) }

// ReceiveQueueLength is UNIX_DIAG_RQLEN: for a LISTENing socket, the
// current and maximum backlog of pending connections; for any other
// socket, the receive and send queue sizes.
type ReceiveQueueLength struct {
	Current uint32
	Max     uint32
}

func (ReceiveQueueLength) isUnixAttr()   {}
func (ReceiveQueueLength) Kind() uint16  { return UNIX_DIAG_RQLEN }
func (ReceiveQueueLength) ValueLen() int { return 8 }
func (a ReceiveQueueLength) PutValue(b []byte) {
	nlbuf.PutNativeUint32(b[0:4], a.Current)
	nlbuf.PutNativeUint32(b[4:8], a.Max)
}

// Shutdown is UNIX_DIAG_SHUTDOWN: the SHUT_RD/SHUT_WR bitmask.
type Shutdown uint8

func (Shutdown) isUnixAttr()      {}
func (a Shutdown) Kind() uint16    { return UNIX_DIAG_SHUTDOWN }
func (a Shutdown) ValueLen() int   { return 1 }
func (a Shutdown) PutValue(b []byte) { b[0] = uint8(a) }

// OtherUnixAttr is the forward-compatibility catch-all.
type OtherUnixAttr struct{ nla.RawAttr }

func (OtherUnixAttr) isUnixAttr() {}

func parseUnixAttr(t nlbuf.TLV) UnixAttr {
	switch t.Kind() {
	case UNIX_DIAG_NAME:
		v := t.Value()
		if n := len(v); n > 0 && v[n-1] == 0 {
			v = v[:n-1]
		}
		return Name(nla.Bytes(v))
	case UNIX_DIAG_PEER:
		if v, err := nla.U32("UNIX_DIAG_PEER", t.Value()); err == nil {
			return Peer(v)
		}
	case UNIX_DIAG_RQLEN:
		if len(t.Value()) == 8 {
			return ReceiveQueueLength{
				Current: nlbuf.NativeUint32(t.Value()[0:4]),
				Max:     nlbuf.NativeUint32(t.Value()[4:8]),
			}
		}
	case UNIX_DIAG_SHUTDOWN:
		if v, err := nla.U8("UNIX_DIAG_SHUTDOWN", t.Value()); err == nil {
			return Shutdown(v)
		}
	}
	return OtherUnixAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// UnixResponse is the decoded form of a unix_diag_msg: the fixed
// header plus its trailing NLAs.
type UnixResponse struct {
	Header UnixResponseHeader
	Attrs  []UnixAttr
}

func (UnixResponse) Type() uint16 { return SOCK_DIAG_BY_FAMILY }

func (m UnixResponse) BufferLen() int {
	total := unixResponseHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m UnixResponse) Emit(buf []byte) {
	buf[0] = AF_UNIX
	buf[1] = m.Header.Kind
	buf[2] = m.Header.State
	buf[3] = 0
	nlbuf.PutNativeUint32(buf[4:8], m.Header.Inode)
	copy(buf[8:16], m.Header.Cookie[:])
	off := unixResponseHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

// ParseUnixResponse decodes a unix_diag_msg buffer (the payload of a
// SOCK_DIAG_BY_FAMILY/AF_UNIX reply datagram).
func ParseUnixResponse(buf []byte) (*UnixResponse, error) {
	if len(buf) < unixResponseHeaderLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &UnixResponse{Header: UnixResponseHeader{
		Kind:  buf[1],
		State: buf[2],
		Inode: nlbuf.NativeUint32(buf[4:8]),
	}}
	copy(m.Header.Cookie[:], buf[8:16])
	tlvs, err := nla.All(buf[unixResponseHeaderLen:])
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseUnixAttr(t))
	}
	return m, nil
}
