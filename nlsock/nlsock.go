// Package nlsock implements the L4 framed datagram codec over a
// netlink socket: the socket capability interface spec §6.1 requires
// of its caller, and the decoder/encoder loop of spec §4.4, including
// the audit off-by-16 length workaround and the header-less uevent
// workaround. Grounded on the teacher's collector/socket-monitor.go
// (the direct ancestor of this decode loop, built on
// github.com/vishvananda/netlink/nl's NetlinkSocket); the production
// Socket in socket_linux.go instead drives golang.org/x/sys/unix
// directly, the same family/option constants netlink.go and
// inetdiag.go import from that package.
package nlsock

import (
	"errors"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sys/unix"

	"github.com/m-lab/tcp-info/nlbuf"
)

// Protocol is a netlink socket family number (§6.3's bind-time
// selection table), passed as-is to socket(2)'s protocol argument.
type Protocol int

const (
	ProtoRoute         Protocol = unix.NETLINK_ROUTE
	ProtoUserSock      Protocol = unix.NETLINK_USERSOCK
	ProtoFirewall      Protocol = unix.NETLINK_FIREWALL
	ProtoSockDiag      Protocol = unix.NETLINK_SOCK_DIAG
	ProtoNflog         Protocol = unix.NETLINK_NFLOG
	ProtoXfrm          Protocol = unix.NETLINK_XFRM
	ProtoSelinux       Protocol = unix.NETLINK_SELINUX
	ProtoAudit         Protocol = unix.NETLINK_AUDIT
	ProtoFibLookup     Protocol = unix.NETLINK_FIB_LOOKUP
	ProtoConnector     Protocol = unix.NETLINK_CONNECTOR
	ProtoNetfilter     Protocol = unix.NETLINK_NETFILTER
	ProtoKobjectUevent Protocol = unix.NETLINK_KOBJECT_UEVENT
	ProtoGeneric       Protocol = unix.NETLINK_GENERIC
	ProtoScsiTransport Protocol = unix.NETLINK_SCSITRANSPORT
	ProtoEcryptfs      Protocol = unix.NETLINK_ECRYPTFS
	ProtoRdma          Protocol = unix.NETLINK_RDMA
	ProtoCrypto        Protocol = unix.NETLINK_CRYPTO
)

// PeerAddr is a netlink socket address: a port id and a multicast
// group bitmask (§6.1). The kernel's own address is always the zero
// value.
type PeerAddr struct {
	Port   uint32
	Groups uint32
}

// Kernel is the well-known destination address of the kernel itself.
var Kernel = PeerAddr{}

// SockOpt enumerates the boolean socket options §6.1 requires the
// capability to expose, passed as setsockopt(2)'s optname at the
// SOL_NETLINK level.
type SockOpt int

const (
	OptPktInfo             SockOpt = unix.NETLINK_PKTINFO
	OptBroadcastError      SockOpt = unix.NETLINK_BROADCAST_ERROR
	OptNoENOBUFS           SockOpt = unix.NETLINK_NO_ENOBUFS
	OptListenAllNamespaces SockOpt = unix.NETLINK_LISTEN_ALL_NSID
	OptCapAck              SockOpt = unix.NETLINK_CAP_ACK
)

// Socket is the capability this package consumes rather than
// implements (§6.1): a bidirectional byte-datagram endpoint with
// netlink-specific bind/multicast/option semantics. socket_linux.go's
// unixSocket is the production implementation, built directly on
// golang.org/x/sys/unix syscalls; tests supply an in-memory fake.
type Socket interface {
	Bind(local PeerAddr) error
	Connect(peer PeerAddr) error
	SendTo(b []byte, peer PeerAddr) (int, error)
	RecvFrom(buf []byte) (int, PeerAddr, error)
	JoinGroup(group uint32) error
	LeaveGroup(group uint32) error
	SetOption(opt SockOpt, enable bool) error
	Close() error
}

// Errors this layer raises on top of nlbuf's Truncated/Malformed.
var (
	// ErrIncompleteWrite is returned when a datagram send short-writes;
	// per §4.4 there is no partial-datagram retry.
	ErrIncompleteWrite = errors.New("nlsock: incomplete datagram write")
	// ErrEncoderBusy is returned if Send is called while a previous
	// send on the same Encoder has not yet been flushed (§4.4's
	// flush-pending guard).
	ErrEncoderBusy = errors.New("nlsock: encoder busy, previous send not flushed")
)

var (
	datagramCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlsock_datagram_total",
			Help: "Datagrams read from or written to a netlink socket.",
		}, []string{"direction"})
	decodeErrorCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nlsock_decode_error_total",
			Help: "Datagrams discarded because they failed to parse as a netlink header.",
		})
)

// readBufferSize is generous enough for a single netlink datagram;
// the kernel never exceeds its configured socket receive buffer in one
// recvmsg.
const readBufferSize = 1 << 16

// Frame is one decoded netlink message: its header, payload bytes (the
// header's Payload() slice), and the peer the datagram came from. For
// the uevent workaround, Header is a view over 16 zero bytes and
// Payload is the entire raw datagram, per §4.4.
type Frame struct {
	Header  nlbuf.Header
	Payload []byte
	Peer    PeerAddr
}

var zeroHeader [nlbuf.HeaderLen]byte

// Decoder turns a Socket's datagram stream into a sequence of Frames
// (§4.4's decoder loop). It is not safe for concurrent use; the engine
// that owns it drives it from a single task (§5).
type Decoder struct {
	sock      Socket
	protocol  Protocol
	raw       []byte
	remaining []byte
	peer      PeerAddr
}

// NewDecoder wraps sock for protocol. protocol selects the
// audit-length and uevent header-less workarounds.
func NewDecoder(sock Socket, protocol Protocol) *Decoder {
	return &Decoder{sock: sock, protocol: protocol, raw: make([]byte, readBufferSize)}
}

// Next returns the next decoded Frame, blocking on the socket if no
// buffered bytes remain. Per §4.4's backpressure rule, it never reads
// another datagram while a parsed message from the current one is
// still unconsumed: a single call yields exactly one Frame, and the
// decoder only asks the socket for more bytes once remaining is empty.
func (d *Decoder) Next() (Frame, error) {
	for {
		if len(d.remaining) == 0 {
			n, peer, err := d.sock.RecvFrom(d.raw)
			if err != nil {
				return Frame{}, err
			}
			datagramCount.With(prometheus.Labels{"direction": "in"}).Inc()
			d.remaining = d.raw[:n]
			d.peer = peer
		}

		if d.protocol == ProtoKobjectUevent {
			payload := d.remaining
			d.remaining = nil
			return Frame{Header: nlbuf.NewHeader(zeroHeader[:]), Payload: payload, Peer: d.peer}, nil
		}

		frame, rest, ok := d.decodeOne(d.remaining)
		if !ok {
			log.Printf("nlsock: discarding malformed datagram from peer %+v", d.peer)
			decodeErrorCount.Inc()
			d.remaining = nil
			continue
		}
		d.remaining = rest
		return frame, nil
	}
}

// decodeOne parses a single message off the front of buf, applying the
// audit length-rewrite workaround first. It returns ok=false on
// Truncated/Malformed, signalling the caller to discard the rest of
// the datagram (there is no byte-stream resync, §4.4).
func (d *Decoder) decodeOne(buf []byte) (frame Frame, rest []byte, ok bool) {
	h, err := nlbuf.NewHeaderChecked(buf)
	if err != nil {
		return Frame{}, nil, false
	}
	if d.protocol == ProtoAudit {
		diff := len(buf) - int(h.Length())
		if diff > 0 && diff <= 16 {
			mh := nlbuf.NewMutableHeader(buf)
			mh.SetLength(uint32(len(buf)))
			h = mh.AsHeader()
		}
	}
	stride := nlbuf.Align4(int(h.Length()))
	if stride > len(buf) {
		return Frame{}, nil, false
	}
	frame = Frame{Header: h, Payload: h.Payload(), Peer: d.peer}
	if stride >= len(buf) {
		return frame, nil, true
	}
	return frame, buf[stride:], true
}

// Encoder serialises a single message into a contiguous buffer and
// hands it to the socket's send path (§4.4's encoder). The previous
// Send must have returned before the next message is submitted; Send
// itself enforces this with a busy guard.
type Encoder struct {
	sock    Socket
	pending bool
}

// NewEncoder wraps sock for sending.
func NewEncoder(sock Socket) *Encoder {
	return &Encoder{sock: sock}
}

// Send writes buf to peer in a single send_to call. A short write is
// ErrIncompleteWrite; there is no partial-datagram retry.
func (e *Encoder) Send(buf []byte, peer PeerAddr) error {
	if e.pending {
		return ErrEncoderBusy
	}
	e.pending = true
	defer func() { e.pending = false }()

	n, err := e.sock.SendTo(buf, peer)
	if err != nil {
		return err
	}
	datagramCount.With(prometheus.Labels{"direction": "out"}).Inc()
	if n != len(buf) {
		return ErrIncompleteWrite
	}
	return nil
}
