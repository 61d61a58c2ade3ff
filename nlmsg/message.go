package nlmsg

import (
	"github.com/m-lab/tcp-info/nlbuf"
)

// FamilyMessage is what every family-specific inner message
// (rtnl.LinkMessage, sockdiag.InetResponse, audit.StatusMessage, ...)
// implements, so the engine and framed codec can finalize and emit any
// of them without knowing the family ahead of time. Type returns the
// netlink message_type that identifies this message on the wire
// (RTM_NEWLINK, SOCK_DIAG_BY_FAMILY, a resolved generic-netlink family
// id, ...); Finalize uses it to fill in the netlink header.
type FamilyMessage interface {
	Type() uint16
	BufferLen() int
	Emit(buf []byte)
}

// Kind distinguishes the payload variants of §3's tagged union:
//
//	Noop | Done | Overrun(bytes) | Error{code, original} | Ack{code, original} | Inner(T)
type Kind int

const (
	KindNoop Kind = iota
	KindDone
	KindOverrun
	KindError
	KindAck
	KindInner
)

func (k Kind) String() string {
	switch k {
	case KindNoop:
		return "Noop"
	case KindDone:
		return "Done"
	case KindOverrun:
		return "Overrun"
	case KindError:
		return "Error"
	case KindAck:
		return "Ack"
	case KindInner:
		return "Inner"
	default:
		return "Unknown"
	}
}

// Message is a decoded netlink datagram: its header plus a payload
// classified into one of Kind's variants. Only the fields relevant to
// Kind are meaningful; Inner is nil unless Kind == KindInner.
type Message struct {
	Header  nlbuf.Header
	Kind    Kind
	Overrun []byte

	// Code and Original are populated for KindError and KindAck: code
	// is the signed errno (0 means Ack, <0 means Error - see
	// ClassifyControl), Original is the echoed request header.
	Code     int32
	Original nlbuf.Header

	// Inner holds the family-specific decoded message for KindInner.
	// Callers that know the family type assert it back, e.g.
	// msg.Inner.(*rtnl.LinkMessage).
	Inner FamilyMessage
}

// errorCodeLen is the size of the signed 32 bit code that opens an
// NLMSG_ERROR/ACK payload; the echoed original netlink header follows
// it and may be shorter than a full header.
const errorCodeLen = 4

// ClassifyControl inspects a netlink control message (NLMSG_NOOP,
// NLMSG_DONE, NLMSG_OVERRUN, or NLMSG_ERROR) and returns the decoded
// Message. It must only be called when h.Type() is one of those four
// constants; callers dispatch to a family parser otherwise (see
// nlmsg.Kind == KindInner handling in package nlproto).
func ClassifyControl(h nlbuf.Header) (Message, error) {
	switch h.Type() {
	case NLMSG_NOOP:
		return Message{Header: h, Kind: KindNoop}, nil
	case NLMSG_DONE:
		return Message{Header: h, Kind: KindDone}, nil
	case NLMSG_OVERRUN:
		return Message{Header: h, Kind: KindOverrun, Overrun: h.Payload()}, nil
	case NLMSG_ERROR:
		return classifyError(h)
	}
	return Message{}, errUnknownControl
}

func classifyError(h nlbuf.Header) (Message, error) {
	payload := h.Payload()
	if len(payload) < errorCodeLen {
		return Message{}, nlbuf.ErrTruncated
	}
	code := int32(nlbuf.NativeUint32(payload[0:4]))
	original, err := nlbuf.NewHeaderChecked(payload[4:])
	if err != nil {
		// The echoed header from the kernel is occasionally shorter
		// than a full header (e.g. truncated originals); fall back to
		// an unchecked view rather than failing the whole Ack/Error.
		original = nlbuf.NewHeader(payload[4:])
	}
	m := Message{Header: h, Code: code, Original: original}
	if code == 0 {
		m.Kind = KindAck
	} else {
		m.Kind = KindError
	}
	return m, nil
}

// IsControlType reports whether t is one of the four netlink control
// message types ClassifyControl understands.
func IsControlType(t uint16) bool {
	switch t {
	case NLMSG_NOOP, NLMSG_DONE, NLMSG_OVERRUN, NLMSG_ERROR:
		return true
	}
	return false
}

// Finalize computes the netlink header's Length and Type fields from
// an already-built FamilyMessage and writes the full datagram
// (header + family message) into buf, which must be at least
// BufferLen(inner) bytes. Per §4.3, the netlink header's
// length is set by the engine, never by family code, so this is the
// one place that combines the two.
func Finalize(seq, port uint32, flags Flags, inner FamilyMessage, buf []byte) int {
	total := nlbuf.HeaderLen + inner.BufferLen()
	mh := nlbuf.NewMutableHeader(buf)
	mh.SetLength(uint32(total))
	mh.SetType(inner.Type())
	mh.SetFlags(uint16(flags))
	mh.SetSequence(seq)
	mh.SetPort(port)
	inner.Emit(buf[nlbuf.HeaderLen:total])
	return total
}

// BufferLen is the total datagram size Finalize will write for inner.
func BufferLen(inner FamilyMessage) int {
	return nlbuf.HeaderLen + inner.BufferLen()
}
