// Package genl implements the generic-netlink header and the ctrl
// family used to resolve a family name to its dynamically-assigned
// message type id (§3's "generic-netlink" row, §4.4's process-wide
// family-id cache). Grounded on
// other_examples/90607487_mdlayher-netlink__genetlink-genltest-family_linux.go.go
// (CTRL_CMD_GETFAMILY / CTRL_ATTR_FAMILY_NAME / CTRL_ATTR_FAMILY_ID
// wiring) and original_source/mptcp-pm/src/message.rs (a concrete
// generic-netlink family built on top of this header, used by
// nlmsg/genl/mptcp_pm.go).
package genl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// GENL_ID_CTRL is the well-known, non-dynamic message type of the
// generic-netlink controller family itself.
const GENL_ID_CTRL uint16 = 0x10

// ctrl family commands and attributes (linux/genetlink.h).
const (
	CTRL_CMD_GETFAMILY uint8 = 3
	CTRL_CMD_NEWFAMILY uint8 = 1
)

const (
	CTRL_ATTR_FAMILY_ID   uint16 = 1
	CTRL_ATTR_FAMILY_NAME uint16 = 2
	CTRL_ATTR_VERSION     uint16 = 3
)

const headerLen = 4

// Header is genlmsghdr: cmd, version, and two reserved bytes,
// immediately following the netlink header for every generic-netlink
// message (§3's generic-netlink row).
type Header struct {
	Cmd     uint8
	Version uint8
}

func decodeHeader(b []byte) Header {
	return Header{Cmd: b[0], Version: b[1]}
}

func (h Header) encode(b []byte) {
	b[0], b[1], b[2], b[3] = h.Cmd, h.Version, 0, 0
}

// Message is a generic decoded generic-netlink payload: the fixed
// header plus whatever top-level attributes the family defines. Family
// packages (e.g. genl/mptcp_pm) build a more specific type over the
// same wire shape when they need typed accessors; Message is enough
// for ctrl traffic and forward compatibility.
type Message struct {
	msgType uint16
	Header  Header
	Attrs   []nla.Attr
}

// NewMessage builds a generic-netlink message addressed to the
// resolved message type familyID.
func NewMessage(familyID uint16, cmd, version uint8, attrs []nla.Attr) *Message {
	return &Message{msgType: familyID, Header: Header{Cmd: cmd, Version: version}, Attrs: attrs}
}

func (m *Message) Type() uint16 { return m.msgType }

func (m *Message) BufferLen() int {
	total := headerLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *Message) Emit(buf []byte) {
	m.Header.encode(buf[:headerLen])
	off := headerLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

// ParseMessage decodes a generic-netlink datagram payload (after the
// netlink header). Attributes are returned as raw TLVs rather than a
// family-specific enum; callers that know the family re-parse with
// their own attribute table (see genl/ctrl.go, genl/mptcp_pm.go).
func ParseMessage(msgType uint16, buf []byte) (*Message, error) {
	if len(buf) < headerLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &Message{msgType: msgType, Header: decodeHeader(buf)}
	tlvs, err := nla.All(buf[headerLen:])
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value())))
	}
	return m, nil
}
