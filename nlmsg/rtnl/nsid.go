package rtnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

const nsIdHeaderLen = 4 // family(1) pad(3)

// NsIdHeader is the fixed header of RTM_{NEW,DEL,GET}NSID.
// Supplemented per SPEC_FULL.md §4 from rtnetlink/src/ns.rs: spec.md
// names NsIdMessage in its family table but does not detail it.
type NsIdHeader struct {
	Family uint8
}

// Namespace-id attribute kinds, from linux/rtnetlink.h.
const (
	NETNSA_NONE uint16 = iota
	NETNSA_NSID
	NETNSA_PID
	NETNSA_FD
	NETNSA_TARGET_NSID
	NETNSA_CURRENT_NSID
)

// NsIdAttr is the closed attribute enum for NsIdMessage.
type NsIdAttr interface {
	nla.Attr
	isNsIdAttr()
}

// NsId is NETNSA_NSID: the namespace id, a signed 32 bit value (-1
// means "not assigned").
type NsId int32

func (NsId) isNsIdAttr()        {}
func (a NsId) Kind() uint16     { return NETNSA_NSID }
func (a NsId) ValueLen() int    { return 4 }
func (a NsId) PutValue(b []byte) { nlbuf.PutNativeUint32(b, uint32(a)) }

// Pid is NETNSA_PID: the pid of a process in the target namespace,
// used to identify it by PID rather than by fd.
type Pid uint32

func (Pid) isNsIdAttr()        {}
func (a Pid) Kind() uint16     { return NETNSA_PID }
func (a Pid) ValueLen() int    { return 4 }
func (a Pid) PutValue(b []byte) { nlbuf.PutNativeUint32(b, uint32(a)) }

// Fd is NETNSA_FD: an open file descriptor naming the target namespace.
type Fd uint32

func (Fd) isNsIdAttr()        {}
func (a Fd) Kind() uint16     { return NETNSA_FD }
func (a Fd) ValueLen() int    { return 4 }
func (a Fd) PutValue(b []byte) { nlbuf.PutNativeUint32(b, uint32(a)) }

// OtherNsIdAttr is the forward-compatibility catch-all.
type OtherNsIdAttr struct{ nla.RawAttr }

func (OtherNsIdAttr) isNsIdAttr() {}

func parseNsIdAttr(t nlbuf.TLV) NsIdAttr {
	switch t.Kind() {
	case NETNSA_NSID, NETNSA_TARGET_NSID, NETNSA_CURRENT_NSID:
		if v, err := nla.I32("NETNSA_NSID", t.Value()); err == nil {
			return NsId(v)
		}
	case NETNSA_PID:
		if v, err := nla.U32("NETNSA_PID", t.Value()); err == nil {
			return Pid(v)
		}
	case NETNSA_FD:
		if v, err := nla.U32("NETNSA_FD", t.Value()); err == nil {
			return Fd(v)
		}
	}
	return OtherNsIdAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// NsIdMessage is the decoded form of RTM_{NEW,DEL,GET}NSID.
type NsIdMessage struct {
	msgType uint16
	Header  NsIdHeader
	Attrs   []NsIdAttr
}

func (m *NsIdMessage) Type() uint16 { return m.msgType }

func (m *NsIdMessage) BufferLen() int {
	total := nsIdHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *NsIdMessage) Emit(buf []byte) {
	buf[0], buf[1], buf[2], buf[3] = m.Header.Family, 0, 0, 0
	off := nsIdHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

func parseNsId(msgType uint16, buf []byte) (*NsIdMessage, error) {
	if len(buf) < nsIdHeaderLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &NsIdMessage{msgType: msgType, Header: NsIdHeader{Family: buf[0]}}
	tlvs, err := iterateAttrs(buf[nsIdHeaderLen:])
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseNsIdAttr(t))
	}
	return m, nil
}
