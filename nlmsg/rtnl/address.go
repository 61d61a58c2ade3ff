package rtnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

const addressHeaderLen = 8 // family,prefixlen,flags,scope (1 each) + index (4)

// AddressHeader is the fixed header of RTM_{NEW,DEL,GET}ADDR.
type AddressHeader struct {
	Family    uint8
	PrefixLen uint8
	Flags     uint8
	Scope     uint8
	Index     int32
}

func decodeAddressHeader(b []byte) AddressHeader {
	return AddressHeader{
		Family:    b[0],
		PrefixLen: b[1],
		Flags:     b[2],
		Scope:     b[3],
		Index:     int32(nlbuf.NativeUint32(b[4:8])),
	}
}

func (h AddressHeader) encode(b []byte) {
	b[0], b[1], b[2], b[3] = h.Family, h.PrefixLen, h.Flags, h.Scope
	nlbuf.PutNativeUint32(b[4:8], uint32(h.Index))
}

// Address attribute kinds, from linux/if_addr.h.
const (
	IFA_UNSPEC uint16 = iota
	IFA_ADDRESS
	IFA_LOCAL
	IFA_LABEL
	IFA_BROADCAST
	IFA_ANYCAST
	IFA_CACHEINFO
	IFA_MULTICAST
	IFA_FLAGS
)

// AddrAttr is the closed attribute enum for AddressMessage.
type AddrAttr interface {
	nla.Attr
	isAddrAttr()
}

// AddrIP is shared by IFA_ADDRESS/IFA_LOCAL/IFA_BROADCAST/IFA_ANYCAST/
// IFA_MULTICAST: all are plain 4 or 16 byte IP values, differing only
// in kind.
type AddrIP struct {
	K uint16
	IP []byte
}

func (AddrIP) isAddrAttr()        {}
func (a AddrIP) Kind() uint16     { return a.K }
func (a AddrIP) ValueLen() int    { return len(a.IP) }
func (a AddrIP) PutValue(b []byte) { copy(b, a.IP) }

// Label is IFA_LABEL.
type Label string

func (Label) isAddrAttr()     {}
func (a Label) Kind() uint16  { return IFA_LABEL }
func (a Label) ValueLen() int { return len(a) + 1 }
func (a Label) PutValue(b []byte) {
	copy(b, a)
	b[len(a)] = 0
}

// AddrFlags is IFA_FLAGS (extended flags beyond the header's Flags byte).
type AddrFlags uint32

func (AddrFlags) isAddrAttr()         {}
func (a AddrFlags) Kind() uint16      { return IFA_FLAGS }
func (a AddrFlags) ValueLen() int     { return 4 }
func (a AddrFlags) PutValue(b []byte) { nlbuf.PutNativeUint32(b, uint32(a)) }

// OtherAddrAttr is the forward-compatibility catch-all.
type OtherAddrAttr struct{ nla.RawAttr }

func (OtherAddrAttr) isAddrAttr() {}

func parseAddrAttr(t nlbuf.TLV) AddrAttr {
	switch t.Kind() {
	case IFA_ADDRESS, IFA_LOCAL, IFA_BROADCAST, IFA_ANYCAST, IFA_MULTICAST:
		return AddrIP{K: t.Kind(), IP: nla.Bytes(t.Value())}
	case IFA_LABEL:
		if s, err := nla.String("IFA_LABEL", t.Value()); err == nil {
			return Label(s)
		}
	case IFA_FLAGS:
		if v, err := nla.U32("IFA_FLAGS", t.Value()); err == nil {
			return AddrFlags(v)
		}
	}
	return OtherAddrAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}
}

// AddressMessage is the decoded form of RTM_{NEW,DEL,GET}ADDR.
type AddressMessage struct {
	msgType uint16
	Header  AddressHeader
	Attrs   []AddrAttr
}

func (m *AddressMessage) Type() uint16 { return m.msgType }

func (m *AddressMessage) BufferLen() int {
	total := addressHeaderLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *AddressMessage) Emit(buf []byte) {
	m.Header.encode(buf[:addressHeaderLen])
	off := addressHeaderLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

func parseAddress(msgType uint16, buf []byte) (*AddressMessage, error) {
	hdr, rest, ok := synthesizeTruncatedHeader(msgType, buf, addressHeaderLen)
	if !ok {
		return nil, nlbuf.ErrTruncated
	}
	m := &AddressMessage{msgType: msgType, Header: decodeAddressHeader(hdr)}
	tlvs, err := iterateAttrs(rest)
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, parseAddrAttr(t))
	}
	return m, nil
}
