package xfrm

import (
	"net"

	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// Field offsets within a user_sa_info record (linux/xfrm.h struct
// xfrm_usersa_info), grounded on
// original_source/netlink-packet-xfrm/src/user_sa_info.rs.
const (
	saSelectorOff     = 0
	saIDOff           = saSelectorOff + selectorLen     // 56
	saSaddrOff        = saIDOff + idLen                 // 80
	saLifetimeCfgOff  = saSaddrOff + addressLen          // 96
	saLifetimeCurOff  = saLifetimeCfgOff + lifetimeConfigLen // 160
	saStatsOff        = saLifetimeCurOff + lifetimeLen  // 192
	saSeqOff          = saStatsOff + statsLen           // 204
	saReqIDOff        = saSeqOff + 4                    // 208
	saFamilyOff       = saReqIDOff + 4                  // 212
	saModeOff         = saFamilyOff + 2                 // 214
	saReplayWindowOff = saModeOff + 1                   // 215
	saFlagsOff        = saReplayWindowOff + 1           // 216

	saInfoLen = saFlagsOff + 8 // 224, trailing padding included
)

// SAInfo is xfrm_usersa_info: the full security-association record
// carried by XFRM_MSG_NEWSA/XFRM_MSG_GETSA replies and
// XFRM_MSG_NEWSA/XFRM_MSG_UPDSA requests.
type SAInfo struct {
	Selector     Selector
	ID           ID
	Saddr        net.IP
	LifetimeCfg  LifetimeConfig
	LifetimeCur  Lifetime
	Stats        Stats
	Seq          uint32
	ReqID        uint32
	Family       uint16
	Mode         uint8
	ReplayWindow uint8
	Flags        uint8
}

func decodeSAInfo(b []byte) SAInfo {
	family := nlbuf.NativeUint16(b[saFamilyOff : saFamilyOff+2])
	return SAInfo{
		Selector:     decodeSelector(b[saSelectorOff : saSelectorOff+selectorLen]),
		ID:           decodeID(family, b[saIDOff:saIDOff+idLen]),
		Saddr:        decodeAddress(family, b[saSaddrOff:saSaddrOff+addressLen]),
		LifetimeCfg:  decodeLifetimeConfig(b[saLifetimeCfgOff : saLifetimeCfgOff+lifetimeConfigLen]),
		LifetimeCur:  decodeLifetime(b[saLifetimeCurOff : saLifetimeCurOff+lifetimeLen]),
		Stats:        decodeStats(b[saStatsOff : saStatsOff+statsLen]),
		Seq:          nlbuf.NativeUint32(b[saSeqOff : saSeqOff+4]),
		ReqID:        nlbuf.NativeUint32(b[saReqIDOff : saReqIDOff+4]),
		Family:       family,
		Mode:         b[saModeOff],
		ReplayWindow: b[saReplayWindowOff],
		Flags:        b[saFlagsOff],
	}
}

func (s SAInfo) encode(b []byte) {
	s.Selector.encode(b[saSelectorOff : saSelectorOff+selectorLen])
	s.ID.encode(b[saIDOff : saIDOff+idLen])
	encodeAddress(s.Saddr, b[saSaddrOff:saSaddrOff+addressLen])
	s.LifetimeCfg.encode(b[saLifetimeCfgOff : saLifetimeCfgOff+lifetimeConfigLen])
	s.LifetimeCur.encode(b[saLifetimeCurOff : saLifetimeCurOff+lifetimeLen])
	s.Stats.encode(b[saStatsOff : saStatsOff+statsLen])
	nlbuf.PutNativeUint32(b[saSeqOff:saSeqOff+4], s.Seq)
	nlbuf.PutNativeUint32(b[saReqIDOff:saReqIDOff+4], s.ReqID)
	nlbuf.PutNativeUint16(b[saFamilyOff:saFamilyOff+2], s.Family)
	b[saModeOff] = s.Mode
	b[saReplayWindowOff] = s.ReplayWindow
	b[saFlagsOff] = s.Flags
	for i := saFlagsOff + 1; i < saInfoLen; i++ {
		b[i] = 0
	}
}

// SAMessage is an XFRM_MSG_NEWSA/GETSA/DELSA datagram: the fixed
// user_sa_info record plus whatever auxiliary NLAs the kernel or
// caller attaches (encryption/auth algorithm names, encap templates,
// mark). Those attributes are not in the retrieved source tree, so
// they round-trip as raw TLVs rather than a typed enum (§4.2's
// catch-all discipline).
type SAMessage struct {
	msgType uint16
	Info    SAInfo
	Attrs   []nla.RawAttr
}

// NewSAMessage builds an xfrm SA message of the given message type
// (XFRM_MSG_NEWSA, XFRM_MSG_GETSA, ...) carrying info and attrs.
func NewSAMessage(msgType uint16, info SAInfo, attrs []nla.RawAttr) *SAMessage {
	return &SAMessage{msgType: msgType, Info: info, Attrs: attrs}
}

func (m *SAMessage) Type() uint16 { return m.msgType }

func (m *SAMessage) BufferLen() int {
	total := saInfoLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *SAMessage) Emit(buf []byte) {
	m.Info.encode(buf[:saInfoLen])
	off := saInfoLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

// ParseSAMessage decodes an xfrm SA message payload (after the netlink
// header).
func ParseSAMessage(msgType uint16, buf []byte) (*SAMessage, error) {
	if len(buf) < saInfoLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &SAMessage{msgType: msgType, Info: decodeSAInfo(buf[:saInfoLen])}
	tlvs, err := nla.All(buf[saInfoLen:])
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		m.Attrs = append(m.Attrs, nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value())))
	}
	return m, nil
}
