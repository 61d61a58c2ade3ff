package nfnl

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// nflog (NFULNL) subsystem commands and config/packet attribute kinds,
// linux/netfilter/nfnetlink_log.h. Grounded on
// original_source/netlink-packet-netfilter/src/nflog/{config,packet}.rs.
const (
	NFULNL_MSG_PACKET uint8 = 0
	NFULNL_MSG_CONFIG uint8 = 1
)

const (
	NFULA_CFG_CMD      uint16 = 1
	NFULA_CFG_MODE     uint16 = 2
	NFULA_CFG_NLBUFSIZ uint16 = 3
	NFULA_CFG_TIMEOUT  uint16 = 4
	NFULA_CFG_QTHRESH  uint16 = 5
	NFULA_CFG_FLAGS    uint16 = 6
)

// ConfigCmd values, the NFULA_CFG_CMD payload byte.
const (
	ConfigCmdBind     uint8 = 1
	ConfigCmdUnbind   uint8 = 2
	ConfigCmdPfBind   uint8 = 3
	ConfigCmdPfUnbind uint8 = 4
)

// CopyMode values, the NFULA_CFG_MODE payload's copy_mode byte.
const (
	CopyModeNone  uint8 = 0
	CopyModeMeta  uint8 = 1
	CopyModePacket uint8 = 2
)

// ConfigFlags bits, NFULA_CFG_FLAGS (big-endian u16).
const (
	ConfigFlagSeq       uint16 = 0x0001
	ConfigFlagSeqGlobal uint16 = 0x0002
	ConfigFlagConntrack uint16 = 0x0004
)

// beU16 and beU32 parse big-endian scalars; nflog, like the rest of
// netfilter, is big-endian on the wire unlike rtnetlink's native-endian
// NLAs (§4.2's per-family byte order note).
func beU16(field string, b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, &nla.InvalidValueError{Field: field, Bytes: b}
	}
	return nlbuf.BigEndianUint16(b), nil
}

func beU32(field string, b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, &nla.InvalidValueError{Field: field, Bytes: b}
	}
	return nlbuf.BigEndianUint32(b), nil
}

// configModeLen is NFULA_CFG_MODE's fixed payload: copy_range (u32 be)
// then copy_mode (u8) plus one pad byte.
const configModeLen = 6

// ConfigMode is the NFULA_CFG_MODE attribute value: how much of each
// logged packet the kernel should copy up, and how.
type ConfigMode struct {
	CopyRange uint32
	CopyMode  uint8
}

type configModeAttr ConfigMode

func (a configModeAttr) Kind() uint16  { return NFULA_CFG_MODE }
func (a configModeAttr) ValueLen() int { return configModeLen }
func (a configModeAttr) PutValue(b []byte) {
	nlbuf.PutBigEndianUint32(b[0:4], a.CopyRange)
	b[4] = a.CopyMode
	b[5] = 0
}

func parseConfigMode(b []byte) (ConfigMode, error) {
	if len(b) != configModeLen {
		return ConfigMode{}, &nla.InvalidValueError{Field: "NFULA_CFG_MODE", Bytes: b}
	}
	return ConfigMode{CopyRange: nlbuf.BigEndianUint32(b[0:4]), CopyMode: b[4]}, nil
}

// ConfigAttr is the closed set of nflog config attributes.
type ConfigAttr interface {
	nla.Attr
	isConfigAttr()
}

type Cmd uint8

func (Cmd) isConfigAttr()        {}
func (c Cmd) Kind() uint16       { return NFULA_CFG_CMD }
func (c Cmd) ValueLen() int      { return 1 }
func (c Cmd) PutValue(b []byte)  { b[0] = uint8(c) }

type Mode ConfigMode

func (Mode) isConfigAttr()   {}
func (m Mode) Kind() uint16  { return NFULA_CFG_MODE }
func (m Mode) ValueLen() int { return configModeLen }
func (m Mode) PutValue(b []byte) {
	configModeAttr(m).PutValue(b)
}

type NlBufSiz uint32

func (NlBufSiz) isConfigAttr()       {}
func (n NlBufSiz) Kind() uint16      { return NFULA_CFG_NLBUFSIZ }
func (n NlBufSiz) ValueLen() int     { return 4 }
func (n NlBufSiz) PutValue(b []byte) { nlbuf.PutBigEndianUint32(b, uint32(n)) }

type Timeout uint32

func (Timeout) isConfigAttr()       {}
func (t Timeout) Kind() uint16      { return NFULA_CFG_TIMEOUT }
func (t Timeout) ValueLen() int     { return 4 }
func (t Timeout) PutValue(b []byte) { nlbuf.PutBigEndianUint32(b, uint32(t)) }

type QThresh uint32

func (QThresh) isConfigAttr()       {}
func (q QThresh) Kind() uint16      { return NFULA_CFG_QTHRESH }
func (q QThresh) ValueLen() int     { return 4 }
func (q QThresh) PutValue(b []byte) { nlbuf.PutBigEndianUint32(b, uint32(q)) }

type Flags uint16

func (Flags) isConfigAttr()       {}
func (f Flags) Kind() uint16      { return NFULA_CFG_FLAGS }
func (f Flags) ValueLen() int     { return 2 }
func (f Flags) PutValue(b []byte) { nlbuf.PutBigEndianUint16(b, uint16(f)) }

// OtherConfigAttr carries an attribute this package does not recognise.
type OtherConfigAttr struct{ nla.RawAttr }

func (OtherConfigAttr) isConfigAttr() {}

func parseConfigAttr(t nlbuf.TLV) (ConfigAttr, error) {
	switch t.Kind() {
	case NFULA_CFG_CMD:
		v, err := nla.U8("NFULA_CFG_CMD", t.Value())
		if err != nil {
			return nil, err
		}
		return Cmd(v), nil
	case NFULA_CFG_MODE:
		m, err := parseConfigMode(t.Value())
		if err != nil {
			return nil, err
		}
		return Mode(m), nil
	case NFULA_CFG_NLBUFSIZ:
		v, err := beU32("NFULA_CFG_NLBUFSIZ", t.Value())
		if err != nil {
			return nil, err
		}
		return NlBufSiz(v), nil
	case NFULA_CFG_TIMEOUT:
		v, err := beU32("NFULA_CFG_TIMEOUT", t.Value())
		if err != nil {
			return nil, err
		}
		return Timeout(v), nil
	case NFULA_CFG_QTHRESH:
		v, err := beU32("NFULA_CFG_QTHRESH", t.Value())
		if err != nil {
			return nil, err
		}
		return QThresh(v), nil
	case NFULA_CFG_FLAGS:
		v, err := beU16("NFULA_CFG_FLAGS", t.Value())
		if err != nil {
			return nil, err
		}
		return Flags(v), nil
	default:
		return OtherConfigAttr{nla.NewRawAttr(t.RawKind(), nla.Bytes(t.Value()))}, nil
	}
}

// ConfigMessage is an NFULNL_MSG_CONFIG message: the nfgenmsg header
// (family carries the logging group's address family, ResID carries
// the nflog group number) plus a sequence of ConfigAttr.
type ConfigMessage struct {
	msgType uint16
	Header  Header
	Attrs   []ConfigAttr
}

// NewConfigMessage builds an NFULNL_MSG_CONFIG request addressed to
// group (the ResID field), e.g. a ConfigCmdPfBind + Mode + Flags
// sequence to start logging on that group.
func NewConfigMessage(family uint8, group uint16, attrs ...ConfigAttr) *ConfigMessage {
	return &ConfigMessage{
		msgType: MessageType(NFNL_SUBSYS_ULOG, NFULNL_MSG_CONFIG),
		Header:  Header{Family: family, Version: NFNETLINK_V0, ResID: group},
		Attrs:   attrs,
	}
}

func (m *ConfigMessage) Type() uint16 { return m.msgType }

func (m *ConfigMessage) BufferLen() int {
	total := headerLen
	for _, a := range m.Attrs {
		total += nlbuf.Align4(nla.BufferLen(a))
	}
	return total
}

func (m *ConfigMessage) Emit(buf []byte) {
	m.Header.encode(buf[:headerLen])
	off := headerLen
	for _, a := range m.Attrs {
		n := nla.Emit(a, buf[off:])
		off += nlbuf.Align4(n)
	}
}

// ParseConfigMessage decodes an nflog config message payload (after
// the netlink header).
func ParseConfigMessage(msgType uint16, buf []byte) (*ConfigMessage, error) {
	if len(buf) < headerLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &ConfigMessage{msgType: msgType, Header: decodeHeader(buf)}
	off := headerLen
	for off < len(buf) {
		t, err := nlbuf.NewTLVChecked(buf[off:])
		if err != nil {
			return nil, err
		}
		a, err := parseConfigAttr(t)
		if err != nil {
			return nil, err
		}
		m.Attrs = append(m.Attrs, a)
		off += nlbuf.Align4(t.Stride())
	}
	return m, nil
}
