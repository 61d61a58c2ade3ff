package genl

import (
	"net"

	"github.com/m-lab/tcp-info/nla"
)

// MptcpPmFamilyName is the generic-netlink family name the kernel
// registers for MPTCP path-manager control; its message type id is
// dynamic and must be resolved via ctrl.go before use (scenario S6).
const MptcpPmFamilyName = "mptcp_pm"

// mptcp_pm commands (linux/mptcp.h), the address-management subset.
// Grounded on original_source/mptcp-pm/src/message.rs.
const (
	MptcpPmCmdGetAddr   uint8 = 3
	MptcpPmCmdGetLimits uint8 = 6
)

// mptcp_pm top-level attributes.
const (
	MptcpPmAttrAddr uint16 = 1
)

// mptcp_pm address-object attributes, nested inside MptcpPmAttrAddr.
// Grounded on original_source/mptcp-pm/src/address/attr.rs.
const (
	mptcpAddrAttrFamily uint16 = 1
	mptcpAddrAttrID     uint16 = 2
	mptcpAddrAttrAddr4  uint16 = 3
	mptcpAddrAttrAddr6  uint16 = 4
	mptcpAddrAttrPort   uint16 = 5
	mptcpAddrAttrFlags  uint16 = 6
	mptcpAddrAttrIfIdx  uint16 = 7
)

// Address flag bits (MPTCP_PM_ADDR_FLAG_*).
const (
	AddrFlagSignal   uint32 = 1 << 0
	AddrFlagSubflow  uint32 = 1 << 1
	AddrFlagBackup   uint32 = 1 << 2
	AddrFlagFullmesh uint32 = 1 << 3
)

// Address is a decoded mptcp_pm address object (the nested value of a
// top-level MptcpPmAttrAddr attribute).
type Address struct {
	ID     uint8
	Family uint16
	IP     net.IP
	Port   uint16
	Flags  uint32
	IfIdx  int32
}

func (a Address) children() []nla.Attr {
	out := []nla.Attr{
		nla.U8Attr{K: mptcpAddrAttrID, V: a.ID},
		nla.U16Attr{K: mptcpAddrAttrFamily, V: a.Family},
		nla.U32Attr{K: mptcpAddrAttrFlags, V: a.Flags},
		nla.U32Attr{K: mptcpAddrAttrIfIdx, V: uint32(a.IfIdx)},
	}
	if ip4 := a.IP.To4(); ip4 != nil {
		out = append(out, nla.BytesAttr{K: mptcpAddrAttrAddr4, V: ip4})
	} else if a.IP != nil {
		out = append(out, nla.BytesAttr{K: mptcpAddrAttrAddr6, V: a.IP.To16()})
	}
	if a.Port != 0 {
		out = append(out, nla.U16Attr{K: mptcpAddrAttrPort, V: a.Port})
	}
	return out
}

// AsAttr wraps a as the top-level nested MptcpPmAttrAddr attribute a
// request or response carries it under.
func (a Address) AsAttr() nla.Attr {
	return nla.NestedAttr{K: MptcpPmAttrAddr, Children: a.children()}
}

// ParseAddress decodes a nested mptcp_pm address attribute's value
// bytes (i.e. the inner TLV stream of a MptcpPmAttrAddr NLA).
func ParseAddress(value []byte) (Address, error) {
	var a Address
	tlvs, err := nla.All(value)
	if err != nil {
		return a, err
	}
	for _, t := range tlvs {
		switch t.Kind() {
		case mptcpAddrAttrID:
			if v, err := nla.U8("MPTCP_PM_ADDR_ATTR_ID", t.Value()); err == nil {
				a.ID = v
			}
		case mptcpAddrAttrFamily:
			if v, err := nla.U16("MPTCP_PM_ADDR_ATTR_FAMILY", t.Value()); err == nil {
				a.Family = v
			}
		case mptcpAddrAttrAddr4:
			if ip, err := nla.IPv4("MPTCP_PM_ADDR_ATTR_ADDR4", t.Value()); err == nil {
				a.IP = ip
			}
		case mptcpAddrAttrAddr6:
			if ip, err := nla.IPv6("MPTCP_PM_ADDR_ATTR_ADDR6", t.Value()); err == nil {
				a.IP = ip
			}
		case mptcpAddrAttrPort:
			if v, err := nla.U16("MPTCP_PM_ADDR_ATTR_PORT", t.Value()); err == nil {
				a.Port = v
			}
		case mptcpAddrAttrFlags:
			if v, err := nla.U32("MPTCP_PM_ADDR_ATTR_FLAGS", t.Value()); err == nil {
				a.Flags = v
			}
		case mptcpAddrAttrIfIdx:
			if v, err := nla.I32("MPTCP_PM_ADDR_ATTR_IF_IDX", t.Value()); err == nil {
				a.IfIdx = v
			}
		}
	}
	return a, nil
}

// NewGetAddrRequest builds an MPTCP_PM_CMD_GET_ADDR request, addressed
// to the already-resolved mptcp_pm message type familyID.
func NewGetAddrRequest(familyID uint16) *Message {
	return NewMessage(familyID, MptcpPmCmdGetAddr, 1, nil)
}

// attrKindMask strips the NESTED/NET_BYTEORDER flag bits a raw
// attribute's Kind() carries, leaving just the attribute number; kept
// local since nlbuf's equivalent mask is unexported (callers are meant
// to compare against nlbuf.TLV.Kind() while iterating, not against an
// already-boxed nla.Attr).
const attrKindMask = (1 << 14) - 1

// ParseAddresses extracts every Address nested under a
// MptcpPmAttrAddr attribute in msg.
func ParseAddresses(msg *Message) ([]Address, error) {
	var out []Address
	for _, a := range msg.Attrs {
		raw, ok := a.(nla.RawAttr)
		if !ok || raw.Kind()&attrKindMask != MptcpPmAttrAddr {
			continue
		}
		v := make([]byte, raw.ValueLen())
		raw.PutValue(v)
		addr, err := ParseAddress(v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
