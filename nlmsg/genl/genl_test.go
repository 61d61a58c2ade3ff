package genl

import (
	"net"
	"testing"

	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// TestResolveMptcpPmFamily is scenario S6 from spec.md §8: resolving
// the mptcp_pm generic-netlink family by name through a
// CTRL_CMD_GETFAMILY round trip, then caching the result.
func TestResolveMptcpPmFamily(t *testing.T) {
	req := NewGetFamilyRequest(MptcpPmFamilyName)
	if req.Type() != GENL_ID_CTRL {
		t.Fatalf("request Type = %d, want GENL_ID_CTRL", req.Type())
	}
	buf := make([]byte, req.BufferLen())
	req.Emit(buf)
	decodedReq, err := ParseMessage(GENL_ID_CTRL, buf)
	if err != nil {
		t.Fatalf("ParseMessage(request): %v", err)
	}
	if decodedReq.Header.Cmd != CTRL_CMD_GETFAMILY {
		t.Errorf("Cmd = %d, want CTRL_CMD_GETFAMILY", decodedReq.Header.Cmd)
	}

	const resolvedID = 0x17
	reply := NewMessage(GENL_ID_CTRL, CTRL_CMD_NEWFAMILY, 2, []nla.Attr{
		nla.U16Attr{K: CTRL_ATTR_FAMILY_ID, V: resolvedID},
		nla.StringAttr{K: CTRL_ATTR_FAMILY_NAME, V: MptcpPmFamilyName},
	})
	replyBuf := make([]byte, reply.BufferLen())
	reply.Emit(replyBuf)

	info, err := ParseFamilyReply(replyBuf)
	if err != nil {
		t.Fatalf("ParseFamilyReply: %v", err)
	}
	if info.ID != resolvedID || info.Name != MptcpPmFamilyName {
		t.Fatalf("got %+v, want ID=%#x Name=%s", info, resolvedID, MptcpPmFamilyName)
	}

	cache := NewFamilyCache()
	if _, ok := cache.Lookup(MptcpPmFamilyName); ok {
		t.Fatal("unexpected cache hit before Store")
	}
	cache.Store(info.Name, info.ID)
	id, ok := cache.Lookup(MptcpPmFamilyName)
	if !ok || id != resolvedID {
		t.Fatalf("Lookup = (%d, %v), want (%#x, true)", id, ok, resolvedID)
	}

	// The resolved id is now usable as the message type for an actual
	// mptcp_pm command, e.g. GET_ADDR.
	getAddr := NewGetAddrRequest(id)
	if getAddr.Type() != resolvedID || getAddr.Header.Cmd != MptcpPmCmdGetAddr {
		t.Errorf("getAddr = %+v, want Type=%#x Cmd=MptcpPmCmdGetAddr", getAddr, resolvedID)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	addr := Address{ID: 1, Family: 2, IP: net.IPv4(10, 0, 0, 1), Port: 4000, Flags: AddrFlagSignal}
	attr := addr.AsAttr()
	buf := make([]byte, nlbuf.Align4(nla.BufferLen(attr)))
	nla.Emit(attr, buf)

	tlv, err := nlbuf.NewTLVChecked(buf)
	if err != nil {
		t.Fatalf("NewTLVChecked: %v", err)
	}
	decoded, err := ParseAddress(tlv.Value())
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if decoded.ID != 1 || decoded.Port != 4000 || decoded.Flags != AddrFlagSignal {
		t.Errorf("got %+v", decoded)
	}
}
