package nfnl

import "testing"

func TestConfigMessageRoundTrip(t *testing.T) {
	msg := NewConfigMessage(AF_INET, 0,
		Cmd(ConfigCmdPfBind),
		Mode{CopyRange: 0xffff, CopyMode: CopyModePacket},
		Flags(ConfigFlagSeq),
	)
	if msg.Type() != MessageType(NFNL_SUBSYS_ULOG, NFULNL_MSG_CONFIG) {
		t.Fatalf("Type = %#x", msg.Type())
	}
	buf := make([]byte, msg.BufferLen())
	msg.Emit(buf)

	decoded, err := ParseConfigMessage(msg.Type(), buf)
	if err != nil {
		t.Fatalf("ParseConfigMessage: %v", err)
	}
	if decoded.Header.Family != AF_INET || decoded.Header.ResID != 0 {
		t.Errorf("Header = %+v", decoded.Header)
	}
	if len(decoded.Attrs) != 3 {
		t.Fatalf("got %d attrs, want 3", len(decoded.Attrs))
	}
	cmd, ok := decoded.Attrs[0].(Cmd)
	if !ok || cmd != Cmd(ConfigCmdPfBind) {
		t.Errorf("Attrs[0] = %+v, want Cmd(ConfigCmdPfBind)", decoded.Attrs[0])
	}
	mode, ok := decoded.Attrs[1].(Mode)
	if !ok || mode.CopyRange != 0xffff || mode.CopyMode != CopyModePacket {
		t.Errorf("Attrs[1] = %+v", decoded.Attrs[1])
	}
	flags, ok := decoded.Attrs[2].(Flags)
	if !ok || flags != Flags(ConfigFlagSeq) {
		t.Errorf("Attrs[2] = %+v", decoded.Attrs[2])
	}
}

func TestPacketMessageRoundTrip(t *testing.T) {
	payload := []byte{0x45, 0x00, 0x00, 0x28}
	msg := &PacketMessage{
		msgType: MessageType(NFNL_SUBSYS_ULOG, NFULNL_MSG_PACKET),
		Header:  Header{Family: AF_INET, Version: NFNETLINK_V0, ResID: 5},
		Attrs: []PacketAttr{
			Hdr{HwProtocol: 0x0800, Hook: 1},
			Mark(42),
			Stamp{Sec: 1000, Usec: 500},
			Uid(1000),
			Payload(payload),
		},
	}
	buf := make([]byte, msg.BufferLen())
	msg.Emit(buf)

	decoded, err := ParsePacketMessage(msg.Type(), buf)
	if err != nil {
		t.Fatalf("ParsePacketMessage: %v", err)
	}
	if decoded.Header.ResID != 5 {
		t.Errorf("ResID = %d, want 5", decoded.Header.ResID)
	}
	hdr, ok := decoded.Attrs[0].(Hdr)
	if !ok || hdr.HwProtocol != 0x0800 || hdr.Hook != 1 {
		t.Errorf("Attrs[0] = %+v", decoded.Attrs[0])
	}
	if m, ok := decoded.Attrs[1].(Mark); !ok || m != 42 {
		t.Errorf("Attrs[1] = %+v, want Mark(42)", decoded.Attrs[1])
	}
	ts, ok := decoded.Attrs[2].(Stamp)
	if !ok || ts.Sec != 1000 || ts.Usec != 500 {
		t.Errorf("Attrs[2] = %+v", decoded.Attrs[2])
	}
	if got := decoded.Payload(); string(got) != string(payload) {
		t.Errorf("Payload() = %x, want %x", got, payload)
	}
}
