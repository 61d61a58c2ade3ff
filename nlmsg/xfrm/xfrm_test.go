package xfrm

import (
	"net"
	"testing"

	"github.com/m-lab/tcp-info/nla"
)

func TestSAMessageRoundTrip(t *testing.T) {
	info := SAInfo{
		Selector: Selector{
			Daddr:  net.IPv4(192, 168, 1, 1),
			Saddr:  net.IPv4(192, 168, 1, 2),
			Family: 2, // AF_INET
			Proto:  6,
		},
		ID: ID{
			Daddr: net.IPv4(192, 168, 1, 1),
			Spi:   0x12345678,
			Proto: 50, // ESP
		},
		Saddr:       net.IPv4(192, 168, 1, 2),
		LifetimeCfg: DefaultLifetimeConfig(),
		Seq:         1,
		ReqID:       7,
		Family:      2,
		Mode:        0,
	}
	msg := NewSAMessage(XFRM_MSG_NEWSA, info, nil)
	if msg.BufferLen() != saInfoLen {
		t.Fatalf("BufferLen = %d, want %d", msg.BufferLen(), saInfoLen)
	}
	buf := make([]byte, msg.BufferLen())
	msg.Emit(buf)

	decoded, err := ParseSAMessage(XFRM_MSG_NEWSA, buf)
	if err != nil {
		t.Fatalf("ParseSAMessage: %v", err)
	}
	if !decoded.Info.ID.Daddr.Equal(net.IPv4(192, 168, 1, 1)) {
		t.Errorf("ID.Daddr = %v", decoded.Info.ID.Daddr)
	}
	if decoded.Info.ID.Spi != 0x12345678 || decoded.Info.ID.Proto != 50 {
		t.Errorf("ID = %+v", decoded.Info.ID)
	}
	if decoded.Info.Seq != 1 || decoded.Info.ReqID != 7 {
		t.Errorf("Seq/ReqID = %d/%d, want 1/7", decoded.Info.Seq, decoded.Info.ReqID)
	}
	if decoded.Info.LifetimeCfg.SoftByteLimit != XFRM_INF {
		t.Errorf("SoftByteLimit = %d, want XFRM_INF", decoded.Info.LifetimeCfg.SoftByteLimit)
	}
}

func TestSAMessageWithAttrs(t *testing.T) {
	attrs := []nla.RawAttr{nla.NewRawAttr(1, []byte("hmac(sha256)"))}
	msg := NewSAMessage(XFRM_MSG_NEWSA, SAInfo{LifetimeCfg: DefaultLifetimeConfig()}, attrs)
	buf := make([]byte, msg.BufferLen())
	msg.Emit(buf)

	decoded, err := ParseSAMessage(XFRM_MSG_NEWSA, buf)
	if err != nil {
		t.Fatalf("ParseSAMessage: %v", err)
	}
	if len(decoded.Attrs) != 1 {
		t.Fatalf("got %d attrs, want 1", len(decoded.Attrs))
	}
	got := make([]byte, decoded.Attrs[0].ValueLen())
	decoded.Attrs[0].PutValue(got)
	if string(got) != "hmac(sha256)" {
		t.Errorf("Attrs[0] value = %q, want hmac(sha256)", got)
	}
}
