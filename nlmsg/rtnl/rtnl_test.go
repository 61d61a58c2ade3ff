package rtnl

import (
	"testing"

	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// TestTruncatedGetLink is scenario S4 from spec.md: a 4 byte payload
// [02 00 00 00] with netlink type RTM_GETLINK must decode to a
// LinkMessage with family=2 and every other field zero, not an error.
func TestTruncatedGetLink(t *testing.T) {
	buf := []byte{0x02, 0x00, 0x00, 0x00}
	msg, err := Parse(RTM_GETLINK, buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	link := msg.(*LinkMessage)
	if link.Header.Family != 2 {
		t.Errorf("Family = %d, want 2", link.Header.Family)
	}
	if link.Header.Type != 0 || link.Header.Index != 0 || link.Header.Flags != 0 || link.Header.Change != 0 {
		t.Errorf("expected zeroed remaining fields, got %+v", link.Header)
	}
	if len(link.Attrs) != 0 {
		t.Errorf("expected no attributes, got %d", len(link.Attrs))
	}
}

func TestTruncatedGetRouteOneByte(t *testing.T) {
	buf := []byte{0x0a} // AF_INET6 = 10, no padding at all
	msg, err := Parse(RTM_GETROUTE, buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	route := msg.(*RouteMessage)
	if route.Header.Family != 10 {
		t.Errorf("Family = %d, want 10", route.Header.Family)
	}
}

func TestNonGetTruncatedFails(t *testing.T) {
	// RTM_NEWLINK (not a GET) with a short buffer must fail, the quirk
	// only applies to GET requests per §4.3.
	if _, err := Parse(RTM_NEWLINK, []byte{0x02, 0x00, 0x00, 0x00}); err != nlbuf.ErrTruncated {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestLinkMessageRoundTrip(t *testing.T) {
	msg := &LinkMessage{
		msgType: RTM_NEWLINK,
		Header:  LinkHeader{Family: 2, Type: 1, Index: 3, Flags: 0x1003, Change: 0xffffffff},
		Attrs:   []LinkAttr{IfName("eth0"), MTU(1500)},
	}
	buf := make([]byte, msg.BufferLen())
	msg.Emit(buf)

	decoded, err := Parse(RTM_NEWLINK, buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	link := decoded.(*LinkMessage)
	if link.Header != msg.Header {
		t.Errorf("Header = %+v, want %+v", link.Header, msg.Header)
	}
	if len(link.Attrs) != 2 {
		t.Fatalf("got %d attrs, want 2", len(link.Attrs))
	}
	if link.Attrs[0].(IfName) != "eth0" {
		t.Errorf("IfName = %q, want eth0", link.Attrs[0])
	}
	if link.Attrs[1].(MTU) != 1500 {
		t.Errorf("MTU = %d, want 1500", link.Attrs[1])
	}
}

func TestLinkOtherAttrRoundTrip(t *testing.T) {
	msg := &LinkMessage{
		msgType: RTM_NEWLINK,
		Header:  LinkHeader{Family: 2},
		Attrs:   []LinkAttr{OtherLinkAttr{nla.NewRawAttr(999, []byte{1, 2, 3, 4})}},
	}
	buf := make([]byte, msg.BufferLen())
	msg.Emit(buf)
	decoded, err := Parse(RTM_NEWLINK, buf)
	if err != nil {
		t.Fatal(err)
	}
	link := decoded.(*LinkMessage)
	other, ok := link.Attrs[0].(OtherLinkAttr)
	if !ok {
		t.Fatalf("expected OtherLinkAttr, got %T", link.Attrs[0])
	}
	if other.Kind() != 999 {
		t.Errorf("Kind = %d, want 999", other.Kind())
	}
}

func TestRouteMetricsNested(t *testing.T) {
	mtu := uint32(1400)
	rtt := uint32(250)
	msg := &RouteMessage{
		msgType: RTM_NEWROUTE,
		Header:  RouteHeader{Family: 2, Table: 254},
		Attrs:   []RouteAttr{Metrics{Mtu: &mtu, Rtt: &rtt}},
	}
	buf := make([]byte, msg.BufferLen())
	msg.Emit(buf)
	decoded, err := Parse(RTM_NEWROUTE, buf)
	if err != nil {
		t.Fatal(err)
	}
	route := decoded.(*RouteMessage)
	metrics, ok := route.Attrs[0].(Metrics)
	if !ok {
		t.Fatalf("expected Metrics, got %T", route.Attrs[0])
	}
	if metrics.Mtu == nil || *metrics.Mtu != 1400 {
		t.Errorf("Mtu = %v, want 1400", metrics.Mtu)
	}
	if metrics.Rtt == nil || *metrics.Rtt != 250 {
		t.Errorf("Rtt = %v, want 250", metrics.Rtt)
	}
	if metrics.Window != nil {
		t.Errorf("Window = %v, want nil", metrics.Window)
	}
}

func TestUnknownMessageType(t *testing.T) {
	_, err := Parse(9999, []byte{0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected error for unknown message type")
	}
	if _, ok := err.(interface{ Error() string }); !ok {
		t.Fatalf("expected an error value, got %v", err)
	}
}
