package sockdiag

import (
	"bytes"
	"net"
	"testing"
)

// TestUnixRequestEmit is scenario S2's request half from spec.md §8:
// UnixRequest{state_flags=ALL, inode=0x1234, show=PEER, cookie=0xff*8}
// must encode to the literal 24 byte buffer.
func TestUnixRequestEmit(t *testing.T) {
	req := UnixRequest{
		StateFlags: UnixStateAll,
		Inode:      0x1234,
		ShowFlags:  UDIAG_SHOW_PEER,
		Cookie:     [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}
	want := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x04, 0x00, 0x00,
		0x34, 0x12, 0x00, 0x00,
		0x04, 0x00, 0x00, 0x00,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}
	buf := make([]byte, req.BufferLen())
	req.Emit(buf)
	if !bytes.Equal(buf, want) {
		t.Errorf("got % x, want % x", buf, want)
	}
}

// TestUnixResponseListening is scenario S2's response half: decoding
// the spec's LISTENING_BUF constant.
func TestUnixResponseListening(t *testing.T) {
	buf := []byte{
		0x01, 0x01, 0x0a, 0x00,
		0x0e, 0x4f, 0x00, 0x00,
		0xa0, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,

		0x18, 0x00, 0x00, 0x00,
		0x2f, 0x74, 0x6d, 0x70, 0x2f, 0x2e, 0x49, 0x43, 0x45, 0x2d, 0x75, 0x6e,
		0x69, 0x78, 0x2f, 0x31, 0x31, 0x35, 0x31, 0x00,

		0x0c, 0x00, 0x04, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x80, 0x00, 0x00, 0x00,

		0x05, 0x00, 0x06, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	if len(buf) != 60 {
		t.Fatalf("test vector is %d bytes, want 60", len(buf))
	}
	resp, err := ParseUnixResponse(buf)
	if err != nil {
		t.Fatalf("ParseUnixResponse: %v", err)
	}
	if resp.Header.Kind != SOCK_STREAM || resp.Header.State != TCP_LISTEN || resp.Header.Inode != 20238 {
		t.Errorf("header = %+v, want kind=SOCK_STREAM state=TCP_LISTEN inode=20238", resp.Header)
	}
	if len(resp.Attrs) != 3 {
		t.Fatalf("got %d attrs, want 3", len(resp.Attrs))
	}
	if name, ok := resp.Attrs[0].(Name); !ok || string(name) != "/tmp/.ICE-unix/1151" {
		t.Errorf("Attrs[0] = %#v, want Name(/tmp/.ICE-unix/1151)", resp.Attrs[0])
	}
	if rq, ok := resp.Attrs[1].(ReceiveQueueLength); !ok || rq.Current != 0 || rq.Max != 128 {
		t.Errorf("Attrs[1] = %#v, want ReceiveQueueLength{0,128}", resp.Attrs[1])
	}
	if sd, ok := resp.Attrs[2].(Shutdown); !ok || sd != 0 {
		t.Errorf("Attrs[2] = %#v, want Shutdown(0)", resp.Attrs[2])
	}
}

// TestInetResponseEstablished is scenario S3 from spec.md §8: decoding
// the spec's RESP_TCP_BUF constant (an established TCP socket).
func TestInetResponseEstablished(t *testing.T) {
	buf := []byte{
		0x02, 0x01, 0x02, 0x00,

		0xeb, 0x14,
		0x01, 0xbb,
		0xc0, 0xa8, 0xb2, 0x3c, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xac, 0xd9, 0x17, 0x83, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x52, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,

		0x80, 0x60, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0xe8, 0x03, 0x00, 0x00,
		0xa8, 0xda, 0x29, 0x00,

		0x05, 0x00, 0x08, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	if len(buf) != 80 {
		t.Fatalf("test vector is %d bytes, want 80", len(buf))
	}
	resp, err := ParseInetResponse(buf)
	if err != nil {
		t.Fatalf("ParseInetResponse: %v", err)
	}
	h := resp.Header
	if h.Family != AF_INET || h.State != TCP_ESTABLISHED {
		t.Errorf("family/state = %d/%d, want AF_INET/TCP_ESTABLISHED", h.Family, h.State)
	}
	if h.Timer.Kind != TimerKeepAlive || h.Timer.ExpiresMS != 0x6080 {
		t.Errorf("Timer = %+v, want KeepAlive(0x6080)", h.Timer)
	}
	if h.SocketID.SourcePort != 60180 || h.SocketID.DestinationPort != 443 {
		t.Errorf("ports = %d/%d, want 60180/443", h.SocketID.SourcePort, h.SocketID.DestinationPort)
	}
	if !h.SocketID.SourceAddress.Equal(net.IPv4(192, 168, 178, 60)) {
		t.Errorf("src = %v, want 192.168.178.60", h.SocketID.SourceAddress)
	}
	if !h.SocketID.DestAddress.Equal(net.IPv4(172, 217, 23, 131)) {
		t.Errorf("dst = %v, want 172.217.23.131", h.SocketID.DestAddress)
	}
	if h.Inode != 0x0029daa8 {
		t.Errorf("Inode = %#x, want 0x29daa8", h.Inode)
	}
	if h.UID != 1000 {
		t.Errorf("UID = %d, want 1000", h.UID)
	}
	if len(resp.Attrs) != 1 {
		t.Fatalf("got %d attrs, want 1", len(resp.Attrs))
	}
	if sd, ok := resp.Attrs[0].(Shutdown); !ok || sd != 0 {
		t.Errorf("Attrs[0] = %#v, want Shutdown(0)", resp.Attrs[0])
	}
}

func TestInetRequestRoundTrip(t *testing.T) {
	req := InetRequest{
		Family:   AF_INET,
		Protocol: IPPROTO_UDP,
		States:   StateEstablished,
		SocketID: SocketID{},
	}
	buf := make([]byte, req.BufferLen())
	req.Emit(buf)
	decoded, err := ParseInetRequest(buf)
	if err != nil {
		t.Fatalf("ParseInetRequest: %v", err)
	}
	if decoded.Family != AF_INET || decoded.Protocol != IPPROTO_UDP || decoded.States != StateEstablished {
		t.Errorf("got %+v", decoded)
	}
}
