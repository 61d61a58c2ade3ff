package sockdiag

import (
	"testing"

	"github.com/m-lab/tcp-info/nlbuf"
)

// TestInfoDecodePartial covers an older kernel's shorter tcp_info:
// Decode must fill what the buffer covers and stop cleanly instead of
// panicking or erroring.
func TestInfoDecodePartial(t *testing.T) {
	buf := make([]byte, 12) // state/ca_state/.../options/wscale/applimited, then 1 full u32
	buf[0] = byte(TCPEstablished)
	buf[1] = 2 // CAState
	nlbuf.PutNativeUint32(buf[8:12], 200) // RTO

	info := Info(buf)
	got := info.Decode()
	if got.State != TCPEstablished {
		t.Errorf("State = %v, want TCPEstablished", got.State)
	}
	if got.CAState != 2 {
		t.Errorf("CAState = %d, want 2", got.CAState)
	}
	if got.RTO != 200 {
		t.Errorf("RTO = %d, want 200", got.RTO)
	}
	if got.ATO != 0 {
		t.Errorf("ATO = %d, want 0 (buffer ran out)", got.ATO)
	}
}

// TestInfoDecodeFull constructs a buffer covering every field this
// package knows about and checks the first and last fields round-trip,
// confirming the cursor walks the whole struct in the declared order.
func TestInfoDecodeFull(t *testing.T) {
	buf := make([]byte, 232)
	buf[0] = byte(TCPListen)
	nlbuf.PutNativeUint32(buf[228:232], 0xbeef) // SndWnd, the last field

	got := Info(buf).Decode()
	if got.State != TCPListen {
		t.Errorf("State = %v, want TCPListen", got.State)
	}
	if got.SndWnd != 0xbeef {
		t.Errorf("SndWnd = %#x, want 0xbeef", got.SndWnd)
	}
}

func TestTCPStateString(t *testing.T) {
	if TCPEstablished.String() != "ESTABLISHED" {
		t.Errorf("String() = %q, want ESTABLISHED", TCPEstablished.String())
	}
	if TCPState(99).String() != "UNKNOWN" {
		t.Errorf("String() = %q, want UNKNOWN", TCPState(99).String())
	}
}
