package audit

import (
	"bytes"
	"testing"

	"github.com/m-lab/tcp-info/nlbuf"
	"github.com/m-lab/tcp-info/nlmsg"
)

// TestSetStatusEncodeLength is scenario S1 from spec.md §8: a
// StatusMessage{mask=5, enabled=1, pid=PID} wrapped in AUDIT_SET must
// produce a 56 byte datagram (16 byte netlink header + 40 byte body).
func TestSetStatusEncodeLength(t *testing.T) {
	const pid = 4242
	msg := NewSetStatus(StatusMessage{Mask: 5, Enabled: 1, Pid: pid})
	if msg.Type() != AUDIT_SET {
		t.Fatalf("Type() = %d, want AUDIT_SET (%d)", msg.Type(), AUDIT_SET)
	}
	total := nlmsg.BufferLen(msg)
	if total != 56 {
		t.Fatalf("BufferLen = %d, want 56", total)
	}
	buf := make([]byte, total)
	n := nlmsg.Finalize(1, 0, nlmsg.Request|nlmsg.Ack, msg, buf)
	if n != 56 {
		t.Fatalf("Finalize wrote %d bytes, want 56", n)
	}
	h := nlbuf.NewHeader(buf)
	if h.Length() != 56 || h.Type() != AUDIT_SET {
		t.Errorf("header = %+v, want length=56 type=AUDIT_SET", h)
	}
	decoded, err := ParseStatus(AUDIT_SET, h.Payload())
	if err != nil {
		t.Fatalf("ParseStatus: %v", err)
	}
	if decoded.Mask != 5 || decoded.Enabled != 1 || decoded.Pid != pid {
		t.Errorf("decoded = %+v, want mask=5 enabled=1 pid=%d", decoded, pid)
	}
}

// TestSetStatusAckClassification is S1's reply half: a 32 byte
// datagram carrying an NLMSG_ERROR payload with code==0 classifies as
// exactly one Ack.
func TestSetStatusAckClassification(t *testing.T) {
	buf := make([]byte, 32)
	mh := nlbuf.NewMutableHeader(buf)
	mh.SetLength(32)
	mh.SetType(nlmsg.NLMSG_ERROR)
	mh.SetFlags(0)
	mh.SetSequence(1)
	mh.SetPort(0)
	// error payload: code (0 == Ack) then the echoed original header.
	nlbuf.PutNativeUint32(buf[16:20], 0)
	orig := nlbuf.NewMutableHeader(buf[20:32])
	orig.SetLength(56)
	orig.SetType(AUDIT_SET)
	orig.SetSequence(1)

	h := nlbuf.NewHeader(buf)
	m, err := nlmsg.ClassifyControl(h)
	if err != nil {
		t.Fatalf("ClassifyControl: %v", err)
	}
	if m.Kind != nlmsg.KindAck {
		t.Fatalf("Kind = %v, want Ack", m.Kind)
	}
	if m.Code != 0 {
		t.Errorf("Code = %d, want 0", m.Code)
	}
	if m.Original.Type() != AUDIT_SET {
		t.Errorf("Original.Type = %d, want AUDIT_SET", m.Original.Type())
	}
}

func TestRuleMessageRoundTrip(t *testing.T) {
	rule := &RuleMessage{
		msgType: AUDIT_ADD_RULE,
		Flags:   1,
		Action:  2,
		Terms: []FieldTerm{
			{Field: 1, Op: 4, Value: 0},
			{Field: FieldFilterKey, Op: 4, Value: uint32(len("my-key"))},
		},
		Buf: []byte("my-key"),
	}
	rule.Syscalls[0] = 0xffffffff

	buf := make([]byte, rule.BufferLen())
	rule.Emit(buf)

	decoded, err := ParseRule(AUDIT_ADD_RULE, buf)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if decoded.Flags != 1 || decoded.Action != 2 {
		t.Errorf("got Flags=%d Action=%d, want 1/2", decoded.Flags, decoded.Action)
	}
	if decoded.Syscalls[0] != 0xffffffff {
		t.Errorf("Syscalls[0] = %#x, want all bits set", decoded.Syscalls[0])
	}
	if len(decoded.Terms) != 2 {
		t.Fatalf("got %d terms, want 2", len(decoded.Terms))
	}
	if !bytes.Equal(decoded.Buf, []byte("my-key")) {
		t.Errorf("Buf = %q, want my-key", decoded.Buf)
	}
	if s := decoded.StringValue(1); s != "my-key" {
		t.Errorf("StringValue(1) = %q, want my-key", s)
	}
}
