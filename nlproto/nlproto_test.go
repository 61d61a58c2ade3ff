package nlproto

import (
	"errors"
	"testing"
	"time"

	"github.com/m-lab/tcp-info/nlbuf"
	"github.com/m-lab/tcp-info/nlmsg"
	"github.com/m-lab/tcp-info/nlmsg/rtnl"
	"github.com/m-lab/tcp-info/nlsock"
)

// fakeSocket is an in-memory nlsock.Socket: SendTo publishes onto
// sentCh for the test to inspect, RecvFrom blocks on recvQueue until
// the test pushes a datagram.
type fakeSocket struct {
	recvQueue chan queuedDatagram
	sentCh    chan []byte
	closed    chan struct{}
}

type queuedDatagram struct {
	data []byte
	peer nlsock.PeerAddr
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		recvQueue: make(chan queuedDatagram, 8),
		sentCh:    make(chan []byte, 8),
		closed:    make(chan struct{}),
	}
}

func (f *fakeSocket) Bind(nlsock.PeerAddr) error           { return nil }
func (f *fakeSocket) Connect(nlsock.PeerAddr) error        { return nil }
func (f *fakeSocket) JoinGroup(uint32) error               { return nil }
func (f *fakeSocket) LeaveGroup(uint32) error              { return nil }
func (f *fakeSocket) SetOption(nlsock.SockOpt, bool) error { return nil }
func (f *fakeSocket) Close() error                         { close(f.closed); return nil }

func (f *fakeSocket) SendTo(b []byte, _ nlsock.PeerAddr) (int, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sentCh <- cp
	return len(b), nil
}

var errSocketClosed = errors.New("fakeSocket: closed")

func (f *fakeSocket) RecvFrom(buf []byte) (int, nlsock.PeerAddr, error) {
	select {
	case d := <-f.recvQueue:
		n := copy(buf, d.data)
		return n, d.peer, nil
	case <-f.closed:
		return 0, nlsock.PeerAddr{}, errSocketClosed
	}
}

func (f *fakeSocket) push(buf []byte, peer nlsock.PeerAddr) {
	f.recvQueue <- queuedDatagram{data: buf, peer: peer}
}

// buildLinkFrame finalizes a RTM_NEWLINK reply datagram for seq from
// the kernel (port 0), with the given flags.
func buildLinkFrame(seq uint32, flags nlmsg.Flags, ifname string) []byte {
	link := rtnl.NewLinkMessage(rtnl.RTM_NEWLINK, rtnl.LinkHeader{Family: 0, Index: 1}, rtnl.IfName(ifname))
	buf := make([]byte, nlmsg.BufferLen(link))
	nlmsg.Finalize(seq, 0, flags, link, buf)
	return buf
}

// buildDoneFrame builds a bare NLMSG_DONE control datagram for seq.
func buildDoneFrame(seq uint32) []byte {
	buf := make([]byte, nlbuf.HeaderLen)
	mh := nlbuf.NewMutableHeader(buf)
	mh.SetLength(uint32(nlbuf.HeaderLen))
	mh.SetType(nlmsg.NLMSG_DONE)
	mh.SetFlags(uint16(nlmsg.Multipart))
	mh.SetSequence(seq)
	mh.SetPort(0)
	return buf
}

// TestMultipartDumpTermination is scenario S5: two NewLink replies
// followed by NLMSG_DONE must surface as exactly two KindInner
// messages on the reply stream, then the stream closes; DONE itself is
// consumed, never forwarded.
func TestMultipartDumpTermination(t *testing.T) {
	sock := newFakeSocket()
	h := Start(sock, nlsock.ProtoRoute, 1234, rtnl.Parse)

	stream, err := h.Request(rtnl.NewLinkMessage(rtnl.RTM_GETLINK, rtnl.LinkHeader{}), nlmsg.Dump, nlsock.Kernel)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	var sent []byte
	select {
	case sent = <-sock.sentCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for request to be sent")
	}
	seq := nlbuf.NewHeader(sent).Sequence()

	sock.push(buildLinkFrame(seq, nlmsg.Multipart, "eth0"), nlsock.PeerAddr{Port: 0})
	sock.push(buildLinkFrame(seq, nlmsg.Multipart, "eth1"), nlsock.PeerAddr{Port: 0})
	sock.push(buildDoneFrame(seq), nlsock.PeerAddr{Port: 0})

	var names []string
	for {
		select {
		case msg, ok := <-stream.C():
			if !ok {
				goto done
			}
			if msg.Kind != nlmsg.KindInner {
				t.Fatalf("got Kind %v, want KindInner", msg.Kind)
			}
			link, ok := msg.Inner.(*rtnl.LinkMessage)
			if !ok {
				t.Fatalf("Inner is %T, want *rtnl.LinkMessage", msg.Inner)
			}
			for _, a := range link.Attrs {
				if name, ok := a.(rtnl.IfName); ok {
					names = append(names, string(name))
				}
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for reply stream")
		}
	}
done:
	if len(names) != 2 || names[0] != "eth0" || names[1] != "eth1" {
		t.Fatalf("got names %v, want [eth0 eth1]", names)
	}
}

// TestCancelledStreamAbsorbsLateReplies covers §4.5's cancellation
// rule: closing a stream mid-dump must not reclassify its remaining
// replies as unsolicited.
func TestCancelledStreamAbsorbsLateReplies(t *testing.T) {
	sock := newFakeSocket()
	h := Start(sock, nlsock.ProtoRoute, 1234, rtnl.Parse)

	stream, err := h.Request(rtnl.NewLinkMessage(rtnl.RTM_GETLINK, rtnl.LinkHeader{}), nlmsg.Dump, nlsock.Kernel)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	var sent []byte
	select {
	case sent = <-sock.sentCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for request to be sent")
	}
	seq := nlbuf.NewHeader(sent).Sequence()

	stream.Close()

	sock.push(buildLinkFrame(seq, nlmsg.Multipart, "eth0"), nlsock.PeerAddr{Port: 0})
	sock.push(buildDoneFrame(seq), nlsock.PeerAddr{Port: 0})

	select {
	case msg := <-h.Unsolicited():
		t.Fatalf("cancelled reply leaked to unsolicited channel: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
