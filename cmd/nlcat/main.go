// Command nlcat is a thin example CLI exercising the nlsock/nlproto/nlmsg
// stack end to end, the way the teacher's cmd/csvtool is a thin consumer of
// its own archival pipeline: it opens a real netlink socket, issues one
// request, and prints (or CSV-dumps, via gocarina/gocsv) whatever comes
// back. It is a demonstration driver, not a production daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/tcp-info/nlmsg"
	"github.com/m-lab/tcp-info/nlmsg/rtnl"
	"github.com/m-lab/tcp-info/nlmsg/sockdiag"
	"github.com/m-lab/tcp-info/nlsock"
	"github.com/m-lab/tcp-info/nlproto"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	family  = flag.String("family", "sockdiag", "Netlink family to query: sockdiag or route")
	proto   = flag.String("protocol", "tcp", "sockdiag protocol filter: tcp or udp (ignored for -family=route)")
	csvOut  = flag.Bool("csv", false, "Emit CSV (sockdiag only) instead of a one-line-per-record summary")
	timeout = flag.Duration("timeout", 5*time.Second, "How long to wait for the dump to finish")
	netns   = flag.Bool("netns", false, "Log discovered network namespace inodes to stderr before querying")
)

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	if *netns {
		logNamespaces()
	}

	switch *family {
	case "sockdiag":
		rtx.Must(runSockDiag(), "sockdiag dump failed")
	case "route":
		rtx.Must(runRouteDump(), "route dump failed")
	default:
		log.Fatalf("unknown -family %q: want sockdiag or route", *family)
	}
}

// logNamespaces runs a short-lived namespace watch and logs every
// distinct namespace inode it discovers; a demonstration of the
// RTM_GETNSID family's input (see nlmsg/rtnl), not a lookup of it.
func logNamespaces() {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	nsChan := make(chan uint64, 16)
	seen := map[uint64]bool{}
	go func() {
		if err := watchNetworkNamespaces(ctx, "/proc", nsChan); err != nil {
			log.Printf("nlcat: namespace watch stopped: %v", err)
		}
	}()
	for ns := range nsChan {
		if !seen[ns] {
			seen[ns] = true
			log.Printf("nlcat: observed network namespace inode %d", ns)
		}
	}
}

func openEngine(protocol nlsock.Protocol, parse nlproto.ParseInner) (*nlproto.Handle, func(), error) {
	sock, err := nlsock.NewUnixSocket(protocol)
	if err != nil {
		return nil, nil, err
	}
	localPort := uint32(os.Getpid())
	if err := sock.Bind(nlsock.PeerAddr{Port: localPort}); err != nil {
		sock.Close()
		return nil, nil, err
	}
	h := nlproto.Start(sock, protocol, localPort, parse)
	return h, h.Shutdown, nil
}

// sockDiagRecord flattens one decoded InetResponse into a CSV-friendly
// row, reusing TCPInfo's own csv tags by embedding it anonymously
// (gocsv flattens embedded structs), the same nesting shape the
// teacher's snapshot.Snapshot gave gocsv in cmd/csvtool.
type sockDiagRecord struct {
	UUID   string `csv:"UUID"`
	Local  string `csv:"Local"`
	Remote string `csv:"Remote"`
	State  string `csv:"State"`
	sockdiag.TCPInfo
}

func runSockDiag() error {
	h, shutdown, err := openEngine(nlsock.ProtoSockDiag, sockdiag.Parse)
	if err != nil {
		return err
	}
	defer shutdown()

	protocol := sockdiag.IPPROTO_TCP
	if *proto == "udp" {
		protocol = sockdiag.IPPROTO_UDP
	}
	req := sockdiag.InetRequest{
		Family:     sockdiag.AF_INET,
		Protocol:   protocol,
		Extensions: sockdiag.ExtInfo,
		States:     ^uint32(0), // every state
	}
	stream, err := h.Request(req, nlmsg.Dump, nlsock.Kernel)
	if err != nil {
		return err
	}
	defer stream.Close()

	var records []*sockDiagRecord
	deadline := time.After(*timeout)
loop:
	for {
		select {
		case msg, ok := <-stream.C():
			if !ok {
				break loop
			}
			if msg.Kind != nlmsg.KindInner {
				continue
			}
			resp, ok := msg.Inner.(*sockdiag.InetResponse)
			if !ok {
				continue
			}
			records = append(records, toRecord(resp))
		case <-deadline:
			log.Printf("nlcat: timed out waiting for dump to finish")
			break loop
		}
	}

	if *csvOut {
		out, err := gocsv.MarshalString(records)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s -> %s\tstate=%s\tuuid=%s\tcwnd=%d\n", r.Local, r.Remote, r.State, r.UUID, r.SndCwnd)
	}
	return nil
}

func toRecord(resp *sockdiag.InetResponse) *sockDiagRecord {
	r := &sockDiagRecord{
		Local:  fmt.Sprintf("%s:%d", resp.Header.SocketID.SourceAddress, resp.Header.SocketID.SourcePort),
		Remote: fmt.Sprintf("%s:%d", resp.Header.SocketID.DestAddress, resp.Header.SocketID.DestinationPort),
		State:  sockdiag.TCPState(resp.Header.State).String(),
	}
	if id, err := resp.Header.SocketID.UUID(); err == nil {
		r.UUID = id
	}
	for _, a := range resp.Attrs {
		if info, ok := a.(sockdiag.Info); ok {
			r.TCPInfo = info.Decode()
		}
	}
	return r
}

func runRouteDump() error {
	h, shutdown, err := openEngine(nlsock.ProtoRoute, rtnl.Parse)
	if err != nil {
		return err
	}
	defer shutdown()

	stream, err := h.Request(rtnl.NewLinkMessage(rtnl.RTM_GETLINK, rtnl.LinkHeader{}), nlmsg.Dump, nlsock.Kernel)
	if err != nil {
		return err
	}
	defer stream.Close()

	deadline := time.After(*timeout)
loop:
	for {
		select {
		case msg, ok := <-stream.C():
			if !ok {
				break loop
			}
			if link, ok := msg.Inner.(*rtnl.LinkMessage); ok {
				fmt.Printf("ifindex=%d", link.Header.Index)
				for _, a := range link.Attrs {
					if name, ok := a.(rtnl.IfName); ok {
						fmt.Printf(" name=%s", name)
					}
				}
				fmt.Println()
			}
		case <-deadline:
			log.Printf("nlcat: timed out waiting for dump to finish")
			break loop
		}
	}
	return nil
}
