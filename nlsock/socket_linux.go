//go:build linux

package nlsock

import (
	"golang.org/x/sys/unix"
)

// unixSocket is the production Socket: an AF_NETLINK/SOCK_RAW file
// descriptor driven directly through golang.org/x/sys/unix, the same
// package the teacher's netlink.go and inetdiag.go used for their
// struct layouts and family constants, but here for the syscalls
// themselves rather than just the constants.
type unixSocket struct {
	fd int
}

// NewUnixSocket opens an AF_NETLINK socket for protocol. Bind must be
// called before the socket will receive kernel notifications or
// replies addressed to a specific port id.
func NewUnixSocket(protocol Protocol) (Socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(protocol))
	if err != nil {
		return nil, err
	}
	return &unixSocket{fd: fd}, nil
}

func toSockaddr(addr PeerAddr) *unix.SockaddrNetlink {
	return &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: addr.Port, Groups: addr.Groups}
}

func fromSockaddr(sa unix.Sockaddr) PeerAddr {
	nl, ok := sa.(*unix.SockaddrNetlink)
	if !ok || nl == nil {
		return PeerAddr{}
	}
	return PeerAddr{Port: nl.Pid, Groups: nl.Groups}
}

func (s *unixSocket) Bind(local PeerAddr) error {
	return unix.Bind(s.fd, toSockaddr(local))
}

func (s *unixSocket) Connect(peer PeerAddr) error {
	return unix.Connect(s.fd, toSockaddr(peer))
}

func (s *unixSocket) SendTo(b []byte, peer PeerAddr) (int, error) {
	if err := unix.Sendto(s.fd, b, 0, toSockaddr(peer)); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (s *unixSocket) RecvFrom(buf []byte) (int, PeerAddr, error) {
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, PeerAddr{}, err
	}
	return n, fromSockaddr(from), nil
}

// JoinGroup subscribes to a multicast group via setsockopt rather than
// the Groups bitmask passed to Bind, so group membership can change
// after the socket is already bound (linux/netlink.7's recommended
// approach for groups above bit 31).
func (s *unixSocket) JoinGroup(group uint32) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_NETLINK, unix.NETLINK_ADD_MEMBERSHIP, int(group))
}

func (s *unixSocket) LeaveGroup(group uint32) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_NETLINK, unix.NETLINK_DROP_MEMBERSHIP, int(group))
}

func (s *unixSocket) SetOption(opt SockOpt, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(s.fd, unix.SOL_NETLINK, int(opt), v)
}

func (s *unixSocket) Close() error {
	return unix.Close(s.fd)
}
