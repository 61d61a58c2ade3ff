package sockdiag

import (
	"encoding/binary"

	"github.com/m-lab/uuid"
)

// UUID returns a string that globally identifies this socket for the
// lifetime of the current boot (assuming unique hostnames): the same
// cookie value paired with a different hostname or a reboot never
// collides with this one. Sockets the kernel doesn't track a cookie
// for report an all-zero Cookie, which still yields a stable (if
// non-unique) string.
//
// Delegates to github.com/m-lab/uuid.FromCookie, which owns the
// hostname+boottime prefix scheme the teacher's local uuid/uuid.go
// duplicated; that package is already a go.mod dependency here and
// this is its one call site, replacing the local reimplementation.
func (s SocketID) UUID() (string, error) {
	cookie := binary.LittleEndian.Uint64(s.Cookie[:])
	return uuid.FromCookie(cookie)
}
