package nlmsg

import (
	"errors"
	"fmt"
)

// errUnknownControl is returned by ClassifyControl if called with a
// header whose Type() is not one of the four control message types.
// It is unexported: callers are expected to check IsControlType before
// calling ClassifyControl, so hitting this is a programming error in
// this module, not a malformed-input condition a caller needs to
// distinguish.
var errUnknownControl = errors.New("nlmsg: not a control message type")

// UnknownMessageTypeError is returned by a family's Parse function when
// the netlink message type (or, for generic netlink, the resolved
// family id + command) does not match any known message in that
// family, and the family has no forward-compatible catch-all for
// message types (as opposed to attribute kinds, which always have
// one per §4.2).
type UnknownMessageTypeError struct {
	Type uint16
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("nlmsg: unknown message type %d", e.Type)
}
