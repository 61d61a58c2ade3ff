package audit

import "github.com/m-lab/tcp-info/nlbuf"

const statusMessageLen = 40

// StatusMessage is audit_status: 10 native-endian u32 fields reporting
// or requesting the kernel audit subsystem's configuration. It carries
// no NLAs; the fixed body is the entire payload, per
// original_source/netlink-packet-audit/src/status.rs.
type StatusMessage struct {
	Mask            uint32
	Enabled         uint32
	Failure         uint32
	Pid             uint32
	RateLimiting    uint32
	BacklogLimit    uint32
	Lost            uint32
	Backlog         uint32
	FeatureBitmap   uint32
	BacklogWaitTime uint32

	// msgType distinguishes AUDIT_GET from AUDIT_SET replies built
	// from the same field set; set by NewGetStatus/NewSetStatus.
	msgType uint16
}

// NewGetStatus builds an empty AUDIT_GET query.
func NewGetStatus() *StatusMessage { return &StatusMessage{msgType: AUDIT_GET} }

// NewSetStatus wraps msg as an AUDIT_SET request, per scenario S1.
func NewSetStatus(msg StatusMessage) *StatusMessage {
	msg.msgType = AUDIT_SET
	return &msg
}

// Status-field bits composing Mask: which of the other fields this
// message actually sets (AUDIT_STATUS_*, linux/audit.h).
const (
	StatusEnabled uint32 = 1 << iota
	StatusFailure
	StatusPid
	StatusRateLimit
	StatusBacklogLimit
	StatusBacklogWaitTime
	StatusLost
)

func (m *StatusMessage) Type() uint16   { return m.msgType }
func (m *StatusMessage) BufferLen() int { return statusMessageLen }

func (m *StatusMessage) Emit(buf []byte) {
	nlbuf.PutNativeUint32(buf[0:4], m.Mask)
	nlbuf.PutNativeUint32(buf[4:8], m.Enabled)
	nlbuf.PutNativeUint32(buf[8:12], m.Failure)
	nlbuf.PutNativeUint32(buf[12:16], m.Pid)
	nlbuf.PutNativeUint32(buf[16:20], m.RateLimiting)
	nlbuf.PutNativeUint32(buf[20:24], m.BacklogLimit)
	nlbuf.PutNativeUint32(buf[24:28], m.Lost)
	nlbuf.PutNativeUint32(buf[28:32], m.Backlog)
	nlbuf.PutNativeUint32(buf[32:36], m.FeatureBitmap)
	nlbuf.PutNativeUint32(buf[36:40], m.BacklogWaitTime)
}

// ParseStatus decodes an audit_status buffer. msgType is the netlink
// message type the payload arrived under (AUDIT_GET's reply or an
// echoed AUDIT_SET), carried through so callers can tell which
// request produced it.
func ParseStatus(msgType uint16, buf []byte) (*StatusMessage, error) {
	if len(buf) < statusMessageLen {
		return nil, nlbuf.ErrTruncated
	}
	return &StatusMessage{
		msgType:         msgType,
		Mask:            nlbuf.NativeUint32(buf[0:4]),
		Enabled:         nlbuf.NativeUint32(buf[4:8]),
		Failure:         nlbuf.NativeUint32(buf[8:12]),
		Pid:             nlbuf.NativeUint32(buf[12:16]),
		RateLimiting:    nlbuf.NativeUint32(buf[16:20]),
		BacklogLimit:    nlbuf.NativeUint32(buf[20:24]),
		Lost:            nlbuf.NativeUint32(buf[24:28]),
		Backlog:         nlbuf.NativeUint32(buf[28:32]),
		FeatureBitmap:   nlbuf.NativeUint32(buf[32:36]),
		BacklogWaitTime: nlbuf.NativeUint32(buf[36:40]),
	}, nil
}
