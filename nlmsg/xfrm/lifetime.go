package xfrm

import "github.com/m-lab/tcp-info/nlbuf"

const lifetimeConfigLen = 64

// LifetimeConfig is xfrm_lifetime_cfg: the soft/hard byte, packet, and
// time limits configured on a security association. All fields are
// native-endian u64s; XFRM_INF marks "no limit".
type LifetimeConfig struct {
	SoftByteLimit          uint64
	HardByteLimit          uint64
	SoftPacketLimit        uint64
	HardPacketLimit        uint64
	SoftAddExpiresSeconds  uint64
	HardAddExpiresSeconds  uint64
	SoftUseExpiresSeconds  uint64
	HardUseExpiresSeconds  uint64
}

// DefaultLifetimeConfig matches the original source's Default impl:
// unlimited byte/packet budgets, no add/use expiry.
func DefaultLifetimeConfig() LifetimeConfig {
	return LifetimeConfig{
		SoftByteLimit:   XFRM_INF,
		HardByteLimit:   XFRM_INF,
		SoftPacketLimit: XFRM_INF,
		HardPacketLimit: XFRM_INF,
	}
}

func decodeLifetimeConfig(b []byte) LifetimeConfig {
	return LifetimeConfig{
		SoftByteLimit:         nlbuf.NativeUint64(b[0:8]),
		HardByteLimit:         nlbuf.NativeUint64(b[8:16]),
		SoftPacketLimit:       nlbuf.NativeUint64(b[16:24]),
		HardPacketLimit:       nlbuf.NativeUint64(b[24:32]),
		SoftAddExpiresSeconds: nlbuf.NativeUint64(b[32:40]),
		HardAddExpiresSeconds: nlbuf.NativeUint64(b[40:48]),
		SoftUseExpiresSeconds: nlbuf.NativeUint64(b[48:56]),
		HardUseExpiresSeconds: nlbuf.NativeUint64(b[56:64]),
	}
}

func (l LifetimeConfig) encode(b []byte) {
	nlbuf.PutNativeUint64(b[0:8], l.SoftByteLimit)
	nlbuf.PutNativeUint64(b[8:16], l.HardByteLimit)
	nlbuf.PutNativeUint64(b[16:24], l.SoftPacketLimit)
	nlbuf.PutNativeUint64(b[24:32], l.HardPacketLimit)
	nlbuf.PutNativeUint64(b[32:40], l.SoftAddExpiresSeconds)
	nlbuf.PutNativeUint64(b[40:48], l.HardAddExpiresSeconds)
	nlbuf.PutNativeUint64(b[48:56], l.SoftUseExpiresSeconds)
	nlbuf.PutNativeUint64(b[56:64], l.HardUseExpiresSeconds)
}

const lifetimeLen = 32

// Lifetime is xfrm_lifetime_cur: the running byte/packet counters and
// add/use timestamps for a security association.
type Lifetime struct {
	Bytes   uint64
	Packets uint64
	AddTime uint64
	UseTime uint64
}

func decodeLifetime(b []byte) Lifetime {
	return Lifetime{
		Bytes:   nlbuf.NativeUint64(b[0:8]),
		Packets: nlbuf.NativeUint64(b[8:16]),
		AddTime: nlbuf.NativeUint64(b[16:24]),
		UseTime: nlbuf.NativeUint64(b[24:32]),
	}
}

func (l Lifetime) encode(b []byte) {
	nlbuf.PutNativeUint64(b[0:8], l.Bytes)
	nlbuf.PutNativeUint64(b[8:16], l.Packets)
	nlbuf.PutNativeUint64(b[16:24], l.AddTime)
	nlbuf.PutNativeUint64(b[24:32], l.UseTime)
}
