package genl

import (
	"fmt"
	"sync"

	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// NewGetFamilyRequest builds a CTRL_CMD_GETFAMILY request for name,
// addressed to the well-known ctrl family. The engine sends this under
// GENL_ID_CTRL and correlates the CTRL_CMD_NEWFAMILY reply like any
// other request (§4.4).
func NewGetFamilyRequest(name string) *Message {
	return NewMessage(GENL_ID_CTRL, CTRL_CMD_GETFAMILY, 1, []nla.Attr{
		nla.StringAttr{K: CTRL_ATTR_FAMILY_NAME, V: name},
	})
}

// FamilyInfo is the decoded subset of a CTRL_CMD_NEWFAMILY reply this
// package needs: the resolved numeric message type and the echoed
// family name.
type FamilyInfo struct {
	ID   uint16
	Name string
}

// ParseFamilyReply extracts FamilyInfo from a ctrl reply payload
// (after the genl header). Returns an error if the reply carries no
// 2 byte CTRL_ATTR_FAMILY_ID, which the kernel always sets on a
// successful CTRL_CMD_NEWFAMILY; a missing name leaves Name empty.
func ParseFamilyReply(buf []byte) (FamilyInfo, error) {
	msg, err := ParseMessage(GENL_ID_CTRL, buf)
	if err != nil {
		return FamilyInfo{}, err
	}
	var info FamilyInfo
	haveID := false
	for _, a := range msg.Attrs {
		raw, ok := a.(nla.RawAttr)
		if !ok {
			continue
		}
		switch raw.Kind() {
		case CTRL_ATTR_FAMILY_ID:
			v := make([]byte, raw.ValueLen())
			raw.PutValue(v)
			if len(v) == 2 {
				info.ID = nlbuf.NativeUint16(v)
				haveID = true
			}
		case CTRL_ATTR_FAMILY_NAME:
			v := make([]byte, raw.ValueLen())
			raw.PutValue(v)
			if s, err := nla.String("CTRL_ATTR_FAMILY_NAME", v); err == nil {
				info.Name = s
			}
		}
	}
	if !haveID {
		return FamilyInfo{}, fmt.Errorf("genl: reply carried no CTRL_ATTR_FAMILY_ID")
	}
	return info, nil
}

// FamilyCache holds resolved family-name-to-id mappings: once a family
// name resolves, the mapping is stable for the kernel module's
// lifetime, so one instance can serve every handle it is passed to.
// The package keeps no process-wide instance of its own; a mapping is
// shared only among the holders of the same *FamilyCache.
type FamilyCache struct {
	mu   sync.Mutex
	byID map[string]uint16
}

// NewFamilyCache returns an empty cache. Callers typically keep one
// instance per engine and share it across request handles built on
// that engine.
func NewFamilyCache() *FamilyCache {
	return &FamilyCache{byID: make(map[string]uint16)}
}

// Lookup returns the cached message type for name, if any.
func (c *FamilyCache) Lookup(name string) (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byID[name]
	return id, ok
}

// Store records a resolved family id, overwriting any previous value
// (the kernel never reassigns a family's id within one module's
// lifetime, so this only happens once per name in practice).
func (c *FamilyCache) Store(name string, id uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[name] = id
}
