package audit

import (
	"github.com/m-lab/tcp-info/nla"
	"github.com/m-lab/tcp-info/nlbuf"
)

// Field numbers (linux/audit.h AUDIT_*) whose value is a string rather
// than a plain u32 comparator operand. Decided per SPEC_FULL.md's
// Open Question on the audit string-valued-field allowlist: the field
// table itself isn't in original_source's filtered subset, so this
// sticks to the small set of well-known string fields (watch path,
// working directory, filter key, executable path) rather than
// guessing at the full enumeration.
const (
	FieldWatch     uint32 = 105
	FieldDir       uint32 = 107
	FieldExe       uint32 = 112
	FieldFilterKey uint32 = 210
)

func isStringField(field uint32) bool {
	switch field {
	case FieldWatch, FieldDir, FieldExe, FieldFilterKey:
		return true
	}
	return false
}

// ruleFixedLen is the fixed portion of audit_rule_data: flags, action,
// field_count, the syscalls bitmask, then three AUDIT_MAX_FIELDS-long
// u32 arrays (fields, values, field_flags), and a trailing buflen.
// Layout and field order per
// original_source/netlink-packet-audit/src/rules/buffer.rs.
const ruleFixedLen = 12 + BitmaskWords*4 + 3*MaxFields*4 + 4

// FieldTerm is one (field, op, value) triple in a rule's filter list.
// Value holds either a numeric comparator operand or, for fields in
// the string-valued allowlist, the byte length of that term's text in
// the rule's trailing string buffer (Buf, read back with
// StringValue) - mirroring how the kernel overloads
// the Values array for AUDIT_WATCH/AUDIT_DIR/AUDIT_FILTERKEY/AUDIT_EXE.
type FieldTerm struct {
	Field uint32
	Op    uint32
	Value uint32
}

// RuleMessage is audit_rule_data: a syscall bitmask plus up to
// MaxFields comparator terms, with any string-valued term's actual
// text appended to the trailing Buf and referenced by term index.
type RuleMessage struct {
	msgType uint16

	Flags    uint32
	Action   uint32
	Syscalls [BitmaskWords]uint32
	Terms    []FieldTerm

	// Buf holds the concatenated bytes of every string-valued term's
	// value, in Terms order; each such term's Value is that string's
	// byte length, per audit_rule_data's "buflen then that many bytes
	// following the fixed arrays" convention.
	Buf []byte
}

func (m *RuleMessage) Type() uint16 { return m.msgType }

func (m *RuleMessage) BufferLen() int { return ruleFixedLen + len(m.Buf) }

func (m *RuleMessage) Emit(buf []byte) {
	nlbuf.PutNativeUint32(buf[0:4], m.Flags)
	nlbuf.PutNativeUint32(buf[4:8], m.Action)
	nlbuf.PutNativeUint32(buf[8:12], uint32(len(m.Terms)))

	off := 12
	for i := 0; i < BitmaskWords; i++ {
		nlbuf.PutNativeUint32(buf[off+i*4:off+i*4+4], m.Syscalls[i])
	}
	off += BitmaskWords * 4

	fieldsOff, valuesOff, flagsOff := off, off+MaxFields*4, off+2*MaxFields*4
	for i, t := range m.Terms {
		nlbuf.PutNativeUint32(buf[fieldsOff+i*4:fieldsOff+i*4+4], t.Field)
		nlbuf.PutNativeUint32(buf[valuesOff+i*4:valuesOff+i*4+4], t.Value)
		nlbuf.PutNativeUint32(buf[flagsOff+i*4:flagsOff+i*4+4], t.Op)
	}
	off = flagsOff + MaxFields*4

	nlbuf.PutNativeUint32(buf[off:off+4], uint32(len(m.Buf)))
	off += 4
	copy(buf[off:], m.Buf)
}

// ParseRule decodes an audit_rule_data buffer.
func ParseRule(msgType uint16, buf []byte) (*RuleMessage, error) {
	if len(buf) < ruleFixedLen {
		return nil, nlbuf.ErrTruncated
	}
	m := &RuleMessage{
		msgType: msgType,
		Flags:   nlbuf.NativeUint32(buf[0:4]),
		Action:  nlbuf.NativeUint32(buf[4:8]),
	}
	fieldCount := int(nlbuf.NativeUint32(buf[8:12]))
	if fieldCount > MaxFields {
		return nil, nlbuf.ErrMalformed
	}

	off := 12
	for i := 0; i < BitmaskWords; i++ {
		m.Syscalls[i] = nlbuf.NativeUint32(buf[off+i*4 : off+i*4+4])
	}
	off += BitmaskWords * 4

	fieldsOff, valuesOff, flagsOff := off, off+MaxFields*4, off+2*MaxFields*4
	for i := 0; i < fieldCount; i++ {
		m.Terms = append(m.Terms, FieldTerm{
			Field: nlbuf.NativeUint32(buf[fieldsOff+i*4 : fieldsOff+i*4+4]),
			Value: nlbuf.NativeUint32(buf[valuesOff+i*4 : valuesOff+i*4+4]),
			Op:    nlbuf.NativeUint32(buf[flagsOff+i*4 : flagsOff+i*4+4]),
		})
	}
	off = flagsOff + MaxFields*4

	buflen := int(nlbuf.NativeUint32(buf[off : off+4]))
	off += 4
	if len(buf) < off+buflen {
		return nil, nlbuf.ErrTruncated
	}
	m.Buf = nla.Bytes(buf[off : off+buflen])
	return m, nil
}

// StringValue looks up the text a string-valued FieldTerm (identified
// by its index into Terms) refers to within Buf, per the
// concatenated-string-buffer convention described on RuleMessage.
func (m *RuleMessage) StringValue(termIndex int) string {
	offset := 0
	for i := 0; i < termIndex; i++ {
		if isStringField(m.Terms[i].Field) {
			offset += int(m.Terms[i].Value)
		}
	}
	t := m.Terms[termIndex]
	return string(m.Buf[offset : offset+int(t.Value)])
}
