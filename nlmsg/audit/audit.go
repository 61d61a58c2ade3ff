// Package audit implements the audit family (§3's "audit status" row):
// status get/set and syscall rule add/delete/list. Grounded on
// original_source/netlink-packet-audit/src/{status,rules/*}.rs and
// original_source/netlink-packet/src/audit/{message,status}.rs, kept
// in the same fixed-field-then-bitmask shape but rewritten onto this
// module's nlbuf cursor helpers instead of that crate's Field-range
// buffer accessors.
package audit

// Audit message types (linux/audit.h), the subset this package
// implements. AUDIT_SET is scenario S1's payload tag.
const (
	AUDIT_GET        uint16 = 1000
	AUDIT_SET        uint16 = 1001
	AUDIT_ADD_RULE   uint16 = 1011
	AUDIT_DEL_RULE   uint16 = 1012
	AUDIT_LIST_RULES uint16 = 1013
)

// Rule list sizing constants (linux/audit.h).
const (
	MaxFields    = 64
	MaxKeyLen    = 256
	BitmaskWords = 64 // AUDIT_BITMASK_SIZE: 64 x u32 = 2048 syscall bits
)
