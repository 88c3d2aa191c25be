// Package record provides the foundational types of the eventbook control
// plane: the EventRecord held in the shared index, the declarative
// StoreSpec the control store is validated against, and the pure functions
// derived from them (slug normalization, the canonical index projection,
// and the ETag content hash).
//
// This package contains types and pure functions only. All other internal
// packages import record; record imports nothing internal. This keeps it
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - The ETag is a pure function of the ordered projection (no wall-clock
//     or volatile display fields ever enter it)
//   - Canonical JSON follows RFC 8785: UTF-16-sorted keys, NFC strings,
//     no HTML escaping, no floats, no null
//   - All JSON tags use snake_case
package record
