// Package protocol owns the property-service wire contract.
//
// Ownership boundary:
// - the fixed 128-byte envelope layout
// - name/value length limits shared by transport and client
// - encode/decode primitives with their sentinel errors
package protocol
