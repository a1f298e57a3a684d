// Package transport owns the property-service socket exchange.
//
// Ownership boundary:
// - one unix-socket connection per operation, no state across calls
// - the send/receive loop, including legacy servers that close
//   without echoing a reply
// - framing enforcement: every reply is exactly one envelope
package transport
