// Package rules classifies outbound addresses against an ordered rule list.
//
// A rule's host is one of:
//   - "$private", matching loopback, link-local, RFC1918, unique-local,
//     multicast and carrier-grade NAT addresses
//   - a CIDR block such as "10.0.0.0/8" or a literal address
//   - a hostname glob such as "*.example.com"
//
// Rules are evaluated against the resolved address, so a hostname that
// resolves into private space is caught by "$private" no matter what name
// was requested. The first matching rule decides the action and every limit
// it sets; unset limits fall back to the list defaults. When nothing matches
// the address is denied.
package rules
