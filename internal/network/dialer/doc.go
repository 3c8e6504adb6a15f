// Package dialer resolves and classifies outbound hosts and opens the
// connections for them.
//
// Classification runs against the resolved address and every connection for
// that target is pinned to the same address, so a name that re-resolves to a
// private address between the check and the connect cannot slip past the
// "$private" rule. Connections are charged to the shared bandwidth throttle
// and, for rules with use_proxy set, routed through a SOCKS5 proxy.
package dialer
