// Package computer manages the sandboxed computers of a host.
//
// Each computer owns an event bridge and a network API. All computers share
// one dialer, so the address rules and the bandwidth throttle apply across
// the whole host, while request and websocket limits are per computer.
package computer
