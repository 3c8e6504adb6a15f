// Package websocket implements sandboxed outbound websockets.
//
// A Client opens connections through the shared dialer, so every socket is
// subject to the address rules and the bandwidth throttle. Connection
// outcomes, inbound messages and closes are queued on the computer's event
// bridge; scripts interact with a socket only through its Handle.
package websocket
