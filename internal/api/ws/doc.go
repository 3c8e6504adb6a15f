// Package ws streams the events queued for a computer to websocket clients.
//
// Each connection reads the computer's event bridge through its own cursor,
// so several clients observe the same events independently. Events are
// encoded as JSON frames: response handles become status, headers and body,
// websocket handles become their handle string and binary payloads are
// base64 encoded.
//
// Clients may send {"type":"ping"} and receive {"type":"pong"}.
package ws
