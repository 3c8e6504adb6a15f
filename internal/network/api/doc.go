// Package api exposes the network operations available to one computer.
//
// Every call validates its arguments and claims a resource slot
// synchronously, returning an error when either fails. All network work then
// runs on the worker pool and its outcome is delivered as events on the
// computer's bridge.
package api
