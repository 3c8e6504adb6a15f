// Package pool provides the bounded worker pool that performs DNS
// resolution, connects, handshakes and transfers for every sandbox.
package pool
