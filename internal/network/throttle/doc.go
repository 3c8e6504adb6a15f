// Package throttle shapes aggregate traffic with token buckets from
// golang.org/x/time/rate. One Throttle is shared by every connection a
// sandbox opens, so the configured rates bound the sum of all transfers.
package throttle
