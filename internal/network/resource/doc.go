/*
Package resource provides the lifecycle primitives shared by HTTP requests
and websockets.

A Group caps how many resources of one kind are live. TryAcquire never
queues: it returns the group's capacity error as soon as the cap is reached.

A Resource closes exactly once no matter how many goroutines race to close
it. The winner cancels the resource context, runs the registered disposers
newest first and frees the group slot. Panics raised by disposers are logged
and swallowed.

An Arena owns long-lived values such as open websockets and hands scripts a
generational Handle, so a handle to a closed value resolves to nothing
instead of to whatever reused its slot.
*/
package resource
