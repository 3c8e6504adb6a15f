/*
Package event delivers network completions to a single-threaded,
cooperative scheduler.

Worker goroutines call Bridge.Queue. Script coroutines wait through a Cursor
with Await and a Predicate: the first event after the cursor that satisfies
the predicate resumes the waiter, and the events it skipped remain visible to
every other cursor. Two receive calls on different websockets therefore never
steal each other's messages even though they share one queue.

Timers started with StartTimer queue a "timer" event carrying their id,
which receive timeouts match on.
*/
package event
