/*
Package scheduler models the host event loop as scheduled tasks with cancel
handles.

Every guard component that needs a timer, an interval or a "next tick"
continuation asks a Scheduler for it and keeps the returned Task so that
teardown can cancel it explicitly. Nothing relies on garbage collection to
stop a timer.

Two implementations are provided:

  - Loop: one goroutine runs every callback in due order, like a browser
    main thread. Host code on other goroutines enters it with Submit.
  - Manual: a virtual clock advanced by tests; callbacks run synchronously
    on the goroutine calling Advance or Flush.

Idle timers are rescheduled (cancel and recreate) rather than extended.
*/
package scheduler
