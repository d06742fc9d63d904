/*
Package eventbus provides an in-process event bus with listener suspension.

# Design Priorities

  - It should be predictable: listeners run in registration order, in the goroutine that emits the event.
  - It should never lose a listener: anything suspended is restored, however the suspending code exits.
  - It should not crash the process for an error nobody is listening for. Unhandled errors are logged.

# EventBus Primitives

Every event is identified by a [Name].
An event may be accompanied by one or more [Param] that provide additional details for understanding the event.
A [Param] may be any type, so [ParamAssertion] and [ParamSpec] are provided to destructure a parameter list in a [Listener].

A [Bus] is created with [NewBus], and is never a global singleton.
Use [Bus.On] or [Bus.Once] to register a [Listener], and [Bus.Emit] to call all listeners for an event.
[Bus.ListenersFor] and [Bus.EventNames] allow introspection, and [Bus.RemoveAll] and [Bus.RemoveAllEvents] clear listeners.

# Errors

A [Listener] returning an error doesn't stop other listeners.
The error is reported with [Bus.EmitError] to every [ErrorHandler] registered with [Bus.OnError].
When there are no error handlers, the error is logged with the [slog.Logger] given to [WithLogger], or [slog.Default].

A panicking [Listener] is not recovered by [Bus.Emit].

# Suspending Listeners

[WithoutEvent] and [WithoutEvents] take listeners off the [Bus] while a block of code runs, and put them back afterward.
This is useful to perform an operation without triggering its usual side effects, like saving a record without notifying subscribers.

	_, err := eventbus.WithoutEvent(bus, "saved", func() (struct{}, error) {
		return struct{}{}, store.Save(record)
	})

Restoration happens whether the block returns normally, returns an error, or panics.
If the block returns a future from the syncx package, restoration is deferred until that future settles.
*/
package eventbus
