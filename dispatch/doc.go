/*
Package dispatch turns "fire an event and wait for all of its listeners" into a single call.

A [Dispatcher] is created from a fixed set of [Events].
For each declared event, one bridging listener is registered on an [eventbus.Bus].
When the event is emitted, the bridging listener calls every declared [Listener] concurrently, waits for all of them or the first failure, and emits a completion signal named by appending [CompleteSuffix] to the event name.
[Dispatcher.Dispatch] arms a waiter for that completion signal, emits the event, and returns a future for the collected results.
Each call is correlated with its completion through a bus tag (see [eventbus.Bus.EmitTagged]), so other listeners on the same bus only see the dispatched params.

	d := dispatch.New(dispatch.Events{
		"save": {
			dispatch.Listen(func(doc Doc) (any, error) { return doc.ID, nil }),
			dispatch.Listen(func(doc Doc) (any, error) { return doc.Size, nil }),
		},
	})
	results, err := d.Dispatch("save", Doc{ID: 1, Size: 10}).AwaitErr()
	// results == []any{1, 10}

Listener failures are all-or-nothing: the first failure rejects the dispatch, and no partial results are returned.

[WithoutEvent] and [WithoutEvents] suspend the bridging listeners while a block runs.
A dispatch for a suspended event settles immediately with no results rather than waiting for a completion that can't happen.
*/
package dispatch
