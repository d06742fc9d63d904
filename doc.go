/*
Package fanout is a small toolkit for in-process event fan-out.

  - [github.com/saylorsolutions/fanout/eventbus] is a listener registry with emit, introspection, and listener suspension.
  - [github.com/saylorsolutions/fanout/dispatch] dispatches an event to many listeners and collects their results in one future.
  - [github.com/saylorsolutions/fanout/syncx] provides the futures used for asynchronous results.
  - [github.com/saylorsolutions/fanout/fxdispatch] provides a dispatcher to an fx application.

There's no global state in any of these packages. Every bus and dispatcher is an explicit instance.
*/
package fanout
