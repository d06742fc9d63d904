package dispatch

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/fanout/eventbus"
	"github.com/saylorsolutions/fanout/syncx"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"maps"
	"slices"
)

// CompleteSuffix is appended to an event name to get the name of its completion signal.
// Event names ending with this suffix are reserved, and shouldn't be declared in [Events].
const CompleteSuffix = ".complete"

var (
	ErrListenerPanic = errors.New("listener panicked")
)

// Listener handles a dispatched event, and returns a result for it.
// The result may be a future from the syncx package, in which case it's awaited and its value is used instead.
type Listener func(params ...eventbus.Param) (any, error)

// Events declares the listeners for each event.
type Events map[eventbus.Name][]Listener

// Listen adapts a function taking a single typed argument to a [Listener].
func Listen[A any](fn func(arg A) (any, error)) Listener {
	if fn == nil {
		panic("nil listener function")
	}
	return func(params ...eventbus.Param) (any, error) {
		var arg A
		if err := eventbus.MapParam(&arg, params); err != nil {
			return nil, err
		}
		return fn(arg)
	}
}

// Option configures a [Dispatcher] in [New].
type Option func(conf *config)

type config struct {
	bus    *eventbus.Bus
	logger *slog.Logger
}

// WithBus makes the [Dispatcher] use an existing [eventbus.Bus] instead of creating one.
func WithBus(bus *eventbus.Bus) Option {
	return func(conf *config) {
		conf.bus = bus
	}
}

// WithLogger sets the logger for the [eventbus.Bus] created by [New].
// It has no effect when combined with [WithBus].
func WithLogger(logger *slog.Logger) Option {
	return func(conf *config) {
		conf.logger = logger
	}
}

// Dispatcher calls every [Listener] declared for an event, and collects their results.
type Dispatcher struct {
	bus    *eventbus.Bus
	events Events
}

// ticket correlates one call to Dispatch with its completion signal.
// It's passed as a bus tag, so listeners registered with [eventbus.Bus.On] never see it.
// It must not be zero sized, so that every allocation has a distinct address.
type ticket struct {
	_ byte
}

// New creates a [Dispatcher] for the declared events.
// The events map is copied, so changing it later has no effect.
func New(events Events, opts ...Option) *Dispatcher {
	var conf config
	for _, opt := range opts {
		opt(&conf)
	}
	bus := conf.bus
	if bus == nil {
		bus = eventbus.NewBus(eventbus.WithLogger(conf.logger))
	}

	d := &Dispatcher{
		bus:    bus,
		events: make(Events, len(events)),
	}
	for _, event := range slices.Sorted(maps.Keys(events)) {
		listeners := slices.Clone(events[event])
		for i, listener := range listeners {
			if listener == nil {
				panic(fmt.Sprintf("nil listener at index %d for event '%s'", i, event))
			}
		}
		d.events[event] = listeners
		bus.OnTagged(event, d.bridge(event, listeners))
	}
	return d
}

// Bus returns the [eventbus.Bus] used by this [Dispatcher].
func (d *Dispatcher) Bus() *eventbus.Bus {
	return d.bus
}

// Dispatch emits event with params, and returns a future for the results of every declared [Listener].
// Results are in the order the listeners were declared, not the order they finished.
//
// If the event currently has no listeners, because none were declared or they're suspended, then the future is already settled with an empty slice.
// If any listener fails, then the future settles with the first failure and no results.
//
// Waiting on the future has no timeout unless one is passed to [syncx.FutureErr.AwaitErr].
func (d *Dispatcher) Dispatch(event eventbus.Name, params ...eventbus.Param) syncx.FutureErr[[]any] {
	if len(d.bus.ListenersFor(event)) == 0 {
		return syncx.SettledFuture([]any{}, nil)
	}

	var (
		tk         = new(ticket)
		result     = syncx.NewFutureErr[[]any]()
		unregister func()
	)
	// The waiter must be registered before the event is emitted, or the completion could be missed.
	unregister = d.bus.OnTagged(event+CompleteSuffix, func(tag any, params ...eventbus.Param) error {
		if tag != tk {
			return nil
		}
		var (
			results []any
			failure error
		)
		err := eventbus.CheckParams(params, 2,
			eventbus.Optional(eventbus.AssertAndStore(&results)),
			eventbus.Optional(eventbus.AssertAndStore(&failure)),
		)
		if err != nil {
			return fmt.Errorf("invalid completion signal: %w", err)
		}
		unregister()
		result.ResolveErr(results, failure)
		return nil
	})

	d.bus.EmitTagged(tk, event, params...)
	return result
}

// DispatchAwait calls [Dispatcher.Dispatch] and waits for the results.
// Cancelling ctx stops waiting, but doesn't stop the listeners.
func (d *Dispatcher) DispatchAwait(ctx context.Context, event eventbus.Name, params ...eventbus.Param) ([]any, error) {
	return d.Dispatch(event, params...).AwaitCtx(ctx)
}

// bridge creates the single bus listener for a declared event.
// It returns immediately, and emits the completion signal once every listener has finished, or one has failed.
func (d *Dispatcher) bridge(event eventbus.Name, listeners []Listener) eventbus.TaggedListener {
	return func(tag any, params ...eventbus.Param) error {
		params = slices.Clone(params)
		go func() {
			results, err := fanOut(listeners, params)
			if err != nil {
				d.bus.EmitError(fmt.Errorf("dispatch of event '%s' failed: %w", event, err))
			}
			d.bus.EmitTagged(tag, event+CompleteSuffix, results, err)
		}()
		return nil
	}
}

// fanOut calls every listener concurrently.
// It returns as soon as one fails, without waiting for the others.
func fanOut(listeners []Listener, params []eventbus.Param) ([]any, error) {
	var (
		group   errgroup.Group
		results = make([]any, len(listeners))
		failed  = make(chan error, 1)
		done    = make(chan error, 1)
	)
	for i, listener := range listeners {
		group.Go(func() error {
			val, err := call(listener, params)
			if err != nil {
				select {
				case failed <- err:
				default:
				}
				return err
			}
			results[i] = val
			return nil
		})
	}
	go func() {
		done <- group.Wait()
	}()

	select {
	case err := <-failed:
		return nil, err
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return results, nil
	}
}

func call(listener Listener, params []eventbus.Param) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanic, r)
		}
	}()
	val, err = listener(params...)
	if err != nil {
		return nil, err
	}
	if fut, ok := syncx.AsFuture(val); ok {
		return fut.AwaitAny()
	}
	return val, nil
}

// WithoutEvent runs block while the listeners for event are suspended.
// See [eventbus.WithoutEvent] for details.
func WithoutEvent[T any](d *Dispatcher, event eventbus.Name, block func() (T, error)) (T, error) {
	return eventbus.WithoutEvent(d.bus, event, block)
}

// WithoutEvents runs block while all listeners are suspended.
// See [eventbus.WithoutEvents] for details.
func WithoutEvents[T any](d *Dispatcher, block func() (T, error)) (T, error) {
	return eventbus.WithoutEvents(d.bus, block)
}
