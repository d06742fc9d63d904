package eventbus

import (
	"fmt"
	"github.com/saylorsolutions/fanout/syncx"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Name identifies an event channel on a [Bus].
type Name string

// Listener is called with the [Param] list given to [Bus.Emit].
// A returned error is reported to the error channel of the [Bus], see [Bus.OnError].
type Listener func(params ...Param) error

// TaggedListener is like [Listener], but also receives the tag given to [Bus.EmitTagged].
// The tag is nil when the event is emitted with [Bus.Emit].
type TaggedListener func(tag any, params ...Param) error

// ErrorHandler receives errors reported to a [Bus].
type ErrorHandler func(err error)

// Option configures a [Bus] in [NewBus].
type Option func(b *Bus)

// WithLogger sets the logger used for errors that have no registered [ErrorHandler].
// A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithErrorHandler registers an [ErrorHandler] when the [Bus] is created.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(b *Bus) {
		b.OnError(handler)
	}
}

type registration struct {
	listener Listener
	tagged   TaggedListener
	removed  bool
}

func (r *registration) call(tag any, params []Param) error {
	if r.tagged != nil {
		return r.tagged(tag, params...)
	}
	return r.listener(params...)
}

type errRegistration struct {
	handler ErrorHandler
}

// Bus is a registry of listeners by event [Name].
// It's safe for concurrent use, and each [Bus] owns its registry exclusively.
type Bus struct {
	logger *slog.Logger

	mux         sync.RWMutex
	listeners   map[Name][]*registration
	names       []Name
	errHandlers []*errRegistration
}

// NewBus creates an empty [Bus].
// By default, errors with no registered [ErrorHandler] are logged with [slog.Default].
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		logger:    slog.Default(),
		listeners: map[Name][]*registration{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On appends listener to the listeners of event.
// The returned function removes this registration, and may be called more than once.
func (b *Bus) On(event Name, listener Listener) (unregister func()) {
	if listener == nil {
		panic("nil listener")
	}
	return b.add(event, &registration{listener: listener})
}

// OnTagged is like [Bus.On], but the listener also receives the tag of each emission.
// Tags are only visible to listeners registered this way, so other listeners of the event see the same params with or without a tag.
func (b *Bus) OnTagged(event Name, listener TaggedListener) (unregister func()) {
	if listener == nil {
		panic("nil listener")
	}
	return b.add(event, &registration{
		listener: func(params ...Param) error {
			return listener(nil, params...)
		},
		tagged: listener,
	})
}

// Once is like [Bus.On], but the listener removes itself before it's first called.
func (b *Bus) Once(event Name, listener Listener) (unregister func()) {
	if listener == nil {
		panic("nil listener")
	}
	var (
		fired atomic.Bool
		reg   = new(registration)
	)
	reg.listener = func(params ...Param) error {
		if !fired.CompareAndSwap(false, true) {
			return nil
		}
		b.remove(event, reg)
		return listener(params...)
	}
	return b.add(event, reg)
}

func (b *Bus) add(event Name, reg *registration) func() {
	syncx.LockFunc(&b.mux, func() {
		b.appendLocked(event, reg)
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(event, reg)
		})
	}
}

func (b *Bus) appendLocked(event Name, reg *registration) {
	regs, ok := b.listeners[event]
	if !ok {
		b.names = append(b.names, event)
	}
	b.listeners[event] = append(regs, reg)
}

func (b *Bus) remove(event Name, reg *registration) {
	syncx.LockFunc(&b.mux, func() {
		// Marked so a suspended registration isn't restored later.
		reg.removed = true
		regs := b.listeners[event]
		idx := slices.Index(regs, reg)
		if idx < 0 {
			return
		}
		b.setLocked(event, slices.Delete(slices.Clone(regs), idx, idx+1))
	})
}

func (b *Bus) setLocked(event Name, regs []*registration) {
	if len(regs) > 0 {
		b.listeners[event] = regs
		return
	}
	delete(b.listeners, event)
	b.names = slices.DeleteFunc(b.names, func(name Name) bool {
		return name == event
	})
}

// ListenersFor returns the listeners currently registered for event, in registration order.
// The returned slice is a copy, so later changes to the [Bus] don't affect it.
func (b *Bus) ListenersFor(event Name) []Listener {
	return syncx.RLockFuncT(&b.mux, func() []Listener {
		regs := b.listeners[event]
		if len(regs) == 0 {
			return nil
		}
		listeners := make([]Listener, len(regs))
		for i, reg := range regs {
			listeners[i] = reg.listener
		}
		return listeners
	})
}

// EventNames returns every event that currently has at least one listener.
func (b *Bus) EventNames() []Name {
	return syncx.RLockFuncT(&b.mux, func() []Name {
		return slices.Clone(b.names)
	})
}

// Emit calls every listener registered for event at the time of the call, in registration order.
// Listeners are called in the calling goroutine without holding any lock, so they're free to use the [Bus].
// Emit doesn't wait on anything a listener starts, and it's not an error to emit an event without listeners.
func (b *Bus) Emit(event Name, params ...Param) {
	b.EmitTagged(nil, event, params...)
}

// EmitTagged is the same as [Bus.Emit], but also passes tag to listeners registered with [Bus.OnTagged].
func (b *Bus) EmitTagged(tag any, event Name, params ...Param) {
	regs := syncx.RLockFuncT(&b.mux, func() []*registration {
		return slices.Clone(b.listeners[event])
	})
	for _, reg := range regs {
		if err := reg.call(tag, params); err != nil {
			b.EmitError(fmt.Errorf("listener for event '%s' failed: %w", event, err))
		}
	}
}

// RemoveAll removes every listener for event.
func (b *Bus) RemoveAll(event Name) {
	syncx.LockFunc(&b.mux, func() {
		b.setLocked(event, nil)
	})
}

// RemoveAllEvents removes every listener for every event.
// Error handlers are not affected.
func (b *Bus) RemoveAllEvents() {
	syncx.LockFunc(&b.mux, func() {
		b.listeners = map[Name][]*registration{}
		b.names = nil
	})
}

// OnError registers a handler for errors reported to the [Bus].
// Once any handler is registered, errors are no longer logged by default.
func (b *Bus) OnError(handler ErrorHandler) (unregister func()) {
	if handler == nil {
		panic("nil error handler")
	}
	reg := &errRegistration{handler: handler}
	syncx.LockFunc(&b.mux, func() {
		b.errHandlers = append(b.errHandlers, reg)
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			syncx.LockFunc(&b.mux, func() {
				b.errHandlers = slices.DeleteFunc(slices.Clone(b.errHandlers), func(other *errRegistration) bool {
					return other == reg
				})
			})
		})
	}
}

// EmitError reports err to all registered error handlers.
// If there are none, then err is logged at error level instead. A nil err is ignored.
func (b *Bus) EmitError(err error) {
	if err == nil {
		return
	}
	handlers := syncx.RLockFuncT(&b.mux, func() []*errRegistration {
		return slices.Clone(b.errHandlers)
	})
	if len(handlers) == 0 {
		b.logger.Error("Unhandled event bus error", "error", err)
		return
	}
	for _, reg := range handlers {
		reg.handler(err)
	}
}

// EmitErrorf is a convenience for reporting an error created with [fmt.Errorf].
func (b *Bus) EmitErrorf(format string, args ...any) {
	b.EmitError(fmt.Errorf(format, args...))
}
