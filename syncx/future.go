package syncx

import (
	"context"
	"sync"
	"time"
)

// Settler is implemented by every future in this package, regardless of its value type.
// It allows code that doesn't know the value type to wait for a future, or to hook into its settlement.
type Settler interface {
	// Finally registers a hook that runs once the future is settled, before any waiter is released.
	// If the future is already settled, then the hook runs immediately in the calling goroutine.
	Finally(hook func())
	// AwaitAny is the untyped form of awaiting a future.
	AwaitAny(timeout ...time.Duration) (any, error)
	// Done returns a channel that is closed once the future is settled and all hooks have run.
	Done() <-chan struct{}
}

// IsFuture reports whether val is an asynchronous result created by this package.
func IsFuture(val any) bool {
	_, ok := AsFuture(val)
	return ok
}

// AsFuture returns val as a [Settler] if it's a future created by this package.
func AsFuture(val any) (Settler, bool) {
	if val == nil {
		return nil, false
	}
	s, ok := val.(Settler)
	return s, ok
}

// Future is a value that is resolved asynchronously at a later time.
// Once Await returns, the value is cached for other calls to Await.
type Future[T any] interface {
	Settler
	// Resolve sets the value of the [Future] so it can be resolved by consumers.
	// Only the first call to Resolve will set the result. Subsequent calls do nothing.
	Resolve(T)
	// Await blocks until the value is made available with [Future.Resolve], or until the timeout elapses if specified.
	// If the timeout limit is reached, then the [Future] type's zero value is returned.
	// If no timeout is given, then the function will wait indefinitely.
	Await(...time.Duration) T
}

func NewFuture[T any]() Future[T] {
	return newFuture[T]()
}

// FutureErr is the same as [Future], but it returns a value and an error.
type FutureErr[T any] interface {
	Settler
	// ResolveErr sets the value (and possibly an error) of the [Future] so it can be resolved by consumers.
	// Only the first call to ResolveErr will set the result. Subsequent calls do nothing.
	ResolveErr(T, error)
	// AwaitErr blocks until the value is made available with [FutureErr.ResolveErr], or until the timeout elapses if specified.
	// If the timeout limit is reached, then the zero value is returned along with the error returned from the context being cancelled.
	// If no timeout is given, then the function will wait indefinitely.
	AwaitErr(...time.Duration) (T, error)
	// AwaitCtx is the same as AwaitErr, but waiting stops when ctx is done.
	// Cancelling ctx doesn't affect the work that settles the future.
	AwaitCtx(ctx context.Context) (T, error)
}

func NewFutureErr[T any]() FutureErr[T] {
	return newFuture[T]()
}

// SettledFuture returns a [FutureErr] that is already settled with the given value and error.
func SettledFuture[T any](val T, err error) FutureErr[T] {
	f := newFuture[T]()
	f.ResolveErr(val, err)
	return f
}

// Go runs fn in a new goroutine, and returns a [FutureErr] that settles with its result.
func Go[T any](fn func() (T, error)) FutureErr[T] {
	if fn == nil {
		panic("nil function")
	}
	f := newFuture[T]()
	go func() {
		f.ResolveErr(fn())
	}()
	return f
}

type future[T any] struct {
	resolve sync.Once
	done    chan struct{}
	val     T
	err     error

	mux      sync.Mutex
	settling bool
	hooks    []func()
}

func newFuture[T any]() *future[T] {
	return &future[T]{
		done: make(chan struct{}),
	}
}

func (f *future[T]) Resolve(val T) {
	f.ResolveErr(val, nil)
}

func (f *future[T]) Await(timeout ...time.Duration) T {
	val, _ := f.AwaitErr(timeout...)
	return val
}

func (f *future[T]) ResolveErr(val T, err error) {
	f.resolve.Do(func() {
		f.val = val
		f.err = err
		hooks := LockFuncT(&f.mux, func() []func() {
			f.settling = true
			hooks := f.hooks
			f.hooks = nil
			return hooks
		})
		// Waiters are released only after every hook has run.
		defer close(f.done)
		for _, hook := range hooks {
			hook()
		}
	})
}

func (f *future[T]) Finally(hook func()) {
	if hook == nil {
		return
	}
	deferred := LockFuncT(&f.mux, func() bool {
		if f.settling {
			return false
		}
		f.hooks = append(f.hooks, hook)
		return true
	})
	if !deferred {
		hook()
	}
}

func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *future[T]) AwaitErr(timeout ...time.Duration) (T, error) {
	var (
		ctx    = context.Background()
		cancel = func() {}
	)
	if len(timeout) > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout[0])
	}
	defer cancel()
	return f.AwaitCtx(ctx)
}

func (f *future[T]) AwaitAny(timeout ...time.Duration) (any, error) {
	return f.AwaitErr(timeout...)
}

func (f *future[T]) AwaitCtx(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
