package syncx

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"sync/atomic"
	"testing"
	"time"
)

func TestFuture_Await(t *testing.T) {
	var order = make([]int, 0, 4)
	f := NewFuture[int]()
	order = append(order, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		order = append(order, 2)
		f.Resolve(3)

		// Make sure that subsequent calls don't actually do anything
		f.Resolve(5)
		f.Resolve(6)
		f.Resolve(7)
	}()
	order = append(order, f.Await())
	assert.Equal(t, 3, f.Await(), "The same value should be returned again with Await")
	order = append(order, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, order, "Processing should happen in the expected order")
}

func TestFuture_Await_Blocking(t *testing.T) {
	var (
		f       = NewFutureErr[int]()
		process = func(f FutureErr[int]) {
			time.Sleep(150 * time.Millisecond)
			f.ResolveErr(5, nil)
		}
	)

	go process(f)
	for i := 0; i < 3; i++ {
		val, err := f.AwaitErr(40 * time.Millisecond)
		assert.Equal(t, 0, val)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	val, err := f.AwaitErr()
	assert.Equal(t, 5, val)
	assert.NoError(t, err)
}

func TestFuture_AwaitCtx(t *testing.T) {
	f := NewFutureErr[string]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.AwaitCtx(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	f.ResolveErr("done", nil)
	val, err := f.AwaitCtx(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "done", val)
}

func TestFuture_Finally_BeforeRelease(t *testing.T) {
	var hookRan atomic.Bool
	f := NewFutureErr[int]()
	f.Finally(func() {
		time.Sleep(50 * time.Millisecond)
		hookRan.Store(true)
	})
	go f.ResolveErr(0, errors.New("failed"))

	_, err := f.AwaitErr()
	assert.Error(t, err)
	assert.True(t, hookRan.Load(), "Hooks should run before waiters are released")
}

func TestFuture_Finally_AlreadySettled(t *testing.T) {
	f := SettledFuture(1, nil)
	called := false
	f.Finally(func() {
		called = true
	})
	assert.True(t, called, "Hook should run immediately for a settled future")
	f.Finally(nil)
}

func TestGo(t *testing.T) {
	f := Go(func() (int, error) {
		time.Sleep(10 * time.Millisecond)
		return 42, nil
	})
	val, err := f.AwaitErr(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, 42, val)

	boom := errors.New("boom")
	_, err = Go(func() (int, error) {
		return 0, boom
	}).AwaitErr(time.Second)
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		Go[int](nil)
	})
}

func TestIsFuture(t *testing.T) {
	var typedFuture FutureErr[int] = NewFutureErr[int]()
	assert.True(t, IsFuture(NewFuture[string]()))
	assert.True(t, IsFuture(typedFuture))
	assert.True(t, IsFuture(SettledFuture[any](nil, nil)))
	assert.False(t, IsFuture(nil))
	assert.False(t, IsFuture(5))
	assert.False(t, IsFuture(make(chan int)))

	s, ok := AsFuture(SettledFuture("a", nil))
	assert.True(t, ok)
	val, err := s.AwaitAny()
	assert.NoError(t, err)
	assert.Equal(t, "a", val)
	select {
	case <-s.Done():
	default:
		t.Error("Settled future should report done")
	}
}
