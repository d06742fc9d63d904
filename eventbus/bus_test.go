package eventbus

import (
	"bytes"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"sync"
	"testing"
)

const (
	testEvent  Name = "test"
	otherEvent Name = "other"
)

func TestBus_Emit(t *testing.T) {
	bus := NewBus()
	var calls []string
	bus.On(testEvent, func(params ...Param) error {
		var msg string
		if err := MapParam(&msg, params); err != nil {
			return err
		}
		calls = append(calls, "first:"+msg)
		return nil
	})
	bus.On(testEvent, func(params ...Param) error {
		calls = append(calls, "second")
		return nil
	})

	bus.Emit(testEvent, "A message")
	assert.Equal(t, []string{"first:A message", "second"}, calls, "Listeners should be called in registration order")
}

func TestBus_Emit_NoListeners(t *testing.T) {
	var logs bytes.Buffer
	bus := NewBus(WithLogger(testLogger(&logs)))
	assert.NotPanics(t, func() {
		bus.Emit("nothing", 1, 2, 3)
	})
	assert.Empty(t, logs.String(), "Emitting without listeners is not an error")
}

func TestBus_Emit_ListenerError(t *testing.T) {
	var (
		logs   bytes.Buffer
		failed = errors.New("listener failed")
		called bool
	)
	bus := NewBus(WithLogger(testLogger(&logs)))
	bus.On(testEvent, func(params ...Param) error {
		return failed
	})
	bus.On(testEvent, func(params ...Param) error {
		called = true
		return nil
	})

	bus.Emit(testEvent)
	assert.True(t, called, "An error should not stop other listeners")
	assert.Contains(t, logs.String(), "Unhandled event bus error")
	assert.Contains(t, logs.String(), "listener failed")
}

func TestBus_Emit_Panic(t *testing.T) {
	bus := NewBus()
	bus.On(testEvent, func(params ...Param) error {
		panic("boom")
	})
	assert.PanicsWithValue(t, "boom", func() {
		bus.Emit(testEvent)
	})
}

func TestBus_EmitTagged(t *testing.T) {
	bus := NewBus()
	var (
		tags  []any
		plain [][]Param
	)
	bus.OnTagged(testEvent, func(tag any, params ...Param) error {
		tags = append(tags, tag)
		return nil
	})
	bus.On(testEvent, func(params ...Param) error {
		plain = append(plain, params)
		return nil
	})

	bus.EmitTagged("tag", testEvent, 1)
	bus.Emit(testEvent, 2)
	assert.Equal(t, []any{"tag", nil}, tags)
	assert.Equal(t, [][]Param{{1}, {2}}, plain, "Untagged listeners should never see the tag")

	listeners := bus.ListenersFor(testEvent)
	require.Len(t, listeners, 2)
	assert.NoError(t, listeners[0](3))
	assert.Equal(t, []any{"tag", nil, nil}, tags)
}

func TestBus_OnError(t *testing.T) {
	var (
		logs     bytes.Buffer
		received []error
		failed   = errors.New("failed")
	)
	bus := NewBus(WithLogger(testLogger(&logs)), WithErrorHandler(func(err error) {
		received = append(received, err)
	}))
	bus.On(testEvent, func(params ...Param) error {
		return failed
	})

	bus.Emit(testEvent)
	require.Len(t, received, 1)
	assert.ErrorIs(t, received[0], failed)
	assert.Empty(t, logs.String(), "Handled errors should not be logged")

	bus.EmitError(nil)
	assert.Len(t, received, 1, "Nil errors should be ignored")

	unregister := bus.OnError(func(err error) {
		received = append(received, err)
	})
	bus.EmitErrorf("formatted %d", 1)
	assert.Len(t, received, 3)
	unregister()
	unregister()
	bus.EmitErrorf("formatted %d", 2)
	assert.Len(t, received, 4)
}

func TestBus_Unregister(t *testing.T) {
	bus := NewBus()
	count := 0
	unregister := bus.On(testEvent, func(params ...Param) error {
		count++
		return nil
	})
	bus.Emit(testEvent)
	unregister()
	unregister()
	bus.Emit(testEvent)
	assert.Equal(t, 1, count)
	assert.Empty(t, bus.ListenersFor(testEvent))
	assert.Empty(t, bus.EventNames())
}

func TestBus_Once(t *testing.T) {
	bus := NewBus()
	count := 0
	bus.Once(testEvent, func(params ...Param) error {
		count++
		// Emitting from a listener is allowed.
		bus.Emit(testEvent)
		return nil
	})
	bus.Emit(testEvent)
	bus.Emit(testEvent)
	assert.Equal(t, 1, count)
	assert.Empty(t, bus.ListenersFor(testEvent))
}

func TestBus_ListenersFor_Snapshot(t *testing.T) {
	bus := NewBus()
	assert.Empty(t, bus.ListenersFor(testEvent))

	bus.On(testEvent, noop)
	snapshot := bus.ListenersFor(testEvent)
	bus.On(testEvent, noop)
	assert.Len(t, snapshot, 1, "Snapshot should not change after registering")
	assert.Len(t, bus.ListenersFor(testEvent), 2)

	bus.On(otherEvent, noop)
	assert.Equal(t, []Name{testEvent, otherEvent}, bus.EventNames())
}

func TestBus_RemoveAll(t *testing.T) {
	bus := NewBus()
	bus.On(testEvent, noop)
	bus.On(otherEvent, noop)
	bus.OnError(func(error) {})

	bus.RemoveAll(testEvent)
	assert.Empty(t, bus.ListenersFor(testEvent))
	assert.Len(t, bus.ListenersFor(otherEvent), 1)
	assert.Equal(t, []Name{otherEvent}, bus.EventNames())

	bus.RemoveAllEvents()
	assert.Empty(t, bus.EventNames())
	assert.Len(t, bus.errHandlers, 1, "Error handlers should not be removed")
}

func TestBus_ConcurrentUse(t *testing.T) {
	bus := NewBus()
	var (
		wg    sync.WaitGroup
		mux   sync.Mutex
		calls int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.On(testEvent, func(params ...Param) error {
				mux.Lock()
				defer mux.Unlock()
				calls++
				return nil
			})
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(testEvent)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, calls)
}

func TestBus_NilListener(t *testing.T) {
	bus := NewBus()
	assert.Panics(t, func() {
		bus.On(testEvent, nil)
	})
	assert.Panics(t, func() {
		bus.Once(testEvent, nil)
	})
	assert.Panics(t, func() {
		bus.OnError(nil)
	})
}

func noop(...Param) error {
	return nil
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}
