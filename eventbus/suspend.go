package eventbus

import (
	"github.com/saylorsolutions/fanout/syncx"
)

type suspended struct {
	event Name
	regs  []*registration
}

// snapshot is the set of listeners removed by a suspension, used exactly once to restore them.
type snapshot []suspended

func (b *Bus) suspendEvent(event Name) snapshot {
	return syncx.LockFuncT(&b.mux, func() snapshot {
		regs := b.listeners[event]
		if len(regs) == 0 {
			return nil
		}
		b.setLocked(event, nil)
		return snapshot{{event: event, regs: regs}}
	})
}

func (b *Bus) suspendAll() snapshot {
	return syncx.LockFuncT(&b.mux, func() snapshot {
		snap := make(snapshot, 0, len(b.names))
		for _, name := range b.names {
			snap = append(snap, suspended{event: name, regs: b.listeners[name]})
		}
		b.listeners = map[Name][]*registration{}
		b.names = nil
		return snap
	})
}

func (b *Bus) restore(snap snapshot) {
	if len(snap) == 0 {
		return
	}
	syncx.LockFunc(&b.mux, func() {
		for _, s := range snap {
			for _, reg := range s.regs {
				if reg.removed {
					continue
				}
				b.appendLocked(s.event, reg)
			}
		}
	})
}

// WithoutEvent removes the listeners for event, runs block, and then adds the same listeners back in their original order.
// Listeners registered for event while block runs are kept, and the restored listeners are appended after them.
//
// Listeners are restored however block exits: returning a value, returning an error, or panicking.
// Errors and panics from block are passed through to the caller after restoration.
//
// If block returns a future (see [syncx.IsFuture]) without an error, then restoration waits until the future is settled.
// The same future is returned, and it doesn't release its waiters until the listeners have been restored.
func WithoutEvent[T any](bus *Bus, event Name, block func() (T, error)) (T, error) {
	return without(bus, bus.suspendEvent(event), block)
}

// WithoutEvents is the same as [WithoutEvent], but applies to every event that has listeners when it's called.
// Events without listeners are left alone.
func WithoutEvents[T any](bus *Bus, block func() (T, error)) (T, error) {
	return without(bus, bus.suspendAll(), block)
}

func without[T any](bus *Bus, snap snapshot, block func() (T, error)) (result T, err error) {
	restoreLater := false
	defer func() {
		if !restoreLater {
			bus.restore(snap)
		}
	}()

	result, err = block()
	if err != nil {
		return result, err
	}
	if fut, ok := syncx.AsFuture(result); ok {
		fut.Finally(func() {
			bus.restore(snap)
		})
		restoreLater = true
	}
	return result, nil
}
