// Package fxdispatch provides a [dispatch.Dispatcher] to an fx application.
//
// The application must supply the [dispatch.Events] to declare, and may supply a [*slog.Logger] for bus errors.
//
//	app := fx.New(
//		fx.Supply(dispatch.Events{"save": {...}}),
//		fxdispatch.Module(),
//		fx.Invoke(func(d *dispatch.Dispatcher) { ... }),
//	)
package fxdispatch

import (
	"context"
	"github.com/saylorsolutions/fanout/dispatch"
	"go.uber.org/fx"
	"log/slog"
)

const moduleName = "fanout"

// Params are the dependencies of [NewDispatcher].
type Params struct {
	fx.In

	Events dispatch.Events
	Logger *slog.Logger `optional:"true"`
}

// Module returns the fx module that provides a [*dispatch.Dispatcher].
// All listeners are removed from the dispatcher's bus when the application stops.
func Module() fx.Option {
	return fx.Module(moduleName,
		fx.Provide(NewDispatcher),
		fx.Invoke(registerLifecycle),
	)
}

// NewDispatcher creates a [*dispatch.Dispatcher] from injected [Params].
func NewDispatcher(params Params) *dispatch.Dispatcher {
	return dispatch.New(params.Events, dispatch.WithLogger(params.Logger))
}

func registerLifecycle(lc fx.Lifecycle, d *dispatch.Dispatcher) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			d.Bus().RemoveAllEvents()
			return nil
		},
	})
}
