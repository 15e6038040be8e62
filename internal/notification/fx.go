package notification

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(
		NewDispatcher,
		func(d *Dispatcher) Notifier { return d },
		NewDeadLetter,
	),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, d *Dispatcher, dl *DeadLetter) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go dl.Run(d.Failures())
			d.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := d.Stop(ctx)
			if waitErr := dl.Wait(ctx); err == nil {
				err = waitErr
			}
			return err
		},
	})
}
