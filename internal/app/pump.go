package app

import (
	"context"
	"fmt"
)

// PumpEvents subscribes to the service's event stream and feeds every event
// to the progress listener until ctx ends or the stream closes. A failed
// subscription is logged and not retried: browsing continues without
// progress indicators.
func (rt *Runtime) PumpEvents(ctx context.Context) error {
	sub, err := rt.Service.Subscribe(ctx)
	if err != nil {
		rt.Logger.Warn("event subscription failed; progress updates disabled", "error", err)
		return nil
	}
	defer func() { _ = sub.Close() }()
	rt.Logger.Debug("event stream open")

	err = rt.Listener.Run(ctx, sub.Events())
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("event pump: %w", err)
	}
	if streamErr := sub.Err(); streamErr != nil {
		rt.Logger.Warn("event stream ended", "error", streamErr)
	}
	return nil
}
