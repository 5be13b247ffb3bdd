// Package jobs – inline dispatcher.
package jobs

import "context"

// InlineDispatcher runs each job synchronously in-process before Enqueue
// returns. It is the fallback when no queue substrate is configured and the
// building block handler tests use.
type InlineDispatcher struct {
	Runner *Runner
}

// EnqueueInbound implements Dispatcher.
func (d *InlineDispatcher) EnqueueInbound(ctx context.Context, job InboundProcess) error {
	return d.run(ctx, KindInboundProcess, job)
}

// EnqueueOutbound implements Dispatcher.
func (d *InlineDispatcher) EnqueueOutbound(ctx context.Context, job OutboundSend) error {
	return d.run(ctx, KindOutboundSend, job)
}

// EnqueueFileRegister implements Dispatcher.
func (d *InlineDispatcher) EnqueueFileRegister(ctx context.Context, job FileRegister) error {
	return d.run(ctx, KindFileRegister, job)
}

func (d *InlineDispatcher) run(ctx context.Context, kind string, payload any) error {
	env, err := NewEnvelope(kind, payload)
	if err != nil {
		return err
	}
	return d.Runner.Run(ctx, env)
}
