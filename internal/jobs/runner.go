// Package jobs – envelope execution.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
)

// InboundProcessor runs one stored raw update through the inbound state
// machine. Implemented by services.InboundService.
type InboundProcessor interface {
	Process(ctx context.Context, job InboundProcess) error
}

// OutboundSender delivers one queued message. Implemented by
// services.OutboundService.
type OutboundSender interface {
	Deliver(ctx context.Context, job OutboundSend) error
}

// FileRegistrar classifies and registers one attachment. Implemented by
// services.FileService.
type FileRegistrar interface {
	Register(ctx context.Context, job FileRegister) error
}

// Runner decodes envelopes and routes them to the owning processor. It is
// shared by the inline dispatcher and the queue consumer, which keeps job
// semantics identical whether a job runs in-request or in a worker.
type Runner struct {
	Inbound  InboundProcessor
	Outbound OutboundSender
	Files    FileRegistrar
}

// Run executes one envelope. Errors propagate to the caller so the queue
// substrate's retry policy applies; execution is idempotent per job.
func (r *Runner) Run(ctx context.Context, env Envelope) error {
	switch env.Kind {
	case KindInboundProcess:
		var job InboundProcess
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return fmt.Errorf("jobs: decode %s: %w", env.Kind, err)
		}
		return r.Inbound.Process(ctx, job)
	case KindOutboundSend:
		var job OutboundSend
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return fmt.Errorf("jobs: decode %s: %w", env.Kind, err)
		}
		return r.Outbound.Deliver(ctx, job)
	case KindFileRegister:
		var job FileRegister
		if err := json.Unmarshal(env.Payload, &job); err != nil {
			return fmt.Errorf("jobs: decode %s: %w", env.Kind, err)
		}
		return r.Files.Register(ctx, job)
	default:
		return fmt.Errorf("jobs: unknown kind %q", env.Kind)
	}
}
