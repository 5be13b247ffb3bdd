package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type recordingProcessors struct {
	inbound  []InboundProcess
	outbound []OutboundSend
	files    []FileRegister
	err      error
}

func (r *recordingProcessors) Process(_ context.Context, job InboundProcess) error {
	r.inbound = append(r.inbound, job)
	return r.err
}

func (r *recordingProcessors) Deliver(_ context.Context, job OutboundSend) error {
	r.outbound = append(r.outbound, job)
	return r.err
}

func (r *recordingProcessors) Register(_ context.Context, job FileRegister) error {
	r.files = append(r.files, job)
	return r.err
}

func newRunner(rec *recordingProcessors) *Runner {
	return &Runner{Inbound: rec, Outbound: rec, Files: rec}
}

func TestRunner_RoutesByKind(t *testing.T) {
	rec := &recordingProcessors{}
	r := newRunner(rec)
	ctx := context.Background()

	envInbound, _ := NewEnvelope(KindInboundProcess, InboundProcess{BotID: "b1", UpdateID: 42})
	envOutbound, _ := NewEnvelope(KindOutboundSend, OutboundSend{MessageID: "m1"})
	envFiles, _ := NewEnvelope(KindFileRegister, FileRegister{AttachmentID: "a1"})

	for _, env := range []Envelope{envInbound, envOutbound, envFiles} {
		if err := r.Run(ctx, env); err != nil {
			t.Fatalf("Run(%s) error = %v", env.Kind, err)
		}
	}

	if len(rec.inbound) != 1 || rec.inbound[0].UpdateID != 42 {
		t.Fatalf("inbound = %+v", rec.inbound)
	}
	if len(rec.outbound) != 1 || rec.outbound[0].MessageID != "m1" {
		t.Fatalf("outbound = %+v", rec.outbound)
	}
	if len(rec.files) != 1 || rec.files[0].AttachmentID != "a1" {
		t.Fatalf("files = %+v", rec.files)
	}
}

func TestRunner_UnknownKind(t *testing.T) {
	r := newRunner(&recordingProcessors{})
	err := r.Run(context.Background(), Envelope{Kind: "reticulate-splines", Payload: json.RawMessage("{}")})
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Fatalf("Run() error = %v, want unknown kind", err)
	}
}

func TestRunner_MalformedPayload(t *testing.T) {
	r := newRunner(&recordingProcessors{})
	err := r.Run(context.Background(), Envelope{Kind: KindOutboundSend, Payload: json.RawMessage("[nope")})
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("Run() error = %v, want decode failure", err)
	}
}

func TestRunner_PropagatesProcessorError(t *testing.T) {
	want := errors.New("storage gone")
	r := newRunner(&recordingProcessors{err: want})
	env, _ := NewEnvelope(KindInboundProcess, InboundProcess{})
	if err := r.Run(context.Background(), env); !errors.Is(err, want) {
		t.Fatalf("Run() error = %v, want %v", err, want)
	}
}

func TestInlineDispatcher_RunsSynchronously(t *testing.T) {
	rec := &recordingProcessors{}
	d := &InlineDispatcher{Runner: newRunner(rec)}
	ctx := context.Background()

	if err := d.EnqueueInbound(ctx, InboundProcess{UpdateID: 7}); err != nil {
		t.Fatalf("EnqueueInbound() error = %v", err)
	}
	if err := d.EnqueueOutbound(ctx, OutboundSend{MessageID: "m1"}); err != nil {
		t.Fatalf("EnqueueOutbound() error = %v", err)
	}
	if err := d.EnqueueFileRegister(ctx, FileRegister{AttachmentID: "a1"}); err != nil {
		t.Fatalf("EnqueueFileRegister() error = %v", err)
	}

	// The inline path completes each job before Enqueue returns.
	if len(rec.inbound) != 1 || len(rec.outbound) != 1 || len(rec.files) != 1 {
		t.Fatalf("jobs ran = %d/%d/%d, want 1/1/1", len(rec.inbound), len(rec.outbound), len(rec.files))
	}
}

func TestInlineDispatcher_SurfacesJobError(t *testing.T) {
	want := errors.New("delivery refused")
	d := &InlineDispatcher{Runner: newRunner(&recordingProcessors{err: want})}
	if err := d.EnqueueOutbound(context.Background(), OutboundSend{}); !errors.Is(err, want) {
		t.Fatalf("EnqueueOutbound() error = %v, want %v", err, want)
	}
}

func TestNewEnvelope_RoundTrip(t *testing.T) {
	clientID := "c1"
	env, err := NewEnvelope(KindFileRegister, FileRegister{
		TenantID:     "t1",
		ClientID:     &clientID,
		AttachmentID: "a1",
		FileName:     "zvit.pdf",
		FileSize:     2048,
	})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	var job FileRegister
	if err := json.Unmarshal(env.Payload, &job); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if job.ClientID == nil || *job.ClientID != "c1" || job.FileSize != 2048 {
		t.Fatalf("job = %+v", job)
	}
}
