package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"

	"datawatch/internal/ports"
)

type recordingDispatcher struct {
	enqueued     []string
	enqueueAsync []bool
	refreshed    []string
	refreshAsync []bool
	runs         []ports.RunRequest
}

func (d *recordingDispatcher) Enqueue(_ context.Context, slug string, async bool) error {
	d.enqueued = append(d.enqueued, slug)
	d.enqueueAsync = append(d.enqueueAsync, async)
	return nil
}

func (d *recordingDispatcher) Refresh(_ context.Context, slug string, async bool) error {
	d.refreshed = append(d.refreshed, slug)
	d.refreshAsync = append(d.refreshAsync, async)
	return nil
}

func (d *recordingDispatcher) Run(_ context.Context, req ports.RunRequest) error {
	d.runs = append(d.runs, req)
	return nil
}

func TestNATSBackendSynchronousCallsBypassTransport(t *testing.T) {
	local := &recordingDispatcher{}
	backend := NewNATSBackend(nil, "datawatch", "", local)
	ctx := context.Background()

	if err := backend.Enqueue(ctx, "example.Check", false); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := backend.Refresh(ctx, "example.Check", false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := backend.Run(ctx, ports.RunRequest{Slug: "example.Check", Identifier: "x"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(local.enqueued) != 1 || len(local.refreshed) != 1 || len(local.runs) != 1 {
		t.Fatalf("local calls = %d/%d/%d, want 1/1/1",
			len(local.enqueued), len(local.refreshed), len(local.runs))
	}
}

func TestConsumerHandleRoutesOperations(t *testing.T) {
	local := &recordingDispatcher{}
	consumer := NewConsumer(nil, "datawatch", local)
	ctx := context.Background()

	for _, msg := range []message{
		{ID: "1", Op: opEnqueue, Slug: "example.Check"},
		{ID: "2", Op: opRefresh, Slug: "example.Check"},
		{ID: "3", Op: opRun, Slug: "example.Check", Identifier: "x", UserForcedRefresh: true},
	} {
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal message: %v", err)
		}
		consumer.handle(ctx, &nats.Msg{Subject: "datawatch.test", Data: data})
	}

	if len(local.enqueued) != 1 || len(local.refreshed) != 1 || len(local.runs) != 1 {
		t.Fatalf("local calls = %d/%d/%d, want 1/1/1",
			len(local.enqueued), len(local.refreshed), len(local.runs))
	}
	run := local.runs[0]
	if run.Identifier != "x" || !run.UserForcedRefresh || run.Async {
		t.Fatalf("run request = %+v", run)
	}
	// Fan-out operations stay async so their per-payload runs go back on the
	// queue; only run messages execute inline.
	if !local.enqueueAsync[0] || !local.refreshAsync[0] {
		t.Fatalf("fan-out async flags = %v/%v, want true/true",
			local.enqueueAsync[0], local.refreshAsync[0])
	}
}

func TestConsumerHandleDropsGarbage(t *testing.T) {
	local := &recordingDispatcher{}
	consumer := NewConsumer(nil, "datawatch", local)

	consumer.handle(context.Background(), &nats.Msg{Subject: "datawatch.enqueue", Data: []byte("not json")})
	consumer.handle(context.Background(), &nats.Msg{Subject: "datawatch.enqueue", Data: []byte(`{"id":"4","op":"unknown"}`)})

	if len(local.enqueued)+len(local.refreshed)+len(local.runs) != 0 {
		t.Fatalf("garbage messages reached the local dispatcher")
	}
}
