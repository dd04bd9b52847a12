package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
	"datawatch/internal/ports"
)

const (
	opEnqueue = "enqueue"
	opRefresh = "refresh"
	opRun     = "run"

	// DefaultQueue is used for run messages of checks without a declared
	// dispatch queue.
	DefaultQueue = "default"
)

// message is the wire format of one dispatch operation. Primitive fields
// only, so any queue transport can carry it.
type message struct {
	ID                string `json:"id"`
	Op                string `json:"op"`
	Slug              string `json:"slug"`
	Identifier        string `json:"identifier,omitempty"`
	UserForcedRefresh bool   `json:"user_forced_refresh,omitempty"`
}

// NATSBackend forwards dispatch operations to a NATS subject instead of
// executing them. Consumers feed the messages back into the synchronous
// backend, so the business logic lives exactly once. Non-async calls bypass
// the transport and execute locally.
type NATSBackend struct {
	conn         *nats.Conn
	prefix       string
	defaultQueue string
	local        ports.Dispatcher
}

func NewNATSBackend(conn *nats.Conn, prefix, defaultQueue string, local ports.Dispatcher) *NATSBackend {
	if defaultQueue == "" {
		defaultQueue = DefaultQueue
	}
	return &NATSBackend{
		conn:         conn,
		prefix:       prefix,
		defaultQueue: defaultQueue,
		local:        local,
	}
}

// Connect opens a NATS connection with retry-friendly defaults.
func Connect(ctx context.Context, url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errs.Wrap(err, "connect to nats")
	}
	logging.Info(ctx, "connected to nats", slog.String("url", url))
	return conn, nil
}

func (b *NATSBackend) Enqueue(ctx context.Context, slug string, async bool) error {
	if !async {
		return b.local.Enqueue(ctx, slug, false)
	}
	return b.publish(ctx, b.prefix+"."+opEnqueue, message{
		ID:   uuid.NewString(),
		Op:   opEnqueue,
		Slug: slug,
	})
}

func (b *NATSBackend) Refresh(ctx context.Context, slug string, async bool) error {
	if !async {
		return b.local.Refresh(ctx, slug, false)
	}
	return b.publish(ctx, b.prefix+"."+opRefresh, message{
		ID:   uuid.NewString(),
		Op:   opRefresh,
		Slug: slug,
	})
}

func (b *NATSBackend) Run(ctx context.Context, req ports.RunRequest) error {
	if !req.Async {
		return b.local.Run(ctx, req)
	}

	queue := req.Queue
	if queue == "" {
		queue = b.defaultQueue
	}
	return b.publish(ctx, b.prefix+"."+opRun+"."+queue, message{
		ID:                uuid.NewString(),
		Op:                opRun,
		Slug:              req.Slug,
		Identifier:        req.Identifier,
		UserForcedRefresh: req.UserForcedRefresh,
	})
}

func (b *NATSBackend) publish(ctx context.Context, subject string, msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errs.Wrap(err, "marshal dispatch message")
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return errs.Wrapf(err, "publish to %s", subject)
	}
	logging.Info(ctx, "dispatch message published",
		slog.String("subject", subject),
		slog.String("message_id", msg.ID),
		slog.String("op", msg.Op),
		slog.String("slug", msg.Slug))
	return nil
}
