package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
	"datawatch/internal/ports"
)

// Consumer is the worker side of the NATS transport: it subscribes to the
// dispatch subjects and executes every message through the synchronous
// backend. Execution failures are logged; redelivery is owned by the queue
// infrastructure, not by this core.
type Consumer struct {
	conn   *nats.Conn
	prefix string
	local  ports.Dispatcher
	subs   []*nats.Subscription
}

func NewConsumer(conn *nats.Conn, prefix string, local ports.Dispatcher) *Consumer {
	return &Consumer{conn: conn, prefix: prefix, local: local}
}

// Start subscribes to the enqueue, refresh and run subjects.
func (c *Consumer) Start(ctx context.Context) error {
	subjects := []string{
		c.prefix + "." + opEnqueue,
		c.prefix + "." + opRefresh,
		c.prefix + "." + opRun + ".>",
	}
	for _, subject := range subjects {
		sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
			c.handle(ctx, msg)
		})
		if err != nil {
			return errs.Wrapf(err, "subscribe to %s", subject)
		}
		c.subs = append(c.subs, sub)
		logging.Info(ctx, "subscribed", slog.String("subject", subject))
	}
	return nil
}

// Stop drains the subscriptions so in-flight messages finish.
func (c *Consumer) Stop(ctx context.Context) {
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			logging.Warn(ctx, "drain subscription failed",
				slog.String("subject", sub.Subject),
				slog.Any("err", errs.Loggable(err)))
		}
	}
	c.subs = nil
}

func (c *Consumer) handle(ctx context.Context, natsMsg *nats.Msg) {
	var msg message
	if err := json.Unmarshal(natsMsg.Data, &msg); err != nil {
		logging.Error(ctx, "dropping undecodable dispatch message",
			slog.String("subject", natsMsg.Subject),
			slog.Any("err", errs.Loggable(err)))
		return
	}

	msgCtx := logging.WithAttrs(ctx,
		slog.String("message_id", msg.ID),
		slog.String("op", msg.Op),
		slog.String("slug", msg.Slug))

	// Enqueue and refresh keep their async flag: the fan-out re-publishes one
	// run message per payload on the check's queue subject. Only run messages
	// execute inline here.
	var err error
	switch msg.Op {
	case opEnqueue:
		err = c.local.Enqueue(msgCtx, msg.Slug, true)
	case opRefresh:
		err = c.local.Refresh(msgCtx, msg.Slug, true)
	case opRun:
		err = c.local.Run(msgCtx, ports.RunRequest{
			Slug:              msg.Slug,
			Identifier:        msg.Identifier,
			UserForcedRefresh: msg.UserForcedRefresh,
		})
	default:
		logging.Warn(msgCtx, "unknown dispatch operation")
		return
	}
	if err != nil {
		logging.Error(msgCtx, "dispatch message execution failed",
			slog.Any("err", errs.Loggable(err)))
	}
}
