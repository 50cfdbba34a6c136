package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// StreamName is the single JetStream stream every pair's queue subject
// lives on; subjects are partitioned per pair so each Worker's durable
// consumer only ever sees its own pair's traffic.
const StreamName = "ORDER_BOOK"

// Connect dials the durable queue broker with indefinite reconnect, the
// "reconnect with exponential backoff, preserving at-least-once" behavior
// §7 requires of queue transport errors.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.MaxReconnects(-1),
		// 1s, 2s, 4s, ... doubling per attempt, capped at 32s.
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			if attempts > 5 {
				attempts = 5
			}
			if attempts < 0 {
				attempts = 0
			}
			return time.Second << uint(attempts)
		}),
		nats.RetryOnFailedConnect(true),
	)
}

// EnsureStream creates the shared JetStream stream if it doesn't already
// exist; idempotent, safe to call from every worker at startup.
func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"order_book.*"},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", StreamName, err)
	}
	return nil
}

// Consumer is one pair's durable JetStream pull consumer. Prefetch is
// fixed at 1 by using Fetch(1,...)
// rather than a push subscription with AckWait batching.
type Consumer struct {
	sub  *nats.Subscription
	pair model.Pair
}

// NewConsumer attaches (creating if absent) a durable pull consumer on
// "order_book.<pair_lowercase>".
func NewConsumer(js nats.JetStreamContext, pair model.Pair) (*Consumer, error) {
	if err := EnsureStream(js); err != nil {
		return nil, err
	}
	subject := Subject(pair)
	durable := "worker-" + pair.Slug()

	sub, err := js.PullSubscribe(subject, durable,
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxAckPending(1),
	)
	if err != nil {
		return nil, fmt.Errorf("pull subscribe %s: %w", subject, err)
	}
	return &Consumer{sub: sub, pair: pair}, nil
}

// Subject renders the durable per-pair queue name of §6.
func Subject(pair model.Pair) string {
	return "order_book." + pair.Slug()
}

// Next blocks up to pollInterval for the next message. A nil,
// nil return means the poll timed out with nothing pending; callers loop.
func (c *Consumer) Next(ctx context.Context, pollInterval time.Duration) (*nats.Msg, error) {
	msgs, err := c.sub.Fetch(1, nats.MaxWait(pollInterval), nats.Context(ctx))
	if err != nil {
		if err == nats.ErrTimeout || err == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

// Close drains the consumer's subscription. The underlying durable
// consumer survives on the broker for redelivery of anything left unacked.
func (c *Consumer) Close() error {
	return c.sub.Unsubscribe()
}
