package bus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// Subject is the best-effort fan-out subject every event type publishes
// to; subscribers filter by the envelope's Type field. A single
// subject per pair keeps per-pair ordering without needing per-type subjects.
func Subject(pair model.Pair) string {
	return "exchange.events." + pair.Slug()
}

// Publisher is the bounded, single-worker task queue §9's design notes
// call for ("coroutine-based publisher ... becomes a bounded task queue
// with one worker; the matcher hands off fully-serialized messages and
// returns immediately"). One Publisher per pair.
type Publisher struct {
	nc      *nats.Conn
	subject string
	log     *zap.SugaredLogger

	queue chan []byte
	done  chan struct{}
}

// NewPublisher starts the background send loop. buffer bounds how far the
// publisher may lag the matcher.
func NewPublisher(nc *nats.Conn, pair model.Pair, buffer int, log *zap.SugaredLogger) *Publisher {
	p := &Publisher{
		nc:      nc,
		subject: Subject(pair),
		log:     log,
		queue:   make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for payload := range p.queue {
		if err := p.nc.Publish(p.subject, payload); err != nil {
			// Publisher errors are swallowed per §7: subscribers resync
			// via snapshot, so a missed bus send is never fatal.
			if p.log != nil {
				p.log.Warnw("bus_publish_failed", "subject", p.subject, "err", err)
			}
		}
	}
}

// publish enqueues one envelope, dropping it rather than blocking the
// matcher if the queue is full.
func (p *Publisher) publish(eventType string, data interface{}) {
	payload, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		if p.log != nil {
			p.log.Errorw("bus_marshal_failed", "type", eventType, "err", err)
		}
		return
	}
	select {
	case p.queue <- payload:
	default:
		if p.log != nil {
			p.log.Warnw("bus_publish_dropped_queue_full", "subject", p.subject, "type", eventType)
		}
	}
}

func (p *Publisher) PublishOrderBook(d OrderBookData)  { p.publish("order", d) }
func (p *Publisher) PublishTrades(d []TradeData)       { p.publish("trade", d) }
func (p *Publisher) PublishBalances(d BalanceData)     { p.publish("balance", d) }
func (p *Publisher) PublishMarket(d []MarketData)      { p.publish("market", d) }

// Close stops accepting new sends and waits for the queue to drain, the
// cooperative-shutdown counterpart of §5.
func (p *Publisher) Close() {
	close(p.queue)
	<-p.done
}
