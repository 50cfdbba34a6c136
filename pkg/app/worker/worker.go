// Package worker drives one trading pair end to end: the durable queue
// consumer, the resident matcher, the persistence commit, and the bus
// publisher. Exactly one Worker runs per pair at any time, enforced
// by the Postgres advisory lock it holds for its lifetime.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/axiomex/matchengine/pkg/app/core/candle"
	"github.com/axiomex/matchengine/pkg/app/core/ledger"
	"github.com/axiomex/matchengine/pkg/app/core/matcher"
	"github.com/axiomex/matchengine/pkg/app/core/model"
	"github.com/axiomex/matchengine/pkg/app/core/settlement"
	"github.com/axiomex/matchengine/pkg/bus"
	"github.com/axiomex/matchengine/pkg/ops"
	"github.com/axiomex/matchengine/pkg/queue"
	"github.com/axiomex/matchengine/pkg/storage"
	"github.com/axiomex/matchengine/params"
)

// Worker owns the resident book, the ledger cache, the queue consumer, and
// the bus publisher for exactly one pair.
type Worker struct {
	pair model.Pair
	mkt  *model.Market
	cfg  params.Config
	log  *zap.SugaredLogger

	db   *storage.DB
	lg   *ledger.Manager
	eng  *matcher.Engine
	agg  *candle.Aggregator
	cons *queue.Consumer
	pub  *bus.Publisher
	lock *storage.PairLock

	seq uint64
}

// New acquires the pair's advisory lock, reloads the resident book and the
// candle aggregator from storage, and attaches the pair's durable consumer
// and bus publisher. The caller owns db, js and nc and may
// share them across many Workers; lock, consumer and aggregator state are
// private to this one.
func New(ctx context.Context, db *storage.DB, js nats.JetStreamContext, nc *nats.Conn, mkt *model.Market, cfg params.Config, log *zap.SugaredLogger) (*Worker, error) {
	pair := mkt.Pair()

	lock, err := db.AcquirePairLock(ctx, pair.Slug())
	if err != nil {
		return nil, err
	}

	w := &Worker{pair: pair, mkt: mkt, cfg: cfg, log: log, db: db, lock: lock}

	if err := w.reload(ctx); err != nil {
		_ = lock.Release(ctx)
		return nil, err
	}

	agg := candle.New(pair)
	if err := coldStart(db, pair, agg); err != nil {
		_ = lock.Release(ctx)
		return nil, err
	}
	w.agg = agg

	cons, err := queue.NewConsumer(js, pair)
	if err != nil {
		_ = lock.Release(ctx)
		return nil, err
	}
	w.cons = cons

	w.pub = bus.NewPublisher(nc, pair, cfg.Bus.PublishBuffer, log)

	return w, nil
}

// reload rebuilds the ledger cache and the resident matcher from storage,
// discarding whatever in-memory state the worker had. Called at startup and
// after any command fails, per §7's "roll back, reload the book from
// storage" on every error kind.
func (w *Worker) reload(ctx context.Context) error {
	lg := ledger.NewManager(w.db)
	eng := matcher.New(w.mkt, lg)

	orders, err := w.db.LoadActiveOrders(w.pair)
	if err != nil {
		return err
	}
	eng.LoadResident(orders)

	w.lg = lg
	w.eng = eng
	return nil
}

// coldStart repairs any candle gap left by a crash between flushes:
// for each bucket width, if the latest trade postdates the latest persisted
// candle's bucket, it replays the trade tape from that candle forward and
// re-seeds the aggregator with whatever bucket is left open. A pair that
// has never traded has nothing to repair.
func coldStart(db *storage.DB, pair model.Pair, agg *candle.Aggregator) error {
	latestTrade, err := db.LoadLatestTrade(pair)
	if err != nil {
		return err
	}
	if latestTrade == nil {
		return nil
	}

	for _, unit := range model.SupportedBucketsMinutes {
		latestCandle, err := db.LoadLatestCandle(pair, unit)
		if err != nil {
			return err
		}

		var since time.Time
		if latestCandle != nil {
			bucketEnd := latestCandle.Timestamp.Add(time.Duration(unit) * time.Minute)
			if latestTrade.CreatedAt.Before(bucketEnd) {
				continue
			}
			since = latestCandle.Timestamp
		}

		trades, err := db.LoadTradesSince(pair, since)
		if err != nil {
			return err
		}
		repaired := candle.Repair(pair, unit, trades)
		if len(repaired) == 0 {
			continue
		}
		for _, c := range repaired[:len(repaired)-1] {
			if err := db.FlushCandle(c); err != nil {
				return err
			}
		}
		agg.Seed(unit, repaired[len(repaired)-1])
	}
	return nil
}

// Run consumes, matches, commits and publishes until ctx is canceled, then
// releases the pair lock.
func (w *Worker) Run(ctx context.Context) error {
	defer w.shutdown()

	for ctx.Err() == nil {
		msg, err := w.cons.Next(ctx, w.cfg.Queue.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			// queue transport error: Connect already retries indefinitely
			// underneath; log and keep polling rather than exiting.
			w.log.Errorw("queue_poll_failed", "pair", w.pair.String(), "err", err)
			continue
		}
		if msg == nil {
			continue // inactivity poll timeout, nothing pending
		}
		w.handle(ctx, msg)
	}
	return nil
}

func (w *Worker) shutdown() {
	w.pub.Close()
	if err := w.cons.Close(); err != nil {
		w.log.Warnw("consumer_close_failed", "pair", w.pair.String(), "err", err)
	}
	if err := w.lock.Release(context.Background()); err != nil {
		w.log.Warnw("pair_lock_release_failed", "pair", w.pair.String(), "err", err)
	}
}

func (w *Worker) handle(ctx context.Context, msg *nats.Msg) {
	w.seq++
	now := time.Now().UTC()
	start := time.Now()
	defer func() { ops.ObserveSettlement(w.pair.String(), time.Since(start).Seconds()) }()

	cmd, err := queue.Decode(msg.Data, now, w.seq)
	if err != nil {
		// malformed payloads never decode successfully on retry; ack and
		// drop rather than poison-pilling the consumer.
		w.log.Errorw("decode_failed", "pair", w.pair.String(), "err", err)
		_ = msg.Ack()
		return
	}

	switch cmd.Type {
	case queue.CommandPlace:
		w.handlePlace(ctx, cmd.Order, now, msg)
	case queue.CommandCancel:
		w.handleCancel(ctx, cmd.OrderIDs, now, msg)
	}
}

func (w *Worker) handlePlace(ctx context.Context, o *model.Order, now time.Time, msg *nats.Msg) {
	// A redelivery of a place command whose order already filled has
	// nothing resident in the book to catch the duplicate against, so
	// intake checks storage directly before matching (§8 invariant 7, S6).
	existing, err := w.db.LoadOrder(o.ID)
	if err != nil {
		w.log.Errorw("order_lookup_failed", "pair", w.pair.String(), "order", o.ID, "err", err)
		_ = msg.Nak()
		return
	}
	if existing != nil {
		_ = msg.Ack()
		return
	}

	result, makers, priceChanged, err := w.eng.Place(o, now)
	if err != nil {
		if rerr := w.reload(ctx); rerr != nil {
			w.log.Errorw("reload_failed", "pair", w.pair.String(), "err", rerr)
		}
		w.ackByKind(msg, err)
		return
	}
	if result == nil {
		// dropped silently: below minimum notional or an idempotent retry
		// of an order already resident.
		_ = msg.Ack()
		return
	}

	hasTrades := len(result.Trades) > 0
	balances := w.touchedBalances(append([]*model.Order{o}, makers...))

	commit := storage.PlaceCommit{
		Incoming:     o,
		FilledMakers: makers,
		Trades:       result.Trades,
		Transactions: result.Transactions,
		Balances:     balances,
		Market:       w.mkt,
		PriceChanged: priceChanged,
	}
	if err := w.db.CommitPlace(ctx, commit); err != nil {
		w.log.Errorw("commit_place_failed", "pair", w.pair.String(), "order", o.ID, "err", err)
		if rerr := w.reload(ctx); rerr != nil {
			w.log.Errorw("reload_failed", "pair", w.pair.String(), "err", rerr)
		}
		_ = msg.Nak() // persistence failure: treat as transient, redeliver
		return
	}

	_ = msg.Ack()
	if hasTrades {
		ops.IncTrades(w.pair.String(), len(result.Trades))
	}
	w.publishPlace(result, balances, hasTrades, priceChanged)
}

func (w *Worker) handleCancel(ctx context.Context, ids []uuid.UUID, now time.Time, msg *nats.Msg) {
	var orders []*model.Order
	for _, id := range ids {
		if o := w.eng.Find(id); o != nil {
			orders = append(orders, o)
		}
	}
	if len(orders) == 0 {
		_ = msg.Ack() // nothing resident: already filled/canceled/unknown
		return
	}

	_, err := w.eng.Cancel(orders, now)
	if err != nil {
		if rerr := w.reload(ctx); rerr != nil {
			w.log.Errorw("reload_failed", "pair", w.pair.String(), "err", rerr)
		}
		w.ackByKind(msg, err)
		return
	}

	balances := w.touchedBalances(orders)
	if err := w.db.CommitCancel(ctx, storage.CancelCommit{Canceled: orders, Balances: balances}); err != nil {
		w.log.Errorw("commit_cancel_failed", "pair", w.pair.String(), "err", err)
		if rerr := w.reload(ctx); rerr != nil {
			w.log.Errorw("reload_failed", "pair", w.pair.String(), "err", rerr)
		}
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
	w.publishBook()
	w.pub.PublishBalances(bus.NewBalanceData(balances))
}

// touchedBalances resolves the final cached balance for every (user,
// currency) pair a command could have mutated: each order's own locking
// currency and, for a place that traded, both legs of this market plus the
// fee account.
func (w *Worker) touchedBalances(orders []*model.Order) []*model.Balance {
	seen := make(map[string]bool)
	var out []*model.Balance

	add := func(userID uuid.UUID, currency string) {
		k := userID.String() + "/" + currency
		if seen[k] {
			return
		}
		seen[k] = true
		if b := w.lg.GetReadOnly(userID, currency); b != nil {
			out = append(out, b)
		}
	}

	for _, o := range orders {
		add(o.UserID, w.mkt.Base)
		add(o.UserID, w.mkt.Quote)
	}
	add(model.FeeUserID, w.mkt.Base)
	add(model.FeeUserID, w.mkt.Quote)
	return out
}

// publishPlace fans out everything one successful place touched: the book
// (always, since the incoming order either rested or consumed resting
// volume), the trade tape and candle folding if it traded, the market
// event only if the trade actually moved current_price, and every balance
// the command mutated.
func (w *Worker) publishPlace(result *settlement.Result, balances []*model.Balance, hasTrades, priceChanged bool) {
	w.publishBook()
	if hasTrades {
		w.pub.PublishTrades(bus.NewTradeData(result.Trades))
		for _, trade := range result.Trades {
			for _, closed := range w.agg.OnTrade(trade) {
				if err := w.db.FlushCandle(closed); err != nil {
					w.log.Warnw("flush_candle_failed", "pair", w.pair.String(), "unit", closed.UnitMinutes, "err", err)
				}
			}
		}
	}
	if priceChanged {
		w.pub.PublishMarket([]bus.MarketData{{Pair: w.pair.String(), CurrentPrice: w.mkt.CurrentPrice}})
	}
	w.pub.PublishBalances(bus.NewBalanceData(balances))
}

func (w *Worker) publishBook() {
	asks := w.eng.TopN(model.SideSell, bus.PublicationDepth)
	bids := w.eng.TopN(model.SideBuy, bus.PublicationDepth)
	w.pub.PublishOrderBook(bus.NewOrderBookData(w.pair, asks, bids))
}

// ackByKind implements §7's error-kind matrix: NotEnoughBalance is terminal
// (ack, never republished), Conflict is transient (nak, broker redelivers),
// Internal is logged and acked to avoid a poison-pill loop.
func (w *Worker) ackByKind(msg *nats.Msg, err error) {
	var me *model.Error
	kind := model.KindInternal
	if errors.As(err, &me) {
		kind = me.Kind
	}
	ops.IncRejected(w.pair.String(), kind.String())
	switch kind {
	case model.KindNotEnoughBalance:
		w.log.Warnw("command_rejected_not_enough_balance", "pair", w.pair.String(), "err", err)
		_ = msg.Ack()
	case model.KindConflict:
		w.log.Warnw("command_conflict", "pair", w.pair.String(), "err", err)
		_ = msg.Nak()
	default:
		w.log.Errorw("command_internal_error", "pair", w.pair.String(), "err", err)
		_ = msg.Ack()
	}
}
