// Command engine is the operator-facing process: it loads every registered
// market from storage and runs one Worker per pair until signaled to stop
//.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/axiomex/matchengine/params"
	"github.com/axiomex/matchengine/pkg/app/core/market"
	"github.com/axiomex/matchengine/pkg/app/core/model"
	"github.com/axiomex/matchengine/pkg/app/worker"
	"github.com/axiomex/matchengine/pkg/ops"
	"github.com/axiomex/matchengine/pkg/queue"
	"github.com/axiomex/matchengine/pkg/storage"
	"github.com/axiomex/matchengine/pkg/util"
)

func main() {
	configPath := flag.String("config", "", "path to a .env configuration file (default: .env in the current directory)")
	flag.Parse()
	cfg := params.LoadFromEnv(*configPath) // "" loads .env from the current directory

	logFile := os.Getenv("LOG_FILE")
	logger, err := buildLogger(logFile)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	db, err := storage.Open(cfg.Postgres)
	if err != nil {
		sugar.Fatalw("postgres_open_failed", "err", err)
	}
	defer db.Close()

	nc, err := queue.Connect(cfg.Queue.URL)
	if err != nil {
		sugar.Fatalw("queue_connect_failed", "err", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		sugar.Fatalw("jetstream_init_failed", "err", err)
	}

	markets, err := db.LoadMarkets()
	if err != nil {
		sugar.Fatalw("load_markets_failed", "err", err)
	}
	if len(markets) == 0 {
		sugar.Fatalw("no_markets_registered")
	}

	registry := market.NewRegistry()
	for _, mkt := range markets {
		if err := registry.Register(mkt); err != nil {
			sugar.Fatalw("market_registration_failed", "pair", mkt.Pair().String(), "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opsServer := ops.NewServer(db, registry)
	go func() {
		sugar.Infow("ops_server_starting", "addr", cfg.Ops.Addr)
		if err := opsServer.ListenAndServe(cfg.Ops.Addr); err != nil {
			sugar.Errorw("ops_server_stopped", "err", err)
		}
	}()

	var wg sync.WaitGroup
	for _, mkt := range markets {
		mkt := mkt
		pairStr := (model.Pair{Base: mkt.Base, Quote: mkt.Quote}).String()

		w, err := worker.New(ctx, db, js, nc, mkt, cfg, sugar)
		if err != nil {
			sugar.Errorw("worker_start_failed", "pair", pairStr, "err", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				sugar.Errorw("worker_exited", "pair", pairStr, "err", err)
			}
		}()
	}

	sugar.Infow("engine_started", "markets", len(markets))
	<-ctx.Done()
	sugar.Info("engine_shutting_down")
	wg.Wait()
}

// buildLogger mirrors the teacher's LOG_FILE-or-console choice in
// cmd/node/main.go.
func buildLogger(logFile string) (*zap.Logger, error) {
	if logFile == "" {
		return util.NewLogger()
	}
	return util.NewLoggerWithFile(logFile)
}
