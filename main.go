package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-bot/internal/api"
	"trading-bot/internal/events"
	"trading-bot/internal/market"
	"trading-bot/internal/order"
	"trading-bot/internal/strategy"
	"trading-bot/pkg/config"
	"trading-bot/pkg/db"
	"trading-bot/pkg/exchanges/binance"
	"trading-bot/pkg/exchanges/bitmex"
	"trading-bot/pkg/exchanges/common"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	queries := database.Queries()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	feed := events.NewLogFeed(1000)
	board := market.NewQuoteBoard()

	conns := make(map[string]common.Connector)
	execs := make(map[string]*order.Executor)

	journal := func(s order.Snapshot) {
		jctx, jcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer jcancel()
		err := queries.RecordClosedTrade(jctx, db.ClosedTrade{
			ID: s.ID, Strategy: s.Strategy, Exchange: s.Exchange, Symbol: s.Symbol,
			Side: string(s.Side), Quantity: s.Quantity,
			EntryPrice: s.EntryPrice, ExitPrice: s.ExitPrice,
			EntryTime: s.EntryTime, ExitTime: s.ExitTime,
			PnL: s.PnL, Reason: s.Reason,
		})
		if err != nil {
			log.Printf("journal trade %s: %v", s.ID, err)
		}
	}

	var binanceStream *binance.Stream
	if cfg.EnableBinance {
		client := binance.NewClient(binance.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			Testnet:   cfg.BinanceTestnet,
		})
		conns[client.Name()] = client
		exec := order.NewExecutor(client, bus, feed)
		exec.OnClosed = journal
		execs[client.Name()] = exec

		go client.Clock().Run(ctx, 30*time.Minute)

		binanceStream = binance.NewStream(cfg.BinanceTestnet)
		binanceStream.Subscribe("bookTicker", cfg.BinanceSymbols)
		binanceStream.Subscribe("aggTrade", cfg.BinanceSymbols)
		log.Printf("binance enabled (testnet=%v, %d symbols)", cfg.BinanceTestnet, len(cfg.BinanceSymbols))
	}

	var bitmexStream *bitmex.Stream
	if cfg.EnableBitmex {
		client := bitmex.NewClient(bitmex.Config{
			APIKey:    cfg.BitmexAPIKey,
			APISecret: cfg.BitmexAPISecret,
			Testnet:   cfg.BitmexTestnet,
		})
		conns[client.Name()] = client
		exec := order.NewExecutor(client, bus, feed)
		exec.OnClosed = journal
		execs[client.Name()] = exec

		bitmexStream = bitmex.NewStream(cfg.BitmexTestnet)
		bitmexStream.Subscribe("instrument", "trade")
		log.Printf("bitmex enabled (testnet=%v)", cfg.BitmexTestnet)
	}

	if len(conns) == 0 {
		log.Fatalf("no exchange enabled; set ENABLE_BINANCE or ENABLE_BITMEX")
	}

	manager := strategy.NewManager(conns, execs, board, bus, feed)

	streamState := func(exchange string) func(string) {
		return func(state string) {
			bus.Publish(events.EventStreamState, map[string]any{"exchange": exchange, "state": state})
		}
	}
	if binanceStream != nil {
		binanceStream.OnQuote = manager.OnQuote
		binanceStream.OnTrade = func(tp common.TradePrint) { manager.OnTrade(ctx, tp) }
		binanceStream.OnState = streamState("binance")
		go binanceStream.Run(ctx)
	}
	if bitmexStream != nil {
		bitmexStream.OnQuote = manager.OnQuote
		bitmexStream.OnTrade = func(tp common.TradePrint) { manager.OnTrade(ctx, tp) }
		bitmexStream.OnState = streamState("bitmex")
		go bitmexStream.Run(ctx)
	}

	// REST polling backstops the websocket quote feed while it reconnects.
	go manager.PollQuotes(ctx, 10*time.Second)

	if cfg.StrategyPresetPath != "" {
		startPresets(ctx, cfg.StrategyPresetPath, database, manager)
	}

	server := api.NewServer(manager, board, bus, feed, queries, conns)
	go func() {
		log.Printf("api listening on :%s", cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	cancel()
}

// startPresets syncs YAML presets into the database and launches the active
// ones. A preset that fails to start is logged and skipped; the rest still
// come up.
func startPresets(ctx context.Context, path string, database *db.Database, manager *strategy.Manager) {
	presets, err := strategy.LoadPresets(path)
	if err != nil {
		log.Printf("load presets %s: %v", path, err)
		return
	}
	if err := strategy.SyncPresetsToDB(database.DB, presets); err != nil {
		log.Printf("sync presets: %v", err)
	}

	for _, p := range presets {
		if !p.IsActive {
			continue
		}
		view, err := manager.Start(ctx, p.Params)
		if err != nil {
			log.Printf("start preset %s: %v", p.Name, err)
			continue
		}
		log.Printf("preset %s running as %s", p.Name, view.ID)
	}
}
