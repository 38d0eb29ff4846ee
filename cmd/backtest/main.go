// cmd/backtest replays historical bars through the indicator engine
// and the six strategies to inspect the signal history without live
// market data or order placement.
//
// Usage:
//
//	go run ./cmd/backtest --symbols=2330,2317 --days=720
//	go run ./cmd/backtest --db=data/tritrend.db --symbols=2330 --no-fetch
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tritrend/internal/indicator"
	"tritrend/internal/kline"
	"tritrend/internal/marketdata"
	"tritrend/internal/model"
	sqlitestore "tritrend/internal/store/sqlite"
	"tritrend/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbolsStr := flag.String("symbols", "2330", "Comma-separated symbols to replay")
	days := flag.Int("days", 720, "Lookback window in days (fetch mode)")
	dbPath := flag.String("db", "data/tritrend.db", "Path to SQLite database")
	noFetch := flag.Bool("no-fetch", false, "Read stored daily bars instead of fetching")
	noSplit := flag.Bool("no-split", false, "Evaluate daily bars without the four-hour split")
	flag.Parse()

	symbols := parseSymbols(*symbolsStr)
	if len(symbols) == 0 {
		log.Fatal("[backtest] no symbols specified")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var store *sqlitestore.Store
	var fetcher *marketdata.FinMind
	if *noFetch {
		var err error
		store, err = sqlitestore.New(*dbPath)
		if err != nil {
			log.Fatalf("[backtest] sqlite open failed: %v", err)
		}
		defer store.Close()
	} else {
		fetcher = marketdata.NewFinMind(marketdata.FinMindConfig{
			Token: os.Getenv("FINMIND_TOKEN"),
		})
	}

	indEngine := indicator.NewEngine(indicator.DefaultConfig())
	stratEngine := strategy.NewDefaultEngine(nil, nil)

	barsTotal, signalsTotal := 0, 0
	for _, symbol := range symbols {
		daily, err := loadDaily(ctx, symbol, *days, store, fetcher)
		if err != nil {
			log.Printf("[backtest] %s: %v", symbol, err)
			continue
		}
		if len(daily) == 0 {
			log.Printf("[backtest] %s: no bars", symbol)
			continue
		}

		bars := daily
		if !*noSplit {
			bars = kline.SplitDaily(daily)
		}
		series := indEngine.Compute(bars)
		signals, errs := stratEngine.Evaluate(series)
		for id, err := range errs {
			log.Printf("[backtest] %s strategy %s: %v", symbol, id, err)
		}

		barsTotal += len(bars)
		signalsTotal += len(signals)
		for _, s := range signals {
			fmt.Printf("  [%s] %-12s %-4s %s @ %.2f strength=%.2f  %s\n",
				s.BarTS.Format("2006-01-02 15:04"), s.Strategy, s.Action,
				s.Symbol, s.TargetPrice, s.Strength, s.Reason)
		}
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Symbols:           %-16d ║\n", len(symbols))
	fmt.Printf("║  Bars evaluated:    %-16d ║\n", barsTotal)
	fmt.Printf("║  Signals emitted:   %-16d ║\n", signalsTotal)
	fmt.Println("╚══════════════════════════════════════╝")
}

func loadDaily(ctx context.Context, symbol string, days int,
	store *sqlitestore.Store, fetcher *marketdata.FinMind) ([]model.Bar, error) {
	if store != nil {
		return store.LoadBars(ctx, symbol, model.PeriodDaily, 0)
	}
	to := time.Now()
	return fetcher.DailyBars(ctx, symbol, to.AddDate(0, 0, -days), to)
}

func parseSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
