// Package redis publishes live snapshots of quotes, indicator state,
// and signal status so dashboards can watch the pipeline without
// touching SQLite. All writes are best-effort behind a circuit
// breaker; SQLite remains the source of truth.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"tritrend/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultSnapshotTTL = 24 * time.Hour
	maxBufferedSignals = 1000
	signalChannel      = "tritrend:pub:signals"
)

// WriterConfig configures the Redis snapshot writer.
type WriterConfig struct {
	Addr        string // e.g. "localhost:6379"
	Password    string
	DB          int
	SnapshotTTL time.Duration
}

// Writer writes snapshot keys and publishes signal updates. Signal
// writes that hit an open breaker are buffered and replayed when the
// breaker closes; quote and indicator snapshots are ephemeral and
// simply dropped.
type Writer struct {
	client *goredis.Client
	cb     *Breaker
	ttl    time.Duration

	mu      sync.Mutex
	pending []*model.Signal
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New connects to Redis and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}

	w := &Writer{
		client: client,
		cb:     NewBreaker(5, 10*time.Second),
		ttl:    ttl,
	}
	w.cb.OnStateChange = func(from, to BreakerState) {
		log.Printf("[redis] breaker %s -> %s", from, to)
		if to == BreakerClosed {
			go w.flushSignals()
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return w, nil
}

// SaveBars writes the latest bar per symbol as a quote hash.
func (w *Writer) SaveBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	latest := make(map[string]*model.Bar, 4)
	for i := range bars {
		b := &bars[i]
		if cur, ok := latest[b.Symbol]; !ok || b.TS.After(cur.TS) {
			latest[b.Symbol] = b
		}
	}

	err := w.cb.Execute(func() error {
		pipe := w.client.Pipeline()
		for _, b := range latest {
			key := "tritrend:quote:" + b.Symbol
			pipe.HSet(ctx, key,
				"price", strconv.FormatFloat(b.Close, 'f', -1, 64),
				"volume", strconv.FormatFloat(b.Volume, 'f', -1, 64),
				"ts", strconv.FormatInt(b.TS.Unix(), 10),
			)
			pipe.Expire(ctx, key, w.ttl)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
	if err == ErrBreakerOpen {
		return nil // ephemeral, drop
	}
	return err
}

// SaveIndicators writes the latest indicator bar per symbol.
func (w *Writer) SaveIndicators(ctx context.Context, series []model.IndicatorBar) error {
	if len(series) == 0 {
		return nil
	}
	latest := make(map[string]*model.IndicatorBar, 4)
	for i := range series {
		b := &series[i]
		if cur, ok := latest[b.Symbol]; !ok || b.TS.After(cur.TS) {
			latest[b.Symbol] = b
		}
	}

	err := w.cb.Execute(func() error {
		pipe := w.client.Pipeline()
		for _, b := range latest {
			data, err := json.Marshal(b)
			if err != nil {
				continue
			}
			pipe.Set(ctx, "tritrend:ind:"+b.Symbol, data, w.ttl)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
	if err == ErrBreakerOpen {
		return nil
	}
	return err
}

// SaveSignal writes the signal's current state and publishes an
// update. Buffered while the breaker is open.
func (w *Writer) SaveSignal(ctx context.Context, sig *model.Signal) error {
	err := w.cb.Execute(func() error {
		data := sig.JSON()
		key := "tritrend:signal:" + sig.Symbol + ":" + sig.Strategy
		pipe := w.client.Pipeline()
		pipe.Set(ctx, key, data, w.ttl)
		pipe.Publish(ctx, signalChannel, data)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err == ErrBreakerOpen {
		w.bufferSignal(sig)
		return nil
	}
	return err
}

func (w *Writer) bufferSignal(sig *model.Signal) {
	cp := *sig
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) >= maxBufferedSignals {
		w.pending = w.pending[1:]
	}
	w.pending = append(w.pending, &cp)
}

// flushSignals replays signals buffered while the breaker was open.
func (w *Writer) flushSignals() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	toFlush := w.pending
	w.pending = nil
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, sig := range toFlush {
		if err := w.SaveSignal(ctx, sig); err != nil {
			log.Printf("[redis] flush signal %s/%s: %v", sig.Symbol, sig.Strategy, err)
		}
	}
	log.Printf("[redis] flushed %d buffered signals", len(toFlush))
}

// PendingCount returns the number of buffered signal writes.
func (w *Writer) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close closes the client.
func (w *Writer) Close() error {
	return w.client.Close()
}
