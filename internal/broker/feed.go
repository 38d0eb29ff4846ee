package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tritrend/internal/ringbuf"

	"github.com/gorilla/websocket"
)

// Quote is one streamed tick.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	TS     time.Time `json:"ts"`
}

// QuoteFeed streams real-time quotes over a websocket and reconnects
// with a capped delay when the stream drops. Subscriptions survive
// reconnects. Parsed ticks pass through an SPSC ring buffer so a slow
// OnQuote callback never stalls the socket read loop.
type QuoteFeed struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    *slog.Logger
	ring   *ringbuf.Ring[Quote]

	mu      sync.Mutex
	conn    *websocket.Conn
	symbols map[string]struct{}

	// OnQuote is invoked for every parsed tick. Set before Run.
	OnQuote func(Quote)
}

// NewQuoteFeed builds a feed for the given stream endpoint.
func NewQuoteFeed(url, token string, log *slog.Logger) *QuoteFeed {
	if log == nil {
		log = slog.Default()
	}
	return &QuoteFeed{
		url:     url,
		token:   token,
		dialer:  websocket.DefaultDialer,
		log:     log,
		ring:    ringbuf.New[Quote](4096),
		symbols: make(map[string]struct{}),
	}
}

// Dropped returns the count of ticks discarded because the ring buffer
// was full.
func (f *QuoteFeed) Dropped() uint64 {
	return f.ring.Overflow()
}

// Subscribe registers symbols; if the feed is connected the request is
// sent immediately, otherwise it is replayed on the next connect.
func (f *QuoteFeed) Subscribe(symbols ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		f.symbols[s] = struct{}{}
	}
	if f.conn == nil {
		return nil
	}
	return f.sendSubscribeLocked()
}

func (f *QuoteFeed) sendSubscribeLocked() error {
	list := make([]string, 0, len(f.symbols))
	for s := range f.symbols {
		list = append(list, s)
	}
	return f.conn.WriteJSON(map[string]any{"action": "subscribe", "symbols": list})
}

// Run connects and pumps quotes until ctx is cancelled. Read failures
// trigger a reconnect with a doubling delay capped at 30s.
func (f *QuoteFeed) Run(ctx context.Context) {
	go f.dispatch(ctx)

	delay := time.Second
	for {
		if err := f.connect(ctx); err != nil {
			f.log.Warn("quote feed connect failed", "error", err, "retry_in", delay)
		} else {
			delay = time.Second
			f.readLoop(ctx)
		}
		select {
		case <-ctx.Done():
			f.close()
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (f *QuoteFeed) connect(ctx context.Context) error {
	header := map[string][]string{}
	if f.token != "" {
		header["Authorization"] = []string{"Bearer " + f.token}
	}
	conn, _, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.conn = conn
	err = f.sendSubscribeLocked()
	f.mu.Unlock()
	if err != nil {
		f.close()
		return err
	}
	f.log.Info("quote feed connected", "url", f.url)
	return nil
}

func (f *QuoteFeed) readLoop(ctx context.Context) {
	defer f.close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, raw, err := f.currentConn().ReadMessage()
		if err != nil {
			f.log.Warn("quote feed read failed", "error", err)
			return
		}
		var q Quote
		if err := json.Unmarshal(raw, &q); err != nil {
			f.log.Debug("skipping malformed tick", "error", err)
			continue
		}
		if q.Symbol != "" && !f.ring.Push(q) {
			f.log.Warn("tick dropped, consumer too slow", "symbol", q.Symbol)
		}
	}
}

// dispatch drains the ring and invokes OnQuote until ctx is cancelled.
func (f *QuoteFeed) dispatch(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				q, ok := f.ring.Pop()
				if !ok {
					break
				}
				if f.OnQuote != nil {
					f.OnQuote(q)
				}
			}
		}
	}
}

func (f *QuoteFeed) currentConn() *websocket.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

func (f *QuoteFeed) close() {
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()
}
