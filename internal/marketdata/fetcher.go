// Package marketdata fetches historical daily bars from the FinMind
// open data API.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"tritrend/internal/model"
)

// BarSource supplies daily bars for a symbol over a date range.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error)
}

const defaultFinMindURL = "https://api.finmindtrade.com/api/v4/data"

// FinMindConfig configures the fetcher.
type FinMindConfig struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration // default 15s
	RateLimit rate.Limit    // default 2 req/s, the free-tier ceiling
	Logger    *slog.Logger
}

// FinMind fetches TaiwanStockPrice records and converts them to bars.
type FinMind struct {
	cfg     FinMindConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewFinMind builds a fetcher.
func NewFinMind(cfg FinMindConfig) *FinMind {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultFinMindURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &FinMind{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(cfg.RateLimit, 1),
		log:     log,
	}
}

type finMindResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"max"`
		Low    float64 `json:"min"`
		Close  float64 `json:"close"`
		Volume float64 `json:"Trading_Volume"`
	} `json:"data"`
}

// DailyBars returns the symbol's daily bars in ascending time order.
// An empty result is not an error; callers skip the symbol.
func (f *FinMind) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("dataset", "TaiwanStockPrice")
	q.Set("data_id", symbol)
	q.Set("start_date", from.Format("2006-01-02"))
	q.Set("end_date", to.Format("2006-01-02"))
	if f.cfg.Token != "" {
		q.Set("token", f.cfg.Token)
	}

	var resp finMindResponse
	op := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return f.fetch(ctx, f.cfg.BaseURL+"?"+q.Encode(), &resp)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	bars := make([]model.Bar, 0, len(resp.Data))
	for _, row := range resp.Data {
		ts, err := time.ParseInLocation("2006-01-02", row.Date, time.UTC)
		if err != nil {
			f.log.Warn("skipping row with bad date", "symbol", symbol, "date", row.Date)
			continue
		}
		bars = append(bars, model.Bar{
			Symbol: symbol,
			TS:     ts,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
			Period: model.PeriodDaily,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	return bars, nil
}

func (f *FinMind) fetch(ctx context.Context, fullURL string, out *finMindResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode: %w", err))
	}
	if out.Status != 200 && out.Status != 0 {
		return backoff.Permanent(fmt.Errorf("api status %d: %s", out.Status, out.Msg))
	}
	return nil
}
