package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pquerna/otp/totp"
	"golang.org/x/time/rate"

	"tritrend/internal/model"
)

// Config carries the brokerage credentials and transport knobs.
type Config struct {
	PersonalID string
	Password   string
	CertPath   string
	CertPass   string
	TOTPSecret string // optional second factor

	BaseURL    string        // default: https://api.fubon.com
	Timeout    time.Duration // per-request, default 10s
	RateLimit  rate.Limit    // requests per second, default 5
	MaxRetries uint64        // transient retry budget, default 3

	Logger *slog.Logger
}

func (c Config) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

const defaultBaseURL = "https://api.fubon.com"

var routes = map[string]string{
	"auth.login":    "/v1/auth/login",
	"auth.logout":   "/v1/auth/logout",
	"order.place":   "/v1/orders",
	"quote.last":    "/v1/quotes/last",
	"acct.position": "/v1/accounts/positions",
	"acct.balance":  "/v1/accounts/balance",
}

// Client is the live REST gateway. Safe for concurrent use; the token
// is guarded and every request passes the shared rate limiter.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient builds the client without contacting the API; call Login
// before trading.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 5
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(cfg.RateLimit, int(cfg.RateLimit)),
		log:     cfg.log(),
	}
}

func (c *Client) Simulated() bool { return false }

// Login establishes the session. The one-time code is derived from the
// configured TOTP secret at call time.
func (c *Client) Login(ctx context.Context) error {
	params := map[string]any{
		"personal_id": c.cfg.PersonalID,
		"password":    c.cfg.Password,
		"cert_path":   c.cfg.CertPath,
		"cert_pass":   c.cfg.CertPass,
	}
	if c.cfg.TOTPSecret != "" {
		code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
		if err != nil {
			return fmt.Errorf("generate totp: %w", err)
		}
		params["otp"] = code
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth.login", params, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return fmt.Errorf("login response missing token")
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	c.log.Info("broker session established")
	return nil
}

// Logout terminates the session.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "auth.logout", nil, nil)
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return err
}

// PlaceOrder submits an order. Exchange rejections come back as an
// unsuccessful result with the venue's reason.
func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	params := map[string]any{
		"symbol":     req.Symbol,
		"side":       string(req.Side),
		"quantity":   req.Quantity,
		"price":      req.Price,
		"order_type": string(req.Type),
		"pre_market": req.PreMarket,
	}
	var resp struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "order.place", params, &resp); err != nil {
		return model.OrderResult{}, err
	}
	res := model.OrderResult{
		OrderID:  resp.OrderID,
		Message:  resp.Message,
		PlacedAt: time.Now(),
	}
	if strings.EqualFold(resp.Status, "rejected") || resp.OrderID == "" {
		res.Reason = resp.Message
		return res, nil
	}
	res.Success = true
	return res, nil
}

// RealTimePrice returns the last traded price for symbol.
func (c *Client) RealTimePrice(ctx context.Context, symbol string) (float64, error) {
	var resp struct {
		Price float64 `json:"price"`
	}
	if err := c.do(ctx, http.MethodGet, "quote.last", map[string]any{"symbol": symbol}, &resp); err != nil {
		return 0, err
	}
	if resp.Price <= 0 {
		return 0, fmt.Errorf("no quote for %s", symbol)
	}
	return resp.Price, nil
}

// Positions returns the account's open positions.
func (c *Client) Positions(ctx context.Context) ([]model.Position, error) {
	var resp struct {
		Positions []struct {
			Symbol   string  `json:"symbol"`
			Quantity float64 `json:"quantity"`
			AvgPrice float64 `json:"avg_price"`
			Side     string  `json:"side"`
		} `json:"positions"`
	}
	if err := c.do(ctx, http.MethodGet, "acct.position", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		side := model.SideLong
		if strings.EqualFold(p.Side, "short") {
			side = model.SideShort
		}
		out = append(out, model.Position{
			Symbol:   p.Symbol,
			Quantity: int64(p.Quantity),
			AvgPrice: p.AvgPrice,
			Side:     side,
		})
	}
	return out, nil
}

// AccountBalance returns the available trading capital.
func (c *Client) AccountBalance(ctx context.Context) (float64, error) {
	var resp struct {
		Available float64 `json:"available"`
	}
	if err := c.do(ctx, http.MethodGet, "acct.balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Available, nil
}

// do issues one API call with rate limiting and bounded exponential
// retries on transport and 5xx failures. 4xx responses are not retried.
func (c *Client) do(ctx context.Context, method, route string, params map[string]any, out any) error {
	path, ok := routes[route]
	if !ok {
		return fmt.Errorf("unknown route %q", route)
	}

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return c.once(ctx, method, c.cfg.BaseURL+path, params, out)
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries), ctx)
	return backoff.Retry(op, bo)
}

func (c *Client) once(ctx context.Context, method, fullURL string, params map[string]any, out any) error {
	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, fmt.Sprint(v))
			}
			fullURL += "?" + q.Encode()
		}
	} else {
		b, err := json.Marshal(params)
		if err != nil {
			return backoff.Permanent(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return err // transient, retry
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("server error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("request failed %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
