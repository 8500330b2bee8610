package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ExecGuard/internal/domain/models"
	drepo "ExecGuard/internal/domain/repository"
	"ExecGuard/internal/service/ratelimit"
	"ExecGuard/pkg/config"
	xhttp "ExecGuard/pkg/http"
	"ExecGuard/pkg/logger"

	"github.com/gorilla/websocket"
)

// ErrNotQualified is returned when the gateway cannot resolve a contract id.
var ErrNotQualified = errors.New("contract not qualified")

const quoteBucket = "quotes"

// Client talks to the broker gateway: REST for contracts, portfolio and feed mode, WebSocket for quotes.
type Client struct {
	http    *xhttp.Client
	wsURL   string
	dialer  *websocket.Dialer
	limiter *ratelimit.Limiter
	burst   float64
	rate    float64
	log     *logger.Logger

	connected atomic.Bool

	mu   sync.Mutex
	subs map[int64]*websocket.Conn
}

var _ drepo.MarketDataClient = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithLimiter shares a limiter between clients.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a gateway client. It starts disconnected until Ping succeeds.
func New(cfg config.GatewayConfig, log *logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Client{
		http:    xhttp.NewClient(xhttp.WithBaseURL(cfg.BaseURL), xhttp.WithTimeout(cfg.Timeout)),
		wsURL:   cfg.WebSocketURL,
		dialer:  websocket.DefaultDialer,
		limiter: ratelimit.New(),
		burst:   cfg.QuoteBurst,
		rate:    cfg.QuotesPerSec,
		log:     log,
		subs:    make(map[int64]*websocket.Conn),
	}
	if c.burst <= 0 {
		c.burst = 50
	}
	if c.rate <= 0 {
		c.rate = 40
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConnected reports the result of the last health probe.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// Ping probes the gateway and updates the connected flag.
func (c *Client) Ping(ctx context.Context) error {
	var body struct {
		Connected bool `json:"connected"`
	}
	err := c.http.Get(ctx, "/health", &body)
	if err == nil && !body.Connected {
		err = errors.New("gateway not connected to broker")
	}
	was := c.connected.Swap(err == nil)
	if was != (err == nil) {
		if err != nil {
			c.log.Warn("gateway disconnected", logger.Error(err))
		} else {
			c.log.Info("gateway connected")
		}
	}
	return err
}

// RunHealthLoop probes every interval until ctx is done.
func (c *Client) RunHealthLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	_ = c.Ping(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Ping(ctx)
		}
	}
}

type qualifyRequest struct {
	InstrumentID string `json:"instrument_id"`
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange,omitempty"`
	Currency     string `json:"currency,omitempty"`
	SecType      string `json:"sec_type,omitempty"`
	ConID        int64  `json:"con_id,omitempty"`
}

type qualifyResponse struct {
	ConID    int64  `json:"con_id"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	SecType  string `json:"sec_type"`
}

// QualifyContract resolves the broker contract for an instrument.
func (c *Client) QualifyContract(ctx context.Context, instrumentID string, inst models.Instrument) (models.Contract, error) {
	req := qualifyRequest{
		InstrumentID: instrumentID,
		Symbol:       inst.Symbol,
		Exchange:     inst.Exchange,
		Currency:     inst.Currency,
		SecType:      inst.SecType,
		ConID:        inst.ConID,
	}
	var resp qualifyResponse
	if err := c.http.Post(ctx, "/contracts/qualify", req, &resp); err != nil {
		return models.Contract{}, fmt.Errorf("qualify %s: %w", instrumentID, err)
	}
	if resp.ConID == 0 {
		return models.Contract{}, fmt.Errorf("qualify %s: %w", instrumentID, ErrNotQualified)
	}
	return models.Contract{
		InstrumentID: instrumentID,
		ConID:        resp.ConID,
		Symbol:       firstNonEmpty(resp.Symbol, inst.Symbol),
		Exchange:     firstNonEmpty(resp.Exchange, inst.Exchange),
		Currency:     firstNonEmpty(resp.Currency, inst.Currency),
		SecType:      firstNonEmpty(resp.SecType, inst.SecType),
	}, nil
}

type subscription struct {
	Action string `json:"action"`
	ConID  int64  `json:"con_id"`
}

type quoteFrame struct {
	ConID int64   `json:"con_id"`
	Last  float64 `json:"last"`
	Bid   float64 `json:"bid"`
	Ask   float64 `json:"ask"`
	Close float64 `json:"close"`
	Error string  `json:"error,omitempty"`
}

// RequestQuote subscribes and merges frames until a trade price and both sides are known.
// When ctx ends first the partial quote is returned together with ctx.Err().
func (c *Client) RequestQuote(ctx context.Context, contract models.Contract) (models.Quote, error) {
	if err := c.limiter.Wait(ctx, quoteBucket, c.burst, c.rate); err != nil {
		return models.Quote{}, fmt.Errorf("quote pacing: %w", err)
	}

	u, err := url.Parse(c.wsURL)
	if err != nil {
		return models.Quote{}, fmt.Errorf("websocket url: %w", err)
	}
	q := u.Query()
	q.Set("con_id", strconv.FormatInt(contract.ConID, 10))
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("quote connect: %w", err)
	}
	c.track(contract.ConID, conn)

	if err := conn.WriteJSON(subscription{Action: "subscribe", ConID: contract.ConID}); err != nil {
		return models.Quote{}, fmt.Errorf("subscribe %d: %w", contract.ConID, err)
	}

	// unblock ReadJSON when the wait budget runs out
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	var quote models.Quote
	for {
		var f quoteFrame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return quote, ctx.Err()
			}
			return quote, fmt.Errorf("quote read: %w", err)
		}
		if f.Error != "" {
			return quote, fmt.Errorf("quote %d: %s", contract.ConID, f.Error)
		}
		merge(&quote, f)
		if complete(quote) {
			return quote, nil
		}
	}
}

// CancelQuote unsubscribes and closes the quote stream for the contract.
func (c *Client) CancelQuote(_ context.Context, contract models.Contract) error {
	c.mu.Lock()
	conn, ok := c.subs[contract.ConID]
	delete(c.subs, contract.ConID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	werr := conn.WriteJSON(subscription{Action: "unsubscribe", ConID: contract.ConID})
	if err := conn.Close(); err != nil {
		return err
	}
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		c.log.Debug("unsubscribe failed", logger.Int64("con_id", contract.ConID), logger.Error(werr))
	}
	return nil
}

// SetDataMode switches the broker feed type.
func (c *Client) SetDataMode(ctx context.Context, mode models.DataMode) error {
	if err := c.http.Post(ctx, "/market-data/mode", map[string]string{"mode": string(mode)}, nil); err != nil {
		return fmt.Errorf("set data mode %s: %w", mode, err)
	}
	return nil
}

// Portfolio returns the account holdings with their mark prices.
func (c *Client) Portfolio(ctx context.Context) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := c.http.Get(ctx, "/portfolio", &holdings); err != nil {
		return nil, fmt.Errorf("portfolio: %w", err)
	}
	return holdings, nil
}

// Close drops every open quote stream.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, conn := range c.subs {
		_ = conn.Close()
		delete(c.subs, id)
	}
	c.connected.Store(false)
	return nil
}

func (c *Client) track(conID int64, conn *websocket.Conn) {
	c.mu.Lock()
	prev, ok := c.subs[conID]
	c.subs[conID] = conn
	c.mu.Unlock()
	if ok {
		_ = prev.Close()
	}
}

func merge(q *models.Quote, f quoteFrame) {
	if f.Last > 0 {
		q.Last = f.Last
	}
	if f.Bid > 0 {
		q.Bid = f.Bid
	}
	if f.Ask > 0 {
		q.Ask = f.Ask
	}
	if f.Close > 0 {
		q.Close = f.Close
	}
}

func complete(q models.Quote) bool {
	return q.BestPrice() > 0 && q.Bid > 0 && q.Ask > 0
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
