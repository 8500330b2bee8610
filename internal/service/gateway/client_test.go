package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu        sync.Mutex
	connected bool
	modes     []string
	frames    []quoteFrame
	actions   []string
}

func (g *fakeGateway) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]bool{"connected": g.connected})
	})
	mux.HandleFunc("/contracts/qualify", func(w http.ResponseWriter, r *http.Request) {
		var req qualifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Symbol == "UNKNOWN" {
			_ = json.NewEncoder(w).Encode(qualifyResponse{})
			return
		}
		_ = json.NewEncoder(w).Encode(qualifyResponse{ConID: 4242, Symbol: req.Symbol, Exchange: "CME"})
	})
	mux.HandleFunc("/market-data/mode", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		g.mu.Lock()
		g.modes = append(g.modes, body["mode"])
		g.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/portfolio", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.Holding{{Symbol: "ZN", ConID: 4242, Position: 3, MarkPrice: 110.5}})
	})
	mux.HandleFunc("/ws/quotes", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub subscription
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		g.mu.Lock()
		g.actions = append(g.actions, sub.Action+":"+r.URL.Query().Get("con_id"))
		frames := append([]quoteFrame(nil), g.frames...)
		g.mu.Unlock()
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// wait for unsubscribe or close
		for {
			if err := conn.ReadJSON(&sub); err != nil {
				return
			}
			g.mu.Lock()
			g.actions = append(g.actions, sub.Action)
			g.mu.Unlock()
		}
	})
	return mux
}

func newTestClient(t *testing.T, g *fakeGateway) *Client {
	t.Helper()
	srv := httptest.NewServer(g.handler(t))
	t.Cleanup(srv.Close)
	cfg := config.GatewayConfig{
		BaseURL:      srv.URL,
		WebSocketURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/quotes",
		Timeout:      2 * time.Second,
		QuoteBurst:   10,
		QuotesPerSec: 10,
	}
	return New(cfg, nil)
}

func TestPingTracksConnection(t *testing.T) {
	g := &fakeGateway{connected: true}
	c := newTestClient(t, g)
	assert.False(t, c.IsConnected())

	require.NoError(t, c.Ping(context.Background()))
	assert.True(t, c.IsConnected())

	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	assert.Error(t, c.Ping(context.Background()))
	assert.False(t, c.IsConnected())
}

func TestQualifyContract(t *testing.T) {
	c := newTestClient(t, &fakeGateway{})

	ct, err := c.QualifyContract(context.Background(), "ZN", models.Instrument{Symbol: "ZN", Currency: "USD", SecType: "FUT"})
	require.NoError(t, err)
	assert.Equal(t, int64(4242), ct.ConID)
	assert.Equal(t, "CME", ct.Exchange)
	assert.Equal(t, "USD", ct.Currency)
	assert.Equal(t, "ZN", ct.InstrumentID)

	_, err = c.QualifyContract(context.Background(), "X", models.Instrument{Symbol: "UNKNOWN"})
	assert.ErrorIs(t, err, ErrNotQualified)
}

func TestRequestQuoteMergesFrames(t *testing.T) {
	g := &fakeGateway{frames: []quoteFrame{
		{ConID: 4242, Last: 110.5},
		{ConID: 4242, Bid: 110.4},
		{ConID: 4242, Ask: 110.6},
	}}
	c := newTestClient(t, g)
	ct := models.Contract{ConID: 4242}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q, err := c.RequestQuote(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, models.Quote{Last: 110.5, Bid: 110.4, Ask: 110.6}, q)

	require.NoError(t, c.CancelQuote(context.Background(), ct))
	assert.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.actions) == 2 && g.actions[1] == "unsubscribe"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "subscribe:4242", g.actions[0])
}

func TestRequestQuotePartialOnTimeout(t *testing.T) {
	g := &fakeGateway{frames: []quoteFrame{{ConID: 7, Close: 99.25}}}
	c := newTestClient(t, g)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	q, err := c.RequestQuote(ctx, models.Contract{ConID: 7})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 99.25, q.BestPrice())
	assert.NoError(t, c.CancelQuote(context.Background(), models.Contract{ConID: 7}))
}

func TestCancelQuoteWithoutSubscription(t *testing.T) {
	c := newTestClient(t, &fakeGateway{})
	assert.NoError(t, c.CancelQuote(context.Background(), models.Contract{ConID: 1}))
}

func TestSetDataModeAndPortfolio(t *testing.T) {
	g := &fakeGateway{}
	c := newTestClient(t, g)

	require.NoError(t, c.SetDataMode(context.Background(), models.DataModeDelayed))
	require.NoError(t, c.SetDataMode(context.Background(), models.DataModeRealtime))
	assert.Equal(t, []string{"delayed", "realtime"}, g.modes)

	holdings, err := c.Portfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, 110.5, holdings[0].MarkPrice)
}

func TestPortfolioStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(config.GatewayConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)

	_, err := c.Portfolio(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
