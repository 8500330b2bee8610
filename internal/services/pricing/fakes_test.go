package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
	"ExecGuard/internal/domain/service"
)

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	quotes     map[models.DataMode]models.Quote
	byID       map[string]map[models.DataMode]models.Quote
	modeHold   time.Duration
	quoteErr   error
	holdings   []models.Holding
	modeErr    error
	mode       models.DataMode
	modeCalls  []models.DataMode
	cancels    int
	quoteCalls int
	panicOn    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true, mode: models.DataModeRealtime, quotes: map[models.DataMode]models.Quote{}}
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func (f *fakeClient) QualifyContract(_ context.Context, id string, inst models.Instrument) (models.Contract, error) {
	return models.Contract{InstrumentID: id, ConID: inst.ConID, Symbol: inst.Symbol}, nil
}

func (f *fakeClient) RequestQuote(_ context.Context, c models.Contract) (models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn {
		panic("gateway exploded")
	}
	f.quoteCalls++
	if f.quoteErr != nil {
		return models.Quote{}, f.quoteErr
	}
	if q, ok := f.byID[c.InstrumentID]; ok {
		return q[f.mode], nil
	}
	return f.quotes[f.mode], nil
}

func (f *fakeClient) CancelQuote(context.Context, models.Contract) error {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
	return nil
}

// SetDataMode flips the global mode; modeHold keeps a non-realtime mode in place a
// little longer so concurrent quote requests can observe it.
func (f *fakeClient) SetDataMode(_ context.Context, mode models.DataMode) error {
	f.mu.Lock()
	f.modeCalls = append(f.modeCalls, mode)
	if f.modeErr != nil && mode != models.DataModeRealtime {
		f.mu.Unlock()
		return f.modeErr
	}
	f.mode = mode
	hold := f.modeHold
	f.mu.Unlock()

	if mode != models.DataModeRealtime && hold > 0 {
		time.Sleep(hold)
	}
	return nil
}

func (f *fakeClient) Portfolio(context.Context) ([]models.Holding, error) {
	return f.holdings, nil
}

type fakeCatalog struct {
	instruments map[string]models.Instrument
	guardrails  map[string]float64
}

func (c *fakeCatalog) Instrument(id string) (models.Instrument, bool) {
	inst, ok := c.instruments[id]
	return inst, ok
}

func (c *fakeCatalog) GuardrailPrice(id, symbol string) (float64, bool) {
	if p, ok := c.guardrails[id]; ok {
		return p, true
	}
	p, ok := c.guardrails[symbol]
	return p, ok
}

type memStore struct {
	mu    sync.Mutex
	doc   *repository.PriceDocument
	saves int
	err   error
}

func (m *memStore) Load(context.Context) (*repository.PriceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.doc == nil {
		return &repository.PriceDocument{Prices: map[string]repository.PriceRecord{}, Version: repository.PriceDocumentVersion}, nil
	}
	return m.doc, nil
}

func (m *memStore) Save(_ context.Context, doc *repository.PriceDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.doc = doc
	return nil
}

type stubSource struct {
	tier   models.PriceTier
	price  float64
	err    error
	calls  int
	panics bool
}

func (s *stubSource) Tier() models.PriceTier { return s.tier }

func (s *stubSource) Resolve(context.Context, service.PriceRequest) (models.PriceResult, error) {
	s.calls++
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return models.PriceResult{}, s.err
	}
	return models.PriceResult{Price: s.price, Source: "stub"}, nil
}

var errUnavailable = errors.New("unavailable")
