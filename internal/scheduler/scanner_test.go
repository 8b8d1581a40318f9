package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictor/config"
	"github.com/alejandrodnm/predictor/internal/domain"
	"github.com/alejandrodnm/predictor/internal/engine"
	"github.com/alejandrodnm/predictor/internal/learning"
	"github.com/alejandrodnm/predictor/internal/pipeline"
)

var scanNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// scanStore implementa ports.Storage en memoria para los tests del scanner.
type scanStore struct {
	records       []domain.TradeRecord
	resolved      []domain.TradeRecord
	executedToday int
	apiSpend      float64
	costs         map[string]float64
	parseFails    []string
	modes         []string
	portfolio     domain.Portfolio
	hasPortfolio  bool
	snap          *domain.LearningSnapshot
}

func newScanStore() *scanStore {
	return &scanStore{costs: make(map[string]float64)}
}

func (f *scanStore) ApplySchema(context.Context) error                          { return nil }
func (f *scanStore) StartExperiment(context.Context, domain.ExperimentRun) error { return nil }
func (f *scanStore) EndExperiment(context.Context, string, time.Time) error      { return nil }
func (f *scanStore) ActiveExperiment(context.Context) (domain.ExperimentRun, bool, error) {
	return domain.ExperimentRun{RunID: "run_1", ModelUsed: "model-a", IncludeInLearning: true}, true, nil
}
func (f *scanStore) SaveModelSwap(context.Context, domain.ModelSwapEvent) error { return nil }
func (f *scanStore) SaveTradeRecord(_ context.Context, rec domain.TradeRecord) error {
	f.records = append(f.records, rec)
	return nil
}
func (f *scanStore) GetTradeRecord(context.Context, string) (domain.TradeRecord, bool, error) {
	return domain.TradeRecord{}, false, nil
}
func (f *scanStore) UnresolvedExecuted(context.Context) ([]domain.TradeRecord, error) {
	return nil, nil
}
func (f *scanStore) UnresolvedObserved(context.Context) ([]domain.TradeRecord, error) {
	return nil, nil
}
func (f *scanStore) ResolvedBetween(context.Context, time.Time, time.Time) ([]domain.TradeRecord, error) {
	return f.resolved, nil
}
func (f *scanStore) CountExecutedForDate(context.Context, int, string) (int, error) {
	return f.executedToday, nil
}
func (f *scanStore) UpdateAdverseMove(context.Context, string, float64) error { return nil }
func (f *scanStore) MarkVoided(context.Context, string, string) error         { return nil }
func (f *scanStore) ApplyResolutionFeedback(context.Context, domain.TradeRecord, *domain.LearningSnapshot) error {
	return nil
}
func (f *scanStore) ResolvedForRebuild(context.Context) ([]domain.TradeRecord, error) {
	return nil, nil
}
func (f *scanStore) LoadLearningSnapshot(context.Context) (*domain.LearningSnapshot, error) {
	if f.snap == nil {
		return domain.NewLearningSnapshot(), nil
	}
	return f.snap, nil
}
func (f *scanStore) SaveLearningSnapshot(context.Context, *domain.LearningSnapshot) error { return nil }
func (f *scanStore) SavePortfolio(_ context.Context, p domain.Portfolio) error {
	f.portfolio = p
	f.hasPortfolio = true
	return nil
}
func (f *scanStore) LoadPortfolio(context.Context) (domain.Portfolio, bool, error) {
	return f.portfolio, f.hasPortfolio, nil
}
func (f *scanStore) AddAPICost(_ context.Context, _, service string, amount float64) error {
	f.costs[service] += amount
	return nil
}
func (f *scanStore) APICostForDate(context.Context, string) (float64, error) {
	return f.apiSpend, nil
}
func (f *scanStore) SaveParseFailure(_ context.Context, marketID, _ string, _ time.Time) error {
	f.parseFails = append(f.parseFails, marketID)
	return nil
}
func (f *scanStore) LogDailyMode(_ context.Context, _, mode, _ string) error {
	f.modes = append(f.modes, mode)
	return nil
}
func (f *scanStore) StatsForDate(context.Context, string) (domain.DailyStats, error) {
	return domain.DailyStats{}, nil
}

type scanMarkets struct{ markets []domain.Market }

func (m *scanMarkets) FetchActiveMarkets(context.Context) ([]domain.Market, error) {
	return m.markets, nil
}
func (m *scanMarkets) FetchMarket(context.Context, string) (domain.Market, error) {
	return domain.Market{}, nil
}

type scanBooks struct{}

func (scanBooks) FetchOrderBook(context.Context, string) (domain.OrderBook, error) {
	return domain.OrderBook{Bids: []float64{2000, 1000}, Asks: []float64{1500, 500}}, nil
}

type scanNews struct{ signals []domain.Signal }

func (n *scanNews) FetchHeadlines(context.Context, []string) ([]domain.Signal, error) {
	return n.signals, nil
}

type scanSocial struct{ signals []domain.Signal }

func (s *scanSocial) Search(context.Context, []string) ([]domain.Signal, error) {
	return s.signals, nil
}

type scanCompleter struct {
	calls    int
	estimate domain.Estimate
	err      error
}

func (c *scanCompleter) EstimateMarket(context.Context, string) (domain.Estimate, error) {
	c.calls++
	if c.err != nil {
		return domain.Estimate{}, c.err
	}
	return c.estimate, nil
}
func (c *scanCompleter) ExtractKeywords(context.Context, string) ([]string, error) {
	return []string{"bitcoin"}, nil
}
func (c *scanCompleter) Model() string { return "model-a" }

type scanExecutor struct {
	requests []domain.OrderRequest
	filled   bool
}

func (e *scanExecutor) Execute(_ context.Context, req domain.OrderRequest) (domain.OrderFill, error) {
	e.requests = append(e.requests, req)
	if !e.filled {
		return domain.OrderFill{}, nil
	}
	return domain.OrderFill{
		Filled:     true,
		FillPrice:  req.Price + 0.005,
		SizeUSD:    req.SizeUSD,
		ExecutedAt: scanNow,
	}, nil
}

type scanNotifier struct {
	tiers      []string
	candidates [][]domain.TradeCandidate
}

func (n *scanNotifier) ScanSummary(tier string, cands []domain.TradeCandidate) {
	n.tiers = append(n.tiers, tier)
	n.candidates = append(n.candidates, cands)
}
func (n *scanNotifier) DailySummary(domain.DailyStats) {}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "paper",
		Bankroll:    2000,
		Tier1: config.TierConfig{
			MinEdge: 0.04, DailyCap: 5, FeeRate: 0.02,
			MinHoursToRes: 0.25, MaxHoursToRes: 168, MinLiquidity: 5000,
		},
		Tier2: config.TierConfig{MinEdge: 0.05, DailyCap: 3, FeeRate: 0.04},
		Risk: config.RiskConfig{
			DailyLossLimitPct: 0.05, WeeklyLossLimitPct: 0.10,
			ConsecutiveAdverse: 3, CooldownHours: 2,
			DailyAPIBudgetUSD: 8, MaxPositionPct: 0.08,
			MaxTotalExposurePct: 0.30, MaxClusterExposurePct: 0.12,
			KellyFraction: 0.25,
		},
	}
}

func testMarket() domain.Market {
	return domain.Market{
		MarketID:          "mkt-1",
		Question:          "Will Bitcoin close above $100k on Friday?",
		YesPrice:          0.60,
		NoPrice:           0.40,
		ResolutionTime:    scanNow.Add(48 * time.Hour),
		HoursToResolution: 48,
		Volume24h:         20000,
		Liquidity:         10000,
		MarketType:        domain.TypeCrypto15m,
		YesTokenID:        "tok-yes",
		NoTokenID:         "tok-no",
	}
}

type scannerFixture struct {
	scanner   *Scanner
	store     *scanStore
	completer *scanCompleter
	executor  *scanExecutor
	notifier  *scanNotifier
}

func newFixture(t *testing.T, store *scanStore, markets []domain.Market) *scannerFixture {
	t.Helper()
	log := slog.Default()

	state := learning.NewState(store, log)
	require.NoError(t, state.Load(context.Background()))

	completer := &scanCompleter{estimate: domain.Estimate{
		Probability: 0.70,
		Confidence:  0.75,
		Reasoning:   "directional",
		Tags:        []domain.SignalTag{{SourceTier: domain.TierS1, InfoType: domain.InfoI2}},
		CostUSD:     0.01,
	}}
	executor := &scanExecutor{filled: true}
	notifier := &scanNotifier{}

	sc := NewScanner(ScannerDeps{
		Cfg:       testConfig(),
		Store:     store,
		Markets:   &scanMarkets{markets: markets},
		Books:     scanBooks{},
		News:      &scanNews{},
		Social: &scanSocial{signals: []domain.Signal{{
			SourceKind:  domain.SourceSocial,
			SourceTier:  domain.TierS2,
			Content:     "ETF inflows accelerating into bitcoin",
			Credibility: 0.90,
			Timestamp:   scanNow.Add(-10 * time.Minute),
		}}},
		Completer: completer,
		Executor:  executor,
		Notifier:  notifier,
		Learning:  state,
		Keywords:  pipeline.NewKeywordExtractor(completer, log),
		Tier1:     func(ms []domain.Market) []domain.Market { return ms },
		Tier2:     func(ms []domain.Market) []domain.Market { return ms },
		Log:       log,
	})
	sc.now = func() time.Time { return scanNow }
	return &scannerFixture{scanner: sc, store: store, completer: completer, executor: executor, notifier: notifier}
}

func TestScan_ExecutesTopCandidate(t *testing.T) {
	fix := newFixture(t, newScanStore(), []domain.Market{testMarket()})

	cands, err := fix.scanner.Scan(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, domain.SideBuyYes, c.Side)
	assert.InDelta(t, 0.08, c.CalculatedEdge, 1e-9)
	assert.InDelta(t, 125.0, c.PositionSize, 1e-9)

	// Orden maker en tier-1 sobre el token YES.
	require.Len(t, fix.executor.requests, 1)
	assert.Equal(t, "tok-yes", fix.executor.requests[0].TokenID)
	assert.True(t, fix.executor.requests[0].Maker)

	// Registro persistido y posición abierta.
	require.Len(t, fix.store.records, 1)
	assert.Equal(t, "run_1", fix.store.records[0].ExperimentRun)
	assert.Equal(t, domain.SideBuyYes, fix.store.records[0].Action)
	require.Len(t, fix.store.portfolio.OpenPositions, 1)
	assert.InDelta(t, 2000-125, fix.store.portfolio.Cash, 1e-9)

	// Costes de API registrados: LM + búsqueda social.
	assert.InDelta(t, 0.01, fix.store.costs["llm"], 1e-9)
	assert.InDelta(t, socialSearchCostUSD, fix.store.costs["social"], 1e-9)

	assert.Equal(t, []string{"tier1"}, fix.notifier.tiers)
}

func TestScan_ObserveOnlyStillRecordsDecision(t *testing.T) {
	store := newScanStore()
	store.executedToday = 5 // cap tier-1 alcanzado
	fix := newFixture(t, store, []domain.Market{testMarket()})

	cands, err := fix.scanner.Scan(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	// Las señales se recolectan pero no hay llamada al LM ni ejecución.
	assert.Zero(t, fix.completer.calls)
	assert.Zero(t, store.costs["llm"])
	assert.Empty(t, fix.executor.requests)
	require.Len(t, store.records, 1)
	assert.Equal(t, domain.SideSkip, store.records[0].Action)
	assert.Equal(t, domain.SkipObserveOnly, store.records[0].SkipReason)
	assert.NotEmpty(t, cands[0].Signals)
	assert.Contains(t, store.modes, "observe_only")
}

func TestScan_APIBudgetBlocksAllCalls(t *testing.T) {
	store := newScanStore()
	store.apiSpend = 8.0
	fix := newFixture(t, store, []domain.Market{testMarket()})

	cands, err := fix.scanner.Scan(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, cands)
	assert.Zero(t, fix.completer.calls)
	assert.Empty(t, store.records)
	assert.Contains(t, store.modes, "observe_only")
}

func TestScan_DailyLossLimitGatesExecutionButKeepsRecords(t *testing.T) {
	store := newScanStore()
	resolvedAt := scanNow.Add(-time.Hour)
	store.resolved = []domain.TradeRecord{{
		RecordID: "loss", Action: domain.SideBuyYes, PnL: -150, ResolvedAt: &resolvedAt,
	}}
	fix := newFixture(t, store, []domain.Market{testMarket()})

	cands, err := fix.scanner.Scan(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	// El pipeline corre entero pero el gate degrada la selección a SKIP
	// con la razón del bloqueo; nada llega al executor.
	assert.Equal(t, 1, fix.completer.calls)
	assert.Empty(t, fix.executor.requests)
	require.Len(t, store.records, 1)
	assert.Equal(t, domain.SideSkip, store.records[0].Action)
	assert.Equal(t, engine.GateDailyLoss, store.records[0].SkipReason)
	assert.Contains(t, store.modes, "halted")
}

func TestScan_ExposureGateCountsSizeCommittedInCycle(t *testing.T) {
	store := newScanStore()
	store.hasPortfolio = true
	store.portfolio = domain.Portfolio{
		Cash:        1600,
		TotalEquity: 2000,
		OpenPositions: []domain.Position{
			{MarketID: "other", SizeUSD: 400, CurrentValue: 400},
		},
	}

	// Dos mercados fuera de ventana de cluster; ambos pasan el ranking.
	a := testMarket()
	b := testMarket()
	b.MarketID = "mkt-2"
	b.ResolutionTime = scanNow.Add(50 * time.Hour)
	b.HoursToResolution = 50
	b.YesTokenID = "tok-yes-2"
	b.NoTokenID = "tok-no-2"
	fix := newFixture(t, store, []domain.Market{a, b})

	cands, err := fix.scanner.Scan(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	// Límite 30% de 2000 = 600: 400 + 125 cabe, 400 + 125 + 125 no.
	require.Len(t, fix.executor.requests, 1)
	assert.Equal(t, "tok-yes", fix.executor.requests[0].TokenID)

	bySide := map[domain.Side]int{}
	for _, rec := range store.records {
		bySide[rec.Action]++
		if rec.Action == domain.SideSkip {
			assert.Equal(t, engine.GateMaxExposure, rec.SkipReason)
		}
	}
	assert.Equal(t, 1, bySide[domain.SideBuyYes])
	assert.Equal(t, 1, bySide[domain.SideSkip])
}

func TestScan_ParseFailureBecomesAuditableSkip(t *testing.T) {
	store := newScanStore()
	fix := newFixture(t, store, []domain.Market{testMarket()})
	fix.completer.err = &domain.ParseError{Raw: "not json", Attempts: 3}

	cands, err := fix.scanner.Scan(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	assert.Equal(t, domain.SideSkip, cands[0].Side)
	assert.Equal(t, domain.SkipLLMParseFailed, cands[0].SkipReason)
	assert.Equal(t, []string{"mkt-1"}, store.parseFails)
	require.Len(t, store.records, 1)
}

func TestScan_DisabledMarketTypeSkipsWithoutLLM(t *testing.T) {
	store := newScanStore()
	snap := domain.NewLearningSnapshot()
	perf := snap.PerfFor(domain.TypeCrypto15m)
	perf.TotalTrades = 30
	perf.TotalPnL = -10 // < -0.15 * 30
	store.snap = snap
	fix := newFixture(t, store, []domain.Market{testMarket()})

	cands, err := fix.scanner.Scan(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	assert.Equal(t, domain.SkipMarketTypeDisabled, cands[0].SkipReason)
	assert.Zero(t, fix.completer.calls)
}

func TestScan_UnfilledMakerOrderLeavesNoRecord(t *testing.T) {
	store := newScanStore()
	fix := newFixture(t, store, []domain.Market{testMarket()})
	fix.executor.filled = false

	cands, err := fix.scanner.Scan(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	assert.Equal(t, domain.SideSkip, cands[0].Side)
	assert.Equal(t, domain.SkipOrderNotFilled, cands[0].SkipReason)
	assert.Empty(t, store.records)
	assert.False(t, store.hasPortfolio)
}

func TestQualifiesBurst_NeedsTwoSignalsOneStrong(t *testing.T) {
	strong := domain.Signal{SourceKind: domain.SourceSocial, SourceTier: domain.TierS1, Content: "bitcoin halving confirmed"}
	weak := domain.Signal{SourceKind: domain.SourceSocial, SourceTier: domain.TierS6, Content: "eth looking bullish"}
	market := domain.Signal{SourceKind: domain.SourceMarketData, SourceTier: domain.TierS5, Content: "bitcoin book skew"}

	cand := func(sigs ...domain.Signal) domain.TradeCandidate {
		return domain.TradeCandidate{
			Market:  domain.Market{MarketType: domain.TypeCrypto15m},
			Signals: sigs,
		}
	}

	assert.True(t, QualifiesBurst([]domain.TradeCandidate{cand(strong, weak)}))
	// Una sola señal no basta.
	assert.False(t, QualifiesBurst([]domain.TradeCandidate{cand(strong)}))
	// Dos débiles tampoco.
	assert.False(t, QualifiesBurst([]domain.TradeCandidate{cand(weak, weak)}))
	// Las señales de market data no cuentan.
	assert.False(t, QualifiesBurst([]domain.TradeCandidate{cand(strong, market)}))
	// Una cuenta grande cuenta como fuente fuerte.
	big := weak
	big.Followers = 150000
	assert.True(t, QualifiesBurst([]domain.TradeCandidate{cand(big, weak)}))
}
