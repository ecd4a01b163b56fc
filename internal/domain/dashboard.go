package domain

// ProfitFigures are the display-time profit numbers for one investment.
// Unavailable figures stay unavailable all the way to the JSON output.
type ProfitFigures struct {
	// ProfitAmount is the absolute profit in the investment's own currency.
	ProfitAmount Figure `json:"profit_amount"`
	// ProfitRate is the cumulative rate over the whole holding period, in percent.
	ProfitRate Figure `json:"profit_rate"`
	// YearlyRate is the nominal rate for loans, CAGR otherwise, in percent.
	YearlyRate Figure `json:"yearly_rate"`
	// MonthlyRate is the monthly-equivalent rate, in percent.
	MonthlyRate Figure `json:"monthly_rate"`
	// LastUpdate is the date the figures are current as of.
	LastUpdate string `json:"last_update"`
}

// InvestmentView is an investment together with its computed profit figures,
// as served to the list endpoint.
type InvestmentView struct {
	Investment
	Profit ProfitFigures `json:"profit"`
}

// LiquidityBreakdown groups active-investment value by the is_liquid flag,
// in the local currency.
type LiquidityBreakdown struct {
	LiquidCount   int     `json:"liquid_count"`
	IlliquidCount int     `json:"illiquid_count"`
	LiquidTotal   float64 `json:"liquid_total"`
	IlliquidTotal float64 `json:"illiquid_total"`
}

// TypeTotal is the active-investment value of one investment type, in the
// local currency.
type TypeTotal struct {
	Type  string  `json:"type"`
	Total float64 `json:"total"`
}

// Dashboard is the portfolio-level summary served to the dashboard widgets.
type Dashboard struct {
	TotalValue    float64 `json:"total_value"`
	MonthlyProfit float64 `json:"monthly_profit"`
	YearlyProfit  float64 `json:"yearly_profit"`
	Currency      string  `json:"currency"`
	ExchangeRate  float64 `json:"exchange_rate"`
	// EstimatedRate is set when the live rate was unavailable and the
	// configured fallback was used instead.
	EstimatedRate bool               `json:"estimated_rate"`
	Liquidity     LiquidityBreakdown `json:"liquidity"`
	TypeTotals    []TypeTotal        `json:"type_totals"`
}

// MetricsSummary is a JSON snapshot of the service counters.
type MetricsSummary struct {
	TotalRequests  int64   `json:"total_requests"`
	ErrorRate      float64 `json:"error_rate"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	StoreConflicts int64   `json:"store_conflicts"`
	SnapshotsTaken int64   `json:"snapshots_taken"`
	Period         string  `json:"period"`
}
