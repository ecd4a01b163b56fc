package domain

// CreateInvestmentInput is the payload for creating an investment.
type CreateInvestmentInput struct {
	Name           string   `json:"name"`
	InvestmentType string   `json:"investment_type"`
	Currency       string   `json:"currency"`
	InitialAmount  float64  `json:"initial_amount"`
	StartDate      string   `json:"start_date"`
	ProfitType     string   `json:"profit_type"`
	IsActive       bool     `json:"is_active"`
	IsLiquid       bool     `json:"is_liquid"`
	IsStatic       bool     `json:"is_static"`
	LiquidityDate  *string  `json:"liquidity_date"`
	ProfitRate     *float64 `json:"profit_rate"`
	Notes          string   `json:"notes"`
}

// UpdateInvestmentInput is the payload for editing an investment. The initial
// amount and start date are immutable and deliberately absent.
type UpdateInvestmentInput struct {
	Name          string   `json:"name"`
	CurrentAmount float64  `json:"current_amount"`
	IsActive      bool     `json:"is_active"`
	IsLiquid      bool     `json:"is_liquid"`
	IsStatic      bool     `json:"is_static"`
	LiquidityDate *string  `json:"liquidity_date"`
	ProfitRate    *float64 `json:"profit_rate"`
	Notes         string   `json:"notes"`
}

// TypeInput is the payload for catalog create/update.
type TypeInput struct {
	Name              string `json:"name"`
	ExcludePeriodical bool   `json:"exclude_periodical_profit"`
}
