package domain

import (
	"sort"
	"time"
)

// DateLayout is the calendar-date format used throughout the document.
const DateLayout = "2006-01-02"

// BalanceUpdate is one dated balance snapshot in an investment's history.
type BalanceUpdate struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// Investment is one entry in the portfolio.
type Investment struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	IsActive       bool            `json:"is_active"`
	IsStatic       bool            `json:"is_static"`
	StartDate      string          `json:"start_date"`
	EndDate        *string         `json:"end_date"`
	InitialAmount  float64         `json:"initial_amount"`
	Currency       string          `json:"currency"`
	CurrentAmount  float64         `json:"current_amount"`
	ProfitType     string          `json:"profit_type"`
	Notes          string          `json:"notes"`
	IsLiquid       bool            `json:"is_liquid"`
	InvestmentType string          `json:"investment_type"`
	LiquidityDate  *string         `json:"liquidity_date"`
	Updates        []BalanceUpdate `json:"updates"`
	// ProfitRate is the nominal annual rate; only meaningful for loan types.
	ProfitRate *float64 `json:"profit_rate,omitempty"`
}

// SortUpdates orders the balance history chronologically. The document does
// not guarantee insertion order matches date order.
func (inv *Investment) SortUpdates() {
	sort.SliceStable(inv.Updates, func(i, j int) bool {
		return inv.Updates[i].Date < inv.Updates[j].Date
	})
}

// LastUpdate returns the most recent balance update, or false when the
// history is empty. Assumes SortUpdates has run.
func (inv *Investment) LastUpdate() (BalanceUpdate, bool) {
	if len(inv.Updates) == 0 {
		return BalanceUpdate{}, false
	}
	return inv.Updates[len(inv.Updates)-1], true
}

// LastUpdateDate returns the date of the latest balance update, falling back
// to the start date when there is no history.
func (inv *Investment) LastUpdateDate() string {
	if u, ok := inv.LastUpdate(); ok && u.Date != "" {
		return u.Date
	}
	return inv.StartDate
}

// EffectiveAmount is the latest known balance, falling back to the initial
// amount when no current balance was ever recorded.
func (inv *Investment) EffectiveAmount() float64 {
	if inv.CurrentAmount != 0 {
		return inv.CurrentAmount
	}
	return inv.InitialAmount
}

// ParseDate parses a document calendar date. Zero time on failure; callers
// treat unparseable dates as missing.
func ParseDate(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DaysBetween returns the (possibly fractional) number of days from a to b.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}
