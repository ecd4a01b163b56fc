package service

import (
	"math"
	"sort"
	"time"

	"github.com/shaylevin89/follow-the-money/internal/domain"
)

// Reporting window lengths in days.
const (
	WindowMonthly = 30.0
	WindowYearly  = 365.0
)

const (
	daysPerYear  = 365.25
	daysPerMonth = 30.44
)

// ComputeProfit derives the display-time profit figures for one investment.
// Loan-type investments accrue their fixed nominal rate proportionally to
// elapsed time; market-valued investments compare balances and report CAGR.
// Figures that cannot be computed come back unavailable, never zero or NaN.
func ComputeProfit(inv *domain.Investment, isLoan bool, now time.Time) domain.ProfitFigures {
	if isLoan {
		return loanProfit(inv, now)
	}
	return marketProfit(inv)
}

func loanProfit(inv *domain.Investment, now time.Time) domain.ProfitFigures {
	figures := domain.ProfitFigures{LastUpdate: now.Format(domain.DateLayout)}

	// A loan without a stated rate has no computable profit.
	if inv.ProfitRate == nil || math.IsNaN(*inv.ProfitRate) {
		figures.ProfitAmount = domain.Unavailable()
		figures.ProfitRate = domain.Unavailable()
		figures.YearlyRate = domain.Unavailable()
		figures.MonthlyRate = domain.Unavailable()
		return figures
	}
	rate := *inv.ProfitRate

	start := domain.ParseDate(inv.StartDate)
	years := math.Max(domain.DaysBetween(start, now)/daysPerYear, 0)

	figures.ProfitAmount = domain.FigureOf(inv.InitialAmount * (rate / 100) * years)
	figures.ProfitRate = domain.FigureOf(rate * years)
	figures.YearlyRate = domain.FigureOf(rate)
	figures.MonthlyRate = domain.FigureOf(rate / 12)
	return figures
}

func marketProfit(inv *domain.Investment) domain.ProfitFigures {
	current := inv.CurrentAmount
	if u, ok := inv.LastUpdate(); ok {
		current = u.Amount
	}

	figures := domain.ProfitFigures{LastUpdate: inv.LastUpdateDate()}
	profit := current - inv.InitialAmount
	figures.ProfitAmount = domain.FigureOf(profit)

	if inv.InitialAmount == 0 {
		// No basis: total rate reads 0, annualized rates are undefined.
		figures.ProfitRate = domain.FigureOf(0)
		figures.YearlyRate = domain.Unavailable()
		figures.MonthlyRate = domain.Unavailable()
		return figures
	}
	figures.ProfitRate = domain.FigureOf(profit / inv.InitialAmount * 100)

	start := domain.ParseDate(inv.StartDate)
	last := domain.ParseDate(inv.LastUpdateDate())
	days := math.Max(domain.DaysBetween(start, last), 0)

	figures.YearlyRate = compoundedRate(current, inv.InitialAmount, days/daysPerYear)
	figures.MonthlyRate = compoundedRate(current, inv.InitialAmount, days/daysPerMonth)
	return figures
}

// compoundedRate is the constant per-period growth rate, in percent, that
// takes initial to current over the elapsed number of periods. Zero elapsed
// time reads as 0% rather than unavailable: the investment exists but has
// no history to annualize yet.
func compoundedRate(current, initial, periods float64) domain.Figure {
	if periods <= 0 {
		return domain.FigureOf(0)
	}
	if current <= 0 {
		// A balance at or below zero has no real compounded-growth solution.
		return domain.Unavailable()
	}
	return domain.FigureOf((math.Pow(current/initial, 1/periods) - 1) * 100)
}

// PeriodicalProfit estimates portfolio profit over a reporting window
// (WindowMonthly or WindowYearly days), in the local currency. Loans accrue
// their nominal rate over the window; market investments extrapolate the most
// recent balance delta. Returns the total plus the names of investments that
// were skipped for lack of usable history.
func PeriodicalProfit(doc *domain.Document, windowDays, fxRate float64, localCurrency string, now time.Time) (float64, []string) {
	var total float64
	var skipped []string

	for i := range doc.Investments {
		inv := &doc.Investments[i]
		if !inv.IsActive {
			continue
		}
		if inv.IsStatic && doc.TypeEntry(inv.InvestmentType).ExcludePeriodical {
			continue
		}

		var contribution float64
		if doc.IsLoan(inv) {
			c, ok := loanWindowAccrual(inv, windowDays, now)
			if !ok {
				skipped = append(skipped, inv.Name)
				continue
			}
			contribution = c
		} else {
			c, ok := marketWindowDelta(inv, windowDays)
			if !ok {
				skipped = append(skipped, inv.Name)
				continue
			}
			contribution = c
		}

		total += toLocal(contribution, inv.Currency, localCurrency, fxRate)
	}

	return total, skipped
}

// loanWindowAccrual accrues a loan's nominal rate over the window, prorated
// when the loan is younger than the window.
func loanWindowAccrual(inv *domain.Investment, windowDays float64, now time.Time) (float64, bool) {
	if inv.ProfitRate == nil || math.IsNaN(*inv.ProfitRate) {
		return 0, false
	}

	start := domain.ParseDate(inv.StartDate)
	daysSinceStart := math.Max(domain.DaysBetween(start, now), 0)
	accrualDays := math.Min(daysSinceStart, windowDays)

	return inv.EffectiveAmount() * (*inv.ProfitRate / 100) * accrualDays / WindowYearly, true
}

// marketWindowDelta extrapolates the most recent balance delta to the window
// length. It prefers the latest consecutive pair whose gap covers the whole
// window and falls back to the latest pair with any positive gap. Fewer than
// two updates means there is nothing to extrapolate.
func marketWindowDelta(inv *domain.Investment, windowDays float64) (float64, bool) {
	if len(inv.Updates) < 2 {
		return 0, false
	}

	var delta, gap float64
	found := false
	for i := len(inv.Updates) - 1; i > 0 && !found; i-- {
		prev, curr := inv.Updates[i-1], inv.Updates[i]
		g := domain.DaysBetween(domain.ParseDate(prev.Date), domain.ParseDate(curr.Date))
		if g >= windowDays {
			delta, gap = curr.Amount-prev.Amount, g
			found = true
		}
	}
	if !found {
		// No gap covers the window; use the most recent measurable pair.
		for i := len(inv.Updates) - 1; i > 0 && !found; i-- {
			prev, curr := inv.Updates[i-1], inv.Updates[i]
			g := domain.DaysBetween(domain.ParseDate(prev.Date), domain.ParseDate(curr.Date))
			if g > 0 {
				delta, gap = curr.Amount-prev.Amount, g
				found = true
			}
		}
	}
	if !found {
		return 0, false
	}

	return delta / gap * windowDays, true
}

// TotalValue sums the latest balances of active investments, converted to the
// local currency.
func TotalValue(doc *domain.Document, fxRate float64, localCurrency string) float64 {
	var total float64
	for i := range doc.Investments {
		inv := &doc.Investments[i]
		if !inv.IsActive {
			continue
		}
		total += toLocal(inv.EffectiveAmount(), inv.Currency, localCurrency, fxRate)
	}
	return total
}

// Liquidity groups active-investment local-currency value by the is_liquid
// flag.
func Liquidity(doc *domain.Document, fxRate float64, localCurrency string) domain.LiquidityBreakdown {
	var b domain.LiquidityBreakdown
	for i := range doc.Investments {
		inv := &doc.Investments[i]
		if !inv.IsActive {
			continue
		}
		value := toLocal(inv.EffectiveAmount(), inv.Currency, localCurrency, fxRate)
		if inv.IsLiquid {
			b.LiquidCount++
			b.LiquidTotal += value
		} else {
			b.IlliquidCount++
			b.IlliquidTotal += value
		}
	}
	return b
}

// TypeTotals groups active-investment local-currency value by investment
// type, largest first.
func TypeTotals(doc *domain.Document, fxRate float64, localCurrency string) []domain.TypeTotal {
	byType := make(map[string]float64)
	for i := range doc.Investments {
		inv := &doc.Investments[i]
		if !inv.IsActive {
			continue
		}
		byType[inv.InvestmentType] += toLocal(inv.EffectiveAmount(), inv.Currency, localCurrency, fxRate)
	}

	totals := make([]domain.TypeTotal, 0, len(byType))
	for name, total := range byType {
		totals = append(totals, domain.TypeTotal{Type: name, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].Type < totals[j].Type
	})
	return totals
}

// toLocal converts an amount in the given currency to the local currency.
// Only the quote currency is converted; anything else is assumed local.
func toLocal(amount float64, currency, localCurrency string, fxRate float64) float64 {
	if currency != localCurrency {
		return amount * fxRate
	}
	return amount
}
