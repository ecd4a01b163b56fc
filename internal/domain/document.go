package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InvestmentType is one entry of the investment-type catalog. Legacy
// documents stored bare strings; UnmarshalJSON accepts both shapes and
// Normalize finishes the upgrade (placeholder names, loan-flag resolution).
type InvestmentType struct {
	Name              string `json:"name"`
	ExcludePeriodical bool   `json:"exclude_periodical_profit"`
	IsLoan            bool   `json:"is_loan"`

	loanResolved bool
}

func (t *InvestmentType) UnmarshalJSON(data []byte) error {
	// Legacy shape: a bare type-name string.
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*t = InvestmentType{Name: name, ExcludePeriodical: true}
		return nil
	}

	var obj struct {
		Name              string `json:"name"`
		ExcludePeriodical bool   `json:"exclude_periodical_profit"`
		IsLoan            *bool  `json:"is_loan"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*t = InvestmentType{Name: obj.Name, ExcludePeriodical: obj.ExcludePeriodical}
	if obj.IsLoan != nil {
		t.IsLoan = *obj.IsLoan
		t.loanResolved = true
	}
	return nil
}

// NewInvestmentType builds a catalog entry with the loan flag resolved from
// the name.
func NewInvestmentType(name string, excludePeriodical bool) InvestmentType {
	return InvestmentType{
		Name:              name,
		ExcludePeriodical: excludePeriodical,
		IsLoan:            IsLoanTypeName(name),
		loanResolved:      true,
	}
}

// IsLoanTypeName reports whether a type name denotes a loan-type investment.
// Only used at catalog load time; afterwards the resolved IsLoan flag is
// authoritative.
func IsLoanTypeName(name string) bool {
	return strings.Contains(strings.ToLower(name), "loan")
}

// Metadata holds the portfolio-wide configuration embedded in the document.
type Metadata struct {
	Currencies      []string         `json:"currencies"`
	ProfitTypes     []string         `json:"profit_types"`
	InvestmentTypes []InvestmentType `json:"investment_types"`
}

// PortfolioSnapshot is one dated record of portfolio-level figures, taken by
// the snapshot job or on demand.
type PortfolioSnapshot struct {
	Date          string  `json:"date"`
	TotalValue    float64 `json:"total_value"`
	MonthlyProfit float64 `json:"monthly_profit"`
	YearlyProfit  float64 `json:"yearly_profit"`
	Currency      string  `json:"currency"`
}

// Document is the whole portfolio as persisted in the remote store. It is
// read and written wholesale; there are no partial updates.
type Document struct {
	Version     string              `json:"version"`
	LastUpdated string              `json:"lastUpdated"`
	Investments []Investment        `json:"investments"`
	Snapshots   []PortfolioSnapshot `json:"portfolio_snapshots"`
	Metadata    Metadata            `json:"metadata"`
}

// NewDocument returns a fresh document with the default metadata used when
// the store has no file yet.
func NewDocument(now time.Time) *Document {
	doc := &Document{
		Version:     "1.0",
		LastUpdated: now.UTC().Format(time.RFC3339),
		Investments: []Investment{},
		Snapshots:   []PortfolioSnapshot{},
		Metadata: Metadata{
			Currencies:  []string{"ILS", "USD"},
			ProfitTypes: []string{"price", "commission", "other"},
			InvestmentTypes: []InvestmentType{
				{Name: "stocks"},
				{Name: "real_estate_loan"},
				{Name: "crypto_miners", ExcludePeriodical: true},
				{Name: "whiskey", ExcludePeriodical: true},
				{Name: "pension", ExcludePeriodical: true},
				{Name: "company_shares", ExcludePeriodical: true},
				{Name: "gov_funds"},
				{Name: "crypto"},
				{Name: "bank", ExcludePeriodical: true},
			},
		},
	}
	doc.Normalize()
	return doc
}

// Normalize is the load-time migration step. It defaults missing collections,
// upgrades legacy catalog entries, resolves loan flags once, and sorts every
// balance history. Loading never fails on malformed fields.
func (d *Document) Normalize() {
	if d.Version == "" {
		d.Version = "1.0"
	}
	if d.Investments == nil {
		d.Investments = []Investment{}
	}
	if d.Snapshots == nil {
		d.Snapshots = []PortfolioSnapshot{}
	}
	if d.Metadata.Currencies == nil {
		d.Metadata.Currencies = []string{}
	}
	if d.Metadata.ProfitTypes == nil {
		d.Metadata.ProfitTypes = []string{}
	}
	if d.Metadata.InvestmentTypes == nil {
		d.Metadata.InvestmentTypes = []InvestmentType{}
	}

	for i := range d.Metadata.InvestmentTypes {
		t := &d.Metadata.InvestmentTypes[i]
		if t.Name == "" {
			t.Name = fmt.Sprintf("unknown_type_%d", i)
		}
		if !t.loanResolved {
			t.IsLoan = IsLoanTypeName(t.Name)
			t.loanResolved = true
		}
	}

	for i := range d.Investments {
		inv := &d.Investments[i]
		if inv.Updates == nil {
			inv.Updates = []BalanceUpdate{}
		}
		inv.SortUpdates()
	}
}

// TypeEntry resolves an investment-type name against the catalog. Unknown
// names get a synthesized entry (referential integrity between catalog and
// usage is deliberately not enforced); the loan flag then falls back to the
// name itself.
func (d *Document) TypeEntry(name string) InvestmentType {
	for _, t := range d.Metadata.InvestmentTypes {
		if t.Name == name {
			return t
		}
	}
	return InvestmentType{Name: name, IsLoan: IsLoanTypeName(name), loanResolved: true}
}

// IsLoan reports whether the investment is loan-type, resolved through the
// catalog.
func (d *Document) IsLoan(inv *Investment) bool {
	return d.TypeEntry(inv.InvestmentType).IsLoan
}

// FindInvestment returns the investment with the given id, or nil.
func (d *Document) FindInvestment(id string) *Investment {
	for i := range d.Investments {
		if d.Investments[i].ID == id {
			return &d.Investments[i]
		}
	}
	return nil
}

// Touch stamps the document as updated at now.
func (d *Document) Touch(now time.Time) {
	d.LastUpdated = now.UTC().Format(time.RFC3339)
}
