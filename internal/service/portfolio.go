package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shaylevin89/follow-the-money/internal/domain"
	"github.com/shaylevin89/follow-the-money/internal/infra/observability"
	"github.com/shaylevin89/follow-the-money/internal/port"
)

var tracer = otel.Tracer("service/portfolio")

const rateCacheKey = "fx"

// Portfolio orchestrates the document store, the exchange-rate provider and
// the profit engine. Every mutation is a whole-document read-modify-write
// guarded by the store's revision tag.
type Portfolio struct {
	store     port.DocumentStore
	rates     port.RateProvider
	rateCache port.Cache[float64]
	metrics   *observability.Metrics
	logger    *zap.Logger

	localCurrency string
	quoteCurrency string
	fallbackRate  float64
}

// NewPortfolio creates the portfolio service with all dependencies injected.
func NewPortfolio(
	store port.DocumentStore,
	rates port.RateProvider,
	rateCache port.Cache[float64],
	metrics *observability.Metrics,
	logger *zap.Logger,
	localCurrency, quoteCurrency string,
	fallbackRate float64,
) *Portfolio {
	return &Portfolio{
		store:         store,
		rates:         rates,
		rateCache:     rateCache,
		metrics:       metrics,
		logger:        logger,
		localCurrency: localCurrency,
		quoteCurrency: quoteCurrency,
		fallbackRate:  fallbackRate,
	}
}

// load fetches the current document, falling back to a fresh one when the
// store has no file yet (first run).
func (p *Portfolio) load(ctx context.Context) (*domain.Document, string, error) {
	doc, revision, err := p.store.Fetch(ctx)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			p.logger.Info("no portfolio document yet, starting fresh")
			return domain.NewDocument(time.Now()), "", nil
		}
		p.metrics.IncrExternalError("github/contents")
		return nil, "", fmt.Errorf("document fetch: %w", err)
	}
	return doc, revision, nil
}

// save writes the document back under the fetched revision. A stale revision
// surfaces as *domain.ErrConflict; the caller reloads and retries.
func (p *Portfolio) save(ctx context.Context, doc *domain.Document, revision string) error {
	doc.Touch(time.Now())
	if _, err := p.store.Replace(ctx, doc, revision); err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			p.metrics.IncrStoreConflict()
			p.logger.Warn("document write conflict", zap.String("revision", revision))
		} else {
			p.metrics.IncrExternalError("github/contents")
		}
		return fmt.Errorf("document write: %w", err)
	}
	return nil
}

// GetDocument returns the whole portfolio document and its revision tag,
// e.g. for export.
func (p *Portfolio) GetDocument(ctx context.Context) (*domain.Document, string, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.GetDocument")
	defer span.End()

	return p.load(ctx)
}

// Ping verifies the document store is reachable; used by the health check.
func (p *Portfolio) Ping(ctx context.Context) error {
	_, _, err := p.store.Fetch(ctx)
	var notFound *domain.ErrNotFound
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}

// ListInvestments returns every investment with its profit figures, active
// entries first, each group ordered by the sort key (name, type, amount,
// init_date or last_update).
func (p *Portfolio) ListInvestments(ctx context.Context, sortKey string) ([]domain.InvestmentView, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.ListInvestments")
	defer span.End()
	span.SetAttributes(attribute.String("sort", sortKey))

	doc, _, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]domain.InvestmentView, 0, len(doc.Investments))
	for i := range doc.Investments {
		inv := doc.Investments[i]
		views = append(views, domain.InvestmentView{
			Investment: inv,
			Profit:     ComputeProfit(&inv, doc.IsLoan(&inv), now),
		})
	}

	sortViews(views, sortKey)
	return views, nil
}

// sortViews orders active investments before inactive ones, then applies the
// requested key within each group. Unknown keys fall back to name order.
func sortViews(views []domain.InvestmentView, key string) {
	less := func(a, b *domain.InvestmentView) bool {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
	switch key {
	case "type":
		less = func(a, b *domain.InvestmentView) bool {
			if a.InvestmentType != b.InvestmentType {
				return a.InvestmentType < b.InvestmentType
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case "amount":
		less = func(a, b *domain.InvestmentView) bool {
			return a.EffectiveAmount() > b.EffectiveAmount()
		}
	case "init_date":
		less = func(a, b *domain.InvestmentView) bool {
			return a.StartDate < b.StartDate
		}
	case "last_update":
		less = func(a, b *domain.InvestmentView) bool {
			return a.LastUpdateDate() > b.LastUpdateDate()
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := &views[i], &views[j]
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		return less(a, b)
	})
}

// GetInvestment returns one investment with its profit figures.
func (p *Portfolio) GetInvestment(ctx context.Context, id string) (*domain.InvestmentView, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.GetInvestment")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", id))

	doc, _, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	inv := doc.FindInvestment(id)
	if inv == nil {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: id}
	}

	return &domain.InvestmentView{
		Investment: *inv,
		Profit:     ComputeProfit(inv, doc.IsLoan(inv), time.Now()),
	}, nil
}

// CreateInvestment validates the input, assigns an id, seeds the balance
// history with the opening amount and persists the document.
func (p *Portfolio) CreateInvestment(ctx context.Context, input domain.CreateInvestmentInput) (*domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.CreateInvestment")
	defer span.End()

	doc, revision, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateCreate(doc, input); err != nil {
		return nil, err
	}

	now := time.Now()
	startDate := input.StartDate
	if startDate == "" {
		startDate = now.Format(domain.DateLayout)
	}
	currency := input.Currency
	if currency == "" {
		currency = p.localCurrency
	}

	inv := domain.Investment{
		ID:             uuid.NewString(),
		Name:           input.Name,
		InvestmentType: input.InvestmentType,
		Currency:       currency,
		InitialAmount:  input.InitialAmount,
		CurrentAmount:  input.InitialAmount,
		StartDate:      startDate,
		ProfitType:     input.ProfitType,
		IsActive:       input.IsActive,
		IsLiquid:       input.IsLiquid,
		IsStatic:       input.IsStatic,
		LiquidityDate:  input.LiquidityDate,
		Notes:          input.Notes,
		Updates:        []domain.BalanceUpdate{{Date: startDate, Amount: input.InitialAmount}},
	}
	if doc.TypeEntry(input.InvestmentType).IsLoan {
		inv.ProfitRate = input.ProfitRate
	}
	if inv.IsLiquid && inv.LiquidityDate == nil {
		inv.LiquidityDate = &inv.StartDate
	}

	doc.Investments = append(doc.Investments, inv)
	if err := p.save(ctx, doc, revision); err != nil {
		return nil, err
	}

	p.logger.Info("investment created",
		zap.String("id", inv.ID),
		zap.String("name", inv.Name),
		zap.String("type", inv.InvestmentType),
	)
	return &inv, nil
}

func validateCreate(doc *domain.Document, input domain.CreateInvestmentInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if input.InvestmentType == "" {
		return &domain.ErrValidation{Field: "investment_type", Message: "must not be empty"}
	}
	if input.InitialAmount < 0 {
		return &domain.ErrValidation{Field: "initial_amount", Message: "must not be negative"}
	}
	if input.StartDate != "" && domain.ParseDate(input.StartDate).IsZero() {
		return &domain.ErrValidation{Field: "start_date", Message: "must be a YYYY-MM-DD date"}
	}
	if doc.TypeEntry(input.InvestmentType).IsLoan && input.ProfitRate == nil {
		return &domain.ErrValidation{Field: "profit_rate", Message: "required for loan-type investments"}
	}
	return nil
}

// UpdateInvestment applies the mutable fields of an investment. A changed
// balance appends a dated entry to the update history; the initial amount and
// start date are immutable.
func (p *Portfolio) UpdateInvestment(ctx context.Context, id string, input domain.UpdateInvestmentInput) (*domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.UpdateInvestment")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", id))

	doc, revision, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	inv := doc.FindInvestment(id)
	if inv == nil {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: id}
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}

	inv.Name = input.Name
	inv.IsActive = input.IsActive
	inv.IsLiquid = input.IsLiquid
	inv.IsStatic = input.IsStatic
	inv.LiquidityDate = input.LiquidityDate
	inv.Notes = input.Notes

	if doc.IsLoan(inv) {
		if input.ProfitRate != nil {
			inv.ProfitRate = input.ProfitRate
		}
	} else {
		// The rate is only meaningful for loans; drop it on anything else.
		inv.ProfitRate = nil
	}

	if input.CurrentAmount != inv.CurrentAmount {
		inv.CurrentAmount = input.CurrentAmount
		today := time.Now().Format(domain.DateLayout)
		inv.Updates = append(inv.Updates, domain.BalanceUpdate{Date: today, Amount: input.CurrentAmount})
		inv.SortUpdates()
	}

	if err := p.save(ctx, doc, revision); err != nil {
		return nil, err
	}

	p.logger.Info("investment updated", zap.String("id", id))
	return inv, nil
}

// DeleteInvestment removes an investment from the document.
func (p *Portfolio) DeleteInvestment(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Portfolio.DeleteInvestment")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", id))

	doc, revision, err := p.load(ctx)
	if err != nil {
		return err
	}

	kept := doc.Investments[:0]
	found := false
	for _, inv := range doc.Investments {
		if inv.ID == id {
			found = true
			continue
		}
		kept = append(kept, inv)
	}
	if !found {
		return &domain.ErrNotFound{Resource: "investment", ID: id}
	}
	doc.Investments = kept

	if err := p.save(ctx, doc, revision); err != nil {
		return err
	}

	p.logger.Info("investment deleted", zap.String("id", id))
	return nil
}

// Dashboard assembles the portfolio-level summary: total value, monthly and
// yearly profit estimates, liquidity and type breakdowns. The document and
// the exchange rate are fetched concurrently.
func (p *Portfolio) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.Dashboard")
	defer span.End()

	start := time.Now()
	defer func() {
		p.metrics.RecordRequestDuration("dashboard", time.Since(start))
	}()

	var (
		doc       *domain.Document
		rate      float64
		estimated bool
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, _, err := p.load(gCtx)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	g.Go(func() error {
		rate, estimated = p.exchangeRate(gCtx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	monthly, skippedMonthly := PeriodicalProfit(doc, WindowMonthly, rate, p.localCurrency, now)
	yearly, _ := PeriodicalProfit(doc, WindowYearly, rate, p.localCurrency, now)
	if len(skippedMonthly) > 0 {
		p.logger.Debug("investments skipped in periodical profit",
			zap.Strings("names", skippedMonthly),
		)
	}

	return &domain.Dashboard{
		TotalValue:    TotalValue(doc, rate, p.localCurrency),
		MonthlyProfit: monthly,
		YearlyProfit:  yearly,
		Currency:      p.localCurrency,
		ExchangeRate:  rate,
		EstimatedRate: estimated,
		Liquidity:     Liquidity(doc, rate, p.localCurrency),
		TypeTotals:    TypeTotals(doc, rate, p.localCurrency),
	}, nil
}

// exchangeRate returns the quote→local conversion rate, cached between
// requests. A provider failure falls back to the configured constant so the
// dashboard stays computable; the result is then flagged as an estimate.
func (p *Portfolio) exchangeRate(ctx context.Context) (float64, bool) {
	if cached, ok := p.rateCache.Get(rateCacheKey); ok {
		return cached, false
	}

	rate, err := p.rates.Rate(ctx, p.quoteCurrency, p.localCurrency)
	if err != nil {
		p.logger.Warn("exchange rate unavailable, using fallback",
			zap.String("base", p.quoteCurrency),
			zap.String("quote", p.localCurrency),
			zap.Float64("fallback", p.fallbackRate),
			zap.Error(err),
		)
		p.metrics.IncrExternalError("exchange-rates")
		p.metrics.IncrRateFallback()
		return p.fallbackRate, true
	}

	p.rateCache.Set(rateCacheKey, rate)
	return rate, false
}

// ListTypes returns the investment-type catalog.
func (p *Portfolio) ListTypes(ctx context.Context) ([]domain.InvestmentType, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.ListTypes")
	defer span.End()

	doc, _, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Metadata.InvestmentTypes, nil
}

// CreateType adds a catalog entry. The loan flag is resolved from the name
// once, at creation.
func (p *Portfolio) CreateType(ctx context.Context, input domain.TypeInput) (*domain.InvestmentType, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.CreateType")
	defer span.End()

	if strings.TrimSpace(input.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}

	doc, revision, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range doc.Metadata.InvestmentTypes {
		if t.Name == input.Name {
			return nil, &domain.ErrValidation{Field: "name", Message: "type already exists"}
		}
	}

	entry := domain.NewInvestmentType(input.Name, input.ExcludePeriodical)
	doc.Metadata.InvestmentTypes = append(doc.Metadata.InvestmentTypes, entry)

	if err := p.save(ctx, doc, revision); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateType edits a catalog entry in place. Existing investments keep
// referencing the old name if it changes; referential integrity between
// catalog and usage is deliberately not enforced.
func (p *Portfolio) UpdateType(ctx context.Context, name string, input domain.TypeInput) (*domain.InvestmentType, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.UpdateType")
	defer span.End()
	span.SetAttributes(attribute.String("type.name", name))

	if strings.TrimSpace(input.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}

	doc, revision, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range doc.Metadata.InvestmentTypes {
		if doc.Metadata.InvestmentTypes[i].Name != name {
			continue
		}
		entry := domain.NewInvestmentType(input.Name, input.ExcludePeriodical)
		doc.Metadata.InvestmentTypes[i] = entry

		if err := p.save(ctx, doc, revision); err != nil {
			return nil, err
		}
		return &entry, nil
	}

	return nil, &domain.ErrNotFound{Resource: "investment type", ID: name}
}

// DeleteType removes a catalog entry. Investments referencing it keep their
// type string and fall back to name-based loan resolution.
func (p *Portfolio) DeleteType(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "Portfolio.DeleteType")
	defer span.End()
	span.SetAttributes(attribute.String("type.name", name))

	doc, revision, err := p.load(ctx)
	if err != nil {
		return err
	}

	kept := doc.Metadata.InvestmentTypes[:0]
	found := false
	for _, t := range doc.Metadata.InvestmentTypes {
		if t.Name == name {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return &domain.ErrNotFound{Resource: "investment type", ID: name}
	}
	doc.Metadata.InvestmentTypes = kept

	return p.save(ctx, doc, revision)
}

// ListSnapshots returns the recorded portfolio snapshots, oldest first.
func (p *Portfolio) ListSnapshots(ctx context.Context) ([]domain.PortfolioSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.ListSnapshots")
	defer span.End()

	doc, _, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := append([]domain.PortfolioSnapshot(nil), doc.Snapshots...)
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Date < snapshots[j].Date
	})
	return snapshots, nil
}

// TakeSnapshot records today's portfolio-level figures in the document.
// Taking a second snapshot on the same day overwrites the first, so the
// scheduled job stays idempotent.
func (p *Portfolio) TakeSnapshot(ctx context.Context) (*domain.PortfolioSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.TakeSnapshot")
	defer span.End()

	doc, revision, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	rate, _ := p.exchangeRate(ctx)
	now := time.Now()
	monthly, _ := PeriodicalProfit(doc, WindowMonthly, rate, p.localCurrency, now)
	yearly, _ := PeriodicalProfit(doc, WindowYearly, rate, p.localCurrency, now)

	snapshot := domain.PortfolioSnapshot{
		Date:          now.Format(domain.DateLayout),
		TotalValue:    TotalValue(doc, rate, p.localCurrency),
		MonthlyProfit: monthly,
		YearlyProfit:  yearly,
		Currency:      p.localCurrency,
	}

	replaced := false
	for i := range doc.Snapshots {
		if doc.Snapshots[i].Date == snapshot.Date {
			doc.Snapshots[i] = snapshot
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Snapshots = append(doc.Snapshots, snapshot)
	}

	if err := p.save(ctx, doc, revision); err != nil {
		return nil, err
	}

	p.metrics.IncrSnapshot()
	p.logger.Info("portfolio snapshot taken",
		zap.String("date", snapshot.Date),
		zap.Float64("total_value", snapshot.TotalValue),
	)
	return &snapshot, nil
}
