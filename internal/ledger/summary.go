package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
)

// Summarize is the statistics payload: the period summary plus the owner's
// five most recent expenses from their whole history. Both are computed from
// one read of the store.
func (s *Service) Summarize(ctx context.Context, ownerID string, opts SummaryOptions) (models.ExpenseSummary, error) {
	owned, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return models.ExpenseSummary{}, fmt.Errorf("load expenses: %w", err)
	}
	summary := s.periodSummary(owned, opts)
	summary.RecentExpenses = recentActivity(owned, opts.CarID, RecentCount)
	return summary, nil
}

// PeriodSummary aggregates the expenses dated on or after the start of the
// current month (or year). There is no upper bound. RecentExpenses is left
// empty; see RecentActivity.
func (s *Service) PeriodSummary(ctx context.Context, ownerID string, opts SummaryOptions) (models.ExpenseSummary, error) {
	owned, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return models.ExpenseSummary{}, fmt.Errorf("load expenses: %w", err)
	}
	return s.periodSummary(owned, opts), nil
}

// RecentActivity returns up to n of the owner's most recently dated expenses,
// ignoring any reporting window.
func (s *Service) RecentActivity(ctx context.Context, ownerID, carID string, n int) ([]models.Expense, error) {
	owned, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	return recentActivity(owned, carID, n), nil
}

func (s *Service) periodSummary(owned []models.Expense, opts SummaryOptions) models.ExpenseSummary {
	period := models.ParsePeriod(string(opts.Period))
	start := PeriodStart(period, s.now())
	windowed := filter(owned, func(e models.Expense) bool {
		if opts.CarID != "" && e.CarID != opts.CarID {
			return false
		}
		return !e.Date.Before(start)
	})
	return aggregate(period, start, windowed)
}

func recentActivity(owned []models.Expense, carID string, n int) []models.Expense {
	scoped := filter(owned, func(e models.Expense) bool {
		return carID == "" || e.CarID == carID
	})
	sortNewestFirst(scoped)
	if n >= 0 && len(scoped) > n {
		scoped = scoped[:n]
	}
	return scoped
}

// PeriodStart returns January 1st for a yearly period and the first of the
// month otherwise, at midnight in now's location.
func PeriodStart(period models.Period, now time.Time) time.Time {
	if period == models.PeriodYear {
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func aggregate(period models.Period, start time.Time, windowed []models.Expense) models.ExpenseSummary {
	summary := models.ExpenseSummary{
		Period:             period,
		PeriodStart:        start,
		TotalTransactions:  len(windowed),
		CategoryStats:      []models.CategoryStat{},
		PaymentMethodStats: []models.PaymentMethodStat{},
		RecentExpenses:     []models.Expense{},
	}

	byCategory := map[models.Category]*models.CategoryStat{}
	byPayment := map[models.PaymentMethod]*models.PaymentMethodStat{}
	for _, e := range windowed {
		summary.TotalAmount += e.Amount

		cs, ok := byCategory[e.Category]
		if !ok {
			cs = &models.CategoryStat{Category: e.Category}
			byCategory[e.Category] = cs
		}
		cs.Amount += e.Amount
		cs.Count++

		ps, ok := byPayment[e.PaymentMethod]
		if !ok {
			ps = &models.PaymentMethodStat{PaymentMethod: e.PaymentMethod}
			byPayment[e.PaymentMethod] = ps
		}
		ps.Amount += e.Amount
		ps.Count++
	}

	denominator := summary.TotalTransactions
	if denominator < 1 {
		denominator = 1
	}
	summary.AverageAmount = summary.TotalAmount / float64(denominator)

	for _, cs := range byCategory {
		if summary.TotalAmount > 0 {
			cs.Percentage = 100 * cs.Amount / summary.TotalAmount
		}
		summary.CategoryStats = append(summary.CategoryStats, *cs)
	}
	for _, ps := range byPayment {
		summary.PaymentMethodStats = append(summary.PaymentMethodStats, *ps)
	}

	// Largest spend first, ties in enumeration order.
	sort.Slice(summary.CategoryStats, func(i, j int) bool {
		a, b := summary.CategoryStats[i], summary.CategoryStats[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		if ra, rb := rank(models.Categories, a.Category), rank(models.Categories, b.Category); ra != rb {
			return ra < rb
		}
		return a.Category < b.Category
	})
	sort.Slice(summary.PaymentMethodStats, func(i, j int) bool {
		a, b := summary.PaymentMethodStats[i], summary.PaymentMethodStats[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		if ra, rb := rank(models.PaymentMethods, a.PaymentMethod), rank(models.PaymentMethods, b.PaymentMethod); ra != rb {
			return ra < rb
		}
		return a.PaymentMethod < b.PaymentMethod
	})

	return summary
}

// rank orders unknown values after every known one.
func rank[T comparable](order []T, v T) int {
	for i, o := range order {
		if o == v {
			return i
		}
	}
	return len(order)
}
