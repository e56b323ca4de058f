// Package ledger implements the owner-scoped view over the expense store:
// filtered and paginated listing, period statistics, recent activity, and
// lifecycle operations that announce their changes.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/db"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/events"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	RecentCount  = 5
)

// QueryOptions narrows a listing. Empty fields do not filter. The date range
// applies only when both bounds are set, and both bounds are inclusive.
type QueryOptions struct {
	CarID     string
	Category  models.Category
	StartDate time.Time
	EndDate   time.Time
	Page      int
	Limit     int
}

// QueryResult is one page of expenses plus the number of matches before
// pagination.
type QueryResult struct {
	Expenses []models.Expense `json:"expenses"`
	Total    int              `json:"total"`
}

// SummaryOptions selects the statistics window.
type SummaryOptions struct {
	CarID  string
	Period models.Period
}

// Service reads and writes one owner's expenses.
type Service struct {
	store     db.ExpenseCollection
	publisher events.Publisher
	now       func() time.Time
}

// NewService wires the ledger. A nil publisher drops events and a nil clock
// means time.Now.
func NewService(store db.ExpenseCollection, publisher events.Publisher, now func() time.Time) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, publisher: publisher, now: now}
}

// Create stores a new expense for ownerID. The owner always comes from the
// caller, never from the input.
func (s *Service) Create(ctx context.Context, ownerID string, in models.ExpenseInput) (models.Expense, error) {
	in.UserID = ownerID
	e, err := s.store.Create(ctx, in)
	if err != nil {
		return models.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.publish(ctx, events.ExpenseCreated, e)
	return e, nil
}

// Get returns the expense if it exists and belongs to ownerID.
func (s *Service) Get(ctx context.Context, ownerID, id string) (models.Expense, bool, error) {
	e, ok, err := s.store.FindByID(ctx, id)
	if err != nil {
		return models.Expense{}, false, fmt.Errorf("find expense: %w", err)
	}
	if !ok || e.UserID != ownerID {
		return models.Expense{}, false, nil
	}
	return e, true, nil
}

// Update applies the patch to one of ownerID's expenses.
func (s *Service) Update(ctx context.Context, ownerID, id string, patch models.ExpensePatch) (models.Expense, bool, error) {
	if _, ok, err := s.Get(ctx, ownerID, id); err != nil || !ok {
		return models.Expense{}, false, err
	}
	e, ok, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return models.Expense{}, false, fmt.Errorf("update expense: %w", err)
	}
	if !ok {
		return models.Expense{}, false, nil
	}
	s.publish(ctx, events.ExpenseUpdated, e)
	return e, true, nil
}

// Delete removes one of ownerID's expenses and reports whether it existed.
func (s *Service) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	e, ok, err := s.Get(ctx, ownerID, id)
	if err != nil || !ok {
		return false, err
	}
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	if removed {
		s.publish(ctx, events.ExpenseDeleted, e)
	}
	return removed, nil
}

// Query lists ownerID's expenses newest first. Filters apply in the order
// car, category, date range.
func (s *Service) Query(ctx context.Context, ownerID string, opts QueryOptions) (QueryResult, error) {
	owned, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return QueryResult{}, fmt.Errorf("load expenses: %w", err)
	}

	matched := filter(owned, func(e models.Expense) bool {
		if opts.CarID != "" && e.CarID != opts.CarID {
			return false
		}
		if opts.Category != "" && e.Category != opts.Category {
			return false
		}
		if !opts.StartDate.IsZero() && !opts.EndDate.IsZero() {
			if e.Date.Before(opts.StartDate) || e.Date.After(opts.EndDate) {
				return false
			}
		}
		return true
	})
	sortNewestFirst(matched)

	page, limit := opts.Page, opts.Limit
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	return QueryResult{
		Expenses: paginate(matched, page, limit),
		Total:    len(matched),
	}, nil
}

func paginate(items []models.Expense, page, limit int) []models.Expense {
	// Compare in pages so huge page numbers cannot overflow skip.
	if len(items) == 0 || page-1 > (len(items)-1)/limit {
		return []models.Expense{}
	}
	skip := (page - 1) * limit
	end := len(items)
	if limit < end-skip {
		end = skip + limit
	}
	return items[skip:end]
}

func filter(items []models.Expense, keep func(models.Expense) bool) []models.Expense {
	out := make([]models.Expense, 0, len(items))
	for _, e := range items {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// sortNewestFirst orders by date descending; equal dates keep insertion order.
func sortNewestFirst(items []models.Expense) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
}

func (s *Service) publish(ctx context.Context, t events.Type, e models.Expense) {
	if err := s.publisher.Publish(ctx, events.NewExpenseEvent(t, e, s.now())); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"event":      t,
			"expense_id": e.ID,
		}).Warn("Failed to publish expense event")
	}
}
