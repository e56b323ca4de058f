package models

import "time"

// Period selects the reporting window of a summary.
type Period string

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod maps anything other than "year" to the monthly window.
func ParsePeriod(s string) Period {
	if Period(s) == PeriodYear {
		return PeriodYear
	}
	return PeriodMonth
}

// CategoryStat aggregates the windowed expenses of one category.
type CategoryStat struct {
	Category   Category `json:"category"`
	Amount     float64  `json:"amount"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
}

// PaymentMethodStat aggregates the windowed expenses of one payment method.
type PaymentMethodStat struct {
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Amount        float64       `json:"amount"`
	Count         int           `json:"count"`
}

// ExpenseSummary is the statistics payload for one owner.
//
// The totals and breakdowns cover only the reporting period, while
// RecentExpenses is drawn from the owner's whole history.
type ExpenseSummary struct {
	Period             Period              `json:"period"`
	PeriodStart        time.Time           `json:"periodStart"`
	TotalAmount        float64             `json:"totalAmount"`
	AverageAmount      float64             `json:"averageAmount"`
	TotalTransactions  int                 `json:"totalTransactions"`
	CategoryStats      []CategoryStat      `json:"categoryStats"`
	PaymentMethodStats []PaymentMethodStat `json:"paymentMethodStats"`
	RecentExpenses     []Expense           `json:"recentExpenses"`
}
