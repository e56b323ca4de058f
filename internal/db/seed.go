package db

import (
	"context"
	"fmt"
	"time"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
)

// DemoExpenses returns the fixture records used by SeedExpenses, dated
// relative to now.
func DemoExpenses(userID, carID string, now time.Time) []models.ExpenseInput {
	daysAgo := func(n int) time.Time {
		d := now.AddDate(0, 0, -n)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
	}
	mileage := func(km int) *int { return &km }

	return []models.ExpenseInput{
		{
			UserID:        userID,
			CarID:         carID,
			Category:      models.CategoryFuel,
			Subcategory:   "gasoline",
			Amount:        65000,
			Description:   "Full tank at the highway rest stop",
			Date:          daysAgo(7),
			Location:      "Seoul",
			Mileage:       mileage(45200),
			PaymentMethod: models.PaymentCard,
			Tags:          []string{"fuel", "highway"},
		},
		{
			UserID:        userID,
			CarID:         carID,
			Category:      models.CategoryMaintenance,
			Subcategory:   "engine oil",
			Amount:        45000,
			Description:   "Engine oil and filter change",
			Date:          daysAgo(14),
			Location:      "Gangnam service center",
			Mileage:       mileage(45000),
			PaymentMethod: models.PaymentCard,
			Tags:          []string{"maintenance", "oil"},
			Notes:         "Next change due around 50000 km",
		},
		{
			UserID:        userID,
			CarID:         carID,
			Category:      models.CategoryCarwash,
			Amount:        15000,
			Description:   "Automatic car wash",
			Date:          daysAgo(3),
			Location:      "Neighborhood car wash",
			PaymentMethod: models.PaymentCash,
		},
	}
}

// SeedExpenses loads the demo fixture into coll. It is never called
// implicitly by a collection.
func SeedExpenses(ctx context.Context, coll ExpenseCollection, userID, carID string, now time.Time) ([]models.Expense, error) {
	inputs := DemoExpenses(userID, carID, now)
	out := make([]models.Expense, 0, len(inputs))
	for _, in := range inputs {
		e, err := coll.Create(ctx, in)
		if err != nil {
			return out, fmt.Errorf("seed expense %q: %w", in.Description, err)
		}
		out = append(out, e)
	}
	return out, nil
}
