package db

import (
	"context"
	"errors"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// ExpenseCollection defines the interface for expense record storage.
// A missing record is reported through the bool result, never as an error.
type ExpenseCollection interface {
	Create(ctx context.Context, in models.ExpenseInput) (models.Expense, error)
	FindByID(ctx context.Context, id string) (models.Expense, bool, error)
	Update(ctx context.Context, id string, patch models.ExpensePatch) (models.Expense, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	FindAll(ctx context.Context) ([]models.Expense, error)
	// FindByOwner returns one user's records in insertion order.
	FindByOwner(ctx context.Context, userID string) ([]models.Expense, error)
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, user models.User) error
	UpdateLastLogin(ctx context.Context, id string) error
}
