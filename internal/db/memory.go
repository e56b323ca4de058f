package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryExpenseCollection keeps expense records in process memory. It starts
// empty; fixture data is loaded only through SeedExpenses.
type MemoryExpenseCollection struct {
	mu    sync.RWMutex
	items []models.Expense
	now   func() time.Time
}

// NewMemoryExpenseCollection creates an empty store. A nil clock means time.Now.
func NewMemoryExpenseCollection(now func() time.Time) *MemoryExpenseCollection {
	if now == nil {
		now = time.Now
	}
	return &MemoryExpenseCollection{now: now}
}

// Create assigns a fresh id and timestamps and appends the record.
func (c *MemoryExpenseCollection) Create(_ context.Context, in models.ExpenseInput) (models.Expense, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := models.NewExpense(uuid.New().String(), in, c.now())
	c.items = append(c.items, e)
	return e.Clone(), nil
}

// FindByID scans for the record with the given id.
func (c *MemoryExpenseCollection) FindByID(_ context.Context, id string) (models.Expense, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(id); i >= 0 {
		return c.items[i].Clone(), true, nil
	}
	return models.Expense{}, false, nil
}

// Update merges the patch into the stored record in place.
func (c *MemoryExpenseCollection) Update(_ context.Context, id string, patch models.ExpensePatch) (models.Expense, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return models.Expense{}, false, nil
	}
	updated := patch.Apply(c.items[i])
	updated.UpdatedAt = nextUpdatedAt(c.items[i].UpdatedAt, c.now())
	c.items[i] = updated
	return updated.Clone(), true, nil
}

// Delete removes the record and reports whether it existed.
func (c *MemoryExpenseCollection) Delete(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return false, nil
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true, nil
}

// FindAll returns copies of every record.
func (c *MemoryExpenseCollection) FindAll(_ context.Context) ([]models.Expense, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Expense, len(c.items))
	for i, e := range c.items {
		out[i] = e.Clone()
	}
	return out, nil
}

// FindByOwner returns copies of one user's records.
func (c *MemoryExpenseCollection) FindByOwner(_ context.Context, userID string) ([]models.Expense, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Expense, 0)
	for _, e := range c.items {
		if e.UserID == userID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (c *MemoryExpenseCollection) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

// nextUpdatedAt keeps UpdatedAt strictly increasing even when the clock
// has not advanced since the previous write.
func nextUpdatedAt(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}

// MemoryUserCollection implements UserCollection in process memory.
type MemoryUserCollection struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
}

// NewMemoryUserCollection creates an empty user store.
func NewMemoryUserCollection() *MemoryUserCollection {
	return &MemoryUserCollection{users: make(map[primitive.ObjectID]models.User)}
}

// InsertUser stores a new user, assigning an id when the caller left it empty.
func (c *MemoryUserCollection) InsertUser(_ context.Context, user models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, exists := c.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID.Hex())
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	c.users[user.ID] = user
	return nil
}

// FindUserByID finds a user by their ID
func (c *MemoryUserCollection) FindUserByID(_ context.Context, id string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID: %w", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	user, ok := c.users[objectID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// FindUserByUsername finds a user by their username
func (c *MemoryUserCollection) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	return c.findBy(func(u models.User) bool { return u.Username == username })
}

// FindUserByEmail finds a user by their email
func (c *MemoryUserCollection) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	return c.findBy(func(u models.User) bool { return u.Email == email })
}

// UpdateUser replaces the stored user.
func (c *MemoryUserCollection) UpdateUser(_ context.Context, id string, user models.User) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.users[objectID]; !ok {
		return ErrUserNotFound
	}
	user.ID = objectID
	user.UpdatedAt = time.Now()
	c.users[objectID] = user
	return nil
}

// UpdateLastLogin updates the last login time for a user
func (c *MemoryUserCollection) UpdateLastLogin(_ context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[objectID]
	if !ok {
		return ErrUserNotFound
	}
	now := time.Now()
	user.LastLogin = &now
	user.UpdatedAt = now
	c.users[objectID] = user
	return nil
}

func (c *MemoryUserCollection) findBy(match func(models.User) bool) (*models.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, u := range c.users {
		if match(u) {
			user := u
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}
