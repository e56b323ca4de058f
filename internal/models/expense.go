package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrNegativeAmount       = errors.New("amount must not be negative")
	ErrNegativeMileage      = errors.New("mileage must not be negative")
	ErrMissingField         = errors.New("missing required field")
)

// Category is the top-level classification of a vehicle expense.
type Category string

const (
	CategoryFuel        Category = "FUEL"
	CategoryMaintenance Category = "MAINTENANCE"
	CategoryInsurance   Category = "INSURANCE"
	CategoryTax         Category = "TAX"
	CategoryParking     Category = "PARKING"
	CategoryToll        Category = "TOLL"
	CategoryCarwash     Category = "CARWASH"
	CategoryAccessories Category = "ACCESSORIES"
	CategoryRental      Category = "RENTAL"
	CategoryOther       Category = "OTHER"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFuel,
	CategoryMaintenance,
	CategoryInsurance,
	CategoryTax,
	CategoryParking,
	CategoryToll,
	CategoryCarwash,
	CategoryAccessories,
	CategoryRental,
	CategoryOther,
}

// IsValidCategory checks if a category is valid
func IsValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory accepts the category code in any letter case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !IsValidCategory(c) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// PaymentMethod describes how an expense was paid.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentCard         PaymentMethod = "CARD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMobilePay    PaymentMethod = "MOBILE_PAY"
	PaymentOther        PaymentMethod = "OTHER"
)

var PaymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentCard,
	PaymentBankTransfer,
	PaymentMobilePay,
	PaymentOther,
}

// IsValidPaymentMethod checks if a payment method is valid
func IsValidPaymentMethod(p PaymentMethod) bool {
	for _, known := range PaymentMethods {
		if p == known {
			return true
		}
	}
	return false
}

// Expense represents one vehicle-related spend event.
type Expense struct {
	ID            string        `json:"id" bson:"_id"`
	UserID        string        `json:"userId" bson:"user_id"`
	CarID         string        `json:"carId" bson:"car_id"`
	Category      Category      `json:"category" bson:"category"`
	Subcategory   string        `json:"subcategory,omitempty" bson:"subcategory,omitempty"`
	Amount        float64       `json:"amount" bson:"amount"`
	Description   string        `json:"description" bson:"description"`
	Date          time.Time     `json:"date" bson:"date"`
	Location      string        `json:"location,omitempty" bson:"location,omitempty"`
	Mileage       *int          `json:"mileage,omitempty" bson:"mileage,omitempty"` // odometer, km
	PaymentMethod PaymentMethod `json:"paymentMethod" bson:"payment_method"`
	ReceiptImage  string        `json:"receiptImage,omitempty" bson:"receipt_image,omitempty"`
	Tags          []string      `json:"tags,omitempty" bson:"tags,omitempty"`
	Notes         string        `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt     time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" bson:"updated_at"`
}

// Clone returns a copy that shares no memory with e.
func (e Expense) Clone() Expense {
	out := e
	if e.Mileage != nil {
		m := *e.Mileage
		out.Mileage = &m
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	return out
}

// ExpenseInput carries every caller-supplied field of an expense. The store
// assigns the identifier and timestamps.
type ExpenseInput struct {
	UserID        string        `json:"userId"`
	CarID         string        `json:"carId"`
	Category      Category      `json:"category"`
	Subcategory   string        `json:"subcategory,omitempty"`
	Amount        float64       `json:"amount"`
	Description   string        `json:"description"`
	Date          time.Time     `json:"date"`
	Location      string        `json:"location,omitempty"`
	Mileage       *int          `json:"mileage,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	ReceiptImage  string        `json:"receiptImage,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// Validate reports the first problem found in the input.
func (in ExpenseInput) Validate() error {
	if in.UserID == "" {
		return fmt.Errorf("%w: userId", ErrMissingField)
	}
	if in.CarID == "" {
		return fmt.Errorf("%w: carId", ErrMissingField)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date", ErrMissingField)
	}
	if !IsValidCategory(in.Category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}
	if !IsValidPaymentMethod(in.PaymentMethod) {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, in.PaymentMethod)
	}
	if in.Amount < 0 {
		return ErrNegativeAmount
	}
	if in.Mileage != nil && *in.Mileage < 0 {
		return ErrNegativeMileage
	}
	return nil
}

// NewExpense builds a record from the input. Tags and mileage are copied.
func NewExpense(id string, in ExpenseInput, now time.Time) Expense {
	e := Expense{
		ID:            id,
		UserID:        in.UserID,
		CarID:         in.CarID,
		Category:      in.Category,
		Subcategory:   in.Subcategory,
		Amount:        in.Amount,
		Description:   in.Description,
		Date:          in.Date,
		Location:      in.Location,
		Mileage:       in.Mileage,
		PaymentMethod: in.PaymentMethod,
		ReceiptImage:  in.ReceiptImage,
		Tags:          in.Tags,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return e.Clone()
}

// ExpensePatch is a partial update. Nil fields are left untouched.
type ExpensePatch struct {
	CarID         *string        `json:"carId,omitempty"`
	Category      *Category      `json:"category,omitempty"`
	Subcategory   *string        `json:"subcategory,omitempty"`
	Amount        *float64       `json:"amount,omitempty"`
	Description   *string        `json:"description,omitempty"`
	Date          *time.Time     `json:"date,omitempty"`
	Location      *string        `json:"location,omitempty"`
	Mileage       *int           `json:"mileage,omitempty"`
	PaymentMethod *PaymentMethod `json:"paymentMethod,omitempty"`
	ReceiptImage  *string        `json:"receiptImage,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
}

// Validate checks only the fields that are present.
func (p ExpensePatch) Validate() error {
	if p.CarID != nil && *p.CarID == "" {
		return fmt.Errorf("%w: carId", ErrMissingField)
	}
	if p.Category != nil && !IsValidCategory(*p.Category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, *p.Category)
	}
	if p.PaymentMethod != nil && !IsValidPaymentMethod(*p.PaymentMethod) {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, *p.PaymentMethod)
	}
	if p.Amount != nil && *p.Amount < 0 {
		return ErrNegativeAmount
	}
	if p.Mileage != nil && *p.Mileage < 0 {
		return ErrNegativeMileage
	}
	if p.Date != nil && p.Date.IsZero() {
		return fmt.Errorf("%w: date", ErrMissingField)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.CarID == nil && p.Category == nil && p.Subcategory == nil &&
		p.Amount == nil && p.Description == nil && p.Date == nil &&
		p.Location == nil && p.Mileage == nil && p.PaymentMethod == nil &&
		p.ReceiptImage == nil && p.Tags == nil && p.Notes == nil
}

// Apply merges the patch into e and returns the result. ID, owner and
// timestamps are never touched.
func (p ExpensePatch) Apply(e Expense) Expense {
	out := e.Clone()
	if p.CarID != nil {
		out.CarID = *p.CarID
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Subcategory != nil {
		out.Subcategory = *p.Subcategory
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.Mileage != nil {
		m := *p.Mileage
		out.Mileage = &m
	}
	if p.PaymentMethod != nil {
		out.PaymentMethod = *p.PaymentMethod
	}
	if p.ReceiptImage != nil {
		out.ReceiptImage = *p.ReceiptImage
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	return out
}
