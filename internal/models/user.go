package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCustomer  Role = "customer"
	RoleShopOwner Role = "shop_owner"
)

const (
	PermManageExpenses = "manage_expenses"
	PermViewExpenses   = "view_expenses"
	PermManageBookings = "manage_bookings"
	PermManageUsers    = "manage_users"
)

// User is a customer, a repair-shop owner or an administrator.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	FirstName    string             `bson:"first_name" json:"first_name"`
	LastName     string             `bson:"last_name" json:"last_name"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request. An empty role
// registers a customer.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Claims is the authenticated identity extracted from a token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleCustomer, RoleShopOwner:
		return true
	default:
		return false
	}
}

// IsSelfAssignable reports whether a role may be chosen at registration.
func IsSelfAssignable(role Role) bool {
	return role == RoleCustomer || role == RoleShopOwner
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	return RoleHasPermission(u.Role, action)
}

// RoleHasPermission is the permission table behind HasPermission.
func RoleHasPermission(role Role, action string) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleCustomer:
		return action == PermManageExpenses || action == PermViewExpenses
	case RoleShopOwner:
		return action == PermManageBookings
	default:
		return false
	}
}
