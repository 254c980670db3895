package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// User represents a user in the system
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string            `bson:"username" json:"username"`
	Email        string            `bson:"email" json:"email"`
	PasswordHash string            `bson:"password_hash" json:"-"`
	Role         Role              `bson:"role" json:"role"`
	FirstName    string            `bson:"first_name" json:"first_name"`
	LastName     string            `bson:"last_name" json:"last_name"`
	IsActive     bool              `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time        `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=60"`
	LastName  string `json:"last_name" validate:"max=60"`
	Role      Role   `json:"role" validate:"omitempty,oneof=admin driver"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleDriver:
		return true
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action.
// Drivers work the maintenance queue; everything that shapes it belongs to admins.
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleDriver:
		return action == "view_vehicles" || action == "view_maintenance" ||
			action == "complete_maintenance" || action == "update_mileage"
	default:
		return false
	}
}
