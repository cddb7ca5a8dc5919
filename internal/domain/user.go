// Package domain holds the entities the POS backend operates on. Stores
// persist them, services enforce the rules around them.
package domain

import "time"

// Roles recognised by the authorization checks.
const (
	RoleAdmin    = "Admin"
	RoleEmployee = "Employee"
	RoleCustomer = "Customer"
)

// User is a person that can authenticate against the server: an employee
// operating a terminal, an administrator, or a registered customer.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
