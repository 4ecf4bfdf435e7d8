package customer

import (
	"regexp"
	"strings"
	"time"

	"carrental/internal/apperr"
	"carrental/internal/auth"
)

// Customer is a registered account. The password hash never leaves the
// package in JSON.
type Customer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        *string   `json:"phone,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the caller identity carried in access tokens.
func (c *Customer) Identity() auth.Identity {
	return auth.Identity{CustomerID: c.ID, Email: c.Email, IsAdmin: c.IsAdmin}
}

// NewCustomer is the row written by Insert. PasswordHash must already be
// encoded.
type NewCustomer struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        *string
	IsAdmin      bool
}

// CustomerFilter narrows a customer listing.
type CustomerFilter struct {
	Search string
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Customer  *Customer `json:"customer"`
}

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize trims the request and validates it.
func (r *RegisterRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	if r.Phone != nil {
		p := strings.TrimSpace(*r.Phone)
		if p == "" {
			r.Phone = nil
		} else {
			r.Phone = &p
		}
	}

	if r.Name == "" || r.Email == "" || r.Password == "" {
		return apperr.Validation(apperr.CodeInvalidField, "name, email, and password are required")
	}
	if !emailPattern.MatchString(r.Email) {
		return apperr.Validation(apperr.CodeInvalidField, "invalid email format")
	}
	if len(r.Password) < minPasswordLength {
		return apperr.Validation(apperr.CodeInvalidField, "password must be at least 6 characters")
	}
	return nil
}

func notFound() *apperr.Error {
	return apperr.NotFound(apperr.CodeCustomerNotFound, "customer not found")
}
