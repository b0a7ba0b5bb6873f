package domain

import (
	"time"
)

// Business groups the users and companies of one customer account.
type Business struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Company is an owning company that uploads are attributed to.
type Company struct {
	ID         int64     `json:"id"`
	BusinessID int64     `json:"business_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewCompany creates a company under a business
func NewCompany(businessID int64, name string) Company {
	return Company{
		BusinessID: businessID,
		Name:       name,
		CreatedAt:  time.Now(),
	}
}

// WithName returns a copy of the company with an updated name
func (c Company) WithName(name string) Company {
	return Company{
		ID:         c.ID,
		BusinessID: c.BusinessID,
		Name:       name,
		CreatedAt:  c.CreatedAt,
	}
}

// User is an operator acting on behalf of a business.
type User struct {
	ID         int64  `json:"id"`
	BusinessID int64  `json:"business_id"`
	Email      string `json:"email"`
}

// OwnsCompany reports whether the user's business owns the company.
func (u User) OwnsCompany(c Company) bool {
	return u.BusinessID != 0 && u.BusinessID == c.BusinessID
}
