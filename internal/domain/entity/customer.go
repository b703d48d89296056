package entity

import "time"

// Customer is a billable party of the account (billing).
type Customer struct {
	ID              string
	OwnerID         string
	Name            string
	Email           string
	Phone           string
	BillingAddress  string
	ShippingAddress string
	State           string // GST jurisdiction
	GSTIN           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
