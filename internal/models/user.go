package models

import "time"

// Billing plans recognized by the limits service.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// User represents an account provisioned from the identity provider.
// Credentials never live here; Subject is the IdP "sub" claim and the row is
// upserted the first time a verified token for it is seen.
type User struct {
	ID        string
	Subject   string
	Email     string
	Plan      string
	CreatedAt time.Time
}
