package models

// Store collections the ledger mirrors
const (
	CollectionUsers    = "users"
	CollectionForms    = "registrationForms"
	CollectionPayments = "payments"
)

// Default ledger tabs
const (
	SheetUsers         = "Users"
	SheetRegistrations = "Registrations"
	SheetFinance       = "Finance"
	SheetDuePayments   = "Due Payments"
)

// FeePerPlayer is the registration fee charged for each player, in rupees
const FeePerPlayer = 800

// Form lifecycle values
const (
	FormStatusDraft     = "draft"
	FormStatusSubmitted = "submitted"
	FormStatusConfirmed = "confirmed"
)

// Payment verification values
const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusRejected = "rejected"
)

// Dashboard values written into User.SubmittedForms
const (
	DashboardConfirmed    = "confirmed"
	DashboardNotConfirmed = "not_confirmed"
)

// KnownCollection reports whether the collection participates in sync
func KnownCollection(name string) bool {
	switch name {
	case CollectionUsers, CollectionForms, CollectionPayments:
		return true
	}
	return false
}
