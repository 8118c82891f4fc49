package models

import "time"

// ApplicationStatus is derived from the milestone dates on a record; it is
// never stored alongside the record.
type ApplicationStatus string

const (
	StatusSubmitted ApplicationStatus = "Submitted"
	StatusApproved  ApplicationStatus = "Approved"
	StatusDeclined  ApplicationStatus = "Declined"
	StatusExecuted  ApplicationStatus = "Executed"
	StatusLive      ApplicationStatus = "Live"
	StatusCancelled ApplicationStatus = "Cancelled"
	StatusExpired   ApplicationStatus = "Expired"
)

// Prime classification values as they appear on synced records.
const (
	PrimeClassPrime    = "Prime"
	PrimeClassSubPrime = "Sub-Prime"
)

// ApplicationRecord is one finance-application decision synced from the
// lender platform. Records are read-only inside this service.
type ApplicationRecord struct {
	ID               string     `db:"id" json:"id"`
	Reference        string     `db:"reference" json:"reference"`
	Lender           string     `db:"lender" json:"lender"`
	Retailer         string     `db:"retailer" json:"retailer"`
	BDM              string     `db:"bdm" json:"bdm"`
	FinanceProduct   string     `db:"finance_product" json:"finance_product"`
	PrimeClass       string     `db:"prime_class" json:"prime_class"`
	LoanAmount       float64    `db:"loan_amount" json:"loan_amount"`
	CommissionAmount float64    `db:"commission_amount" json:"commission_amount"`
	SubmittedAt      time.Time  `db:"submitted_at" json:"submitted_at"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	DeclinedAt       *time.Time `db:"declined_at" json:"declined_at,omitempty"`
	ContractSignedAt *time.Time `db:"contract_signed_at" json:"contract_signed_at,omitempty"`
	LiveAt           *time.Time `db:"live_at" json:"live_at,omitempty"`
	CancelledAt      *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ExpiredAt        *time.Time `db:"expired_at" json:"expired_at,omitempty"`
}

// Status resolves the derived application status. Terminal milestones take
// precedence over progress milestones: a cancelled or expired application
// stays that way regardless of how far it previously advanced.
func (r ApplicationRecord) Status() ApplicationStatus {
	switch {
	case r.CancelledAt != nil:
		return StatusCancelled
	case r.ExpiredAt != nil:
		return StatusExpired
	case r.LiveAt != nil:
		return StatusLive
	case r.ContractSignedAt != nil:
		return StatusExecuted
	case r.DeclinedAt != nil:
		return StatusDeclined
	case r.ApprovedAt != nil:
		return StatusApproved
	default:
		return StatusSubmitted
	}
}
