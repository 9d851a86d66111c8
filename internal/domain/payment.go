package domain

import "time"

// Payment records a verified gateway payment. JobID is linked later, when the
// payment token is spent on a full comic job.
type Payment struct {
	PaymentID string
	OrderID   string
	Signature string
	Amount    int64
	Currency  string
	Status    string
	JobID     *string
	CreatedAt time.Time
}
