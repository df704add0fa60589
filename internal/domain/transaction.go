package domain

import (
	"time"
)

// Transaction is an expense or claim to be checked against the claimant's
// history. Amounts are integer minor units (cents). The engine never
// mutates a Transaction.
type Transaction struct {
	ID    string `json:"id"`
	OrgID string `json:"orgId"`

	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`

	Date        time.Time `json:"date"`
	Description string    `json:"description"`

	// Optional classification fields. Absence means "no signal available"
	// for the checks that depend on them.
	CategoryCode string `json:"categoryCode,omitempty"`
	MerchantName string `json:"merchantName,omitempty"`
}

// TransactionRequest is the API request payload for a fraud check.
type TransactionRequest struct {
	ID           string    `json:"id,omitempty"`
	Amount       int64     `json:"amount" validate:"required,gt=0"`
	Currency     string    `json:"currency" validate:"required,len=3"`
	Date         time.Time `json:"date" validate:"required"`
	Description  string    `json:"description"`
	CategoryCode string    `json:"categoryCode,omitempty"`
	MerchantName string    `json:"merchantName,omitempty"`
}

// ToTransaction converts a request to a Transaction owned by the given org.
func (r *TransactionRequest) ToTransaction(orgID string) *Transaction {
	return &Transaction{
		ID:           r.ID,
		OrgID:        orgID,
		Amount:       r.Amount,
		Currency:     r.Currency,
		Date:         r.Date,
		Description:  r.Description,
		CategoryCode: r.CategoryCode,
		MerchantName: r.MerchantName,
	}
}
