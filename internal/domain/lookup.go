package domain

import "strings"

// LookupRequest identifies the account to resolve.
type LookupRequest struct {
	BankBin   string `json:"bankBin"`
	AccountNo string `json:"accountNo"`
}

// Validate trims both fields and rejects empty values.
func (r *LookupRequest) Validate() error {
	r.BankBin = strings.TrimSpace(r.BankBin)
	r.AccountNo = strings.TrimSpace(r.AccountNo)
	if r.BankBin == "" || r.AccountNo == "" {
		return ErrValidation
	}
	return nil
}

// LookupResult is returned verbatim to the caller and never cached.
type LookupResult struct {
	AccountNo   string `json:"accountNo"`
	AccountName string `json:"accountName"`
	BankBin     string `json:"bankBin"`
}
