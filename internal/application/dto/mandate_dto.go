package dto

// CreateMandateRequest alta de mandato en borrador.
type CreateMandateRequest struct {
	MemberID   string `json:"member_id"`
	HolderName string `json:"holder_name"`
	IBAN       string `json:"iban"`
	BIC        string `json:"bic,omitempty"`
	OneOff     bool   `json:"one_off,omitempty"`
}

// ActivateMandateRequest firma del mandato: fija el identificador bancario.
type ActivateMandateRequest struct {
	MandateID string `json:"mandate_id"`
	SignDate  string `json:"sign_date"` // YYYY-MM-DD
}

// MandateResponse vista del mandato.
type MandateResponse struct {
	ID        string `json:"id"`
	MandateID string `json:"mandate_id,omitempty"`
	MemberID  string `json:"member_id"`
	IBAN      string `json:"iban"`
	BIC       string `json:"bic,omitempty"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	SignDate  string `json:"sign_date,omitempty"`
}
