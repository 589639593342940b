package api

import "github.com/arborcode/profilescope/pkg/models"

// StartRunRequest is the body of POST /api/v1/runs.
type StartRunRequest struct {
	// Subject is either a direct profile URL (InputKind "direct-url") or a
	// "first last"-shaped search query (InputKind "search-query").
	Subject   string           `json:"subject" binding:"required"`
	InputKind models.InputKind `json:"input_kind" binding:"required"`
	Budget    int              `json:"budget"`
	Consent   *ConsentRequest  `json:"consent,omitempty"`
}

// ConsentRequest mirrors models.ConsentFlags for the wire. Omitted fields
// default to false; omitting Consent entirely uses DefaultConsentFlags.
type ConsentRequest struct {
	Profile bool `json:"profile"`
	Email   bool `json:"email"`
	Phone   bool `json:"phone"`
	Address bool `json:"address"`
}

func (r *ConsentRequest) toFlags() models.ConsentFlags {
	if r == nil {
		return models.DefaultConsentFlags()
	}
	return models.ConsentFlags{
		Profile: r.Profile,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
	}
}
