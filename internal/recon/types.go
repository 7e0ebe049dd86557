package recon

import (
	"fmt"
	"strings"
)

// Snapshot is one party's description of a card: either the attributes a
// provider reported or what is currently stored. Empty fields are unknown.
type Snapshot struct {
	CardType       string `json:"card_type,omitempty"`
	LastFour       string `json:"last_four,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"` // MM/YYYY
	CardholderName string `json:"cardholder_name,omitempty"`
	Status         string `json:"status,omitempty"`
	IsDefault      *bool  `json:"is_default,omitempty"`
}

// Resolution is the merged record the reconciliation service proposes.
type Resolution struct {
	CardType    string            `json:"card_type"`
	LastFour    string            `json:"last_four"`
	ExpiryMonth string            `json:"expiry_month"`
	ExpiryYear  string            `json:"expiry_year"`
	Status      string            `json:"status"`
	IsDefault   *bool             `json:"is_default"`
	FieldNotes  map[string]string `json:"field_notes"`
	Confidence  float64           `json:"confidence"`
}

// ExpiryDate returns the merged expiry in storage format MM/YYYY.
func (r *Resolution) ExpiryDate() string {
	month := r.ExpiryMonth
	if len(month) == 1 {
		month = "0" + month
	}
	return month + "/" + r.ExpiryYear
}

// Attributes flattens the resolution into card-directory update attributes.
// Only populated fields are included.
func (r *Resolution) Attributes() map[string]any {
	attrs := make(map[string]any)
	if r.CardType != "" {
		attrs["card_type"] = r.CardType
	}
	if r.LastFour != "" {
		attrs["last_four"] = r.LastFour
	}
	if r.ExpiryMonth != "" && r.ExpiryYear != "" {
		attrs["expiry_date"] = r.ExpiryDate()
	}
	if r.Status != "" {
		attrs["status"] = r.Status
	}
	if r.IsDefault != nil {
		attrs["is_default"] = *r.IsDefault
	}
	return attrs
}

// ReconciliationError is any failure of the reconciliation path: transport,
// a response without a parseable JSON block, or a block missing required
// keys. It is always non-fatal to callers.
type ReconciliationError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ReconciliationError) Error() string {
	msg := "reconciliation failed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if raw := strings.TrimSpace(e.Raw); raw != "" {
		if len(raw) > 200 {
			raw = raw[:200] + "..."
		}
		msg = fmt.Sprintf("%s (raw: %s)", msg, raw)
	}
	return msg
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
