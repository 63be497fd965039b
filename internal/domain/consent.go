package domain

import "time"

// ConsentState is the payment consent status of a session.
type ConsentState string

const (
	// ConsentNone means the user has not yet authorized payment tools.
	ConsentNone ConsentState = "none"
	// ConsentGranted means an explicit affirmative utterance armed payment
	// tools for the rest of the session.
	ConsentGranted ConsentState = "granted"
)

// Consent records the session's payment authorization. Once granted it
// stays granted until the session is reset.
type Consent struct {
	State     ConsentState `json:"state"`
	GrantedAt time.Time    `json:"grantedAt,omitempty"`
	Scope     string       `json:"scope,omitempty"` // payment method hint, e.g. "card"
}

// Granted reports whether payment tools may be dispatched.
func (c Consent) Granted() bool {
	return c.State == ConsentGranted
}
