package agent

import "strings"

// consentPhrases are affirmative payment-consent utterances. Detection is
// deliberately conservative: a phrase must appear verbatim so that casual
// mentions of payment never arm the gate.
var consentPhrases = []string{
	"i consent",
	"i agree to pay",
	"i authorize the payment",
	"i authorise the payment",
	"yes, charge",
	"yes charge",
	"go ahead with the payment",
	"go ahead and charge",
	"you have my consent",
	"consent to pay",
}

// methodHints map utterance fragments to a consent scope.
var methodHints = map[string]string{
	"card":        "card",
	"credit card": "card",
	"debit card":  "card",
	"upi":         "upi",
	"netbanking":  "netbanking",
	"wallet":      "wallet",
}

// DetectConsent reports whether the utterance is an explicit payment
// consent, and if so the payment-method scope it mentions (empty when
// none was named).
func DetectConsent(utterance string) (granted bool, scope string) {
	lower := strings.ToLower(utterance)
	for _, p := range consentPhrases {
		if strings.Contains(lower, p) {
			granted = true
			break
		}
	}
	if !granted {
		return false, ""
	}
	// longest hint wins so "credit card" beats "card"
	best := 0
	for hint, s := range methodHints {
		if strings.Contains(lower, hint) && len(hint) > best {
			best = len(hint)
			scope = s
		}
	}
	return true, scope
}
