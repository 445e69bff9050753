// Package edi extracts denial records from X12 835 remittance advice text.
//
// This is deliberately not a full 835 parser. Billing only needs the claim
// adjustments carried by CAS segments, attributed to the claim identified by
// the most recent CLP segment. Payer files in the wild are messy, so the
// extraction is tolerant: malformed segments are skipped, malformed amounts
// become zero, and parsing never fails.
package edi

import (
	"strconv"
	"strings"
)

const (
	segmentTerminator = "~"
	elementSeparator  = "*"

	tagClaimPayment    = "CLP"
	tagClaimAdjustment = "CAS"
)

// Denial is one claim adjustment extracted from a remittance. Amount is
// non-negative; an unparseable amount field is recorded as zero rather than
// rejecting the document.
type Denial struct {
	ClaimID    string  `json:"claim_id"`
	GroupCode  string  `json:"group_code"`
	ReasonCode string  `json:"reason_code"`
	Amount     float64 `json:"amount"`
}

// Parse835 extracts denial records from raw 835 text. It is pure and
// deterministic: output order is document order, one record per qualifying
// CAS segment, no aggregation. CAS segments seen before any CLP, or with too
// few elements, are ignored.
func Parse835(text string) []Denial {
	var denials []Denial
	var currentClaimID string

	for _, segment := range strings.Split(text, segmentTerminator) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		elements := strings.Split(segment, elementSeparator)
		switch elements[0] {
		case tagClaimPayment:
			// A CLP without a claim id still resets attribution; adjustments
			// that follow it cannot be tied to a claim.
			currentClaimID = ""
			if len(elements) > 1 {
				currentClaimID = elements[1]
			}
		case tagClaimAdjustment:
			if currentClaimID == "" || len(elements) < 4 {
				continue
			}
			denials = append(denials, Denial{
				ClaimID:    currentClaimID,
				GroupCode:  elements[1],
				ReasonCode: elements[2],
				Amount:     parseAmount(elements[3]),
			})
		}
	}
	return denials
}

// parseAmount converts a CAS monetary field, defaulting to zero on anything
// non-numeric. Tolerance over strict validation is the policy for this
// ingestion path.
func parseAmount(raw string) float64 {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return amount
}
