package utils

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers stored without a country prefix.
const DefaultPhoneRegion = "IN"

// NormalizeE164 parses a phone number and formats it as E.164.
// region is the ISO 3166-1 alpha-2 code assumed for national-format input.
func NormalizeE164(raw, region string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("phone number is empty")
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(trimmed, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("phone number %q is not valid", trimmed)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// IsSIPURI reports whether endpoint addresses a SIP user agent rather than a phone number.
func IsSIPURI(endpoint string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "sip:")
}
