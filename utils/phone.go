package utils

import "strings"

// DigitsOnly drops every rune that is not an ASCII digit
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone reduces a phone number to its canonical digits and reports
// whether the result has an acceptable length.
func NormalizePhone(raw string) (string, bool) {
	digits := DigitsOnly(raw)
	if len(digits) < MinPhoneDigits || len(digits) > MaxPhoneDigits {
		return digits, false
	}
	return digits, true
}

// MaskPhone hides the middle digits of a phone for log output
func MaskPhone(phone string) string {
	if len(phone) < 6 {
		return phone
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
