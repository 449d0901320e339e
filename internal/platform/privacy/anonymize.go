// Package privacy masks personally identifiable values before they reach
// logs or ledger payloads shown outside the wallet.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

const (
	visibleSuffix = 4
	maskRune      = '*'
)

// MaskIdentifier hides all but the last four characters of an identifier
// such as a subject id or document number
// (e.g., "FAN-1234-5678" -> "*********5678").
//
// Values of four characters or fewer are fully masked. Returns "unknown" for
// blank input.
func MaskIdentifier(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	n := utf8.RuneCountInString(value)
	if n <= visibleSuffix {
		return strings.Repeat(string(maskRune), n)
	}
	runes := []rune(value)
	return strings.Repeat(string(maskRune), n-visibleSuffix) + string(runes[n-visibleSuffix:])
}

// MaskName keeps the first letter of each word of a personal name
// (e.g., "Abebe Kebede" -> "A**** K*****").
func MaskName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "unknown"
	}
	for i, f := range fields {
		runes := []rune(f)
		fields[i] = string(runes[0]) + strings.Repeat(string(maskRune), len(runes)-1)
	}
	return strings.Join(fields, " ")
}

// Fingerprint returns a short, stable digest of value so log lines about the
// same subject can be correlated without revealing it.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:6])
}
