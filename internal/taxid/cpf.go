// Package taxid implements the Brazilian CPF individual tax identifier.
package taxid

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidFormat = errors.New("invalid CPF")

const cpfLength = 11

// CPF is a validated identifier in canonical form: 11 digits, no punctuation.
type CPF string

// Parse strips formatting from raw and validates both check digits.
func Parse(raw string) (CPF, error) {
	digits := stripNonDigits(raw)
	if len(digits) != cpfLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	if strings.Count(digits, digits[:1]) == cpfLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	if checkDigit(digits[:9]) != digits[9] || checkDigit(digits[:10]) != digits[10] {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	return CPF(digits), nil
}

// Valid reports whether raw parses.
func Valid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// FromBase derives a valid CPF from a 9-digit base number. Bases whose
// digits are all equal are shifted by one so the result always parses.
func FromBase(base int64) CPF {
	b := fmt.Sprintf("%09d", base%1_000_000_000)
	for strings.Count(b, b[:1]) == 9 {
		base++
		b = fmt.Sprintf("%09d", base%1_000_000_000)
	}
	b += string(checkDigit(b))
	b += string(checkDigit(b))
	return CPF(b)
}

func (c CPF) String() string { return string(c) }

// Formatted renders XXX.XXX.XXX-XX.
func (c CPF) Formatted() string {
	s := string(c)
	if len(s) != cpfLength {
		return s
	}
	return s[0:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:11]
}

// checkDigit computes the mod-11 verifier for a 9 or 10 digit prefix.
func checkDigit(prefix string) byte {
	weight := len(prefix) + 1
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (weight - i)
	}
	d := 11 - sum%11
	if d >= 10 {
		d = 0
	}
	return byte('0' + d)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
