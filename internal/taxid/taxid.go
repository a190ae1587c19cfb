// Package taxid validates and normalizes Brazilian tax identifiers
// (CPF for individuals, CNPJ for organizations).
package taxid

import (
	"strings"

	"xyzcredito.org/internal/domain"
)

const (
	cpfLen  = 11
	cnpjLen = 14
)

var (
	cpfWeights1  = []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	cpfWeights2  = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Normalize strips every non-digit character.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse normalizes raw and validates its check digits, returning the
// digits-only form and the category of the checksum family that matched.
func Parse(raw string) (string, domain.Category, error) {
	digits := Normalize(raw)
	switch {
	case ValidCPF(digits):
		return digits, domain.CategoryIndividual, nil
	case ValidCNPJ(digits):
		return digits, domain.CategoryOrganization, nil
	default:
		return "", "", domain.E(domain.KindInvalidTaxID, "invalid CPF / CNPJ")
	}
}

// ValidCPF checks an already-normalized CPF.
func ValidCPF(digits string) bool {
	if len(digits) != cpfLen || repeated(digits) {
		return false
	}
	d := toInts(digits)
	if cpfDigit(d[:9], cpfWeights1) != d[9] {
		return false
	}
	return cpfDigit(d[:10], cpfWeights2) == d[10]
}

// ValidCNPJ checks an already-normalized CNPJ.
func ValidCNPJ(digits string) bool {
	if len(digits) != cnpjLen || repeated(digits) {
		return false
	}
	d := toInts(digits)
	if cnpjDigit(d[:12], cnpjWeights1) != d[12] {
		return false
	}
	return cnpjDigit(d[:13], cnpjWeights2) == d[13]
}

func cpfDigit(d, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += d[i] * w
	}
	return (sum * 10) % 11 % 10
}

func cnpjDigit(d, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += d[i] * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func toInts(digits string) []int {
	out := make([]int, len(digits))
	for i := 0; i < len(digits); i++ {
		out[i] = int(digits[i] - '0')
	}
	return out
}

// repeated rejects sequences such as 00000000000 that pass the checksum.
func repeated(digits string) bool {
	return strings.Count(digits, digits[:1]) == len(digits)
}

// CompleteCPF appends both check digits to a nine-digit base.
func CompleteCPF(base string) (string, bool) {
	if len(base) != 9 || Normalize(base) != base {
		return "", false
	}
	d := toInts(base)
	d = append(d, cpfDigit(d, cpfWeights1))
	d = append(d, cpfDigit(d, cpfWeights2))
	out := make([]byte, len(d))
	for i, v := range d {
		out[i] = byte('0' + v)
	}
	if repeated(string(out)) {
		return "", false
	}
	return string(out), true
}
