package taxid

import (
	"testing"

	"xyzcredito.org/internal/domain"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in       string
		digits   string
		category domain.Category
	}{
		{"80962607401", "80962607401", domain.CategoryIndividual},
		{"809.626.074-01", "80962607401", domain.CategoryIndividual},
		{"529.982.247-25", "52998224725", domain.CategoryIndividual},
		{"03497961786765", "03497961786765", domain.CategoryOrganization},
		{"11.222.333/0001-81", "11222333000181", domain.CategoryOrganization},
	}
	for _, tc := range cases {
		digits, cat, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if digits != tc.digits || cat != tc.category {
			t.Fatalf("Parse(%q)=(%q,%q), want (%q,%q)", tc.in, digits, cat, tc.digits, tc.category)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "123", "80962607402", "11111111111", "00000000000000", "11222333000182", "abc"} {
		if _, _, err := Parse(in); domain.KindOf(err) != domain.KindInvalidTaxID {
			t.Fatalf("Parse(%q): expected invalid tax id, got %v", in, err)
		}
	}
}

func TestCompleteCPF(t *testing.T) {
	got, ok := CompleteCPF("809626074")
	if !ok || got != "80962607401" {
		t.Fatalf("CompleteCPF = %q, %v", got, ok)
	}
	for _, base := range []string{"", "12345678", "12345678a", "111111111"} {
		if _, ok := CompleteCPF(base); ok {
			t.Fatalf("CompleteCPF(%q) accepted", base)
		}
	}
	for _, base := range []string{"123456789", "529982247", "000000001"} {
		cpf, ok := CompleteCPF(base)
		if !ok || !ValidCPF(cpf) {
			t.Fatalf("CompleteCPF(%q) = %q not valid", base, cpf)
		}
	}
}
