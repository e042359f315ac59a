package catalog

import (
	"testing"

	"github.com/bryanwahyu/neurally/internal/domain/analysis"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()
	for _, tt := range []analysis.TestType{analysis.TestSustainedVowel, analysis.TestSyllableRepetition, analysis.TestParagraphReading} {
		if len(c.Features(tt)) == 0 {
			t.Fatalf("no features for %s", tt)
		}
	}
	if first := c.Features(analysis.TestSustainedVowel)[0]; first.Key != "MaxPhonationTime(s)" {
		t.Fatalf("SV order broken, first key = %s", first.Key)
	}
}

func TestDisplayName(t *testing.T) {
	c := Default()
	tests := []struct {
		tt   analysis.TestType
		key  string
		want string
	}{
		{analysis.TestSustainedVowel, "Median_Pitch", "Median Pitch (Hz)"},
		{analysis.TestSustainedVowel, "GNE", "GNE"},
		{analysis.TestSyllableRepetition, "TST(s)", "Total Speech Time (s)"},
		{analysis.TestSustainedVowel, "some_new_feature", "some new feature"},
		{analysis.TestType("XX"), "Median_Pitch", "Median Pitch (Hz)"},
	}
	for _, tt := range tests {
		if got := c.DisplayName(tt.tt, tt.key); got != tt.want {
			t.Errorf("DisplayName(%s, %q) = %q, want %q", tt.tt, tt.key, got, tt.want)
		}
	}
}

func TestParseRejectsUnknownTestType(t *testing.T) {
	if _, err := Parse([]byte("ZZ:\n  - key: a\n")); err == nil {
		t.Fatal("expected error for unknown test type")
	}
	if _, err := Parse([]byte("SV:\n  - title: no key\n")); err == nil {
		t.Fatal("expected error for entry without key")
	}
}

func TestFeaturesReturnsCopy(t *testing.T) {
	c := Default()
	f := c.Features(analysis.TestParagraphReading)
	f[0].Title = "mutated"
	if c.Features(analysis.TestParagraphReading)[0].Title == "mutated" {
		t.Fatal("Features leaked internal slice")
	}
}
