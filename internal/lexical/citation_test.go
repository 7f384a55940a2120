package lexical_test

import (
	"testing"

	"github.com/veriscan/veriscan/internal/lexical"
)

func TestHasCitation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "author year", text: "As stated in (Smith, 2020), the effect is real.", want: true},
		{name: "bracket reference", text: "This was demonstrated earlier [12].", want: true},
		{name: "doi", text: "See 10.1038/nature12373 for details.", want: true},
		{name: "url", text: "Published at https://example.org/paper.", want: true},
		{name: "plain prose", text: "The effect is real and well documented.", want: false},
		{name: "parenthetical without year", text: "The effect (surprisingly) is real.", want: false},
		{name: "four digit bracket", text: "The year [2020] was unusual.", want: false},
		{name: "lowercase author", text: "As stated in (smith, 2020).", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lexical.HasCitation(tt.text); got != tt.want {
				t.Errorf("HasCitation(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCitedNames(t *testing.T) {
	text := "Early work (Smith, 2020) and later results (Nguyen & Tran, 2022) agree."
	got := lexical.CitedNames(text)
	want := []string{"smith", "nguyen & tran"}
	if len(got) != len(want) {
		t.Fatalf("CitedNames returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CitedNames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCitedNamesNone(t *testing.T) {
	if got := lexical.CitedNames("no citations here"); got != nil {
		t.Errorf("CitedNames = %v, want nil", got)
	}
}

func TestCitesSource(t *testing.T) {
	names := []string{"smith"}
	tests := []struct {
		name     string
		title    string
		metadata map[string]string
		want     bool
	}{
		{name: "name in title", title: "Smith: Collected Essays", want: true},
		{name: "name in metadata", title: "Collected Essays", metadata: map[string]string{"author": "J. Smith"}, want: true},
		{name: "no overlap", title: "Unrelated Work", metadata: map[string]string{"author": "Jones"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lexical.CitesSource(names, tt.title, tt.metadata); got != tt.want {
				t.Errorf("CitesSource(%v, %q, %v) = %v, want %v",
					names, tt.title, tt.metadata, got, tt.want)
			}
		})
	}
}

func TestCitesSourceNoNames(t *testing.T) {
	if lexical.CitesSource(nil, "Smith: Collected Essays", nil) {
		t.Error("CitesSource with no names should be false")
	}
}
