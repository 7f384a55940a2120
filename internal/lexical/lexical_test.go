package lexical_test

import (
	"testing"

	"github.com/veriscan/veriscan/internal/lexical"
)

func TestNormalizeForComparison(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercase and strip punctuation",
			in:   "Hello, World! It's fine.",
			want: "hello world it s fine",
		},
		{
			name: "remove parenthesised citation",
			in:   "As shown (Smith, 2020) the result holds.",
			want: "as shown the result holds",
		},
		{
			name: "keep plain parentheses",
			in:   "the value (approximately) doubles",
			want: "the value approximately doubles",
		},
		{
			name: "collapse whitespace",
			in:   "a   b\t c",
			want: "a b c",
		},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lexical.NormalizeForComparison(tt.in); got != tt.want {
				t.Errorf("NormalizeForComparison(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSimilarityIdentical(t *testing.T) {
	text := "the experimental results confirm the original hypothesis in every trial"
	if got := lexical.Similarity(text, text); got < 0.999 {
		t.Errorf("Similarity(identical) = %g, want 1.0", got)
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	a := "alpha beta gamma delta epsilon zeta"
	b := "one two three four five six"
	if got := lexical.Similarity(a, b); got > 0.2 {
		t.Errorf("Similarity(disjoint) = %g, want near 0", got)
	}
}

func TestSimilarityCaseInsensitive(t *testing.T) {
	a := "The Quick Brown Fox Jumps Over The Lazy Dog"
	b := "the quick brown fox jumps over the lazy dog"
	if got := lexical.Similarity(a, b); got < 0.999 {
		t.Errorf("Similarity(case variants) = %g, want 1.0", got)
	}
}

func TestSimilarityRange(t *testing.T) {
	pairs := [][2]string{
		{"short", "a very much longer text that repeats words words words again and again"},
		{"the cat sat on the mat", "the dog sat on the log"},
		{"", "nonempty"},
		{"nonempty", ""},
	}
	for _, pair := range pairs {
		got := lexical.Similarity(pair[0], pair[1])
		if got < 0 || got > 1 {
			t.Errorf("Similarity(%q, %q) = %g, out of [0,1]", pair[0], pair[1], got)
		}
	}
}

func TestSimilarityParaphraseOrdering(t *testing.T) {
	original := "machine learning models require large amounts of labeled training data to generalize well"
	paraphrase := "machine learning models need large quantities of labeled training data to generalize properly"
	unrelated := "the restaurant serves breakfast until eleven in the morning on weekdays"

	paraScore := lexical.Similarity(original, paraphrase)
	unrelScore := lexical.Similarity(original, unrelated)
	if paraScore <= unrelScore {
		t.Errorf("paraphrase score %g not above unrelated score %g", paraScore, unrelScore)
	}
	if paraScore < 0.5 {
		t.Errorf("paraphrase score %g unexpectedly low", paraScore)
	}
}

func TestSimilarityContainmentMode(t *testing.T) {
	// The short side is fully contained in the long side; asymmetric
	// containment should score this highly despite the length gap.
	short := "the mitochondria is the powerhouse of the cell"
	long := "as every biology student learns early on in their studies the mitochondria is the " +
		"powerhouse of the cell and this phrase has become a cultural reference far beyond " +
		"biology classrooms spreading into general usage on the internet"

	got := lexical.Similarity(short, long)
	if got < 0.5 {
		t.Errorf("Similarity(contained) = %g, want >= 0.5", got)
	}
}
