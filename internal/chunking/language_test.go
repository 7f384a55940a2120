package chunking_test

import (
	"testing"

	"github.com/veriscan/veriscan/internal/chunking"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "english prose",
			text: "The quick brown fox jumps over the lazy dog and runs into the forest for cover.",
			want: "en",
		},
		{
			name: "vietnamese diacritics",
			text: "Các sinh viên của trường đại học được đánh giá trong học kỳ này.",
			want: "vi",
		},
		{
			name: "too short",
			text: "hello world",
			want: "unknown",
		},
		{
			name: "no recognizable stopwords",
			text: "zzz qqq xxx yyy www vvv uuu ttt sss rrr qqq ppp",
			want: "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chunking.DetectLanguage(tt.text); got != tt.want {
				t.Errorf("DetectLanguage(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestValidLanguage(t *testing.T) {
	valid := []string{"", "auto", "unknown", "en", "vi", "fr"}
	for _, code := range valid {
		if !chunking.ValidLanguage(code) {
			t.Errorf("ValidLanguage(%q) = false, want true", code)
		}
	}
	invalid := []string{"EN", "eng", "e", "1a", "e!"}
	for _, code := range invalid {
		if chunking.ValidLanguage(code) {
			t.Errorf("ValidLanguage(%q) = true, want false", code)
		}
	}
}
