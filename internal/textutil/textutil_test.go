package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/veriscan/veriscan/internal/textutil"
)

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string // substrings that must appear
		not  []string // substrings that must not appear
	}{
		{
			name: "headings and emphasis",
			in:   "# Title\n\nSome **bold** and *italic* text.",
			want: []string{"Title", "Some bold and italic text."},
			not:  []string{"#", "*"},
		},
		{
			name: "links keep label",
			in:   "See [the paper](https://example.org/p.pdf) for details.",
			want: []string{"the paper", "for details"},
			not:  []string{"](", "https://example.org"},
		},
		{
			name: "code block content kept",
			in:   "Intro\n\n```\nx = 1\n```\n\nOutro",
			want: []string{"Intro", "x = 1", "Outro"},
			not:  []string{"```"},
		},
		{
			name: "list markers removed",
			in:   "- first item\n- second item",
			want: []string{"first item", "second item"},
			not:  []string{"- "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textutil.StripMarkdown(tt.in)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("StripMarkdown output %q missing %q", got, want)
				}
			}
			for _, not := range tt.not {
				if strings.Contains(got, not) {
					t.Errorf("StripMarkdown output %q still contains %q", got, not)
				}
			}
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	valid := "xin chào thế giới"
	if got := textutil.SanitizeUTF8(valid); got != valid {
		t.Errorf("SanitizeUTF8 changed valid input: %q", got)
	}

	broken := "ok\xff\xfealso ok"
	got := textutil.SanitizeUTF8(broken)
	if !utf8.ValidString(got) {
		t.Errorf("SanitizeUTF8 output still invalid: %q", got)
	}
	if !strings.Contains(got, "ok") || !strings.Contains(got, "also ok") {
		t.Errorf("SanitizeUTF8 dropped valid content: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short enough", in: "hello", max: 10, want: "hello"},
		{name: "exact length", in: "hello", max: 5, want: "hello"},
		{name: "truncated", in: "hello world", max: 5, want: "hello..."},
		{name: "multibyte", in: "chào bạn nhé", max: 4, want: "chào..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textutil.Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}
