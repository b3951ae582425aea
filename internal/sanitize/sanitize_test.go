package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "uuid unchanged", input: "3f2b8c1e-9d4a-4f6b-8e2a-1c5d7e9f0a1b", want: "3f2b8c1e-9d4a-4f6b-8e2a-1c5d7e9f0a1b"},
		{name: "email unchanged", input: "p.one@lab.example", want: "p.one@lab.example"},
		{name: "trims whitespace", input: "  u1 \n", want: "u1"},
		{name: "strips control chars", input: "u\x00s\x1be\x7fr", want: "user"},
		{name: "strips newlines inside", input: "a\nb\tc", want: "abc"},
		{name: "strips tags", input: "<script>alert</script>u2", want: "alertu2"},
		{name: "keeps comparison signs", input: "a < b", want: "a < b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ID(tt.input); got != tt.want {
				t.Errorf("ID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestID_Truncates(t *testing.T) {
	got := ID(strings.Repeat("x", MaxIDLength+50))
	if len(got) != MaxIDLength {
		t.Errorf("len = %d, want %d", len(got), MaxIDLength)
	}

	// A multi-byte rune straddling the limit is dropped whole.
	got = ID(strings.Repeat("x", MaxIDLength-1) + "é")
	if !utf8.ValidString(got) {
		t.Errorf("truncated id is not valid UTF-8: %q", got)
	}
	if len(got) != MaxIDLength-1 {
		t.Errorf("len = %d, want %d", len(got), MaxIDLength-1)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "block", input: "HC1", want: "HC1"},
		{name: "stimulus", input: "nogo2", want: "nogo2"},
		{name: "drops spaces and punctuation", input: " go 1!", want: "go1"},
		{name: "collapses hyphens", input: "a---b", want: "a-b"},
		{name: "collapses underscores", input: "a___b", want: "a_b"},
		{name: "drops tags", input: "<em>go1</em>", want: "go1"},
		{name: "drops unicode", input: "blöck", want: "blck"},
		{name: "truncates", input: strings.Repeat("b", MaxLabelLength+5), want: strings.Repeat("b", MaxLabelLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.input); got != tt.want {
				t.Errorf("Label(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
