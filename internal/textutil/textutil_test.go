package textutil

import "testing"

func TestCleanOCR(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"form feed", "Qualification 5\n\f", "Qualification 5"},
		{"multi line", "Quarterfinal\n 2\t1\n", "Quarterfinal 2 1"},
		{"accents decompose", "Québec Match", "Quebec Match"},
		{"drops non ascii", "Final ★ 1", "Final 1"},
		{"only noise", "\f\n ", ""},
		{"keeps keyword", "CH 12", "CH 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanOCR(tt.in); got != tt.want {
				t.Errorf("CleanOCR(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Qualification 5 of 80", "Qualification 5 of 80"},
		{"Final 1/2", "Final 1-2"},
		{"  Semi: A?  ", "Semi- A"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
