package mojibake

import "testing"

// misencode simulates how the exporter damages text: it takes real UTF-8 bytes
// and turns each byte into its own codepoint.
func misencode(s string) string {
	runes := make([]rune, 0, len(s))
	for _, b := range []byte(s) {
		runes = append(runes, rune(b))
	}
	return string(runes)
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "ascii is identity",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "accented latin",
			input: misencode("café"),
			want:  "café",
		},
		{
			name:  "emoji reaction",
			input: misencode("❤️"),
			want:  "❤️",
		},
		{
			name:  "mixed ascii and multibyte",
			input: misencode("góðan daginn"),
			want:  "góðan daginn",
		},
		{
			name:  "cyrillic",
			input: misencode("привет"),
			want:  "привет",
		},
		{
			name:  "invalid byte sequence returned unchanged",
			input: "Ã", // lone continuation lead byte
			want:  "Ã",
		},
		{
			name:  "already decoded text returned unchanged",
			input: "日本語",
			want:  "日本語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Repair(tt.input); got != tt.want {
				t.Errorf("Repair(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRepairRoundTrip(t *testing.T) {
	// For any real UTF-8 string, misencoding then repairing must recover it.
	inputs := []string{"é", "ü", "ñandú", "😀 ok", "χαίρετε", "mixed ascii é 😀"}
	for _, s := range inputs {
		if got := Repair(misencode(s)); got != s {
			t.Errorf("round trip %q: got %q", s, got)
		}
	}
}
