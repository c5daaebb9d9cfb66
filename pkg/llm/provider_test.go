package llm

import (
	"testing"
)

func TestNormalizeArguments(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"valid object", `{"q":"wifi"}`, `{"q":"wifi"}`},
		{"empty string", "", "{}"},
		{"whitespace", "  \n ", "{}"},
		{"not json", "give me the wifi password", "{}"},
		{"json array", `[1,2]`, "{}"},
		{"json scalar", `"hello"`, "{}"},
		{"nested object", `{"filters":{"position":"CTO"}}`, `{"filters":{"position":"CTO"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeArguments(tc.in)
			if string(got) != tc.want {
				t.Fatalf("NormalizeArguments(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}
