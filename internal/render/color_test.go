package render

import "testing"

func TestNormalizeColor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"#aabbcc", "AABBCC"},
		{"aabbcc", "AABBCC"},
		{"#abc", "AABBCC"},
		{"#aabbccdd", "AABBCC"},
		{"red", "FF0000"},
		{"Teal", "008080"},
		{"rgb(255, 0, 128)", "FF0080"},
		{"rgba(16, 32, 48, 0.5)", "102030"},
		{"not-a-color", "000000"},
		{"", "000000"},
	}
	for _, tc := range cases {
		if got := NormalizeColor(tc.in); got != tc.want {
			t.Errorf("NormalizeColor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
