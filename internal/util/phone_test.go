package util

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+56 9 1234 5678", "+56912345678"},
		{"0056912345678", "+56912345678"},
		{"56912345678", "+56912345678"},
		{"912345678", "+56912345678"},
		{"(56) 9-1234-5678", "+56912345678"},
		{"  +56912345678  ", "+56912345678"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
