package redact

import "testing"

func TestToken(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "<none>"},
		{"short", "[REDACTED_TOKEN]"},
		{"eyJhbGciOiJIUzI1NiJ9.x.y", "eyJh…[REDACTED_TOKEN]"},
	}
	for _, c := range cases {
		if got := Token(c.in); got != c.want {
			t.Errorf("Token(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"player@meepleboard.com", "pl***@meepleboard.com"},
		{"ab@x.io", "***@x.io"},
		{"not-an-email", "***"},
	}
	for _, c := range cases {
		if got := Email(c.in); got != c.want {
			t.Errorf("Email(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
