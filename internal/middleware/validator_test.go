package middleware

import "testing"

func TestValidateTenantID(t *testing.T) {
	valid := []string{"acme", "acme-corp", "tenant_01", "A1"}
	for _, v := range valid {
		if err := ValidateTenantID(v); err != nil {
			t.Errorf("ValidateTenantID(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "has space", "slash/tenant", "dot.tenant", string(make([]byte, 65))}
	for _, v := range invalid {
		if err := ValidateTenantID(v); err == nil {
			t.Errorf("ValidateTenantID(%q) = nil, want error", v)
		}
	}
}

func TestValidateDocumentID(t *testing.T) {
	valid := []string{"doc-1", "bid.2024.pdf", "a_b-c.d"}
	for _, v := range valid {
		if err := ValidateDocumentID(v); err != nil {
			t.Errorf("ValidateDocumentID(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "doc 1", "../etc/passwd", "doc;drop"}
	for _, v := range invalid {
		if err := ValidateDocumentID(v); err == nil {
			t.Errorf("ValidateDocumentID(%q) = nil, want error", v)
		}
	}
}

func TestValidateRunID(t *testing.T) {
	if err := ValidateRunID("3b241101-e2bb-4255-8caf-4136c566a962"); err != nil {
		t.Errorf("valid uuid rejected: %v", err)
	}
	for _, v := range []string{"", "not-a-uuid", "3B241101-E2BB-4255-8CAF-4136C566A962"} {
		if err := ValidateRunID(v); err == nil {
			t.Errorf("ValidateRunID(%q) = nil, want error", v)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  PT Alpha  ", "PT Alpha"},
		{"null\x00byte", "nullbyte"},
		{"bell\x07char", "bellchar"},
		{"line\nkept", "line\nkept"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in); got != tc.want {
			t.Errorf("SanitizeString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidatePageSize(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 20},
		{-5, 20},
		{50, 50},
		{100, 100},
		{500, 100},
	}
	for _, tc := range cases {
		if got := ValidatePageSize(tc.in); got != tc.want {
			t.Errorf("ValidatePageSize(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestValidateDays(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 7},
		{-1, 7},
		{30, 30},
		{365, 365},
		{1000, 365},
	}
	for _, tc := range cases {
		if got := ValidateDays(tc.in); got != tc.want {
			t.Errorf("ValidateDays(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
