package cryptoguard

import "testing"

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"https://Example.com/page":               "example.com",
		"http://example.com":                     "example.com",
		"https://www.example.com:8443/a/b?c=d#e": "example.com",
		"example.com/path":                       "example.com",
		"www.example.com":                        "example.com",
		"https://sub.example.com/":               "sub.example.com",
		"https://example.com?ref=1":              "example.com",
		"https://user@example.com/":              "example.com",
		"EXAMPLE.COM":                            "example.com",
	}

	for input, expected := range cases {
		got := NormalizeDomain(input)
		if got != expected {
			t.Fatalf("normalize %q: expected %q got %q", input, expected, got)
		}
	}
}

func TestNormalizeDomainEquivalence(t *testing.T) {
	variants := []string{
		"https://example.com",
		"http://example.com/page",
		"https://example.com:443/?q=1",
		"https://www.example.com/a",
		"example.com",
	}

	for _, v := range variants {
		if NormalizeDomain(v) != "example.com" {
			t.Fatalf("expected %q to normalize to example.com got %q", v, NormalizeDomain(v))
		}
	}
}

func TestNormalizeDomainIdempotent(t *testing.T) {
	inputs := []string{
		"https://Example.com/page",
		"https://www.www.example.com",
		"http://",
		"https://:8080/x",
		"chrome://extensions",
		"",
		"not a url",
		"www.",
	}

	for _, input := range inputs {
		once := NormalizeDomain(input)
		twice := NormalizeDomain(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestNormalizeDomainMalformed(t *testing.T) {
	if got := NormalizeDomain("http://"); got != "http://" {
		t.Fatalf("expected malformed url returned unchanged, got %q", got)
	}
}

func TestIsValidFlagURL(t *testing.T) {
	valid := []string{"http://example.com", "https://example.com/x"}
	invalid := []string{"chrome://newtab", "ftp://example.com", "example.com", "", "HTTPS://example.com"}

	for _, v := range valid {
		if !IsValidFlagURL(v) {
			t.Fatalf("expected %q to be ratable", v)
		}
	}
	for _, v := range invalid {
		if IsValidFlagURL(v) {
			t.Fatalf("expected %q to be rejected", v)
		}
	}
}

func TestIsAddress(t *testing.T) {
	if !IsAddress("0x00000000000000000000000000000000000000ab") {
		t.Fatalf("expected hex address to be accepted")
	}
	if IsAddress("0xABC") {
		t.Fatalf("expected short address to be rejected")
	}
	if IsAddress("00000000000000000000000000000000000000ab") {
		t.Fatalf("expected unprefixed address to be rejected")
	}
}
