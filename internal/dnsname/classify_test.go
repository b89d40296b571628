package dnsname

import (
	"strings"
	"testing"
)

func TestClassifyLiterals(t *testing.T) {
	if Classify("127.0.0.1") != IP4Literal {
		t.Error("127.0.0.1 should classify as IP4Literal")
	}
	if Classify("::1") != IP6Literal {
		t.Error("::1 should classify as IP6Literal")
	}
	if Classify("2001:db8::1") != IP6Literal {
		t.Error("2001:db8::1 should classify as IP6Literal")
	}
}

func TestClassifyHostname(t *testing.T) {
	if Classify("example.test") != Hostname {
		t.Error("example.test should classify as Hostname")
	}
	if Classify("localhost") != Hostname {
		t.Error("localhost should classify as Hostname")
	}
	if Classify("a-b.c-d.example") != Hostname {
		t.Error("hyphenated labels should be valid")
	}
}

func TestClassifyInvalid(t *testing.T) {
	cases := []string{
		"",
		"-leading.example.test",
		"trailing-.example.test",
		"under_score.example.test",
		"..",
		"a..b",
	}
	for _, c := range cases {
		if Classify(c) != Invalid {
			t.Errorf("%q should classify as Invalid", c)
		}
	}
}

func TestClassifyLengthBoundary(t *testing.T) {
	name253 := buildNameOfLength(253)
	name254 := buildNameOfLength(254)

	if len(name253) != 253 {
		t.Fatalf("test bug: want len 253 got %d", len(name253))
	}
	if len(name254) != 254 {
		t.Fatalf("test bug: want len 254 got %d", len(name254))
	}

	if Classify(name253) != Hostname {
		t.Error("253-byte name should be accepted")
	}
	if Classify(name254) != Invalid {
		t.Error("254-byte name should be rejected")
	}
}

// buildNameOfLength constructs a syntactically valid dotted name of exactly n bytes using
// 63-byte labels (the maximum) followed by a short final label to hit the exact target length.
func buildNameOfLength(n int) string {
	var b strings.Builder
	remaining := n
	for remaining > 64 { // label + dot
		b.WriteString(strings.Repeat("a", 63))
		b.WriteByte('.')
		remaining -= 64
	}
	if remaining > 0 {
		b.WriteString(strings.Repeat("a", remaining))
	}
	return b.String()
}

func TestLabelBoundaries(t *testing.T) {
	if Classify(strings.Repeat("a", 63) + ".example.test") != Hostname {
		t.Error("63-byte label should be accepted")
	}
	if Classify(strings.Repeat("a", 64) + ".example.test") != Invalid {
		t.Error("64-byte label should be rejected")
	}
	if Classify("-bad.example.test") != Invalid {
		t.Error("label starting with - should be rejected")
	}
	if Classify("bad-.example.test") != Invalid {
		t.Error("label ending with - should be rejected")
	}
}

func TestLowercase(t *testing.T) {
	if Lowercase("Example.TEST") != "example.test" {
		t.Error("Lowercase did not fold case")
	}
}
