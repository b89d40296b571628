package rr

import (
	"testing"

	"github.com/miekg/dns"
)

func TestIsAlias(t *testing.T) {
	if !KindCNAME.IsAlias() {
		t.Error("CNAME should be an alias kind")
	}
	if !KindDNAME.IsAlias() {
		t.Error("DNAME should be an alias kind")
	}
	if KindA.IsAlias() || KindAAAA.IsAlias() {
		t.Error("A/AAAA must not be alias kinds")
	}
}

func TestOtherKindRecognizesNamedCodes(t *testing.T) {
	if OtherKind(dns.TypeA) != KindA {
		t.Error("OtherKind(TypeA) should equal KindA")
	}
	if OtherKind(dns.TypeMX).other != true {
		t.Error("OtherKind(TypeMX) should be marked other")
	}
}

func TestKindString(t *testing.T) {
	if KindA.String() != "A" {
		t.Error("Expected A, got", KindA.String())
	}
	if OtherKind(dns.TypeMX).String() != "MX" {
		t.Error("Expected MX, got", OtherKind(dns.TypeMX).String())
	}
	if OtherKind(65280).String() != "TYPE65280" {
		t.Error("Expected fallback TYPE65280, got", OtherKind(65280).String())
	}
}

func TestUnsetTTL(t *testing.T) {
	a := Answer{Data: "127.0.0.1", Kind: KindA, TTL: UnsetTTL}
	if a.TTL >= 0 {
		t.Error("UnsetTTL sentinel should be negative")
	}
}
