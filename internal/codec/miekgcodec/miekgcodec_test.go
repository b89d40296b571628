package miekgcodec

import (
	"testing"

	"github.com/miekg/dns"

	"github.com/dingostack/aresolve/internal/codec"
	"github.com/dingostack/aresolve/internal/rr"
)

func TestBuildQueryRoundtrip(t *testing.T) {
	c := New()
	buf, err := c.BuildQuery(1234, "example.test", rr.KindA)
	if err != nil {
		t.Fatal(err)
	}

	m := new(dns.Msg)
	if err := m.Unpack(buf); err != nil {
		t.Fatal(err)
	}
	if m.Id != 1234 {
		t.Errorf("Id = %d, want 1234", m.Id)
	}
	if !m.RecursionDesired {
		t.Error("RecursionDesired should be set")
	}
	if len(m.Question) != 1 || m.Question[0].Qtype != dns.TypeA || m.Question[0].Name != "example.test." {
		t.Errorf("unexpected question: %+v", m.Question)
	}
	for _, extra := range m.Extra {
		if _, ok := extra.(*dns.OPT); ok {
			t.Error("query must not carry an EDNS0 OPT record")
		}
	}
}

func TestDecodeResponse(t *testing.T) {
	m := new(dns.Msg)
	m.Id = 99
	m.Response = true
	m.Rcode = dns.RcodeSuccess
	aRR, err := dns.NewRR("example.test. 300 IN A 93.184.216.34")
	if err != nil {
		t.Fatal(err)
	}
	m.Answer = append(m.Answer, aRR)

	buf, err := m.Pack()
	if err != nil {
		t.Fatal(err)
	}

	c := New()
	resp, err := c.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}

	if resp.ID() != 99 {
		t.Errorf("ID = %d, want 99", resp.ID())
	}
	if resp.Type() != codec.MsgResponse {
		t.Error("Type should be Response")
	}
	if resp.Rcode() != 0 {
		t.Errorf("Rcode = %d, want 0", resp.Rcode())
	}
	if resp.Truncated() {
		t.Error("should not be truncated")
	}
	answers := resp.Answers()
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(answers))
	}
	if answers[0].Data != "93.184.216.34" || answers[0].Kind != rr.KindA || answers[0].TTL != 300 {
		t.Errorf("unexpected answer: %+v", answers[0])
	}
}

func TestDecodeInvalidPayload(t *testing.T) {
	c := New()
	if _, err := c.Decode([]byte{0x01, 0x02}); err == nil {
		t.Error("expected an error decoding a truncated payload")
	}
}

func TestAnswerFromOtherKind(t *testing.T) {
	m := new(dns.Msg)
	m.Id = 1
	m.Response = true
	mx, err := dns.NewRR("example.test. 300 IN MX 10 mail.example.test.")
	if err != nil {
		t.Fatal(err)
	}
	m.Answer = append(m.Answer, mx)
	buf, err := m.Pack()
	if err != nil {
		t.Fatal(err)
	}

	c := New()
	resp, err := c.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	answers := resp.Answers()
	if len(answers) != 1 || answers[0].Kind.Code() != dns.TypeMX {
		t.Errorf("unexpected answers: %+v", answers)
	}
}
