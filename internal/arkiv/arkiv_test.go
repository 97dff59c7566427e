package arkiv

import (
	"context"
	"testing"
)

func TestAndCollapsesEmpty(t *testing.T) {
	if got := And(); got != nil {
		t.Fatalf("And() = %+v, want nil", got)
	}

	p := And(Eq("eventType", "ReviewSubmitted"), Eq("chain", "base"))
	if p == nil || len(p.And) != 2 {
		t.Fatalf("unexpected conjunction %+v", p)
	}
	if p.And[0].Key != "eventType" || p.And[0].Op != "eq" || p.And[0].Value != "ReviewSubmitted" {
		t.Fatalf("unexpected leaf %+v", p.And[0])
	}
}

func TestEntityAttributeFirstWins(t *testing.T) {
	ent := Entity{Attributes: []Attribute{
		{Key: "skill", Value: "Rust"},
		{Key: "skill", Value: "React"},
		{Key: "chain", Value: "polkadot"},
	}}

	v, ok := ent.Attribute("skill")
	if !ok || v != "Rust" {
		t.Fatalf("Attribute(skill) = %q ok=%v", v, ok)
	}
	if _, ok := ent.Attribute("student"); ok {
		t.Fatal("missing attribute reported as present")
	}
}

func TestDialRejectsMissingCredentials(t *testing.T) {
	ctx := context.Background()
	if _, err := Dial(ctx, "", "0x01"); err == nil {
		t.Fatal("expected missing url to fail")
	}
	if _, err := Dial(ctx, "http://node", ""); err == nil {
		t.Fatal("expected missing key to fail")
	}
	if _, err := Dial(ctx, "http://node", "0xzz"); err == nil {
		t.Fatal("expected malformed key to fail")
	}
}
