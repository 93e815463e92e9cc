package llm

import (
	"context"
	"testing"
)

type namedGateway string

func (n namedGateway) Ask(context.Context, string) (string, error) { return string(n), nil }

func (n namedGateway) SendMessages(context.Context, []Message, []Tool, *ToolChoice) (string, error) {
	return string(n), nil
}

func TestPoolFor(t *testing.T) {
	p := NewPool("en", map[string]Gateway{"en": namedGateway("en"), "ES": namedGateway("es")})
	cases := map[string]string{"en": "en", "es": "es", " Es ": "es", "fr": "en", "": "en"}
	for in, want := range cases {
		got, _ := p.For(in).Ask(context.Background(), "")
		if got != want {
			t.Fatalf("For(%q): want=%s got=%s", in, want, got)
		}
	}

	single := Single(namedGateway("only"))
	if got, _ := single.For("xx").Ask(context.Background(), ""); got != "only" {
		t.Fatalf("Single: got=%s", got)
	}
}
