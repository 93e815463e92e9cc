package llm

import "strings"

// Pool holds one gateway per locale, each bound to that locale's system prompt.
type Pool struct {
	fallback string
	byLocale map[string]Gateway
}

func NewPool(fallback string, byLocale map[string]Gateway) *Pool {
	m := make(map[string]Gateway, len(byLocale))
	for k, g := range byLocale {
		m[strings.ToLower(strings.TrimSpace(k))] = g
	}
	return &Pool{fallback: strings.ToLower(strings.TrimSpace(fallback)), byLocale: m}
}

// Single serves g for every locale.
func Single(g Gateway) *Pool {
	return &Pool{byLocale: map[string]Gateway{"": g}}
}

// For returns the gateway for locale, else the fallback locale's gateway.
func (p *Pool) For(locale string) Gateway {
	if g, ok := p.byLocale[strings.ToLower(strings.TrimSpace(locale))]; ok {
		return g
	}
	if g, ok := p.byLocale[p.fallback]; ok {
		return g
	}
	for _, g := range p.byLocale {
		return g
	}
	return nil
}
