package connectors

import "testing"

func TestOrderByRegexPrefersMatchingFirst(t *testing.T) {
	cs := []Connector{
		{Name: "a", Regex: "^volca"},
		{Name: "b"},
		{Name: "c", Regex: "^micro"},
	}
	got := orderByRegex(cs, "MicroFreak")
	if len(got) != 3 || got[0].Name != "c" {
		t.Fatalf("expected c first, got %v", names(got))
	}
	// Non-matching / regex-less connectors keep registration order.
	if got[1].Name != "a" || got[2].Name != "b" {
		t.Fatalf("unexpected order: %v", names(got))
	}
}

func TestOrderByRegexNoMatch(t *testing.T) {
	cs := []Connector{
		{Name: "a", Regex: "^volca"},
		{Name: "b"},
	}
	got := orderByRegex(cs, "Some Other Device")
	if names(got)[0] != "a" || names(got)[1] != "b" {
		t.Fatalf("registration order should be preserved when nothing matches: %v", names(got))
	}
}

func names(cs []Connector) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
