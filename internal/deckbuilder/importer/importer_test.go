package importer

import (
	"reflect"
	"testing"

	"deckstage"
)

func TestLineParser(t *testing.T) {
	text := "# my deck\n4 ST01-006\n2x ST01-007\n\n// sideboard\nnonsense\n0 ST01-008\n3 ST01-006\n"
	res := LineParser{}.Parse(text)

	want := []ParsedLine{
		{Quantity: 4, CardNumber: "ST01-006", Raw: "4 ST01-006"},
		{Quantity: 2, CardNumber: "ST01-007", Raw: "2x ST01-007"},
		{Quantity: 3, CardNumber: "ST01-006", Raw: "3 ST01-006"},
	}
	if !reflect.DeepEqual(res.Parsed, want) {
		t.Fatalf("parsed mismatch:\n got %+v\nwant %+v", res.Parsed, want)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", res.Errors)
	}
	// Card numbers are distinct.
	if !reflect.DeepEqual(res.CardNumbers, []string{"ST01-006", "ST01-007"}) {
		t.Fatalf("card numbers mismatch: %v", res.CardNumbers)
	}
}

func TestMatch(t *testing.T) {
	parsed := []ParsedLine{
		{Quantity: 4, CardNumber: "ST01-006"},
		{Quantity: 2, CardNumber: "ST01-007"},
		{Quantity: 1, CardNumber: "ST01-006"}, // repeated line sums
		{Quantity: 3, CardNumber: "GONE-001"},
	}
	index := map[string][]string{
		"ST01-006": {"100"},
		"ST01-007": {"200", "201"}, // ambiguous
	}

	res := Match(parsed, index)
	if !reflect.DeepEqual(res.Items, deckstage.ItemMap{"100": 5, "200": 2}) {
		t.Fatalf("items mismatch: %v", res.Items)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("unmatched number must error: %v", res.Errors)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("ambiguous number must warn: %v", res.Warnings)
	}
}
