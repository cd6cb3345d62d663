package catalog

import (
	"net/url"
	"reflect"
	"testing"
)

func TestQueryCodec_RoundTrip(t *testing.T) {
	q := Query{
		CategoryID: 3,
		GroupIDs:   []int{10, 20},
		Refs:       []string{"100", "200"},
		Filters:    map[string][]string{"Color": {"Red", "Blue"}, "Rarity": {"C"}},
		Sort:       []SortKey{{Column: "name", Direction: Asc}, {Column: "product_id", Direction: Desc}},
		Page:       2,
		Limit:      24,
	}
	v := EncodeQuery(q)
	if got := v.Get("sort"); got != "name-asc,product_id-desc" {
		t.Fatalf("sort encoding mismatch: %q", got)
	}
	if got := v["filter_Color"]; !reflect.DeepEqual(got, []string{"Red", "Blue"}) {
		t.Fatalf("filter encoding mismatch: %v", got)
	}

	back := DecodeQuery(v)
	if !reflect.DeepEqual(back, q) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, q)
	}
	// Losslessness at the string level too.
	if EncodeQuery(back).Encode() != v.Encode() {
		t.Fatalf("re-encoding differs: %q vs %q", EncodeQuery(back).Encode(), v.Encode())
	}
}

func TestDecodeQuery_LegacySingleColumn(t *testing.T) {
	v, _ := url.ParseQuery("sort=name-desc")
	q := DecodeQuery(v)
	want := []SortKey{{Column: "name", Direction: Desc}}
	if !reflect.DeepEqual(q.Sort, want) {
		t.Fatalf("legacy single-column sort mismatch: %v", q.Sort)
	}
}

func TestDecodeQuery_LegacySortByPair(t *testing.T) {
	v, _ := url.ParseQuery("sort_by=product_id&sort_order=desc")
	q := DecodeQuery(v)
	want := []SortKey{{Column: "product_id", Direction: Desc}}
	if !reflect.DeepEqual(q.Sort, want) {
		t.Fatalf("sort_by/sort_order mismatch: %v", q.Sort)
	}
	// Regenerated in the canonical shape.
	if got := EncodeQuery(q).Get("sort"); got != "product_id-desc" {
		t.Fatalf("canonical regeneration mismatch: %q", got)
	}
}

func TestDecodeQuery_SortDefaultsAndHyphenColumns(t *testing.T) {
	v, _ := url.ParseQuery("sort=card-number,name-desc")
	q := DecodeQuery(v)
	want := []SortKey{
		{Column: "card-number", Direction: Asc},
		{Column: "name", Direction: Desc},
	}
	if !reflect.DeepEqual(q.Sort, want) {
		t.Fatalf("sort parse mismatch: %v", q.Sort)
	}
}

func TestDecodeQuery_SortTakesPrecedenceOverLegacy(t *testing.T) {
	v, _ := url.ParseQuery("sort=name-asc&sort_by=product_id&sort_order=desc")
	q := DecodeQuery(v)
	if !reflect.DeepEqual(q.Sort, []SortKey{{Column: "name", Direction: Asc}}) {
		t.Fatalf("canonical sort must win over legacy pair: %v", q.Sort)
	}
}
