package core

import (
	"reflect"
	"testing"

	"deckstage"
)

func TestDeriveMetadata(t *testing.T) {
	attrs := func(ref string) []deckstage.Attribute {
		switch ref {
		case "r1", "r2":
			return []deckstage.Attribute{{Key: "Color", Value: "Red"}}
		case "b1":
			return []deckstage.Attribute{{Key: "Color", Value: "Blue"}}
		case "g1":
			return []deckstage.Attribute{{Key: "Color", Value: "Green"}}
		default:
			return nil
		}
	}
	merged := deckstage.ItemMap{"r1": 2, "r2": 1, "b1": 3, "g1": 3, "x": 1}

	meta := DeriveMetadata(merged, attrs)
	if meta.CardCount != 10 {
		t.Fatalf("card count mismatch: %d", meta.CardCount)
	}
	// All three colors weigh 3; name ascending breaks the tie.
	if !reflect.DeepEqual(meta.ColorTags, []string{"Blue", "Green", "Red"}) {
		t.Fatalf("color tags mismatch: %v", meta.ColorTags)
	}
}

func TestDeriveMetadata_QuantityOrdering(t *testing.T) {
	attrs := func(ref string) []deckstage.Attribute {
		if ref == "b1" {
			return []deckstage.Attribute{{Key: "Color", Value: "Blue"}}
		}
		return []deckstage.Attribute{{Key: "Color", Value: "Red"}}
	}
	meta := DeriveMetadata(deckstage.ItemMap{"r1": 1, "b1": 5}, attrs)
	if !reflect.DeepEqual(meta.ColorTags, []string{"Blue", "Red"}) {
		t.Fatalf("heavier color must sort first: %v", meta.ColorTags)
	}
}

func TestDeriveMetadata_LowercaseColorKey(t *testing.T) {
	// Catalogs are inconsistent about attribute key casing; "color" must feed
	// the tags the same way "Color" does, matching rule validation.
	attrs := func(ref string) []deckstage.Attribute {
		return []deckstage.Attribute{{Key: "color", Value: "Red"}}
	}
	meta := DeriveMetadata(deckstage.ItemMap{"r1": 2}, attrs)
	if !reflect.DeepEqual(meta.ColorTags, []string{"Red"}) {
		t.Fatalf("lowercase key must still produce tags: %v", meta.ColorTags)
	}
}

func TestDeriveMetadata_NilAttrs(t *testing.T) {
	meta := DeriveMetadata(deckstage.ItemMap{"a": 4}, nil)
	if meta.CardCount != 4 || meta.ColorTags != nil {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}
