package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNormalizePage_EnvelopeShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"data", `{"data":[{"product_id":1,"name":"A"}],"total":1,"has_more":false}`},
		{"products", `{"products":[{"product_id":"1","name":"A"}]}`},
		{"results", `{"results":[{"product_id":1,"name":"A"}]}`},
		{"bare", `[{"product_id":1,"name":"A"}]`},
	}
	for _, tc := range cases {
		page, err := NormalizePage([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(page.Products) != 1 || page.Products[0].ID != "1" || page.Products[0].Name != "A" {
			t.Fatalf("%s: normalization mismatch: %+v", tc.name, page)
		}
		if page.Total != 1 {
			t.Fatalf("%s: total mismatch: %d", tc.name, page.Total)
		}
	}
}

func TestNormalizePage_ExtendedData(t *testing.T) {
	body := `{"data":[{"product_id":7,"name":"Bolt","extended_data":[{"name":"Color","value":"Red"}]}]}`
	page, err := NormalizePage([]byte(body))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	attrs := page.Products[0].Attributes
	if len(attrs) != 1 || attrs[0].Key != "Color" || attrs[0].Value != "Red" {
		t.Fatalf("attribute mismatch: %+v", attrs)
	}
}

func TestHTTPClient_FilterSendsEncodedQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"data":[],"total":0}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	q := Query{CategoryID: 3, Sort: []SortKey{{Column: "name", Direction: Asc}}, Page: 1, Limit: 10}
	if _, err := c.Filter(context.Background(), q); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if gotQuery != EncodeQuery(q).Encode() {
		t.Fatalf("query mismatch: %q", gotQuery)
	}
}

type countingClient struct {
	filters int
}

func (c *countingClient) Filter(ctx context.Context, q Query) (Page, error) {
	c.filters++
	return Page{Products: []Product{{ID: "1"}}}, nil
}

func (c *countingClient) Search(ctx context.Context, text string, page, limit int) (Page, error) {
	return Page{}, nil
}

func TestCachedClient_ServesFromCache(t *testing.T) {
	inner := &countingClient{}
	c := NewCachedClient(inner, time.Minute)
	q := Query{CategoryID: 1}

	for i := 0; i < 3; i++ {
		page, err := c.Filter(context.Background(), q)
		if err != nil {
			t.Fatalf("filter %d: %v", i, err)
		}
		if len(page.Products) != 1 {
			t.Fatalf("filter %d: page mismatch: %+v", i, page)
		}
	}
	if inner.filters != 1 {
		t.Fatalf("expected one upstream fetch, got %d", inner.filters)
	}

	// A different query misses.
	if _, err := c.Filter(context.Background(), Query{CategoryID: 2}); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if inner.filters != 2 {
		t.Fatalf("expected a second upstream fetch, got %d", inner.filters)
	}
}
