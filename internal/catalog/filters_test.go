package catalog

import (
	"testing"
)

func TestDefaultFiltersNotApplied(t *testing.T) {
	f := defaultFilters()
	if f.Applied() {
		t.Fatalf("default filter state must not count as applied")
	}
}

func TestAppliedDetectsEachField(t *testing.T) {
	category := int64(5)
	min := 10.0

	cases := map[string]func(*Filters){
		"category": func(f *Filters) { f.Category = &category },
		"search":   func(f *Filters) { f.Search = "serum" },
		"sort":     func(f *Filters) { f.Sort = "price" },
		"order":    func(f *Filters) { f.Order = OrderDesc },
		"price":    func(f *Filters) { f.PriceMin = &min },
		"stock":    func(f *Filters) { f.InStock = true },
		"spec":     func(f *Filters) { f.Specifications["volume"] = []string{"50ml"} },
	}
	for name, mutate := range cases {
		f := defaultFilters()
		mutate(&f)
		if !f.Applied() {
			t.Fatalf("%s: expected Applied to be true", name)
		}
	}
}

func TestSortTokenSerialization(t *testing.T) {
	f := defaultFilters()
	f.Sort = "price"

	if got := f.sortToken(); got != "price" {
		t.Fatalf("ascending sort token: expected %q got %q", "price", got)
	}
	f.Order = OrderDesc
	if got := f.sortToken(); got != "-price" {
		t.Fatalf("descending sort token: expected %q got %q", "-price", got)
	}
}

func TestQueryOmitsUnsetCriteria(t *testing.T) {
	q := defaultFilters().query(1, 12)

	for _, key := range []string{"filter[category_id]", "filter[search]", "filter[price_min]", "filter[price_max]", "filter[in_stock]"} {
		if q.Has(key) {
			t.Fatalf("expected %s to be omitted, got %q", key, q.Get(key))
		}
	}
	if q.Get("sort") != "name" {
		t.Fatalf("expected default sort token, got %q", q.Get("sort"))
	}
	if q.Get("page") != "1" || q.Get("per_page") != "12" {
		t.Fatalf("expected pagination params, got page=%q per_page=%q", q.Get("page"), q.Get("per_page"))
	}
}

func TestQueryIncludesSetCriteria(t *testing.T) {
	category := int64(5)
	min, max := 10.0, 99.5
	f := defaultFilters()
	f.Category = &category
	f.Search = " rose water "
	f.PriceMin = &min
	f.PriceMax = &max
	f.InStock = true

	q := f.query(2, 24)
	if q.Get("filter[category_id]") != "5" {
		t.Fatalf("category: got %q", q.Get("filter[category_id]"))
	}
	if q.Get("filter[search]") != "rose water" {
		t.Fatalf("search must be trimmed: got %q", q.Get("filter[search]"))
	}
	if q.Get("filter[price_min]") != "10" || q.Get("filter[price_max]") != "99.5" {
		t.Fatalf("price bounds: got %q / %q", q.Get("filter[price_min]"), q.Get("filter[price_max]"))
	}
	if q.Get("filter[in_stock]") != "1" {
		t.Fatalf("in_stock: got %q", q.Get("filter[in_stock]"))
	}
	if q.Get("page") != "2" {
		t.Fatalf("page: got %q", q.Get("page"))
	}
}

func TestSpecificationListJoinsIntoSingleToken(t *testing.T) {
	f := defaultFilters()
	f.Specifications["color"] = []string{"red", "blue"}
	f.Specifications["volume"] = []string{"50ml"}

	q := f.query(1, 12)
	if got := q.Get("filter[spec_color]"); got != "red,blue" {
		t.Fatalf("list value must join into one delimited token, got %q", got)
	}
	if len(q["filter[spec_color]"]) != 1 {
		t.Fatalf("expected a single token, got %d", len(q["filter[spec_color]"]))
	}
	if got := q.Get("filter[spec_volume]"); got != "50ml" {
		t.Fatalf("scalar value: got %q", got)
	}
}

func TestCloneIsolatesState(t *testing.T) {
	category := int64(3)
	f := defaultFilters()
	f.Category = &category
	f.Specifications["color"] = []string{"red"}

	clone := f.clone()
	clone.Specifications["color"][0] = "green"
	*clone.Category = 99

	if f.Specifications["color"][0] != "red" {
		t.Fatalf("clone must not share specification slices")
	}
	if *f.Category != 3 {
		t.Fatalf("clone must not share category pointer")
	}
}
