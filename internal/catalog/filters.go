package catalog

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// SortOrder is the listing sort direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

const (
	defaultSortField = "name"
	defaultSortOrder = OrderAsc

	// specListSeparator joins list-typed specification filter values into a
	// single query token, matching the backend's expectation.
	specListSeparator = ","
)

// Filters is the complete filter criteria driving the product listing.
// Mutation goes through the engine's setters only.
type Filters struct {
	Category       *int64
	Search         string
	Sort           string
	Order          SortOrder
	PriceMin       *float64
	PriceMax       *float64
	InStock        bool
	Specifications map[string][]string
}

func defaultFilters() Filters {
	return Filters{
		Sort:           defaultSortField,
		Order:          defaultSortOrder,
		Specifications: map[string][]string{},
	}
}

// Applied reports whether any field differs from its default.
func (f Filters) Applied() bool {
	return f.Category != nil ||
		strings.TrimSpace(f.Search) != "" ||
		f.Sort != defaultSortField ||
		f.Order != defaultSortOrder ||
		f.PriceMin != nil ||
		f.PriceMax != nil ||
		f.InStock ||
		len(f.Specifications) > 0
}

// sortToken serializes the sort criteria: descending order prefixes the
// field with "-".
func (f Filters) sortToken() string {
	field := f.Sort
	if field == "" {
		field = defaultSortField
	}
	if f.Order == OrderDesc {
		return "-" + field
	}
	return field
}

// query serializes the filter state deterministically into request values.
// Optional criteria are included only when set; list-typed specification
// values collapse into one delimited token rather than repeated keys.
func (f Filters) query(page, perPage int) url.Values {
	q := url.Values{}
	q.Set("sort", f.sortToken())
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	if f.Category != nil {
		q.Set("filter[category_id]", strconv.FormatInt(*f.Category, 10))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		q.Set("filter[search]", search)
	}
	if f.PriceMin != nil {
		q.Set("filter[price_min]", strconv.FormatFloat(*f.PriceMin, 'f', -1, 64))
	}
	if f.PriceMax != nil {
		q.Set("filter[price_max]", strconv.FormatFloat(*f.PriceMax, 'f', -1, 64))
	}
	if f.InStock {
		q.Set("filter[in_stock]", "1")
	}

	slugs := make([]string, 0, len(f.Specifications))
	for slug := range f.Specifications {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	for _, slug := range slugs {
		values := f.Specifications[slug]
		if len(values) == 0 {
			continue
		}
		q.Set("filter[spec_"+slug+"]", strings.Join(values, specListSeparator))
	}
	return q
}

func (f Filters) clone() Filters {
	out := f
	out.Specifications = make(map[string][]string, len(f.Specifications))
	for slug, values := range f.Specifications {
		out.Specifications[slug] = append([]string(nil), values...)
	}
	if f.Category != nil {
		category := *f.Category
		out.Category = &category
	}
	if f.PriceMin != nil {
		min := *f.PriceMin
		out.PriceMin = &min
	}
	if f.PriceMax != nil {
		max := *f.PriceMax
		out.PriceMax = &max
	}
	return out
}

// FilterPatch merges several filter fields in one transition. Nil fields are
// left untouched; Clear* flags unset optional criteria.
type FilterPatch struct {
	Category      *int64
	ClearCategory bool
	Search        *string
	Sort          *string
	Order         *SortOrder
	PriceMin      *float64
	PriceMax      *float64
	ClearPrice    bool
	InStock       *bool
	// Specifications replaces the listed slugs; an empty value list removes
	// the slug's filter.
	Specifications map[string][]string
}

func (p FilterPatch) apply(f *Filters) {
	if p.ClearCategory {
		f.Category = nil
	} else if p.Category != nil {
		category := *p.Category
		f.Category = &category
	}
	if p.Search != nil {
		f.Search = *p.Search
	}
	if p.Sort != nil {
		f.Sort = *p.Sort
	}
	if p.Order != nil {
		f.Order = normalizeOrder(*p.Order)
	}
	if p.ClearPrice {
		f.PriceMin, f.PriceMax = nil, nil
	} else {
		if p.PriceMin != nil {
			min := *p.PriceMin
			f.PriceMin = &min
		}
		if p.PriceMax != nil {
			max := *p.PriceMax
			f.PriceMax = &max
		}
	}
	if p.InStock != nil {
		f.InStock = *p.InStock
	}
	for slug, values := range p.Specifications {
		if len(values) == 0 {
			delete(f.Specifications, slug)
			continue
		}
		f.Specifications[slug] = append([]string(nil), values...)
	}
}

func normalizeOrder(order SortOrder) SortOrder {
	if order == OrderDesc {
		return OrderDesc
	}
	return OrderAsc
}
