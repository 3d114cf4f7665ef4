// Package catalog owns product listing state: the active filter set, the
// pagination cursor, and the last-fetched result page. Catalog entities are
// read-only and server-defined; the engine never mutates them locally.
package catalog

import (
	"encoding/json"
	"strconv"
)

// Product is a catalog entry as served by the backend.
type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Description    string          `json:"description"`
	Price          string          `json:"price"`
	CompareAtPrice string          `json:"compare_at_price"`
	Stock          int             `json:"stock"`
	SKU            string          `json:"sku"`
	IsVisible      bool            `json:"is_visible"`
	Featured       bool            `json:"featured"`
	Volume         string          `json:"volume"`
	ExpiryDate     string          `json:"expiry_date"`
	Category       Category        `json:"category"`
	Specifications []Specification `json:"specifications"`
	Media          []Media         `json:"media"`
	Tags           []Tag           `json:"tags"`
}

// Category groups products.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// SpecificationType is a typed product attribute usable as a filter facet.
type SpecificationType struct {
	ID    int64              `json:"id"`
	Name  string             `json:"name"`
	Group SpecificationGroup `json:"group"`
}

// SpecificationGroup clusters related specification types.
type SpecificationGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Specification attaches a typed value to a product.
type Specification struct {
	ID    int64             `json:"id"`
	Value SpecValue         `json:"value"`
	Type  SpecificationType `json:"type"`
}

// Media is a product asset reference.
type Media struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// Tag labels a product.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Type string `json:"type"`
}

// SpecValue is a specification value that the backend serves either as a
// scalar or as a list.
type SpecValue struct {
	Values []string
}

// UnmarshalJSON accepts a string, a number, or a list of either.
func (v *SpecValue) UnmarshalJSON(data []byte) error {
	var scalar string
	if err := json.Unmarshal(data, &scalar); err == nil {
		v.Values = []string{scalar}
		return nil
	}
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		v.Values = []string{strconv.FormatFloat(number, 'f', -1, 64)}
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	values := make([]string, 0, len(list))
	for _, raw := range list {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			values = append(values, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return err
		}
		values = append(values, strconv.FormatFloat(n, 'f', -1, 64))
	}
	v.Values = values
	return nil
}

// MarshalJSON emits a scalar for single values and a list otherwise.
func (v SpecValue) MarshalJSON() ([]byte, error) {
	if len(v.Values) == 1 {
		return json.Marshal(v.Values[0])
	}
	return json.Marshal(v.Values)
}
