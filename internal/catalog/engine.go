package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/glowcart/storefront/internal/api"
)

// Backend is the slice of the API client the engine depends on.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// ErrBackendMissing is returned when NewEngine is constructed without a backend.
var ErrBackendMissing = errors.New("catalog: backend client missing")

const defaultPerPage = 12

// Deps bundles dependencies required to construct an Engine.
type Deps struct {
	Backend Backend
	Logger  *zap.Logger
	PerPage int
}

// Engine drives the product listing. Every setter mutates exactly one piece
// of filter or pagination state and triggers exactly one refetch; filter
// setters reset the page to 1 first. Responses are applied in issue order so
// an overtaken refetch cannot clobber a newer page.
type Engine struct {
	backend Backend
	logger  *zap.Logger

	mu         sync.Mutex
	filters    Filters
	page       int
	perPage    int
	totalItems int
	totalPages int
	products   []Product
	current    *Product
	categories []Category
	specTypes  []SpecificationType
	inflight   int
	lastErr    string
	seq        uint64
	applied    uint64
}

// NewEngine wires an Engine with default filter state.
func NewEngine(deps Deps) (*Engine, error) {
	if deps.Backend == nil {
		return nil, ErrBackendMissing
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	perPage := deps.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return &Engine{
		backend: deps.Backend,
		logger:  logger,
		filters: defaultFilters(),
		page:    1,
		perPage: perPage,
	}, nil
}

// listEnvelope mirrors the backend's listing payload.
type listEnvelope struct {
	Data []Product `json:"data"`
	Meta struct {
		Total   int `json:"total"`
		PerPage int `json:"per_page"`
	} `json:"meta"`
}

// FetchProducts is the sole read path for the listing: it serializes the
// current filter state into a query and replaces the result page. On failure
// the previous page is retained and the error recorded.
func (e *Engine) FetchProducts(ctx context.Context) error {
	e.begin()

	e.mu.Lock()
	e.seq++
	seq := e.seq
	query := e.filters.clone().query(e.page, e.perPage)
	e.mu.Unlock()

	var envelope listEnvelope
	err := e.backend.Get(ctx, "/products", query, &envelope)
	if err == nil {
		e.applyPage(seq, envelope)
	}
	e.finish(err)
	return err
}

func (e *Engine) applyPage(seq uint64, envelope listEnvelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq <= e.applied {
		e.logger.Debug("discarding stale product page", zap.Uint64("seq", seq))
		return
	}
	e.applied = seq
	e.products = envelope.Data
	e.totalItems = envelope.Meta.Total
	if envelope.Meta.PerPage > 0 {
		e.perPage = envelope.Meta.PerPage
	}
	// Page count comes from response metadata only, never speculation.
	e.totalPages = (e.totalItems + e.perPage - 1) / e.perPage
}

// SetSearch replaces the free-text criterion.
func (e *Engine) SetSearch(ctx context.Context, text string) error {
	return e.mutate(ctx, func(f *Filters) { f.Search = text })
}

// SetCategory selects a category, or clears it when id is nil.
func (e *Engine) SetCategory(ctx context.Context, id *int64) error {
	return e.mutate(ctx, func(f *Filters) {
		if id == nil {
			f.Category = nil
			return
		}
		category := *id
		f.Category = &category
	})
}

// SetSort replaces the sort field.
func (e *Engine) SetSort(ctx context.Context, field string) error {
	return e.mutate(ctx, func(f *Filters) { f.Sort = field })
}

// SetSortOrder replaces the sort direction.
func (e *Engine) SetSortOrder(ctx context.Context, order SortOrder) error {
	return e.mutate(ctx, func(f *Filters) { f.Order = normalizeOrder(order) })
}

// SetPriceRange replaces the price bounds; nil clears a bound.
func (e *Engine) SetPriceRange(ctx context.Context, min, max *float64) error {
	return e.mutate(ctx, func(f *Filters) {
		f.PriceMin, f.PriceMax = nil, nil
		if min != nil {
			v := *min
			f.PriceMin = &v
		}
		if max != nil {
			v := *max
			f.PriceMax = &v
		}
	})
}

// ToggleInStock flips the in-stock-only flag.
func (e *Engine) ToggleInStock(ctx context.Context) error {
	return e.mutate(ctx, func(f *Filters) { f.InStock = !f.InStock })
}

// SetSpecificationFilter sets the filter for one specification slug. No
// values clears that slug's filter.
func (e *Engine) SetSpecificationFilter(ctx context.Context, slug string, values ...string) error {
	return e.mutate(ctx, func(f *Filters) {
		if len(values) == 0 {
			delete(f.Specifications, slug)
			return
		}
		f.Specifications[slug] = append([]string(nil), values...)
	})
}

// SetFilters merges several filter fields in one transition with a single
// resulting refetch.
func (e *Engine) SetFilters(ctx context.Context, patch FilterPatch) error {
	return e.mutate(ctx, patch.apply)
}

// ResetFilters restores the default filter state and first page.
func (e *Engine) ResetFilters(ctx context.Context) error {
	return e.mutate(ctx, func(f *Filters) { *f = defaultFilters() })
}

// SetPage moves to page n. It is the only mutator that does not reset
// pagination, and it touches no filter field.
func (e *Engine) SetPage(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	e.mu.Lock()
	e.page = n
	e.mu.Unlock()
	return e.FetchProducts(ctx)
}

func (e *Engine) mutate(ctx context.Context, fn func(*Filters)) error {
	e.mu.Lock()
	fn(&e.filters)
	e.page = 1
	e.mu.Unlock()
	return e.FetchProducts(ctx)
}

// FetchCategories loads the category reference list. Failures are logged
// but never block the listing.
func (e *Engine) FetchCategories(ctx context.Context) {
	var envelope struct {
		Data []Category `json:"data"`
	}
	if err := e.backend.Get(ctx, "/categories", nil, &envelope); err != nil {
		e.logger.Warn("categories load failed", zap.Error(err))
		return
	}
	e.mu.Lock()
	e.categories = envelope.Data
	e.mu.Unlock()
}

// FetchSpecificationTypes loads the specification facet reference list.
// Failures are logged but never block the listing.
func (e *Engine) FetchSpecificationTypes(ctx context.Context) {
	var envelope struct {
		Data []SpecificationType `json:"data"`
	}
	if err := e.backend.Get(ctx, "/specification-types", nil, &envelope); err != nil {
		e.logger.Warn("specification types load failed", zap.Error(err))
		return
	}
	e.mu.Lock()
	e.specTypes = envelope.Data
	e.mu.Unlock()
}

// FetchProduct loads a single product detail, independent of listing state.
func (e *Engine) FetchProduct(ctx context.Context, id int64) error {
	e.begin()
	var envelope struct {
		Data Product `json:"data"`
	}
	err := e.backend.Get(ctx, fmt.Sprintf("/products/%d", id), nil, &envelope)
	if err == nil {
		e.mu.Lock()
		product := envelope.Data
		e.current = &product
		e.mu.Unlock()
	}
	e.finish(err)
	return err
}

// ProductByID looks a product up in the currently cached page. It never
// fetches; absence on the current page returns ok=false.
func (e *Engine) ProductByID(id int64) (Product, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, product := range e.products {
		if product.ID == id {
			return product, true
		}
	}
	return Product{}, false
}

// HasFiltersApplied reports whether any filter differs from its default.
func (e *Engine) HasFiltersApplied() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filters.Applied()
}

func (e *Engine) begin() {
	e.mu.Lock()
	e.inflight++
	e.lastErr = ""
	e.mu.Unlock()
}

func (e *Engine) finish(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight--
	if err != nil {
		if apiErr, ok := api.AsError(err); ok {
			e.lastErr = apiErr.Message
		} else {
			e.lastErr = err.Error()
		}
	}
}

// Products returns the current result page.
func (e *Engine) Products() []Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Product(nil), e.products...)
}

// CurrentProduct returns the product loaded by FetchProduct.
func (e *Engine) CurrentProduct() (Product, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return Product{}, false
	}
	return *e.current, true
}

// Categories returns the cached category reference list.
func (e *Engine) Categories() []Category {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Category(nil), e.categories...)
}

// SpecificationTypes returns the cached specification facet list.
func (e *Engine) SpecificationTypes() []SpecificationType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SpecificationType(nil), e.specTypes...)
}

// Filters returns a copy of the active filter state.
func (e *Engine) Filters() Filters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filters.clone()
}

// Page returns the current page number.
func (e *Engine) Page() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.page
}

// PerPage returns the page size last reported by the backend.
func (e *Engine) PerPage() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.perPage
}

// TotalItems returns the backend-reported item count.
func (e *Engine) TotalItems() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalItems
}

// TotalPages returns the page count derived from backend metadata.
func (e *Engine) TotalPages() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalPages
}

// Loading reports whether a listing or detail fetch is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight > 0
}

// Err returns the message recorded by the most recent failed fetch.
func (e *Engine) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}
