package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/glowcart/storefront/internal/api"
	"github.com/glowcart/storefront/internal/cart"
	"github.com/glowcart/storefront/internal/catalog"
	"github.com/glowcart/storefront/internal/platform/httpx"
	"github.com/glowcart/storefront/internal/render"
)

type app struct {
	logger    *zap.Logger
	cart      *cart.Synchronizer
	catalog   *catalog.Engine
	loginPath string
}

func (a *app) routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", a.cartState)
		r.Post("/items", a.cartAdd)
		r.Delete("/items/{productID}", a.cartRemove)
		r.Put("/items/{itemID}", a.cartUpdateQuantity)
		r.Post("/coupon", a.cartApplyCoupon)
		r.Delete("/coupon", a.cartRemoveCoupon)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", a.productList)
		r.Post("/filters", a.productFilters)
		r.Post("/reset", a.productReset)
		r.Get("/{productID}", a.productDetail)
	})

	r.Get("/categories", a.categories)
	r.Get("/specification-types", a.specificationTypes)
}

// cartStateView is the cart payload served to the UI. Errors surface here as
// state, never as HTTP failures.
type cartStateView struct {
	Cart       cart.Cart         `json:"cart"`
	Items      []cart.CachedItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice float64           `json:"total_price"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error"`
}

func (a *app) cartView() cartStateView {
	return cartStateView{
		Cart:       a.cart.Snapshot(),
		Items:      a.cart.Items(),
		TotalItems: a.cart.TotalItems(),
		TotalPrice: a.cart.TotalPrice(),
		Loading:    a.cart.Loading(),
		Error:      a.cart.Err(),
	}
}

func (a *app) cartState(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, a.cartView())
}

// respondCartOp renders the post-operation cart state. Session expiry is the
// one case that navigates instead: the owner decoupled the redirect from the
// error, so the reaction lives here.
func (a *app) respondCartOp(w http.ResponseWriter, r *http.Request, err error) {
	if api.IsSessionExpired(err) {
		http.Redirect(w, r, a.loginPath, http.StatusSeeOther)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a.cartView())
}

func (a *app) cartAdd(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body must be JSON", http.StatusBadRequest))
		return
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}
	err := a.cart.AddItem(r.Context(), payload.ProductID, payload.Quantity)
	a.respondCartOp(w, r, err)
}

func (a *app) cartRemove(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_product", "product id must be numeric", http.StatusBadRequest))
		return
	}
	a.respondCartOp(w, r, a.cart.RemoveItem(r.Context(), productID))
}

func (a *app) cartUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_item", "item id must be numeric", http.StatusBadRequest))
		return
	}
	var payload struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body must be JSON", http.StatusBadRequest))
		return
	}
	a.respondCartOp(w, r, a.cart.UpdateQuantity(r.Context(), itemID, payload.Quantity))
}

func (a *app) cartApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body must be JSON", http.StatusBadRequest))
		return
	}
	a.respondCartOp(w, r, a.cart.ApplyCoupon(r.Context(), payload.Code))
}

func (a *app) cartRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	a.respondCartOp(w, r, a.cart.RemoveCoupon(r.Context()))
}

// productListView is the listing payload served to the UI.
type productListView struct {
	Products       []catalog.Product `json:"products"`
	Page           int               `json:"page"`
	PerPage        int               `json:"per_page"`
	TotalItems     int               `json:"total_items"`
	TotalPages     int               `json:"total_pages"`
	FiltersApplied bool              `json:"filters_applied"`
	Loading        bool              `json:"loading"`
	Error          string            `json:"error"`
}

func (a *app) listView() productListView {
	return productListView{
		Products:       a.catalog.Products(),
		Page:           a.catalog.Page(),
		PerPage:        a.catalog.PerPage(),
		TotalItems:     a.catalog.TotalItems(),
		TotalPages:     a.catalog.TotalPages(),
		FiltersApplied: a.catalog.HasFiltersApplied(),
		Loading:        a.catalog.Loading(),
		Error:          a.catalog.Err(),
	}
}

func (a *app) productList(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			_ = a.catalog.SetPage(r.Context(), page)
		}
	}
	httpx.WriteJSON(w, http.StatusOK, a.listView())
}

// filterRequest mirrors catalog.FilterPatch for the JSON surface.
type filterRequest struct {
	Category       *int64              `json:"category"`
	ClearCategory  bool                `json:"clear_category"`
	Search         *string             `json:"search"`
	Sort           *string             `json:"sort"`
	Order          *string             `json:"order"`
	PriceMin       *float64            `json:"price_min"`
	PriceMax       *float64            `json:"price_max"`
	ClearPrice     bool                `json:"clear_price"`
	InStock        *bool               `json:"in_stock"`
	Specifications map[string][]string `json:"specifications"`
}

func (a *app) productFilters(w http.ResponseWriter, r *http.Request) {
	var payload filterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body must be JSON", http.StatusBadRequest))
		return
	}
	patch := catalog.FilterPatch{
		Category:       payload.Category,
		ClearCategory:  payload.ClearCategory,
		Search:         payload.Search,
		Sort:           payload.Sort,
		PriceMin:       payload.PriceMin,
		PriceMax:       payload.PriceMax,
		ClearPrice:     payload.ClearPrice,
		InStock:        payload.InStock,
		Specifications: payload.Specifications,
	}
	if payload.Order != nil {
		order := catalog.SortOrder(*payload.Order)
		patch.Order = &order
	}
	_ = a.catalog.SetFilters(r.Context(), patch)
	httpx.WriteJSON(w, http.StatusOK, a.listView())
}

func (a *app) productReset(w http.ResponseWriter, r *http.Request) {
	_ = a.catalog.ResetFilters(r.Context())
	httpx.WriteJSON(w, http.StatusOK, a.listView())
}

func (a *app) productDetail(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_product", "product id must be numeric", http.StatusBadRequest))
		return
	}

	// Serve from the cached page when possible; fall back to a detail fetch.
	product, ok := a.catalog.ProductByID(productID)
	if !ok {
		if err := a.catalog.FetchProduct(r.Context(), productID); err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("product_unavailable", a.catalog.Err(), http.StatusBadGateway))
			return
		}
		product, ok = a.catalog.CurrentProduct()
		if !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("not_found", "product not found", http.StatusNotFound))
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"product":          product,
		"description_html": render.Description(product.Description),
	})
}

func (a *app) categories(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": a.catalog.Categories()})
}

func (a *app) specificationTypes(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": a.catalog.SpecificationTypes()})
}
