// Package cart owns the client-side view of the shopper's cart. The backend
// is authoritative: every mutation re-fetches the full cart rather than
// patching locally, so monetary totals are never derived on the client.
package cart

import (
	"fmt"
	"strconv"
)

// Cart statuses reported by the backend.
const (
	StatusCart    = "cart"
	StatusOrdered = "ordered"
)

// Cart is the full server snapshot of a pending order.
type Cart struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Status         string     `json:"status"`
	CouponID       *int64     `json:"coupon_id"`
	Subtotal       float64    `json:"subtotal"`
	Discount       float64    `json:"discount"`
	Total          float64    `json:"total"`
	ShippingAmount float64    `json:"shipping_amount"`
	PaidAt         *string    `json:"paid_at"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
	Items          []CartItem `json:"items"`
	Coupon         *Coupon    `json:"coupon"`
}

// CartItem is a denormalized line with a snapshot of the product at add time.
type CartItem struct {
	ID           int64          `json:"id"`
	OrderID      int64          `json:"order_id"`
	ProductID    int64          `json:"product_id"`
	ProductName  string         `json:"product_name"`
	ProductPrice float64        `json:"product_price"`
	Quantity     int            `json:"quantity"`
	Total        float64        `json:"total"`
	Discount     float64        `json:"discount"`
	FinalPrice   float64        `json:"final_price"`
	Product      ProductSummary `json:"product"`
}

// ProductSummary is the embedded product payload carried on each line.
type ProductSummary struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Price string     `json:"price"`
	Media []MediaRef `json:"media"`
}

// MediaRef points at a product image.
type MediaRef struct {
	ID          int64  `json:"id"`
	OriginalURL string `json:"original_url"`
}

// Coupon describes the applied discount code. Fields beyond code/discount are
// metadata the backend includes for display.
type Coupon struct {
	ID                int64   `json:"id"`
	Code              string  `json:"code"`
	Type              string  `json:"type"`
	Value             string  `json:"value"`
	Discount          float64 `json:"discount"`
	MinPurchaseAmount string  `json:"min_purchase_amount"`
	MaxUses           int     `json:"max_uses"`
	UsedTimes         int     `json:"used_times"`
	StartsAt          string  `json:"starts_at"`
	ExpiresAt         string  `json:"expires_at"`
	IsActive          bool    `json:"is_active"`
}

// TotalItems sums line quantities.
func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Image returns the first media asset URL, or "" when the product has none.
func (p ProductSummary) Image() string {
	if len(p.Media) == 0 {
		return ""
	}
	return p.Media[0].OriginalURL
}

// normalize enforces the cart invariants on a freshly fetched snapshot:
// every line has quantity >= 1 and at most one line exists per product.
// Violations come from the server and are reported, not silently merged.
func (c *Cart) normalize() []string {
	if len(c.Items) == 0 {
		return nil
	}
	var issues []string
	seen := make(map[int64]struct{}, len(c.Items))
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.Quantity < 1 {
			issues = append(issues, fmt.Sprintf("line %d for product %d has quantity %d", item.ID, item.ProductID, item.Quantity))
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			issues = append(issues, fmt.Sprintf("duplicate line for product %d", item.ProductID))
			continue
		}
		seen[item.ProductID] = struct{}{}
		kept = append(kept, item)
	}
	c.Items = kept
	return issues
}

// CachedItem is the lightweight line persisted in the local cart cache and
// shown before the authoritative fetch completes.
type CachedItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image"`
}

// cachedItems projects the full snapshot into the lightweight cache shape.
func cachedItems(c Cart) []CachedItem {
	if len(c.Items) == 0 {
		return []CachedItem{}
	}
	items := make([]CachedItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CachedItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Price:     strconv.FormatFloat(item.ProductPrice, 'f', -1, 64),
			Quantity:  item.Quantity,
			Image:     item.Product.Image(),
		})
	}
	return items
}
