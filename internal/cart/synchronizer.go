package cart

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/glowcart/storefront/internal/api"
)

// Backend is the slice of the API client the synchronizer depends on.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

// ErrBackendMissing is returned when NewSynchronizer is constructed without a backend.
var ErrBackendMissing = errors.New("cart: backend client missing")

var errQuantityTooLow = errors.New("quantity must be at least 1")

// Deps bundles dependencies required to construct a Synchronizer.
type Deps struct {
	Backend Backend
	// Tokens gates whether a cart fetch is attempted at all; a nil source
	// means the caller guarantees authentication out of band.
	Tokens api.TokenSource
	Cache  *Cache
	Logger *zap.Logger
	// OnReauthRequired fires once per operation that failed on session
	// expiry. Navigation to the login page is the caller's reaction.
	OnReauthRequired func()
}

// Synchronizer owns the authoritative local view of the shopper's cart.
// Every mutation posts its intent and then re-fetches the full snapshot, so
// local state is always the last server response. Responses are applied in
// issue order: a refresh that loses the race to a newer one is discarded
// instead of overwriting it.
type Synchronizer struct {
	backend  Backend
	tokens   api.TokenSource
	cache    *Cache
	logger   *zap.Logger
	onReauth func()

	mu       sync.Mutex
	cart     Cart
	items    []CachedItem
	inflight int
	lastErr  string
	seq      uint64
	applied  uint64
}

// NewSynchronizer wires a Synchronizer and hydrates the lightweight view
// from the local cache.
func NewSynchronizer(deps Deps) (*Synchronizer, error) {
	if deps.Backend == nil {
		return nil, ErrBackendMissing
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synchronizer{
		backend:  deps.Backend,
		tokens:   deps.Tokens,
		cache:    deps.Cache,
		logger:   logger,
		onReauth: deps.OnReauthRequired,
		items:    []CachedItem{},
	}
	if deps.Cache != nil {
		s.items = deps.Cache.Load()
	}
	return s, nil
}

// Refresh fetches the authoritative cart and replaces the local snapshot
// wholesale. Failure leaves the previous snapshot untouched.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.begin()
	err := s.refresh(ctx)
	s.finish(err)
	return err
}

// AddItem posts an add intent for productID, then re-fetches the cart so the
// server derives all pricing. quantity must be at least 1.
func (s *Synchronizer) AddItem(ctx context.Context, productID int64, quantity int) error {
	s.begin()
	var err error
	if quantity < 1 {
		err = errQuantityTooLow
	} else {
		payload := struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		}{ProductID: productID, Quantity: quantity}
		if err = s.backend.Post(ctx, "/orders/cart/add", payload, nil); err == nil {
			err = s.refresh(ctx)
		}
	}
	s.finish(err)
	return err
}

// RemoveItem posts a removal for productID, then re-fetches the cart.
func (s *Synchronizer) RemoveItem(ctx context.Context, productID int64) error {
	s.begin()
	payload := struct {
		ProductID int64 `json:"product_id"`
	}{ProductID: productID}
	err := s.backend.Post(ctx, "/orders/cart/remove", payload, nil)
	if err == nil {
		err = s.refresh(ctx)
	}
	s.finish(err)
	return err
}

// UpdateQuantity sets the quantity of an existing line, then re-fetches.
// Quantities below 1 are ignored; removal is explicit via RemoveItem.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, itemID int64, quantity int) error {
	if quantity < 1 {
		return nil
	}
	s.begin()
	payload := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}
	err := s.backend.Put(ctx, fmt.Sprintf("/orders/cart/items/%d", itemID), payload, nil)
	if err == nil {
		err = s.refresh(ctx)
	}
	s.finish(err)
	return err
}

// ApplyCoupon submits a coupon code. A business rejection surfaces the
// server's message and leaves the cart unchanged; a session expiry surfaces
// a dedicated message and fires the reauth hook.
func (s *Synchronizer) ApplyCoupon(ctx context.Context, code string) error {
	s.begin()
	payload := struct {
		CouponCode string `json:"coupon_code"`
	}{CouponCode: code}
	err := s.backend.Post(ctx, "/orders/cart/coupon", payload, nil)
	if err == nil {
		err = s.refresh(ctx)
	}
	s.finish(err)
	return err
}

// RemoveCoupon drops the applied coupon, then re-fetches.
func (s *Synchronizer) RemoveCoupon(ctx context.Context) error {
	s.begin()
	err := s.backend.Post(ctx, "/orders/cart/remove-coupon", struct{}{}, nil)
	if err == nil {
		err = s.refresh(ctx)
	}
	s.finish(err)
	return err
}

func (s *Synchronizer) refresh(ctx context.Context) error {
	if s.tokens != nil && !s.tokens.Authenticated() {
		// Anonymous session: the backend would only redirect us to login,
		// so skip the round trip and keep the cached lightweight view.
		s.logger.Debug("cart refresh skipped, no access token")
		return nil
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	var snapshot Cart
	if err := s.backend.Get(ctx, "/orders/cart", nil, &snapshot); err != nil {
		return err
	}
	s.apply(seq, snapshot)
	return nil
}

func (s *Synchronizer) apply(seq uint64, snapshot Cart) {
	for _, issue := range snapshot.normalize() {
		s.logger.Warn("cart snapshot violates invariant", zap.String("issue", issue))
	}
	items := cachedItems(snapshot)

	s.mu.Lock()
	if seq <= s.applied {
		s.mu.Unlock()
		s.logger.Debug("discarding stale cart response", zap.Uint64("seq", seq))
		return
	}
	s.applied = seq
	s.cart = snapshot
	s.items = items
	s.mu.Unlock()

	s.cache.Store(items)
}

func (s *Synchronizer) begin() {
	s.mu.Lock()
	s.inflight++
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Synchronizer) finish(err error) {
	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.lastErr = errorMessage(err)
	}
	s.mu.Unlock()

	if api.IsSessionExpired(err) && s.onReauth != nil {
		s.onReauth()
	}
}

func errorMessage(err error) string {
	if apiErr, ok := api.AsError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}

// Snapshot returns a copy of the last applied cart.
func (s *Synchronizer) Snapshot() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.cart
	snapshot.Items = append([]CartItem(nil), s.cart.Items...)
	if s.cart.Coupon != nil {
		coupon := *s.cart.Coupon
		snapshot.Coupon = &coupon
	}
	return snapshot
}

// Items returns the lightweight line view, available before the first
// authoritative fetch completes.
func (s *Synchronizer) Items() []CachedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CachedItem(nil), s.items...)
}

// Loading reports whether any operation is in flight.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Err returns the message recorded by the most recent failed operation, or
// "" when the last operation succeeded.
func (s *Synchronizer) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// TotalItems sums quantities over the lightweight view.
func (s *Synchronizer) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums price*quantity over the lightweight view. Unparseable
// prices count as zero; authoritative totals always come from the snapshot.
func (s *Synchronizer) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, item := range s.items {
		price, err := strconv.ParseFloat(item.Price, 64)
		if err != nil {
			continue
		}
		total += price * float64(item.Quantity)
	}
	return total
}
