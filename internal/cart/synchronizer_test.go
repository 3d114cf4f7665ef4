package cart

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glowcart/storefront/internal/api"
)

// fakeBackend emulates the commerce API: mutations change the server cart
// and GET /orders/cart serves the current authoritative snapshot.
type fakeBackend struct {
	mu      sync.Mutex
	cart    Cart
	calls   []string
	errs    map[string]error
	getSeq  int
	getHook func(n int)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		cart: Cart{ID: 1, UserID: 7, Status: StatusCart, Items: []CartItem{}},
		errs: map[string]error{},
	}
}

func (f *fakeBackend) record(method, path string) {
	f.calls = append(f.calls, method+" "+path)
}

func (f *fakeBackend) Get(ctx context.Context, path string, query url.Values, out any) error {
	f.mu.Lock()
	f.record("GET", path)
	if err := f.errs[path]; err != nil {
		f.mu.Unlock()
		return err
	}
	snapshot := f.cart
	snapshot.Items = append([]CartItem(nil), f.cart.Items...)
	f.getSeq++
	n := f.getSeq
	hook := f.getHook
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	*out.(*Cart) = snapshot
	return nil
}

func (f *fakeBackend) Post(ctx context.Context, path string, body, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST", path)
	if err := f.errs[path]; err != nil {
		return err
	}
	switch path {
	case "/orders/cart/add":
		payload := body.(struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		})
		f.addLine(payload.ProductID, payload.Quantity)
	case "/orders/cart/remove":
		payload := body.(struct {
			ProductID int64 `json:"product_id"`
		})
		f.removeLine(payload.ProductID)
	case "/orders/cart/coupon":
		discount := 10.0
		f.cart.Coupon = &Coupon{Code: "SAVE10", Discount: discount}
		f.cart.Discount = discount
	case "/orders/cart/remove-coupon":
		f.cart.Coupon = nil
		f.cart.Discount = 0
	}
	f.recalculate()
	return nil
}

func (f *fakeBackend) Put(ctx context.Context, path string, body, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PUT", path)
	if err := f.errs[path]; err != nil {
		return err
	}
	payload := body.(struct {
		Quantity int `json:"quantity"`
	})
	var itemID int64
	if _, err := fmt.Sscanf(path, "/orders/cart/items/%d", &itemID); err != nil {
		return err
	}
	for i := range f.cart.Items {
		if f.cart.Items[i].ID == itemID {
			f.cart.Items[i].Quantity = payload.Quantity
		}
	}
	f.recalculate()
	return nil
}

func (f *fakeBackend) addLine(productID int64, quantity int) {
	for i := range f.cart.Items {
		if f.cart.Items[i].ProductID == productID {
			f.cart.Items[i].Quantity += quantity
			return
		}
	}
	f.cart.Items = append(f.cart.Items, CartItem{
		ID:           int64(len(f.cart.Items) + 1),
		OrderID:      f.cart.ID,
		ProductID:    productID,
		ProductName:  fmt.Sprintf("Product %d", productID),
		ProductPrice: 20,
		Quantity:     quantity,
		Product: ProductSummary{
			ID:    productID,
			Name:  fmt.Sprintf("Product %d", productID),
			Price: "20",
			Media: []MediaRef{{ID: 1, OriginalURL: "https://cdn/p.jpg"}},
		},
	})
}

func (f *fakeBackend) removeLine(productID int64) {
	kept := f.cart.Items[:0]
	for _, item := range f.cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	f.cart.Items = kept
}

func (f *fakeBackend) recalculate() {
	subtotal := 0.0
	for i := range f.cart.Items {
		line := &f.cart.Items[i]
		line.Total = line.ProductPrice * float64(line.Quantity)
		line.FinalPrice = line.Total
		subtotal += line.Total
	}
	f.cart.Subtotal = subtotal
	f.cart.Total = subtotal - f.cart.Discount
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) serverCart() Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.cart
	snapshot.Items = append([]CartItem(nil), f.cart.Items...)
	return snapshot
}

type stubTokens struct {
	authed bool
}

func (s stubTokens) Token() string       { return "tok" }
func (s stubTokens) Authenticated() bool { return s.authed }

func newTestSynchronizer(t *testing.T, backend Backend, opts ...func(*Deps)) *Synchronizer {
	t.Helper()
	deps := Deps{Backend: backend}
	for _, opt := range opts {
		opt(&deps)
	}
	s, err := NewSynchronizer(deps)
	require.NoError(t, err)
	return s
}

func TestNewSynchronizerRequiresBackend(t *testing.T) {
	_, err := NewSynchronizer(Deps{})
	require.ErrorIs(t, err, ErrBackendMissing)
}

func TestRefreshReplacesSnapshotWholesale(t *testing.T) {
	fb := newFakeBackend()
	fb.addLine(42, 2)
	fb.recalculate()
	s := newTestSynchronizer(t, fb)

	require.NoError(t, s.Refresh(context.Background()))
	snapshot := s.Snapshot()
	require.Equal(t, int64(1), snapshot.ID)
	require.Len(t, snapshot.Items, 1)
	require.Equal(t, 2, snapshot.TotalItems())
	require.Empty(t, s.Err())
	require.False(t, s.Loading())
}

func TestMutationsConvergeOnServerState(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb)
	ctx := context.Background()

	require.NoError(t, s.AddItem(ctx, 10, 1))
	require.NoError(t, s.AddItem(ctx, 11, 3))
	require.NoError(t, s.AddItem(ctx, 10, 1))
	require.NoError(t, s.RemoveItem(ctx, 11))

	// Server is authoritative: the in-memory cart must equal what a fetch
	// performed right now would return.
	require.Equal(t, fb.serverCart(), s.Snapshot())
	require.Equal(t, 2, s.TotalItems())
}

func TestAddItemRejectsZeroQuantity(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb)

	err := s.AddItem(context.Background(), 10, 0)
	require.Error(t, err)
	require.Equal(t, "quantity must be at least 1", s.Err())
	require.Empty(t, fb.callLog(), "no network call may be issued")
}

func TestFailedRefreshRetainsPreviousSnapshot(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb)
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, 10, 1))
	before := s.Snapshot()

	fb.mu.Lock()
	fb.errs["/orders/cart"] = &api.Error{Kind: api.KindNetwork, Message: "could not reach the store, please try again"}
	fb.mu.Unlock()

	require.Error(t, s.Refresh(ctx))
	require.Equal(t, before, s.Snapshot(), "failure must leave the prior snapshot untouched")
	require.Equal(t, "could not reach the store, please try again", s.Err())
	require.False(t, s.Loading())
}

func TestErrorClearedAtStartOfNextOperation(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb)
	ctx := context.Background()

	fb.mu.Lock()
	fb.errs["/orders/cart"] = &api.Error{Kind: api.KindNetwork, Message: "boom"}
	fb.mu.Unlock()
	require.Error(t, s.Refresh(ctx))
	require.NotEmpty(t, s.Err())

	fb.mu.Lock()
	delete(fb.errs, "/orders/cart")
	fb.mu.Unlock()
	require.NoError(t, s.Refresh(ctx))
	require.Empty(t, s.Err())
}

func TestApplyCouponBusinessRejection(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb)
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, 10, 1))
	before := s.Snapshot()

	fb.mu.Lock()
	fb.errs["/orders/cart/coupon"] = &api.Error{Kind: api.KindBusiness, Message: "Coupon has expired", Status: 422}
	fb.mu.Unlock()

	require.Error(t, s.ApplyCoupon(ctx, "EXPIRED10"))
	require.Equal(t, "Coupon has expired", s.Err(), "server message must surface verbatim")
	require.Equal(t, before, s.Snapshot())
}

func TestApplyCouponSessionExpiryFiresReauthOnce(t *testing.T) {
	fb := newFakeBackend()
	fb.errs["/orders/cart/coupon"] = &api.Error{
		Kind:           api.KindSessionExpired,
		Message:        api.SessionExpiredMessage,
		RequiresReauth: true,
	}

	reauthCalls := 0
	s := newTestSynchronizer(t, fb, func(d *Deps) {
		d.OnReauthRequired = func() { reauthCalls++ }
	})

	err := s.ApplyCoupon(context.Background(), "EXPIRED10")
	require.True(t, api.IsSessionExpired(err))
	require.Equal(t, api.SessionExpiredMessage, s.Err())
	require.Equal(t, 1, reauthCalls, "reauth hook must fire exactly once")
}

func TestApplyAndRemoveCoupon(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb)
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, 10, 1))

	require.NoError(t, s.ApplyCoupon(ctx, "SAVE10"))
	snapshot := s.Snapshot()
	require.NotNil(t, snapshot.Coupon)
	require.Equal(t, "SAVE10", snapshot.Coupon.Code)
	require.Equal(t, 10.0, snapshot.Total, "20 subtotal minus 10 discount")

	require.NoError(t, s.RemoveCoupon(ctx))
	snapshot = s.Snapshot()
	require.Nil(t, snapshot.Coupon)
	require.Equal(t, 20.0, snapshot.Total)
}

func TestUpdateQuantity(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb)
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, 10, 1))
	itemID := s.Snapshot().Items[0].ID

	require.NoError(t, s.UpdateQuantity(ctx, itemID, 4))
	require.Equal(t, 4, s.TotalItems())

	// Below-one quantities are ignored without a call.
	calls := len(fb.callLog())
	require.NoError(t, s.UpdateQuantity(ctx, itemID, 0))
	require.Len(t, fb.callLog(), calls)
}

func TestUnauthenticatedRefreshSkipsNetwork(t *testing.T) {
	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb, func(d *Deps) {
		d.Tokens = stubTokens{authed: false}
	})

	require.NoError(t, s.Refresh(context.Background()))
	require.Empty(t, fb.callLog())
	require.Empty(t, s.Err())
}

func TestCacheHydrationAndWriteThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cart.json")
	cache := NewCache(path, nil)
	cache.Store([]CachedItem{{ID: 5, ProductID: 42, Name: "Cached", Price: "9", Quantity: 1}})

	fb := newFakeBackend()
	s := newTestSynchronizer(t, fb, func(d *Deps) { d.Cache = cache })

	// Hydrated before any fetch.
	items := s.Items()
	require.Len(t, items, 1)
	require.Equal(t, int64(42), items[0].ProductID)
	require.Equal(t, 1, s.TotalItems())
	require.Equal(t, 9.0, s.TotalPrice())

	require.NoError(t, s.AddItem(context.Background(), 10, 2))

	// The cache now mirrors the authoritative snapshot.
	persisted := NewCache(path, nil).Load()
	require.Len(t, persisted, 1)
	require.Equal(t, int64(10), persisted[0].ProductID)
	require.Equal(t, 2, persisted[0].Quantity)
}

func TestSnapshotInvariantsEnforced(t *testing.T) {
	fb := newFakeBackend()
	fb.cart.Items = []CartItem{
		{ID: 1, ProductID: 10, Quantity: 1},
		{ID: 2, ProductID: 10, Quantity: 2}, // duplicate product
		{ID: 3, ProductID: 11, Quantity: 0}, // below minimum quantity
	}
	s := newTestSynchronizer(t, fb)

	require.NoError(t, s.Refresh(context.Background()))
	snapshot := s.Snapshot()
	require.Len(t, snapshot.Items, 1)
	require.Equal(t, int64(10), snapshot.Items[0].ProductID)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	fb := newFakeBackend()
	fb.addLine(10, 1)
	fb.recalculate()

	entered := make(chan struct{})
	release := make(chan struct{})
	fb.getHook = func(n int) {
		if n == 1 {
			close(entered)
			<-release
		}
	}
	s := newTestSynchronizer(t, fb)

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Refresh(context.Background()) }()
	<-entered

	// A second refresh completes while the first is stalled, observing a
	// newer server cart.
	fb.mu.Lock()
	fb.getHook = nil
	fb.addLine(11, 5)
	fb.recalculate()
	fb.mu.Unlock()
	require.NoError(t, s.Refresh(context.Background()))
	newer := s.Snapshot()
	require.Len(t, newer.Items, 2)

	close(release)
	require.NoError(t, <-firstDone)

	// The first (stale) response must not overwrite the newer snapshot.
	require.Equal(t, newer, s.Snapshot())
}
