package checkout

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
	"github.com/nextshop/commerce-api/pkg/payment"
	"github.com/nextshop/commerce-api/pkg/tasks"
)

type fakeCarts struct {
	carts   map[string]*models.Cart
	deleted []bson.ObjectID
}

func (f *fakeCarts) GetByCode(_ context.Context, code string) (*models.Cart, error) {
	c, ok := f.carts[code]
	if !ok {
		return nil, fmt.Errorf("cart %q: %w", code, global.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCarts) Delete(_ context.Context, cartID bson.ObjectID) error {
	f.deleted = append(f.deleted, cartID)
	for code, c := range f.carts {
		if c.ID == cartID {
			delete(f.carts, code)
		}
	}
	return nil
}

type fakeProducts struct {
	products map[bson.ObjectID]*models.Product
}

func (f *fakeProducts) GetByID(_ context.Context, id bson.ObjectID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id.Hex(), global.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

type fakeLedger struct {
	products   *fakeProducts
	decrements []bson.ObjectID
	shortfalls []bson.ObjectID
}

func (f *fakeLedger) ReserveStock(_ context.Context, productID bson.ObjectID, quantity int) error {
	p, ok := f.products.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID.Hex(), global.ErrNotFound)
	}
	if p.Stock < quantity {
		return fmt.Errorf("product %s: %w", productID.Hex(), global.ErrInsufficientStock)
	}
	return nil
}

func (f *fakeLedger) DecrementStock(_ context.Context, productID bson.ObjectID, quantity int, _ string) error {
	p, ok := f.products.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID.Hex(), global.ErrNotFound)
	}
	if p.Stock < quantity {
		return fmt.Errorf("product %s: %w", productID.Hex(), global.ErrInsufficientStock)
	}
	p.Stock -= quantity
	f.decrements = append(f.decrements, productID)
	return nil
}

func (f *fakeLedger) RecordShortfall(_ context.Context, productID bson.ObjectID, _ int, _ string) error {
	f.shortfalls = append(f.shortfalls, productID)
	return nil
}

type fakeOrders struct {
	byCheckoutID map[string]*models.Order
	insertErr    error
}

func (f *fakeOrders) GetByCheckoutID(_ context.Context, checkoutID string) (*models.Order, error) {
	o, ok := f.byCheckoutID[checkoutID]
	if !ok {
		return nil, fmt.Errorf("order for %s: %w", checkoutID, global.ErrNotFound)
	}
	return o, nil
}

func (f *fakeOrders) Insert(_ context.Context, order *models.Order) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, exists := f.byCheckoutID[order.StripeCheckoutID]; exists {
		return fmt.Errorf("duplicate checkout id: %w", global.ErrConflict)
	}
	order.ID = bson.NewObjectID()
	f.byCheckoutID[order.StripeCheckoutID] = order
	return nil
}

type fakeProvider struct {
	lineItems []payment.LineItem
	email     string
	metadata  map[string]string
	err       error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, lineItems []payment.LineItem, customerEmail string, metadata map[string]string) (*payment.SessionHandle, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lineItems = lineItems
	f.email = customerEmail
	f.metadata = metadata
	return &payment.SessionHandle{ID: "cs_test_123", URL: "https://checkout.example/cs_test_123"}, nil
}

type fakeQueue struct {
	enqueued []tasks.Kind
	payloads []any
}

func (f *fakeQueue) Enqueue(_ context.Context, kind tasks.Kind, payload any) error {
	f.enqueued = append(f.enqueued, kind)
	f.payloads = append(f.payloads, payload)
	return nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	carts    *fakeCarts
	products *fakeProducts
	ledger   *fakeLedger
	orders   *fakeOrders
	provider *fakeProvider
	queue    *fakeQueue
	engine   *Engine

	shirt bson.ObjectID
	mug   bson.ObjectID
}

func newFixture() *fixture {
	products := &fakeProducts{products: map[bson.ObjectID]*models.Product{}}
	f := &fixture{
		carts:    &fakeCarts{carts: map[string]*models.Cart{}},
		products: products,
		ledger:   &fakeLedger{products: products},
		orders:   &fakeOrders{byCheckoutID: map[string]*models.Order{}},
		provider: &fakeProvider{},
		queue:    &fakeQueue{},
	}
	f.engine = NewEngine(f.carts, f.products, f.ledger, f.orders, f.provider, f.queue, passthroughTx)

	f.shirt = bson.NewObjectID()
	f.mug = bson.NewObjectID()
	products.products[f.shirt] = &models.Product{ID: f.shirt, Name: "Shirt", PriceCents: 2500, Stock: 10}
	products.products[f.mug] = &models.Product{ID: f.mug, Name: "Mug", PriceCents: 900, Stock: 3}
	return f
}

func (f *fixture) seedCart(code string, owner *bson.ObjectID, items ...models.CartItem) *models.Cart {
	c := &models.Cart{
		ID:       bson.NewObjectID(),
		CartCode: code,
		UserID:   owner,
		Items:    items,
	}
	f.carts.carts[code] = c
	return c
}

func item(productID bson.ObjectID, quantity int) models.CartItem {
	return models.CartItem{ItemID: bson.NewObjectID(), ProductID: productID, Quantity: quantity}
}

func paidEvent(sessionID, cartCode string) *payment.WebhookEvent {
	event := &payment.WebhookEvent{ID: "evt_1", Type: "checkout.session.completed"}
	event.Data.Object = payment.CheckoutSessionObject{
		ID:            sessionID,
		AmountTotal:   5900,
		Currency:      "usd",
		CustomerEmail: "buyer@example.com",
		Metadata:      map[string]string{"cart_code": cartCode},
	}
	return event
}

func TestCreateCheckoutBuildsSession(t *testing.T) {
	f := newFixture()
	f.seedCart("abcdefghijk", nil, item(f.shirt, 2), item(f.mug, 1))

	session, err := f.engine.CreateCheckout(context.Background(), "abcdefghijk", "buyer@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", session.ID)

	require.Len(t, f.provider.lineItems, 3)
	assert.Equal(t, "Shirt", f.provider.lineItems[0].Name)
	assert.Equal(t, int64(2500), f.provider.lineItems[0].UnitAmountCents)
	assert.Equal(t, 2, f.provider.lineItems[0].Quantity)

	fee := f.provider.lineItems[2]
	assert.Equal(t, "VAT Fee", fee.Name)
	assert.Equal(t, int64(500), fee.UnitAmountCents)
	assert.Equal(t, 1, fee.Quantity)

	assert.Equal(t, "buyer@example.com", f.provider.email)
	assert.Equal(t, "abcdefghijk", f.provider.metadata["cart_code"])
	assert.NotContains(t, f.provider.metadata, "user_id")
}

func TestCreateCheckoutCarriesUserMetadata(t *testing.T) {
	f := newFixture()
	user := &models.User{ID: bson.NewObjectID(), Email: "buyer@example.com"}
	f.seedCart("abcdefghijk", &user.ID, item(f.shirt, 1))

	_, err := f.engine.CreateCheckout(context.Background(), "abcdefghijk", user.Email, user)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), f.provider.metadata["user_id"])
}

func TestCreateCheckoutRejectsEmptyCart(t *testing.T) {
	f := newFixture()
	f.seedCart("abcdefghijk", nil)

	_, err := f.engine.CreateCheckout(context.Background(), "abcdefghijk", "buyer@example.com", nil)
	assert.ErrorIs(t, err, global.ErrValidation)
}

func TestCreateCheckoutRejectsMissingFields(t *testing.T) {
	f := newFixture()

	_, err := f.engine.CreateCheckout(context.Background(), "", "buyer@example.com", nil)
	assert.ErrorIs(t, err, global.ErrValidation)

	_, err = f.engine.CreateCheckout(context.Background(), "abcdefghijk", "", nil)
	assert.ErrorIs(t, err, global.ErrValidation)
}

func TestCreateCheckoutForbidsForeignCart(t *testing.T) {
	f := newFixture()
	owner := bson.NewObjectID()
	f.seedCart("abcdefghijk", &owner, item(f.shirt, 1))

	stranger := &models.User{ID: bson.NewObjectID()}
	_, err := f.engine.CreateCheckout(context.Background(), "abcdefghijk", "x@example.com", stranger)
	assert.ErrorIs(t, err, global.ErrForbidden)

	_, err = f.engine.CreateCheckout(context.Background(), "abcdefghijk", "x@example.com", nil)
	assert.ErrorIs(t, err, global.ErrForbidden)
}

func TestCreateCheckoutRejectsInsufficientStock(t *testing.T) {
	f := newFixture()
	f.seedCart("abcdefghijk", nil, item(f.mug, 5))

	_, err := f.engine.CreateCheckout(context.Background(), "abcdefghijk", "buyer@example.com", nil)
	assert.ErrorIs(t, err, global.ErrInsufficientStock)
}

func TestHandleConfirmationFulfills(t *testing.T) {
	f := newFixture()
	cart := f.seedCart("abcdefghijk", nil, item(f.shirt, 2), item(f.mug, 1))

	err := f.engine.HandleConfirmation(context.Background(), paidEvent("cs_1", "abcdefghijk"))
	require.NoError(t, err)

	order := f.orders.byCheckoutID["cs_1"]
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, int64(5900), order.AmountCents)
	assert.Equal(t, "usd", order.Currency)
	assert.Equal(t, "buyer@example.com", order.CustomerEmail)

	require.Len(t, order.Items, 2)
	for _, oi := range order.Items {
		if oi.ProductID == f.shirt {
			assert.Equal(t, "Shirt", oi.Name)
			assert.Equal(t, int64(2500), oi.UnitPriceCents)
			assert.Equal(t, 2, oi.Quantity)
		}
	}

	assert.Equal(t, 8, f.products.products[f.shirt].Stock)
	assert.Equal(t, 2, f.products.products[f.mug].Stock)
	assert.Equal(t, []bson.ObjectID{cart.ID}, f.carts.deleted)
	assert.Equal(t, []tasks.Kind{tasks.KindOrderConfirmationEmail}, f.queue.enqueued)
}

func TestHandleConfirmationIgnoresOtherEvents(t *testing.T) {
	f := newFixture()
	f.seedCart("abcdefghijk", nil, item(f.shirt, 1))

	event := paidEvent("cs_1", "abcdefghijk")
	event.Type = "payment_intent.created"

	require.NoError(t, f.engine.HandleConfirmation(context.Background(), event))
	assert.Empty(t, f.orders.byCheckoutID)
	assert.Empty(t, f.ledger.decrements)
}

func TestHandleConfirmationIsIdempotent(t *testing.T) {
	f := newFixture()
	f.seedCart("abcdefghijk", nil, item(f.shirt, 2))

	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.HandleConfirmation(context.Background(), paidEvent("cs_1", "abcdefghijk")))
	}

	assert.Len(t, f.orders.byCheckoutID, 1)
	assert.Len(t, f.ledger.decrements, 1)
	assert.Equal(t, 8, f.products.products[f.shirt].Stock)
	assert.Equal(t, []tasks.Kind{tasks.KindOrderConfirmationEmail}, f.queue.enqueued)
}

func TestHandleConfirmationTreatsInsertConflictAsDuplicate(t *testing.T) {
	f := newFixture()
	f.seedCart("abcdefghijk", nil, item(f.shirt, 1))
	f.orders.insertErr = fmt.Errorf("duplicate checkout id: %w", global.ErrConflict)

	err := f.engine.HandleConfirmation(context.Background(), paidEvent("cs_1", "abcdefghijk"))
	assert.NoError(t, err)
	assert.Empty(t, f.queue.enqueued)
}

func TestHandleConfirmationShortfallAbortsWholeOrder(t *testing.T) {
	f := newFixture()
	f.seedCart("abcdefghijk", nil, item(f.shirt, 2), item(f.mug, 5))

	err := f.engine.HandleConfirmation(context.Background(), paidEvent("cs_1", "abcdefghijk"))
	require.Error(t, err)
	assert.ErrorIs(t, err, global.ErrIntegrity)

	// No partial order, and the cart survives for the retry.
	assert.Empty(t, f.orders.byCheckoutID)
	assert.Empty(t, f.carts.deleted)

	assert.Equal(t, []bson.ObjectID{f.mug}, f.ledger.shortfalls)
	require.Equal(t, []tasks.Kind{tasks.KindStockShortfallNotice}, f.queue.enqueued)
	notice, ok := f.queue.payloads[0].(*tasks.StockShortfallPayload)
	require.True(t, ok)
	assert.Equal(t, "Mug", notice.ProductName)
	assert.Equal(t, 5, notice.Requested)
	assert.Equal(t, "cs_1", notice.CheckoutRef)
}

func TestHandleConfirmationRetryAfterRestockSucceeds(t *testing.T) {
	f := newFixture()
	f.seedCart("abcdefghijk", nil, item(f.mug, 5))

	err := f.engine.HandleConfirmation(context.Background(), paidEvent("cs_1", "abcdefghijk"))
	require.ErrorIs(t, err, global.ErrIntegrity)

	f.products.products[f.mug].Stock = 5

	require.NoError(t, f.engine.HandleConfirmation(context.Background(), paidEvent("cs_1", "abcdefghijk")))
	assert.Len(t, f.orders.byCheckoutID, 1)
	assert.Equal(t, 0, f.products.products[f.mug].Stock)
}

func TestHandleConfirmationMissingCartIsIntegrityError(t *testing.T) {
	f := newFixture()

	err := f.engine.HandleConfirmation(context.Background(), paidEvent("cs_1", "nosuchcart1"))
	assert.ErrorIs(t, err, global.ErrIntegrity)
}

func TestHandleConfirmationMissingMetadataIsIntegrityError(t *testing.T) {
	f := newFixture()

	event := paidEvent("cs_1", "abcdefghijk")
	event.Data.Object.Metadata = nil

	err := f.engine.HandleConfirmation(context.Background(), event)
	assert.ErrorIs(t, err, global.ErrIntegrity)
}
