package cart

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
)

// memStore is an in-memory Store with the same merge semantics as the
// real collection updates.
type memStore struct {
	carts map[string]*models.Cart
}

func newMemStore() *memStore {
	return &memStore{carts: map[string]*models.Cart{}}
}

func (m *memStore) GetByCode(_ context.Context, code string) (*models.Cart, error) {
	c, ok := m.carts[code]
	if !ok {
		return nil, fmt.Errorf("cart %q: %w", code, global.ErrNotFound)
	}
	cp := *c
	cp.Items = append([]models.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *memStore) GetByUser(_ context.Context, userID bson.ObjectID) (*models.Cart, error) {
	for _, c := range m.carts {
		if c.UserID != nil && *c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("cart for user %s: %w", userID.Hex(), global.ErrNotFound)
}

func (m *memStore) GetByItemID(_ context.Context, itemID bson.ObjectID) (*models.Cart, error) {
	for _, c := range m.carts {
		if c.FindItemByID(itemID) != nil {
			cp := *c
			cp.Items = append([]models.CartItem(nil), c.Items...)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("cart item %s: %w", itemID.Hex(), global.ErrNotFound)
}

func (m *memStore) CodeExists(_ context.Context, code string) (bool, error) {
	_, ok := m.carts[code]
	return ok, nil
}

func (m *memStore) Create(_ context.Context, cart *models.Cart) error {
	if _, exists := m.carts[cart.CartCode]; exists {
		return fmt.Errorf("cart code taken: %w", global.ErrConflict)
	}
	cp := *cart
	m.carts[cart.CartCode] = &cp
	return nil
}

func (m *memStore) Adopt(_ context.Context, cartID, userID bson.ObjectID) (bool, error) {
	for _, c := range m.carts {
		if c.ID == cartID && c.UserID == nil {
			uid := userID
			c.UserID = &uid
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) IncrementItem(_ context.Context, cartID, productID bson.ObjectID, quantity int) (bool, error) {
	for _, c := range m.carts {
		if c.ID != cartID {
			continue
		}
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity += quantity
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memStore) PushItem(_ context.Context, cartID bson.ObjectID, item models.CartItem) (bool, error) {
	for _, c := range m.carts {
		if c.ID != cartID {
			continue
		}
		if c.FindItem(item.ProductID) != nil {
			return false, nil
		}
		c.Items = append(c.Items, item)
		return true, nil
	}
	return false, nil
}

func (m *memStore) SetItemQuantity(_ context.Context, itemID bson.ObjectID, quantity int) error {
	for _, c := range m.carts {
		if it := c.FindItemByID(itemID); it != nil {
			it.Quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("cart item %s: %w", itemID.Hex(), global.ErrNotFound)
}

func (m *memStore) RemoveItem(_ context.Context, itemID bson.ObjectID) error {
	for _, c := range m.carts {
		for i := range c.Items {
			if c.Items[i].ItemID == itemID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("cart item %s: %w", itemID.Hex(), global.ErrNotFound)
}

func (m *memStore) Delete(_ context.Context, cartID bson.ObjectID) error {
	for code, c := range m.carts {
		if c.ID == cartID {
			delete(m.carts, code)
			return nil
		}
	}
	return nil
}

type memProducts struct {
	products map[bson.ObjectID]*models.Product
}

func (m *memProducts) GetByID(_ context.Context, id bson.ObjectID) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id.Hex(), global.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func newTestService() (*Service, *memStore, bson.ObjectID) {
	store := newMemStore()
	productID := bson.NewObjectID()
	products := &memProducts{products: map[bson.ObjectID]*models.Product{
		productID: {ID: productID, Name: "Shirt", Slug: "shirt", PriceCents: 2500, Stock: 10},
	}}
	return NewService(store, products), store, productID
}

func TestAddItemCreatesCartWithClientCode(t *testing.T) {
	svc, _, productID := newTestService()

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, "clientcode1", c.CartCode)
	assert.Nil(t, c.UserID)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestAddItemMergesExistingProduct(t *testing.T) {
	svc, _, productID := newTestService()

	_, err := svc.AddItem(context.Background(), "clientcode1", productID, 2, nil)
	require.NoError(t, err)

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 3, nil)
	require.NoError(t, err)

	require.Len(t, c.Items, 1, "same product must merge, not duplicate")
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestAddItemDefaultsQuantityToOne(t *testing.T) {
	svc, _, productID := newTestService()

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestAddItemAnonymousWithoutCodeIsRejected(t *testing.T) {
	svc, _, productID := newTestService()

	_, err := svc.AddItem(context.Background(), "", productID, 1, nil)
	assert.ErrorIs(t, err, global.ErrValidation)
}

func TestAddItemGeneratesCodeForAuthenticatedUser(t *testing.T) {
	svc, _, productID := newTestService()
	user := &models.User{ID: bson.NewObjectID()}

	c, err := svc.AddItem(context.Background(), "", productID, 1, user)
	require.NoError(t, err)

	assert.Len(t, c.CartCode, 11)
	require.NotNil(t, c.UserID)
	assert.Equal(t, user.ID, *c.UserID)

	// A second codeless add finds the same cart.
	c2, err := svc.AddItem(context.Background(), "", productID, 1, user)
	require.NoError(t, err)
	assert.Equal(t, c.CartCode, c2.CartCode)
	assert.Equal(t, 2, c2.Items[0].Quantity)
}

func TestAddItemAdoptsAnonymousCart(t *testing.T) {
	svc, _, productID := newTestService()

	_, err := svc.AddItem(context.Background(), "clientcode1", productID, 1, nil)
	require.NoError(t, err)

	user := &models.User{ID: bson.NewObjectID()}
	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 1, user)
	require.NoError(t, err)
	require.NotNil(t, c.UserID)
	assert.Equal(t, user.ID, *c.UserID)

	// Possession of the code no longer suffices for another account.
	stranger := &models.User{ID: bson.NewObjectID()}
	_, err = svc.AddItem(context.Background(), "clientcode1", productID, 1, stranger)
	assert.ErrorIs(t, err, global.ErrForbidden)

	_, err = svc.GetCart(context.Background(), "clientcode1", stranger)
	assert.ErrorIs(t, err, global.ErrForbidden)

	// Anonymous readers lose access too.
	_, err = svc.GetCart(context.Background(), "clientcode1", nil)
	assert.ErrorIs(t, err, global.ErrForbidden)
}

func TestAddItemOutOfStockProduct(t *testing.T) {
	svc, _, productID := newTestService()
	svc.products.(*memProducts).products[productID].Stock = 0

	_, err := svc.AddItem(context.Background(), "clientcode1", productID, 1, nil)
	assert.ErrorIs(t, err, global.ErrValidation)
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.AddItem(context.Background(), "clientcode1", bson.NewObjectID(), 1, nil)
	assert.ErrorIs(t, err, global.ErrNotFound)
}

func TestUpdateItemQuantity(t *testing.T) {
	svc, _, productID := newTestService()

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 2, nil)
	require.NoError(t, err)
	itemID := c.Items[0].ItemID

	c, removed, err := svc.UpdateItemQuantity(context.Background(), itemID, 7, nil)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 7, c.Items[0].Quantity)
}

func TestUpdateItemQuantityZeroRemoves(t *testing.T) {
	svc, _, productID := newTestService()

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 2, nil)
	require.NoError(t, err)
	itemID := c.Items[0].ItemID

	c, removed, err := svc.UpdateItemQuantity(context.Background(), itemID, 0, nil)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, c.Items)
}

func TestUpdateItemQuantityNegativeIsRejected(t *testing.T) {
	svc, _, productID := newTestService()

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 2, nil)
	require.NoError(t, err)

	_, _, err = svc.UpdateItemQuantity(context.Background(), c.Items[0].ItemID, -1, nil)
	assert.ErrorIs(t, err, global.ErrValidation)
}

func TestRemoveItem(t *testing.T) {
	svc, _, productID := newTestService()

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 2, nil)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(context.Background(), c.Items[0].ItemID, nil))

	c, err = svc.GetCart(context.Background(), "clientcode1", nil)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestBuildViewComputesTotals(t *testing.T) {
	svc, _, productID := newTestService()

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 3, nil)
	require.NoError(t, err)

	view, err := svc.BuildView(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.InDelta(t, 75.0, view.Items[0].SubTotal, 0.001)
	assert.InDelta(t, 75.0, view.SumTotal, 0.001)
}

func TestBuildViewSkipsVanishedProducts(t *testing.T) {
	svc, _, productID := newTestService()

	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 1, nil)
	require.NoError(t, err)

	// Simulate the product disappearing from the catalog.
	products := svc.products.(*memProducts)
	delete(products.products, productID)

	view, err := svc.BuildView(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.SumTotal)
}

func TestStat(t *testing.T) {
	svc, _, productID := newTestService()

	_, err := svc.AddItem(context.Background(), "clientcode1", productID, 4, nil)
	require.NoError(t, err)

	stat, err := svc.Stat(context.Background(), "clientcode1", nil)
	require.NoError(t, err)
	assert.Equal(t, "clientcode1", stat.CartCode)
	assert.Equal(t, 4, stat.NumItems)
}

func TestProductInCart(t *testing.T) {
	svc, _, productID := newTestService()

	_, err := svc.AddItem(context.Background(), "clientcode1", productID, 1, nil)
	require.NoError(t, err)

	in, err := svc.ProductInCart(context.Background(), "clientcode1", productID)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = svc.ProductInCart(context.Background(), "clientcode1", bson.NewObjectID())
	require.NoError(t, err)
	assert.False(t, in)
}

func TestRandomCartCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := randomCartCode()
		require.NoError(t, err)
		assert.Len(t, code, cartCodeLength)
		for _, r := range code {
			assert.Contains(t, cartCodeCharset, string(r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45, "codes should be effectively unique")
}

func TestCartTimestampsSetOnCreate(t *testing.T) {
	svc, _, productID := newTestService()

	before := time.Now()
	c, err := svc.AddItem(context.Background(), "clientcode1", productID, 1, nil)
	require.NoError(t, err)
	assert.False(t, c.CreatedAt.Before(before.Add(-time.Second)))
}
