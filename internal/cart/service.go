// Package cart implements the mutable shopping cart: resolve-or-create
// by cart code, adopt-once ownership, merged item adds, and the
// capability-by-possession access model for anonymous carts.
package cart

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
)

// Store is the persistence contract. Increment and push must be atomic
// in-place updates so concurrent adds merge rather than clobber.
type Store interface {
	GetByCode(ctx context.Context, cartCode string) (*models.Cart, error)
	GetByUser(ctx context.Context, userID bson.ObjectID) (*models.Cart, error)
	GetByItemID(ctx context.Context, itemID bson.ObjectID) (*models.Cart, error)
	CodeExists(ctx context.Context, cartCode string) (bool, error)
	Create(ctx context.Context, cart *models.Cart) error
	Adopt(ctx context.Context, cartID, userID bson.ObjectID) (bool, error)
	IncrementItem(ctx context.Context, cartID, productID bson.ObjectID, quantity int) (bool, error)
	PushItem(ctx context.Context, cartID bson.ObjectID, item models.CartItem) (bool, error)
	SetItemQuantity(ctx context.Context, itemID bson.ObjectID, quantity int) error
	RemoveItem(ctx context.Context, itemID bson.ObjectID) error
	Delete(ctx context.Context, cartID bson.ObjectID) error
}

type Products interface {
	GetByID(ctx context.Context, id bson.ObjectID) (*models.Product, error)
}

type Service struct {
	store    Store
	products Products
}

func NewService(store Store, products Products) *Service {
	return &Service{store: store, products: products}
}

// canUseCart is the authorization policy for every cart operation, reads
// included. Anonymous carts are usable by anyone holding the code
// (capability by possession); owned carts only by their owner.
func canUseCart(user *models.User, c *models.Cart) bool {
	if c.UserID == nil {
		return true
	}
	return user != nil && c.IsOwnedBy(user.ID)
}

// AddItem resolves or creates the cart and merges the product into it.
// An anonymous cart touched by an authenticated user is adopted by them
// as a side effect; a cart owned by someone else is Forbidden.
func (s *Service) AddItem(ctx context.Context, cartCode string, productID bson.ObjectID, quantity int, user *models.User) (*models.Cart, error) {
	if quantity <= 0 {
		quantity = 1
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsInStock() {
		return nil, fmt.Errorf("product %q is out of stock: %w", product.Slug, global.ErrValidation)
	}

	c, err := s.resolveOrCreate(ctx, cartCode, user)
	if err != nil {
		return nil, err
	}

	if !canUseCart(user, c) {
		return nil, fmt.Errorf("cart %q belongs to another user: %w", c.CartCode, global.ErrForbidden)
	}

	if c.UserID == nil && user != nil {
		adopted, err := s.store.Adopt(ctx, c.ID, user.ID)
		if err != nil {
			return nil, err
		}
		if !adopted {
			// Lost an adoption race; re-check against the new owner.
			c, err = s.store.GetByCode(ctx, c.CartCode)
			if err != nil {
				return nil, err
			}
			if !canUseCart(user, c) {
				return nil, fmt.Errorf("cart %q belongs to another user: %w", c.CartCode, global.ErrForbidden)
			}
		}
	}

	if err := s.mergeItem(ctx, c.ID, product.ID, quantity); err != nil {
		return nil, err
	}
	return s.store.GetByCode(ctx, c.CartCode)
}

func (s *Service) resolveOrCreate(ctx context.Context, cartCode string, user *models.User) (*models.Cart, error) {
	if cartCode == "" {
		if user == nil {
			return nil, fmt.Errorf("cart_code is required for anonymous carts: %w", global.ErrValidation)
		}
		c, err := s.store.GetByUser(ctx, user.ID)
		if err == nil {
			return c, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
		return s.createCart(ctx, "", user)
	}

	c, err := s.store.GetByCode(ctx, cartCode)
	if err == nil {
		return c, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return s.createCart(ctx, cartCode, user)
}

func (s *Service) createCart(ctx context.Context, cartCode string, user *models.User) (*models.Cart, error) {
	if cartCode == "" {
		code, err := s.newCartCode(ctx)
		if err != nil {
			return nil, err
		}
		cartCode = code
	}

	c := &models.Cart{
		ID:       bson.NewObjectID(),
		CartCode: cartCode,
		Items:    []models.CartItem{},
	}
	if user != nil {
		c.UserID = &user.ID
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// mergeItem enforces at most one item per (cart, product): increment in
// place first, push a fresh item when none exists, and fall back to a
// second increment if a concurrent add pushed between the two.
func (s *Service) mergeItem(ctx context.Context, cartID, productID bson.ObjectID, quantity int) error {
	matched, err := s.store.IncrementItem(ctx, cartID, productID, quantity)
	if err != nil || matched {
		return err
	}

	item := models.CartItem{
		ItemID:    bson.NewObjectID(),
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   time.Now(),
	}
	pushed, err := s.store.PushItem(ctx, cartID, item)
	if err != nil || pushed {
		return err
	}

	_, err = s.store.IncrementItem(ctx, cartID, productID, quantity)
	return err
}

// UpdateItemQuantity sets an item's quantity. Zero is a semantic delete:
// the item is removed and removed=true is returned.
func (s *Service) UpdateItemQuantity(ctx context.Context, itemID bson.ObjectID, quantity int, user *models.User) (c *models.Cart, removed bool, err error) {
	if quantity < 0 {
		return nil, false, fmt.Errorf("quantity must not be negative: %w", global.ErrValidation)
	}

	c, err = s.store.GetByItemID(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	if !canUseCart(user, c) {
		return nil, false, fmt.Errorf("cart %q belongs to another user: %w", c.CartCode, global.ErrForbidden)
	}

	if quantity == 0 {
		if err := s.store.RemoveItem(ctx, itemID); err != nil {
			return nil, false, err
		}
		removed = true
	} else if err := s.store.SetItemQuantity(ctx, itemID, quantity); err != nil {
		return nil, false, err
	}

	c, err = s.store.GetByCode(ctx, c.CartCode)
	return c, removed, err
}

func (s *Service) RemoveItem(ctx context.Context, itemID bson.ObjectID, user *models.User) error {
	c, err := s.store.GetByItemID(ctx, itemID)
	if err != nil {
		return err
	}
	if !canUseCart(user, c) {
		return fmt.Errorf("cart %q belongs to another user: %w", c.CartCode, global.ErrForbidden)
	}
	return s.store.RemoveItem(ctx, itemID)
}

func (s *Service) GetCart(ctx context.Context, cartCode string, user *models.User) (*models.Cart, error) {
	c, err := s.store.GetByCode(ctx, cartCode)
	if err != nil {
		return nil, err
	}
	if !canUseCart(user, c) {
		return nil, fmt.Errorf("cart %q belongs to another user: %w", c.CartCode, global.ErrForbidden)
	}
	return c, nil
}

// BuildView joins cart items with their products' list shapes.
func (s *Service) BuildView(ctx context.Context, c *models.Cart) (*models.CartView, error) {
	view := &models.CartView{
		ID:       c.ID,
		CartCode: c.CartCode,
		Items:    make([]models.CartItemView, 0, len(c.Items)),
	}
	for _, item := range c.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if isNotFound(err) {
				// Product removed from the catalog while still in a cart;
				// skip it rather than break the whole view.
				continue
			}
			return nil, err
		}
		subTotal := models.FromCents(product.PriceCents * int64(item.Quantity))
		view.Items = append(view.Items, models.CartItemView{
			ItemID:   item.ItemID,
			Product:  product.ToListView(),
			Quantity: item.Quantity,
			SubTotal: subTotal,
		})
		view.SumTotal += subTotal
	}
	return view, nil
}

func (s *Service) Stat(ctx context.Context, cartCode string, user *models.User) (*models.CartStatView, error) {
	c, err := s.GetCart(ctx, cartCode, user)
	if err != nil {
		return nil, err
	}
	return &models.CartStatView{CartCode: c.CartCode, NumItems: c.TotalQuantity()}, nil
}

func (s *Service) ProductInCart(ctx context.Context, cartCode string, productID bson.ObjectID) (bool, error) {
	c, err := s.store.GetByCode(ctx, cartCode)
	if err != nil {
		return false, err
	}
	return c.FindItem(productID) != nil, nil
}

const (
	cartCodeLength  = 11
	cartCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxCodeAttempts = 10
)

// newCartCode generates an 11-character code, retrying until it does not
// collide with an existing cart.
func (s *Service) newCartCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCartCode()
		if err != nil {
			return "", err
		}
		exists, err := s.store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique cart code after %d attempts", maxCodeAttempts)
}

func randomCartCode() (string, error) {
	raw := make([]byte, cartCodeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	for i, b := range raw {
		raw[i] = cartCodeCharset[int(b)%len(cartCodeCharset)]
	}
	return string(raw), nil
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, global.ErrNotFound)
}
