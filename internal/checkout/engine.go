// Package checkout implements the cart-to-order fulfillment pipeline:
// stock validation, payment session creation, and the webhook-driven
// atomic conversion of a paid cart into an immutable order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
	"github.com/nextshop/commerce-api/pkg/payment"
	"github.com/nextshop/commerce-api/pkg/tasks"
)

// Every checkout carries a flat fee line alongside the cart items.
const (
	vatFeeName  = "VAT Fee"
	vatFeeCents = 500
)

type CartStore interface {
	GetByCode(ctx context.Context, cartCode string) (*models.Cart, error)
	Delete(ctx context.Context, cartID bson.ObjectID) error
}

type ProductStore interface {
	GetByID(ctx context.Context, id bson.ObjectID) (*models.Product, error)
}

// Ledger is the inventory contract. DecrementStock must be an atomic
// check-and-decrement; ReserveStock is the advisory pre-check.
type Ledger interface {
	ReserveStock(ctx context.Context, productID bson.ObjectID, quantity int) error
	DecrementStock(ctx context.Context, productID bson.ObjectID, quantity int, reference string) error
	RecordShortfall(ctx context.Context, productID bson.ObjectID, quantity int, reference string) error
}

type OrderStore interface {
	GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error)
	Insert(ctx context.Context, order *models.Order) error
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, lineItems []payment.LineItem, customerEmail string, metadata map[string]string) (*payment.SessionHandle, error)
}

// TxRunner executes fn as one atomic unit of work; everything fn does
// with the callback context commits or aborts together.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Engine drives a checkout attempt through
// Initiated -> SessionCreated -> Confirmed -> Fulfilled, with Rejected
// and FulfillmentFailed as the failure branches.
type Engine struct {
	carts    CartStore
	products ProductStore
	ledger   Ledger
	orders   OrderStore
	provider Provider
	queue    tasks.Queue
	runTx    TxRunner
}

func NewEngine(carts CartStore, products ProductStore, ledger Ledger, orders OrderStore, provider Provider, queue tasks.Queue, runTx TxRunner) *Engine {
	return &Engine{
		carts:    carts,
		products: products,
		ledger:   ledger,
		orders:   orders,
		provider: provider,
		queue:    queue,
		runTx:    runTx,
	}
}

// canCheckoutCart mirrors the cart access policy: anonymous carts by
// possession of the code, owned carts by their owner only.
func canCheckoutCart(user *models.User, c *models.Cart) bool {
	if c.UserID == nil {
		return true
	}
	return user != nil && c.IsOwnedBy(user.ID)
}

// CreateCheckout validates the cart and mints a payment session. Any
// validation failure rejects the attempt synchronously with no external
// call; stock checks here are advisory, the authoritative check happens
// again at fulfillment.
func (e *Engine) CreateCheckout(ctx context.Context, cartCode, customerEmail string, user *models.User) (*payment.SessionHandle, error) {
	if cartCode == "" {
		return nil, fmt.Errorf("cart_code is required: %w", global.ErrValidation)
	}
	if customerEmail == "" {
		return nil, fmt.Errorf("email is required: %w", global.ErrValidation)
	}

	c, err := e.carts.GetByCode(ctx, cartCode)
	if err != nil {
		return nil, err
	}
	if !canCheckoutCart(user, c) {
		return nil, fmt.Errorf("cart %q belongs to another user: %w", cartCode, global.ErrForbidden)
	}
	if len(c.Items) == 0 {
		return nil, fmt.Errorf("cart %q is empty: %w", cartCode, global.ErrValidation)
	}

	lineItems := make([]payment.LineItem, 0, len(c.Items)+1)
	for _, item := range c.Items {
		product, err := e.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.ReserveStock(ctx, product.ID, item.Quantity); err != nil {
			return nil, err
		}
		lineItems = append(lineItems, payment.LineItem{
			Name:            product.Name,
			UnitAmountCents: product.PriceCents,
			Quantity:        item.Quantity,
		})
	}
	lineItems = append(lineItems, payment.LineItem{
		Name:            vatFeeName,
		UnitAmountCents: vatFeeCents,
		Quantity:        1,
	})

	// This metadata is the only link between the async confirmation and
	// the originating cart.
	metadata := map[string]string{"cart_code": cartCode}
	if user != nil {
		metadata["user_id"] = user.ID.Hex()
	}

	return e.provider.CreateCheckoutSession(ctx, lineItems, customerEmail, metadata)
}

// HandleConfirmation fulfills a paid checkout session. Deliveries are
// at-least-once; the order's unique external reference converts them to
// at-most-one fulfillment. A returned error means the webhook must be
// NACKed so the provider redelivers.
func (e *Engine) HandleConfirmation(ctx context.Context, event *payment.WebhookEvent) error {
	if !event.IsPaymentCompleted() {
		return nil
	}
	session := event.Data.Object

	// Idempotency gate: the sole defense against duplicate delivery.
	if _, err := e.orders.GetByCheckoutID(ctx, session.ID); err == nil {
		log.Printf("Checkout %s already fulfilled, skipping redelivery", session.ID)
		return nil
	} else if !errors.Is(err, global.ErrNotFound) {
		return err
	}

	cartCode := event.Data.Object.Metadata["cart_code"]
	if cartCode == "" {
		return fmt.Errorf("confirmation for %s carries no cart_code: %w", session.ID, global.ErrIntegrity)
	}

	var order *models.Order
	var shortfall *tasks.StockShortfallPayload

	err := e.runTx(ctx, func(ctx context.Context) error {
		c, err := e.carts.GetByCode(ctx, cartCode)
		if errors.Is(err, global.ErrNotFound) {
			return fmt.Errorf("cart %q missing at confirmation of %s: %w", cartCode, session.ID, global.ErrIntegrity)
		}
		if err != nil {
			return err
		}

		// Touch product rows in a fixed order so concurrent fulfillments
		// never deadlock, and a failure partway through aborts before any
		// inconsistent partial decrement can commit.
		items := make([]models.CartItem, len(c.Items))
		copy(items, c.Items)
		sort.Slice(items, func(i, j int) bool {
			return items[i].ProductID.Hex() < items[j].ProductID.Hex()
		})

		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			product, err := e.products.GetByID(ctx, item.ProductID)
			if errors.Is(err, global.ErrNotFound) {
				return fmt.Errorf("product %s gone at confirmation of %s: %w",
					item.ProductID.Hex(), session.ID, global.ErrIntegrity)
			}
			if err != nil {
				return err
			}

			if err := e.ledger.DecrementStock(ctx, product.ID, item.Quantity, session.ID); err != nil {
				if errors.Is(err, global.ErrInsufficientStock) || errors.Is(err, global.ErrNotFound) {
					// Stock race lost after payment. No partial order: the
					// whole unit of work aborts.
					shortfall = &tasks.StockShortfallPayload{
						ProductID:   product.ID.Hex(),
						ProductName: product.Name,
						Requested:   item.Quantity,
						CheckoutRef: session.ID,
					}
					return fmt.Errorf("fulfilling %s: %v: %w", session.ID, err, global.ErrIntegrity)
				}
				return err
			}

			orderItems = append(orderItems, models.OrderItem{
				ProductID:      product.ID,
				Name:           product.Name,
				UnitPriceCents: product.PriceCents,
				Quantity:       item.Quantity,
			})
		}

		order = &models.Order{
			StripeCheckoutID: session.ID,
			AmountCents:      session.AmountTotal,
			Currency:         session.Currency,
			CustomerEmail:    session.CustomerEmail,
			Status:           models.OrderStatusPaid,
			Items:            orderItems,
			CreatedAt:        time.Now(),
		}
		if err := e.orders.Insert(ctx, order); err != nil {
			return err
		}

		return e.carts.Delete(ctx, c.ID)
	})

	if errors.Is(err, global.ErrConflict) {
		// A concurrent delivery inserted the order first; ours aborted
		// against the unique index. Same outcome as the gate above.
		log.Printf("Checkout %s fulfilled by concurrent delivery", session.ID)
		return nil
	}
	if err != nil {
		if shortfall != nil {
			// Reported outside the aborted transaction so the operator
			// trail survives. The NACK below makes the provider retry; a
			// restock can still rescue the order, otherwise the notice
			// drives a manual refund.
			if recErr := e.ledger.RecordShortfall(ctx, mustObjectID(shortfall.ProductID), shortfall.Requested, session.ID); recErr != nil {
				log.Printf("Failed to record shortfall for %s: %v", session.ID, recErr)
			}
			if qErr := e.queue.Enqueue(ctx, tasks.KindStockShortfallNotice, shortfall); qErr != nil {
				log.Printf("Failed to enqueue shortfall notice for %s: %v", session.ID, qErr)
			}
		}
		log.Printf("Fulfillment failed for checkout %s: %v", session.ID, err)
		return err
	}

	// Side effects must never fail the already-committed fulfillment.
	confirmation := tasks.OrderConfirmationPayload{
		OrderID:       order.ID.Hex(),
		CustomerEmail: order.CustomerEmail,
		Amount:        models.FromCents(order.AmountCents),
		Currency:      order.Currency,
	}
	if err := e.queue.Enqueue(ctx, tasks.KindOrderConfirmationEmail, confirmation); err != nil {
		log.Printf("Failed to enqueue confirmation email for order %s: %v", order.ID.Hex(), err)
	}

	log.Printf("Fulfilled checkout %s as order %s", session.ID, order.ID.Hex())
	return nil
}

func mustObjectID(hex string) bson.ObjectID {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.ObjectID{}
	}
	return id
}
