package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nextshop/commerce-api/pkg/global"
)

// LineItem is one priced line of a checkout session, in minor units.
type LineItem struct {
	Name            string
	UnitAmountCents int64
	Quantity        int
}

// SessionHandle is what the broker hands back to the caller: the external
// session id (the future idempotency key) and the redirect URL.
type SessionHandle struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to the Stripe Checkout REST API. Only the one endpoint
// this system needs is implemented.
type Client struct {
	secretKey  string
	baseURL    string
	successURL string
	cancelURL  string
	httpClient *http.Client
}

func NewClient(secretKey, baseURL, successURL, cancelURL string) *Client {
	return &Client{
		secretKey:  secretKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		successURL: successURL,
		cancelURL:  cancelURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func NewClientFromEnv() *Client {
	return NewClient(
		global.GetEnvOrDefault("STRIPE_SECRET_KEY", ""),
		global.GetEnvOrDefault("STRIPE_API_BASE", "https://api.stripe.com"),
		global.GetEnvOrDefault("CHECKOUT_SUCCESS_URL", "https://next-shop-self.vercel.app/success"),
		global.GetEnvOrDefault("CHECKOUT_CANCEL_URL", "https://next-shop-self.vercel.app/failed"),
	)
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CreateCheckoutSession opens a hosted payment session. Metadata is
// echoed back verbatim in the confirmation webhook; it is the only link
// between the async confirmation and the originating cart.
func (c *Client) CreateCheckoutSession(ctx context.Context, lineItems []LineItem, customerEmail string, metadata map[string]string) (*SessionHandle, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("customer_email", customerEmail)
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)
	form.Set("payment_method_types[0]", "card")

	for i, item := range lineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmountCents, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout session request: %v: %w", err, global.ErrProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var stripeErr stripeError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&stripeErr); decodeErr == nil && stripeErr.Error.Message != "" {
			return nil, fmt.Errorf("checkout session rejected (%d): %s: %w",
				resp.StatusCode, stripeErr.Error.Message, global.ErrProvider)
		}
		return nil, fmt.Errorf("checkout session rejected with status %d: %w",
			resp.StatusCode, global.ErrProvider)
	}

	var handle SessionHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return nil, fmt.Errorf("decoding checkout session response: %v: %w", err, global.ErrProvider)
	}
	return &handle, nil
}
