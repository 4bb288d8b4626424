package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/smtp"

	"github.com/nextshop/commerce-api/pkg/global"
)

// EmailSender delivers plain-text mail over SMTP.
type EmailSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewEmailSenderFromEnv() *EmailSender {
	return &EmailSender{
		host:     global.GetEnvOrDefault("SMTP_HOST", "localhost"),
		port:     global.GetEnvOrDefault("SMTP_PORT", "587"),
		username: global.GetEnvOrDefault("SMTP_USERNAME", ""),
		password: global.GetEnvOrDefault("SMTP_PASSWORD", ""),
		from:     global.GetEnvOrDefault("SMTP_FROM", "orders@nextshop.dev"),
	}
}

func (s *EmailSender) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, to, subject, body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	return smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{to}, []byte(msg))
}

// OrderConfirmationHandler returns the handler that mails order
// confirmations. Redelivery just re-sends the mail; harmless.
func OrderConfirmationHandler(sender *EmailSender) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p OrderConfirmationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("bad order confirmation payload: %w", err)
		}

		subject := fmt.Sprintf("Order Confirmation - Order #%s", p.OrderID)
		body := fmt.Sprintf(
			"Your order #%s has been confirmed. Total: %.2f %s\n\nThank you for your purchase!",
			p.OrderID, p.Amount, p.Currency)

		if err := sender.Send(p.CustomerEmail, subject, body); err != nil {
			return fmt.Errorf("sending confirmation for order %s: %w", p.OrderID, err)
		}
		log.Printf("Order confirmation email sent for order %s", p.OrderID)
		return nil
	}
}

// StockShortfallHandler surfaces fulfillment shortfalls to operators for
// manual reconciliation (refund workflow lives outside this system).
func StockShortfallHandler(sender *EmailSender) HandlerFunc {
	opsEmail := global.GetEnvOrDefault("OPS_EMAIL", "ops@nextshop.dev")
	return func(ctx context.Context, payload json.RawMessage) error {
		var p StockShortfallPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("bad stock shortfall payload: %w", err)
		}

		subject := fmt.Sprintf("Stock shortfall during fulfillment: %s", p.ProductName)
		body := fmt.Sprintf(
			"Checkout %s could not be fulfilled: product %s (%s) short by %d units.\nA refund may be required.",
			p.CheckoutRef, p.ProductName, p.ProductID, p.Requested)

		if err := sender.Send(opsEmail, subject, body); err != nil {
			return fmt.Errorf("sending shortfall notice for %s: %w", p.CheckoutRef, err)
		}
		log.Printf("Stock shortfall notice sent for checkout %s", p.CheckoutRef)
		return nil
	}
}
