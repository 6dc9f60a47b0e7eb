// Package notify is the outbound message-data boundary. Core components
// hand over plain records; message text is composed by a Renderer owned by
// the worker, never inside the domain packages.
package notify

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltora/voltora/internal/orders"
	"github.com/voltora/voltora/internal/quotes"
)

// MessageItem is one line of an outbound order or quote message.
type MessageItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// OrderMessageData carries everything a renderer needs for an order
// notification.
type OrderMessageData struct {
	OrderNumber      string          `json:"order_number"`
	CustomerName     string          `json:"customer_name,omitempty"`
	Items            []MessageItem   `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DeliveryCost     decimal.Decimal `json:"delivery_cost"`
	InstallationCost decimal.Decimal `json:"installation_cost"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	DeliveryMethod   string          `json:"delivery_method,omitempty"`
	Address          string          `json:"address,omitempty"`
	PaymentStatus    string          `json:"payment_status,omitempty"`
}

// QuoteMessageData carries everything a renderer needs for a quote
// notification.
type QuoteMessageData struct {
	QuoteNumber      string          `json:"quote_number"`
	CustomerName     string          `json:"customer_name,omitempty"`
	Items            []MessageItem   `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	InstallationCost decimal.Decimal `json:"installation_cost"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	ValidUntil       time.Time       `json:"valid_until"`
}

// Renderer turns message data into outbound text. Implementations live
// with the worker.
type Renderer interface {
	RenderOrder(ctx context.Context, data OrderMessageData) (string, error)
	RenderQuote(ctx context.Context, data QuoteMessageData) (string, error)
}

// FromOrder projects an order into its message data.
func FromOrder(o orders.Order, customerName, paymentStatus string) OrderMessageData {
	data := OrderMessageData{
		OrderNumber:      o.OrderNumber,
		CustomerName:     customerName,
		Items:            messageItems(o.Items),
		Subtotal:         o.Subtotal,
		DeliveryCost:     o.DeliveryCost,
		InstallationCost: o.InstallationCost,
		TotalAmount:      o.TotalAmount,
		Currency:         o.Currency,
		DeliveryMethod:   string(o.DeliveryMethod),
		PaymentStatus:    paymentStatus,
	}
	if o.ShippingAddress != nil {
		data.Address = *o.ShippingAddress
	}
	return data
}

// FromQuote projects a quote and its underlying order into message data.
func FromQuote(q quotes.Quote, o orders.Order, customerName string) QuoteMessageData {
	return QuoteMessageData{
		QuoteNumber:      q.QuoteNumber,
		CustomerName:     customerName,
		Items:            messageItems(o.Items),
		Subtotal:         o.Subtotal,
		InstallationCost: q.CalculatedInstallationCost,
		TotalAmount:      o.TotalAmount,
		Currency:         o.Currency,
		ValidUntil:       q.ValidUntil,
	}
}

func messageItems(items []orders.OrderItem) []MessageItem {
	out := make([]MessageItem, 0, len(items))
	for _, item := range items {
		out = append(out, MessageItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}
	return out
}

// BuildWhatsAppURL returns a wa.me link that opens a chat with the given
// phone number and the rendered text prefilled.
func BuildWhatsAppURL(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(text)
}
