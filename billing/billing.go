// Package billing reads the subscriptions and the last invoices of a
// customer from Stripe for the account pages. Results are cached per
// customer for a few minutes.
package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lysco/checkout-backend/stripe"
	stripeapi "github.com/stripe/stripe-go/v81"
	"go.vocdoni.io/dvote/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTTL is how long the billing data of a customer is cached.
	DefaultTTL = 5 * time.Minute
	// DefaultInvoiceLimit is the number of invoices returned.
	DefaultInvoiceLimit = 10

	cacheSize        = 512
	productCacheSize = 256
	productTTL       = time.Hour
	maxProductFetch  = 4
)

// SubscriptionItem is an item of a subscription with the name of its product.
type SubscriptionItem struct {
	ID          string `json:"id"`
	PriceID     string `json:"priceId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unitAmount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval,omitempty"`
}

// Subscription is a subscription of the customer.
type Subscription struct {
	ID                 string             `json:"id"`
	Status             string             `json:"status"`
	Created            int64              `json:"created"`
	CurrentPeriodStart int64              `json:"currentPeriodStart"`
	CurrentPeriodEnd   int64              `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
	CanceledAt         int64              `json:"canceledAt,omitempty"`
	Items              []SubscriptionItem `json:"items"`
}

// InvoiceLine is a line of an invoice with the name of its product.
type InvoiceLine struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Quantity    int64  `json:"quantity"`
	PriceID     string `json:"priceId,omitempty"`
	ProductName string `json:"productName"`
}

// Invoice is an invoice of the customer.
type Invoice struct {
	ID               string        `json:"id"`
	Number           string        `json:"number"`
	Status           string        `json:"status"`
	Currency         string        `json:"currency"`
	AmountDue        int64         `json:"amountDue"`
	AmountPaid       int64         `json:"amountPaid"`
	Created          int64         `json:"created"`
	HostedInvoiceURL string        `json:"hostedInvoiceUrl,omitempty"`
	InvoicePDF       string        `json:"invoicePdf,omitempty"`
	Lines            []InvoiceLine `json:"lines"`
}

// Data is the billing data of a customer.
type Data struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Invoices      []Invoice      `json:"invoices"`
}

// Service fetches and caches billing data.
type Service struct {
	gateway  stripe.Gateway
	limit    int64
	cache    *expirable.LRU[string, *Data]
	products *expirable.LRU[string, string]
}

// NewService creates a billing service. A zero ttl falls back to DefaultTTL.
func NewService(gateway stripe.Gateway, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Service{
		gateway:  gateway,
		limit:    DefaultInvoiceLimit,
		cache:    expirable.NewLRU[string, *Data](cacheSize, nil, ttl),
		products: expirable.NewLRU[string, string](productCacheSize, nil, productTTL),
	}
}

// CustomerData returns every subscription of the customer, whatever its
// status, and its last invoices. Prices and invoice lines carry the name of
// their product.
func (s *Service) CustomerData(ctx context.Context, customerID string) (*Data, error) {
	if data, ok := s.cache.Get(customerID); ok {
		log.Debugw("billing data served from cache", "customer", customerID)
		return data, nil
	}
	subs, err := s.gateway.ListSubscriptions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("cannot list subscriptions: %w", err)
	}
	invoices, err := s.gateway.ListInvoices(ctx, customerID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("cannot list invoices: %w", err)
	}
	names, err := s.productNames(ctx, productIDs(subs, invoices))
	if err != nil {
		return nil, err
	}

	data := &Data{
		Subscriptions: make([]Subscription, 0, len(subs)),
		Invoices:      make([]Invoice, 0, len(invoices)),
	}
	for _, sub := range subs {
		data.Subscriptions = append(data.Subscriptions, newSubscription(sub, names))
	}
	for _, inv := range invoices {
		data.Invoices = append(data.Invoices, newInvoice(inv, names))
	}
	s.cache.Add(customerID, data)
	return data, nil
}

// Invalidate drops the cached data of the customer.
func (s *Service) Invalidate(customerID string) {
	s.cache.Remove(customerID)
}

// productNames resolves the name of every product, using the product cache
// first and fetching the missing ones concurrently.
func (s *Service) productNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	var missing []string
	for _, id := range ids {
		if name, ok := s.products.Get(id); ok {
			names[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxProductFetch)
	for _, id := range missing {
		id := id
		g.Go(func() error {
			product, err := s.gateway.GetProduct(gctx, id)
			if err != nil {
				return fmt.Errorf("cannot get product %s: %w", id, err)
			}
			s.products.Add(id, product.Name)
			mu.Lock()
			names[id] = product.Name
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

// productIDs returns the distinct products referenced by the prices of the
// subscriptions and the invoice lines.
func productIDs(subs []*stripeapi.Subscription, invoices []*stripeapi.Invoice) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(price *stripeapi.Price) {
		if price == nil || price.Product == nil || price.Product.ID == "" || seen[price.Product.ID] {
			return
		}
		seen[price.Product.ID] = true
		ids = append(ids, price.Product.ID)
	}
	for _, sub := range subs {
		if sub.Items == nil {
			continue
		}
		for _, item := range sub.Items.Data {
			add(item.Price)
		}
	}
	for _, inv := range invoices {
		if inv.Lines == nil {
			continue
		}
		for _, line := range inv.Lines.Data {
			add(line.Price)
		}
	}
	return ids
}

func productOf(price *stripeapi.Price, names map[string]string) (string, string) {
	if price == nil || price.Product == nil {
		return "", ""
	}
	if price.Product.Name != "" {
		return price.Product.ID, price.Product.Name
	}
	return price.Product.ID, names[price.Product.ID]
}

func newSubscription(sub *stripeapi.Subscription, names map[string]string) Subscription {
	s := Subscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		Created:            sub.Created,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         sub.CanceledAt,
		Items:              []SubscriptionItem{},
	}
	if sub.Items == nil {
		return s
	}
	for _, item := range sub.Items.Data {
		si := SubscriptionItem{ID: item.ID, Quantity: item.Quantity}
		if item.Price != nil {
			si.PriceID = item.Price.ID
			si.UnitAmount = item.Price.UnitAmount
			si.Currency = string(item.Price.Currency)
			if item.Price.Recurring != nil {
				si.Interval = string(item.Price.Recurring.Interval)
			}
		}
		si.ProductID, si.ProductName = productOf(item.Price, names)
		s.Items = append(s.Items, si)
	}
	return s
}

func newInvoice(inv *stripeapi.Invoice, names map[string]string) Invoice {
	i := Invoice{
		ID:               inv.ID,
		Number:           inv.Number,
		Status:           string(inv.Status),
		Currency:         string(inv.Currency),
		AmountDue:        inv.AmountDue,
		AmountPaid:       inv.AmountPaid,
		Created:          inv.Created,
		HostedInvoiceURL: inv.HostedInvoiceURL,
		InvoicePDF:       inv.InvoicePDF,
		Lines:            []InvoiceLine{},
	}
	if inv.Lines == nil {
		return i
	}
	for _, line := range inv.Lines.Data {
		il := InvoiceLine{
			ID:          line.ID,
			Description: line.Description,
			Amount:      line.Amount,
			Quantity:    line.Quantity,
		}
		if line.Price != nil {
			il.PriceID = line.Price.ID
		}
		_, il.ProductName = productOf(line.Price, names)
		i.Lines = append(i.Lines, il)
	}
	return i
}
